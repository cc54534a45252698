package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/logvet/logvet/internal/model"
	"github.com/logvet/logvet/pkg/fetch"
	"github.com/logvet/logvet/pkg/suite"
)

func writeLogs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRun(t *testing.T) {
	dir := writeLogs(t, map[string]string{
		"srlLog/eig1.err": "  2   1.6329577E-01  21\n 10   6.8264260E-06  402\n",
		"srlLog/b3d.log":  "stuff\nend of time-step loop\n",
	})

	s := &suite.Suite{
		Name:       "smoke",
		Conditions: []string{"mpi"},
		Examples: []suite.Example{
			{
				Name:    "2d_eig/SRL",
				Logfile: "srlLog/eig1.err",
				Checks: []suite.Check{
					{Label: " 2  ", Target: 1.6329577e-01, Tolerance: 1e-01, Column: 2},
				},
			},
			{
				Name:     "3dbox/MPI",
				Logfile:  "mpiLog/b3d.log",
				Requires: []string{"mpi"},
				Checks:   []suite.Check{{Phrase: "end of time-step loop"}},
			},
			{
				Name:    "3dbox/SRL",
				Logfile: "srlLog/b3d.log",
				Checks:  []suite.Check{{Phrase: "end of time-step loop"}},
			},
		},
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("fixture suite invalid: %v", err)
	}

	r := New(Options{
		Parallel: 2,
		Resolver: &fetch.Resolver{BaseDir: dir},
	})
	run, err := r.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if run.RunID == "" {
		t.Error("RunID is empty")
	}
	if run.Suite != "smoke" {
		t.Errorf("Suite = %q, want smoke", run.Suite)
	}
	if len(run.Examples) != 2 {
		t.Fatalf("len(Examples) = %d, want 2 (MPI example excluded)", len(run.Examples))
	}
	if len(run.Excluded) != 1 || run.Excluded[0] != "3dbox/MPI" {
		t.Errorf("Excluded = %v, want the MPI example", run.Excluded)
	}

	// Registration order survives parallel scheduling
	if run.Examples[0].Example != "2d_eig/SRL" || run.Examples[1].Example != "3dbox/SRL" {
		t.Errorf("result order = %q, %q", run.Examples[0].Example, run.Examples[1].Example)
	}
	if !run.Success() {
		t.Errorf("Success() = false: %+v", run.Examples)
	}
}

func TestRun_WithConditions(t *testing.T) {
	dir := writeLogs(t, map[string]string{
		"mpiLog/b3d.log": "end of time-step loop\n",
	})
	s := &suite.Suite{
		Name:       "mpi-only",
		Conditions: []string{"mpi"},
		Examples: []suite.Example{
			{
				Name:     "3dbox/MPI",
				Logfile:  "mpiLog/b3d.log",
				Requires: []string{"mpi"},
				Checks:   []suite.Check{{Phrase: "end of time-step loop"}},
			},
		},
	}

	r := New(Options{
		Conditions: map[string]bool{"mpi": true},
		Resolver:   &fetch.Resolver{BaseDir: dir},
	})
	run, err := r.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(run.Examples) != 1 || len(run.Excluded) != 0 {
		t.Errorf("examples=%d excluded=%d, want 1/0 with mpi enabled", len(run.Examples), len(run.Excluded))
	}
}

func TestRun_MissingLogfile(t *testing.T) {
	s := &suite.Suite{
		Name: "gone",
		Examples: []suite.Example{
			{
				Name:    "axi/SRL",
				Logfile: "does/not/exist.log",
				Checks:  []suite.Check{{Phrase: "ok"}},
			},
		},
	}
	r := New(Options{Resolver: &fetch.Resolver{BaseDir: t.TempDir()}})
	run, err := r.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if run.Success() {
		t.Error("Success() = true, want failure for missing logfile")
	}
	if run.Examples[0].Status != model.StatusSkipped {
		t.Errorf("Status = %v, want skipped", run.Examples[0].Status)
	}
}

func TestRun_ManyExamplesKeepOrder(t *testing.T) {
	files := make(map[string]string)
	var examples []suite.Example
	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("log%02d.out", i)
		files[name] = fmt.Sprintf("metric %d.0\n", i)
		examples = append(examples, suite.Example{
			Name:    fmt.Sprintf("case %02d", i),
			Logfile: name,
			Checks: []suite.Check{
				{Label: "metric", Target: float64(i), Tolerance: 0.5, Column: 1},
			},
		})
	}
	dir := writeLogs(t, files)

	r := New(Options{Parallel: 8, Resolver: &fetch.Resolver{BaseDir: dir}})
	run, err := r.Run(context.Background(), &suite.Suite{Name: "order", Examples: examples})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	for i, res := range run.Examples {
		want := fmt.Sprintf("case %02d", i)
		if res.Example != want {
			t.Fatalf("Examples[%d] = %q, want %q", i, res.Example, want)
		}
		if res.Status != model.StatusPassed {
			t.Errorf("%s status = %v: %+v", res.Example, res.Status, res.Checks)
		}
	}
}
