package scan

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/logvet/logvet/internal/model"
	"github.com/logvet/logvet/pkg/suite"
)

func TestField(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		column int
		want   float64
		ok     bool
	}{
		{"last field", "total solver time 0.0931", 1, 0.0931, true},
		{"second from right", "  2   1.6329577E-01  21", 2, 1.6329577e-01, true},
		{"scientific notation", "umin -2.448980E-03", 1, -2.448980e-03, true},
		{"column past line start", "a b", 5, 0, false},
		{"non-numeric field", "PRES: converged", 1, 0, false},
		{"empty line", "", 1, 0, false},
		{"column zero width from right", "x 1 2 3", 3, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Field(tt.line, tt.column)
			if ok != tt.ok {
				t.Fatalf("Field(%q, %d) ok = %v, want %v", tt.line, tt.column, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Field(%q, %d) = %g, want %g", tt.line, tt.column, got, tt.want)
			}
		})
	}
}

func writeLog(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.log")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExample_ValueChecks(t *testing.T) {
	log := "" +
		"Step 1\n" +
		"PRES:  converged in iterations\n" + // label present, field non-numeric
		"PRES:  75 iterations  4.1E-09  12\n" +
		"total solver time 0.0931 sec\n" +
		"end of time-step loop\n"
	path := writeLog(t, log)

	ex := suite.Example{
		Name:    "axi/SRL",
		Logfile: "axi.log.1",
		Checks: []suite.Check{
			{Label: "PRES: ", Target: 0, Tolerance: 76, Column: 4},
			{Label: "total solver time", Target: 0.1, Tolerance: 2, Column: 2},
			{Label: "DIVERGENCE", Target: 0, Tolerance: 1, Column: 1},
		},
	}

	res := Example(path, ex)
	if res.Status != model.StatusFailed {
		t.Fatalf("Status = %v, want failed (one label missing)", res.Status)
	}
	if len(res.Checks) != 3 {
		t.Fatalf("len(Checks) = %d, want 3", len(res.Checks))
	}

	pres := res.Checks[0]
	if !pres.Found {
		t.Fatal("PRES: not found")
	}
	// The unparseable "converged" line must not consume the label;
	// the next occurrence supplies column 4 from the right = 75.
	if pres.Value != 75 {
		t.Errorf("PRES: value = %g, want 75", pres.Value)
	}
	if pres.Line != 3 {
		t.Errorf("PRES: line = %d, want 3", pres.Line)
	}
	if pres.Status != model.StatusPassed {
		t.Errorf("PRES: status = %v, want passed (75 iterations < 76)", pres.Status)
	}

	solver := res.Checks[1]
	if solver.Status != model.StatusPassed || solver.Value != 0.0931 {
		t.Errorf("solver time = %v/%g, want passed/0.0931", solver.Status, solver.Value)
	}

	missing := res.Checks[2]
	if missing.Found || missing.Status != model.StatusFailed {
		t.Errorf("missing label = found=%v status=%v, want not-found failure", missing.Found, missing.Status)
	}
}

func TestExample_ToleranceBoundary(t *testing.T) {
	path := writeLog(t, "umin -2.448980E-03\nother 5.0\n")
	tests := []struct {
		name      string
		target    float64
		tolerance float64
		want      model.Status
	}{
		{"inside range", -2.4e-03, 1e-03, model.StatusPassed},
		{"outside range", 0, 1e-03, model.StatusFailed},
		// |value-target| == tolerance fails: the comparison is strict
		{"exactly at tolerance", -1.448980e-03, 1e-03, model.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := suite.Example{
				Name:    "vortex2",
				Logfile: "v2d.err.1",
				Checks: []suite.Check{
					{Label: "umin", Target: tt.target, Tolerance: tt.tolerance, Column: 1},
				},
			}
			res := Example(path, ex)
			if got := res.Checks[0].Status; got != tt.want {
				t.Errorf("status = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExample_FirstMatchWins(t *testing.T) {
	path := writeLog(t, "eig  2.0\neig  3.0\n")
	ex := suite.Example{
		Name:    "eig",
		Logfile: "eig.log",
		Checks: []suite.Check{
			{Label: "eig", Target: 2.0, Tolerance: 0.5, Column: 1},
		},
	}
	res := Example(path, ex)
	if got := res.Checks[0].Value; got != 2.0 {
		t.Errorf("value = %g, want first occurrence 2.0", got)
	}
}

func TestExample_PhraseChecks(t *testing.T) {
	path := writeLog(t, "startup\nend of time-step loop\ndone\n")

	ex := suite.Example{
		Name:    "3dbox/SRL",
		Logfile: "b3d.log.1",
		Checks: []suite.Check{
			{Phrase: "end of time-step loop"},
			{Phrase: "Emergency exit"},
			{Phrase: "Error ", Absent: true},
			{Phrase: "done", Absent: true},
		},
	}
	res := Example(path, ex)

	wantStatus := []model.Status{
		model.StatusPassed, // phrase present
		model.StatusFailed, // phrase missing
		model.StatusPassed, // absent and indeed absent
		model.StatusFailed, // absent but present
	}
	for i, want := range wantStatus {
		if got := res.Checks[i].Status; got != want {
			t.Errorf("check %d (%q) status = %v, want %v", i, res.Checks[i].Name, got, want)
		}
	}
	if res.Status != model.StatusFailed {
		t.Errorf("example status = %v, want failed", res.Status)
	}
}

func TestExample_MissingLogfile(t *testing.T) {
	ex := suite.Example{
		Name:    "gone",
		Logfile: "nonexistent.log",
		Checks: []suite.Check{
			{Label: "x", Target: 0, Tolerance: 1, Column: 1},
			{Phrase: "ok"},
		},
	}
	res := Example(filepath.Join(t.TempDir(), "nonexistent.log"), ex)
	if res.Status != model.StatusSkipped {
		t.Fatalf("Status = %v, want skipped", res.Status)
	}
	if res.Notice == "" {
		t.Error("Notice is empty, want missing-logfile explanation")
	}
	for i, check := range res.Checks {
		if check.Status != model.StatusSkipped {
			t.Errorf("check %d status = %v, want skipped", i, check.Status)
		}
	}
	if !res.Failed() {
		t.Error("Failed() = false, skipped examples must render as failures")
	}
}

func TestExample_OversizedLine(t *testing.T) {
	// A line beyond the scanner buffer aborts the scan; checks after it
	// would report false not-found (and absent checks falsely pass), so
	// the whole example must degrade to the skip semantics instead.
	log := strings.Repeat("x", 2<<20) + "\nmetric 1.0\n"
	path := writeLog(t, log)

	ex := suite.Example{
		Name:    "oversized",
		Logfile: "run.log",
		Checks: []suite.Check{
			{Label: "metric", Target: 1.0, Tolerance: 0.5, Column: 1},
			{Phrase: "Error ", Absent: true},
		},
	}
	res := Example(path, ex)
	if res.Status != model.StatusSkipped {
		t.Fatalf("Status = %v, want skipped on unreadable logfile", res.Status)
	}
	if !strings.Contains(res.Notice, "failed to read") {
		t.Errorf("Notice = %q, want read-failure explanation", res.Notice)
	}
	for i, check := range res.Checks {
		if check.Status != model.StatusSkipped {
			t.Errorf("check %d status = %v, want skipped", i, check.Status)
		}
		if strings.Contains(check.Message, "could not find") {
			t.Errorf("check %d message = %q, must not fabricate a not-found result", i, check.Message)
		}
	}
	if !res.Failed() {
		t.Error("Failed() = false, unreadable logfile must render as a failure")
	}
}

func TestOpen_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	gz.Write([]byte("total solver time 0.5 sec\n"))
	gz.Close()
	f.Close()

	ex := suite.Example{
		Name:    "gz",
		Logfile: "run.log.gz",
		Checks: []suite.Check{
			{Label: "total solver time", Target: 0.5, Tolerance: 0.1, Column: 2},
		},
	}
	res := Example(path, ex)
	if res.Checks[0].Status != model.StatusPassed {
		t.Errorf("status = %v, want passed reading through gzip", res.Checks[0].Status)
	}
}
