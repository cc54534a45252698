package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/logvet/logvet/internal/model"
)

func sampleRun(id string, started time.Time) *model.RunResult {
	return &model.RunResult{
		RunID:    id,
		Suite:    "smoke",
		Started:  started,
		Duration: 2 * time.Second,
		Examples: []model.ExampleResult{
			{
				Example: "axi/SRL",
				Status:  model.StatusPassed,
				Checks: []model.CheckResult{
					{
						Name: "total solver time", Kind: model.KindValue,
						Status: model.StatusPassed, Found: true,
						Value: 0.09, Target: 0.1, Tolerance: 2,
					},
					{
						Name: "end of time-step loop", Kind: model.KindPhrase,
						Status: model.StatusPassed, Found: true,
					},
				},
			},
		},
	}
}

func TestAppendAndRecent(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := sampleRun(
			[]string{"run-a", "run-b", "run-c"}[i],
			base.Add(time.Duration(i)*time.Hour),
		)
		if err := store.Append(ctx, run); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	runs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].RunID != "run-c" || runs[1].RunID != "run-b" {
		t.Errorf("order = %q, %q, want newest first", runs[0].RunID, runs[1].RunID)
	}
	if runs[0].ChecksPassed != 2 || runs[0].ChecksFailed != 0 {
		t.Errorf("counts = %d/%d, want 2 passed, 0 failed", runs[0].ChecksPassed, runs[0].ChecksFailed)
	}
	if runs[0].Duration != 2*time.Second {
		t.Errorf("Duration = %v, want 2s", runs[0].Duration)
	}
}

func TestTrend(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)

	ids := []string{"run-a", "run-b"}
	values := []float64{0.09, 0.12}
	for i, id := range ids {
		run := sampleRun(id, base.Add(time.Duration(i)*time.Hour))
		run.Examples[0].Checks[0].Value = values[i]
		if err := store.Append(ctx, run); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	points, err := store.Trend(ctx, "axi/SRL", "total solver time", 10)
	if err != nil {
		t.Fatalf("Trend() error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}
	if points[0].RunID != "run-b" {
		t.Errorf("points[0].RunID = %q, want newest first", points[0].RunID)
	}
	if !points[0].Value.Valid || points[0].Value.Float64 != 0.12 {
		t.Errorf("points[0].Value = %+v, want 0.12", points[0].Value)
	}

	// Phrase checks store no value
	points, err = store.Trend(ctx, "axi/SRL", "end of time-step loop", 10)
	if err != nil {
		t.Fatalf("Trend() error: %v", err)
	}
	if len(points) != 2 || points[0].Value.Valid {
		t.Errorf("phrase trend = %+v, want null values", points)
	}
}
