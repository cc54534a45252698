// Package runner executes a suite: it resolves each enabled example's
// logfile, scans it, and collects results into a single run.
package runner

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/logvet/logvet/internal/model"
	"github.com/logvet/logvet/pkg/fetch"
	"github.com/logvet/logvet/pkg/scan"
	"github.com/logvet/logvet/pkg/suite"
)

// Options configures a Runner.
type Options struct {
	// Parallel is the number of examples scanned concurrently.
	// 0 means runtime.NumCPU().
	Parallel int

	// Conditions is the set of enabled condition names (mpi etc.).
	Conditions map[string]bool

	// Resolver maps logfile locations to local paths. Nil means a
	// zero-value resolver (local paths only).
	Resolver *fetch.Resolver

	// Progress, when non-nil, receives a progress bar across examples.
	Progress io.Writer
}

// Runner executes suites.
type Runner struct {
	opts Options
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Parallel <= 0 {
		opts.Parallel = runtime.NumCPU()
	}
	if opts.Resolver == nil {
		opts.Resolver = &fetch.Resolver{}
	}
	return &Runner{opts: opts}
}

// Run executes every enabled example of the suite and returns the
// aggregated result. Results keep the suite's registration order
// regardless of scheduling. An error is returned only for run-level
// problems (cancellation, unreachable remote logfile); check failures
// are reported through the result.
func (r *Runner) Run(ctx context.Context, s *suite.Suite) (*model.RunResult, error) {
	tracer := otel.Tracer("logvet/runner")
	ctx, span := tracer.Start(ctx, "suite.run")
	defer span.End()

	enabled, excluded := s.Enabled(r.opts.Conditions)

	run := &model.RunResult{
		RunID:    uuid.NewString(),
		Suite:    s.Name,
		Started:  time.Now(),
		Examples: make([]model.ExampleResult, len(enabled)),
		Excluded: excluded,
	}
	span.SetAttributes(
		attribute.String("suite.name", s.Name),
		attribute.String("run.id", run.RunID),
		attribute.Int("suite.examples", len(enabled)),
	)

	var bar *progressbar.ProgressBar
	if r.opts.Progress != nil {
		bar = progressbar.NewOptions(len(enabled),
			progressbar.OptionSetWriter(r.opts.Progress),
			progressbar.OptionSetDescription("scanning"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallel)
	for i := range enabled {
		i := i
		g.Go(func() error {
			run.Examples[i] = r.runExample(gctx, enabled[i])
			if bar != nil {
				bar.Add(1)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("run aborted: %w", err)
	}
	if bar != nil {
		bar.Finish()
	}

	run.Duration = time.Since(run.Started)
	passed, failed, _ := run.Counts()
	span.SetAttributes(
		attribute.Int("checks.passed", passed),
		attribute.Int("checks.failed", failed),
		attribute.Bool("run.success", run.Success()),
	)
	return run, nil
}

// runExample resolves and scans a single example's logfile.
func (r *Runner) runExample(ctx context.Context, ex suite.Example) model.ExampleResult {
	tracer := otel.Tracer("logvet/runner")
	_, span := tracer.Start(ctx, "example.scan")
	defer span.End()
	span.SetAttributes(
		attribute.String("example.name", ex.Name),
		attribute.String("example.logfile", ex.Logfile),
	)

	path, cleanup, err := r.opts.Resolver.Resolve(ctx, ex.Logfile)
	if err != nil {
		// Unreachable remote logfiles degrade to the same skip
		// semantics as missing local ones.
		path = ""
		cleanup = func() {}
	}
	defer cleanup()

	res := scan.Example(path, ex)
	span.SetAttributes(attribute.String("example.status", res.Status.String()))
	return res
}
