package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/logvet/logvet/internal/model"
	"github.com/logvet/logvet/pkg/config"
	"github.com/logvet/logvet/pkg/fetch"
	"github.com/logvet/logvet/pkg/history"
	"github.com/logvet/logvet/pkg/report"
	"github.com/logvet/logvet/pkg/runner"
	"github.com/logvet/logvet/pkg/suite"
	"github.com/logvet/logvet/pkg/telemetry"
	"github.com/logvet/logvet/pkg/watch"
)

var runCmd = &cobra.Command{
	Use:   "run <suite.yaml>",
	Short: "Run a regression suite against its logfiles",
	Long: `Run every enabled example of a suite: scan each logfile, compare
extracted values and keyphrases against the registered expectations, and
print the report. Exits 1 if any example fails.

Examples:
  logvet run suite.yaml
  logvet run suite.yaml --enable mpi
  logvet run suite.yaml --junit report.xml --xlsx report.xlsx
  logvet run suite.yaml --history`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var validateCmd = &cobra.Command{
	Use:   "validate <suite.yaml>",
	Short: "Parse and validate a suite file",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var listCmd = &cobra.Command{
	Use:   "list <suite.yaml>",
	Short: "List the examples of a suite",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

var watchCmd = &cobra.Command{
	Use:   "watch <suite.yaml>",
	Short: "Re-run the suite whenever a logfile changes",
	Long: `Run the suite once, then watch every referenced logfile and re-run
on change until interrupted. Useful while a simulation batch is still
producing logs.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show archived runs from the history database",
	Long: `List recent runs recorded with "logvet run --history", or show the
value trend of a single check:

  logvet history
  logvet history --example "axi/SRL: Serial-time/iter" --check "total solver time"`,
	RunE: runHistory,
}

// loadSuite loads a suite and derives the base directory for relative
// logfile paths.
func loadSuite(path string) (*suite.Suite, string, error) {
	s, err := suite.Load(path)
	if err != nil {
		return nil, "", err
	}
	baseDir := baseDirFlag
	if baseDir == "" {
		baseDir = filepath.Dir(path)
	}
	return s, baseDir, nil
}

func newRunner(cfg *config.Config, baseDir string, progress bool) *runner.Runner {
	parallel := parallelFlag
	if parallel == 0 {
		parallel = cfg.Run.Parallel
	}

	var progressOut *os.File
	if progress && !verbose && isatty.IsTerminal(os.Stderr.Fd()) {
		progressOut = os.Stderr
	}

	opts := runner.Options{
		Parallel:   parallel,
		Conditions: conditionSet(cfg),
		Resolver: &fetch.Resolver{
			BaseDir: baseDir,
			S3: fetch.S3Config{
				Region:          cfg.S3.Region,
				Endpoint:        cfg.S3.Endpoint,
				UsePathStyle:    cfg.S3.UsePathStyle,
				DownloadTimeout: 5 * time.Minute,
			},
		},
	}
	if progressOut != nil {
		opts.Progress = progressOut
	}
	return runner.New(opts)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := config.Global().Get()
	ctx, cancel := signalContext()
	defer cancel()

	// Optional trace export
	endpoint := otlpEndpoint
	if endpoint == "" && cfg.Telemetry.Enabled {
		endpoint = cfg.Telemetry.Endpoint
	}
	if endpoint != "" {
		tcfg := telemetry.DefaultConfig("logvet", version)
		tcfg.Endpoint = endpoint
		shutdown, err := telemetry.Init(ctx, tcfg)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer scancel()
			shutdown(sctx)
		}()
	}

	s, baseDir, err := loadSuite(args[0])
	if err != nil {
		return err
	}

	run, err := newRunner(cfg, baseDir, true).Run(ctx, s)
	if err != nil {
		return err
	}

	console := &report.Console{
		Out:     os.Stdout,
		Verbose: verbose || cfg.Report.Verbose,
		NoColor: noColor || cfg.Report.NoColor,
	}
	console.Print(run)

	if path := firstNonEmpty(junitFlag, cfg.Report.JUnit); path != "" {
		if err := report.WriteJUnit(path, run); err != nil {
			return err
		}
	}
	if path := firstNonEmpty(xlsxFlag, cfg.Report.XLSX); path != "" {
		if err := report.WriteXLSX(path, run); err != nil {
			return err
		}
	}

	if historyFlag || cfg.History.Enabled {
		dbPath := firstNonEmpty(historyDB, cfg.History.Database)
		if err := recordHistory(ctx, dbPath, run); err != nil {
			return err
		}
	}

	if !run.Success() {
		return errRunFailed
	}
	return nil
}

func recordHistory(ctx context.Context, dbPath string, run *model.RunResult) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Append(ctx, run)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func runValidate(cmd *cobra.Command, args []string) error {
	s, _, err := loadSuite(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("suite %q: %d examples, %d checks, %d logfiles OK\n",
		s.Name, len(s.Examples), s.CheckCount(), len(s.Logfiles()))
	if len(s.Conditions) > 0 {
		fmt.Printf("conditions: %v\n", s.Conditions)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	s, _, err := loadSuite(args[0])
	if err != nil {
		return err
	}
	for _, ex := range s.Examples {
		line := fmt.Sprintf("%-50s  %d checks  %s", ex.Name, len(ex.Checks), ex.Logfile)
		if len(ex.Requires) > 0 {
			line += fmt.Sprintf("  (requires %v)", ex.Requires)
		}
		fmt.Println(line)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Global().Get()
	ctx, cancel := signalContext()
	defer cancel()

	s, baseDir, err := loadSuite(args[0])
	if err != nil {
		return err
	}
	r := newRunner(cfg, baseDir, false)
	console := &report.Console{
		Out:     os.Stdout,
		Verbose: verbose || cfg.Report.Verbose,
		NoColor: noColor || cfg.Report.NoColor,
	}

	rerun := func() {
		run, err := r.Run(ctx, s)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		console.Print(run)
	}

	// Watch resolved local paths; s3:// logfiles cannot be watched.
	var paths []string
	for _, location := range s.Logfiles() {
		if _, _, ok := fetch.SplitS3URI(location); ok {
			continue
		}
		if filepath.IsAbs(location) {
			paths = append(paths, location)
		} else {
			paths = append(paths, filepath.Join(baseDir, location))
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("suite has no watchable local logfiles")
	}

	w, err := watch.New(paths)
	if err != nil {
		return err
	}
	defer w.Close()
	w.OnChange = func(changed []string) {
		fmt.Fprintf(os.Stderr, "%d logfile(s) changed, re-running\n", len(changed))
		rerun()
	}
	w.OnError = func(err error) {
		fmt.Fprintln(os.Stderr, "watch error:", err)
	}

	rerun()
	fmt.Fprintln(os.Stderr, "watching for logfile changes (Ctrl-C to stop)")
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := config.Global().Get()
	ctx, cancel := signalContext()
	defer cancel()

	dbPath := firstNonEmpty(historyDB, cfg.History.Database)
	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if exampleFlag != "" || checkFlag != "" {
		if exampleFlag == "" || checkFlag == "" {
			return fmt.Errorf("--example and --check must be used together")
		}
		points, err := store.Trend(ctx, exampleFlag, checkFlag, limitFlag)
		if err != nil {
			return err
		}
		if len(points) == 0 {
			fmt.Println("no recorded values")
			return nil
		}
		fmt.Printf("%-36s  %-20s  %-8s  %s\n", "RUN", "STARTED", "STATUS", "VALUE")
		for _, p := range points {
			value := "-"
			if p.Value.Valid {
				value = fmt.Sprintf("%g", p.Value.Float64)
				if p.Target.Valid {
					value += fmt.Sprintf(" (target %g)", p.Target.Float64)
				}
			}
			fmt.Printf("%-36s  %-20s  %-8s  %s\n",
				p.RunID, p.Started.Format("2006-01-02 15:04:05"), p.Status, value)
		}
		return nil
	}

	runs, err := store.Recent(ctx, limitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	fmt.Printf("%-36s  %-20s  %-20s  %-8s  %s\n", "RUN", "SUITE", "STARTED", "CHECKS", "FAILED")
	for _, r := range runs {
		total := r.ChecksPassed + r.ChecksFailed + r.ChecksSkipped
		fmt.Printf("%-36s  %-20s  %-20s  %d/%-6d  %d\n",
			r.RunID, r.Suite, r.Started.Format("2006-01-02 15:04:05"),
			r.ChecksPassed, total, r.FailedExamples)
	}
	return nil
}
