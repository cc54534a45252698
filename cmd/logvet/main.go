// logvet - regression-suite driver for numerical simulation logs.
// Scans solver logfiles for expected values and keyphrases and reports
// pass/fail per example problem.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/logvet/logvet/pkg/config"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// CLI flags
var (
	enableFlags  []string
	parallelFlag int
	baseDirFlag  string
	junitFlag    string
	xlsxFlag     string
	verbose      bool
	noColor      bool
	historyFlag  bool
	historyDB    string
	otlpEndpoint string

	// History command flags
	limitFlag   int
	exampleFlag string
	checkFlag   string
)

// errRunFailed marks a run with failing examples. It must unwind
// normally (not os.Exit) so deferred cleanup, telemetry flush included,
// still runs; the console report has already said what failed, so main
// does not print it again.
var errRunFailed = errors.New("one or more examples failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "logvet",
	Short: "logvet - vet simulation logfiles against expected results",
	Long: `logvet is a top-down regression-test driver for numerical simulation
codes. It scans textual logfiles produced by prior runs, extracts numeric
values and keyphrases, and compares them against expected targets within
tolerances, reporting pass/fail per example problem.

Suites are YAML files listing example problems, their logfiles, and the
checks to run against each logfile.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	runCmd.Flags().StringArrayVar(&enableFlags, "enable", nil, "Enable a suite condition (e.g. --enable mpi), repeatable")
	runCmd.Flags().IntVar(&parallelFlag, "parallel", 0, "Examples scanned concurrently (0 = number of CPUs)")
	runCmd.Flags().StringVar(&baseDirFlag, "base-dir", "", "Directory for resolving relative logfile paths (default: suite file's directory)")
	runCmd.Flags().StringVar(&junitFlag, "junit", "", "Write a JUnit XML report to this path")
	runCmd.Flags().StringVar(&xlsxFlag, "xlsx", "", "Write an XLSX report to this path")
	runCmd.Flags().BoolVar(&historyFlag, "history", false, "Record this run in the history database")
	runCmd.Flags().StringVar(&historyDB, "db", "", "History database path (default: ~/.logvet/history.db)")
	runCmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "Export traces to this OTLP gRPC endpoint")

	watchCmd.Flags().StringArrayVar(&enableFlags, "enable", nil, "Enable a suite condition, repeatable")
	watchCmd.Flags().IntVar(&parallelFlag, "parallel", 0, "Examples scanned concurrently (0 = number of CPUs)")
	watchCmd.Flags().StringVar(&baseDirFlag, "base-dir", "", "Directory for resolving relative logfile paths")

	historyCmd.Flags().StringVar(&historyDB, "db", "", "History database path (default: ~/.logvet/history.db)")
	historyCmd.Flags().IntVar(&limitFlag, "limit", 20, "Maximum rows to show")
	historyCmd.Flags().StringVar(&exampleFlag, "example", "", "Show the value trend for one example (requires --check)")
	historyCmd.Flags().StringVar(&checkFlag, "check", "", "Check label for --example")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
		cancel()
	}()
	return ctx, cancel
}

// conditionSet merges configured and flag-enabled condition names.
func conditionSet(cfg *config.Config) map[string]bool {
	conditions := make(map[string]bool)
	for _, name := range cfg.Run.Enable {
		conditions[name] = true
	}
	for _, name := range enableFlags {
		conditions[name] = true
	}
	return conditions
}
