// Package report renders run results: a human-readable console stream,
// and optional JUnit XML / XLSX report files.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/logvet/logvet/internal/model"
)

// Styles
var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00CC66")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// Console writes the human-readable report stream.
type Console struct {
	// Out receives the report, usually os.Stdout.
	Out io.Writer

	// Verbose additionally prints passing phrase checks. Found values
	// always print.
	Verbose bool

	// NoColor disables styling.
	NoColor bool
}

func (c *Console) render(style lipgloss.Style, s string) string {
	if c.NoColor {
		return s
	}
	return style.Render(s)
}

// Print renders the whole run in registration order.
func (c *Console) Print(run *model.RunResult) {
	fmt.Fprintf(c.Out, "%s\n", c.render(headerStyle, fmt.Sprintf("suite %s  run %s", run.Suite, run.RunID)))
	fmt.Fprintf(c.Out, "%s\n\n", c.render(mutedStyle, ". : successful example, F : failed example"))

	for i := range run.Examples {
		c.printExample(&run.Examples[i])
	}

	for _, name := range run.Excluded {
		fmt.Fprintf(c.Out, "%s\n", c.render(mutedStyle, fmt.Sprintf("[%s] excluded: required condition not enabled", name)))
	}
	if len(run.Excluded) > 0 {
		fmt.Fprintln(c.Out)
	}

	c.printSummary(run)
}

func (c *Console) printExample(res *model.ExampleResult) {
	if res.Status == model.StatusSkipped {
		fmt.Fprintf(c.Out, "[%s] %s\n", res.Example, res.Notice)
	}

	var notFound []string
	for _, check := range res.Checks {
		switch {
		case check.Status == model.StatusSkipped:
			// Covered by the example-level notice.
		case check.Kind == model.KindValue && check.Found:
			fmt.Fprintf(c.Out, "[%s] %s : %g\n", res.Example, check.Name, check.Value)
			if check.Status == model.StatusFailed {
				fmt.Fprintf(c.Out, "[%s] %s\n", res.Example, c.render(failStyle, check.Message))
			}
		case check.Status == model.StatusFailed:
			if check.Kind == model.KindAbsent {
				fmt.Fprintf(c.Out, "[%s] %s\n", res.Example, c.render(failStyle, check.Message))
			} else {
				notFound = append(notFound, check.Name)
			}
		default:
			if c.Verbose {
				fmt.Fprintf(c.Out, "[%s] %s : found\n", res.Example, check.Name)
			}
		}
	}
	if len(notFound) > 0 {
		fmt.Fprintf(c.Out, "[%s] %s\n", res.Example,
			c.render(failStyle, fmt.Sprintf("could not find %s in the logfile", strings.Join(notFound, ", "))))
	}

	mark := c.render(passStyle, ".")
	if res.Failed() {
		mark = c.render(failStyle, "F")
	}
	fmt.Fprintf(c.Out, "%s : %s\n\n", res.Example, mark)
}

func (c *Console) printSummary(run *model.RunResult) {
	passed, failed, skipped := run.Counts()
	total := passed + failed + skipped

	line := fmt.Sprintf("%d/%d checks were successful", passed, total)
	if run.Success() {
		fmt.Fprintf(c.Out, "%s\n", c.render(passStyle, line))
	} else {
		fmt.Fprintf(c.Out, "%s\n", c.render(failStyle, line))
	}

	fmt.Fprintf(c.Out, "%s\n", c.render(mutedStyle, fmt.Sprintf(
		"examples: %d passed, %d failed, %d excluded  (%.2fs)",
		len(run.Examples)-run.FailedExamples(),
		run.FailedExamples(),
		len(run.Excluded),
		run.Duration.Seconds(),
	)))
	if skipped > 0 {
		fmt.Fprintf(c.Out, "%s\n", c.render(mutedStyle, fmt.Sprintf("%d checks skipped (missing logfiles)", skipped)))
	}
}
