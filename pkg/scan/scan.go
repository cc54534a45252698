// Package scan extracts check values from simulation logfiles. A
// logfile is read once, line by line; value checks capture a numeric
// field near their label, phrase checks record presence of a keyphrase.
package scan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/logvet/logvet/internal/model"
	"github.com/logvet/logvet/pkg/suite"
)

// ErrLogfileMissing reports that a logfile could not be opened.
var ErrLogfileMissing = errors.New("logfile missing or unreadable")

// maxLineSize bounds a single logfile line. Solver logs are wide but
// not pathological; 1MB leaves plenty of headroom.
const maxLineSize = 1 << 20

// checkState tracks one registered check during the scan.
type checkState struct {
	check suite.Check
	found bool
	value float64
	line  int
}

// Example runs all checks of an example against its resolved logfile
// path and aggregates the outcome. A missing logfile skips every check
// and marks the example skipped.
func Example(path string, ex suite.Example) model.ExampleResult {
	start := time.Now()
	res := model.ExampleResult{
		Example: ex.Name,
		Logfile: ex.Logfile,
	}

	r, cleanup, err := Open(path)
	if err != nil {
		return skipExample(ex, fmt.Sprintf("logfile %q is missing or unreadable", ex.Logfile), start)
	}
	defer cleanup()

	states := make([]*checkState, len(ex.Checks))
	for i, c := range ex.Checks {
		states[i] = &checkState{check: c}
	}
	if err := scanLines(r, states); err != nil {
		// A truncated scan must not masquerade as not-found results:
		// an absent check would falsely pass on the unseen tail.
		return skipExample(ex, fmt.Sprintf("failed to read logfile %q: %v", ex.Logfile, err), start)
	}

	res.Status = model.StatusPassed
	for _, st := range states {
		cr := evaluate(st, ex.Logfile)
		if cr.Status == model.StatusFailed {
			res.Status = model.StatusFailed
		}
		res.Checks = append(res.Checks, cr)
	}
	res.Duration = time.Since(start)
	return res
}

// skipExample marks every check of an example skipped with the given
// notice. Used when the logfile cannot be opened or read to the end.
func skipExample(ex suite.Example, notice string, start time.Time) model.ExampleResult {
	res := model.ExampleResult{
		Example: ex.Name,
		Logfile: ex.Logfile,
		Status:  model.StatusSkipped,
		Notice:  notice,
	}
	for _, c := range ex.Checks {
		res.Checks = append(res.Checks, model.CheckResult{
			Name:      c.Name(),
			Kind:      c.Kind(),
			Status:    model.StatusSkipped,
			Target:    c.Target,
			Tolerance: c.Tolerance,
			Column:    c.Column,
			Message:   notice,
		})
	}
	res.Duration = time.Since(start)
	return res
}

// scanLines performs the single pass over the logfile, resolving
// states as matches are found. Returns the scanner error, if any; a
// partial scan is not a usable result.
func scanLines(r io.Reader, states []*checkState) error {
	pending := len(states)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	lineno := 0
	for pending > 0 && sc.Scan() {
		lineno++
		line := sc.Text()
		for _, st := range states {
			if st.found {
				continue
			}
			switch st.check.Kind() {
			case model.KindValue:
				if !strings.Contains(line, st.check.Label) {
					continue
				}
				v, ok := Field(line, st.check.Column)
				if !ok {
					// Unparseable occurrence; the label stays
					// pending for later lines.
					continue
				}
				st.found = true
				st.value = v
				st.line = lineno
				pending--
			case model.KindPhrase, model.KindAbsent:
				if !strings.Contains(line, st.check.Phrase) {
					continue
				}
				st.found = true
				st.line = lineno
				pending--
			}
		}
	}
	return sc.Err()
}

// Field extracts the column-th whitespace-separated field from the
// right of line and parses it as a float. Reports ok=false when the
// column is out of range or the field is not numeric.
func Field(line string, column int) (float64, bool) {
	fields := strings.Fields(line)
	idx := len(fields) - column
	if idx < 0 || idx >= len(fields) {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[idx], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// evaluate turns a scanned state into a check result.
func evaluate(st *checkState, logfile string) model.CheckResult {
	c := st.check
	cr := model.CheckResult{
		Name:      c.Name(),
		Kind:      c.Kind(),
		Found:     st.found,
		Value:     st.value,
		Target:    c.Target,
		Tolerance: c.Tolerance,
		Column:    c.Column,
		Line:      st.line,
	}
	switch cr.Kind {
	case model.KindValue:
		switch {
		case !st.found:
			cr.Status = model.StatusFailed
			cr.Message = fmt.Sprintf("could not find %q in logfile %q", c.Label, logfile)
		case math.Abs(st.value-c.Target) < c.Tolerance:
			cr.Status = model.StatusPassed
		default:
			cr.Status = model.StatusFailed
			cr.Message = fmt.Sprintf("value of %q (%g) is outside acceptable range (%g +/- %g)",
				c.Label, st.value, c.Target, c.Tolerance)
		}
	case model.KindPhrase:
		if st.found {
			cr.Status = model.StatusPassed
		} else {
			cr.Status = model.StatusFailed
			cr.Message = fmt.Sprintf("could not find %q in logfile %q", c.Phrase, logfile)
		}
	case model.KindAbsent:
		if st.found {
			cr.Status = model.StatusFailed
			cr.Message = fmt.Sprintf("found %q in logfile %q (line %d)", c.Phrase, logfile, st.line)
		} else {
			cr.Status = model.StatusPassed
		}
	}
	return cr
}
