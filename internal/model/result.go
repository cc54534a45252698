// Package model defines core data structures for logvet.
package model

import "time"

// CheckKind identifies what a check asserts about a logfile.
type CheckKind int

const (
	// KindValue extracts a numeric field near a label and compares it
	// against target +/- tolerance.
	KindValue CheckKind = iota
	// KindPhrase asserts a keyphrase is present somewhere in the logfile.
	KindPhrase
	// KindAbsent asserts a keyphrase is NOT present in the logfile.
	KindAbsent
)

func (k CheckKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindPhrase:
		return "phrase"
	case KindAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// Status is the outcome of a check or an example.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	// StatusSkipped means the check could not be evaluated because the
	// logfile was missing or unreadable.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// CheckResult is the outcome of a single check against a logfile.
type CheckResult struct {
	// Name is the label (value checks) or keyphrase (phrase checks).
	Name string

	Kind   CheckKind
	Status Status

	// Found reports whether the label/phrase was located in the logfile.
	Found bool

	// Value is the extracted numeric field (value checks, Found only).
	Value float64

	// Target and Tolerance echo the registration for reporting.
	Target    float64
	Tolerance float64
	Column    int

	// Line is the 1-based line number of the match, 0 if not found.
	Line int

	// Message explains a failure or skip in human terms.
	Message string
}

// ExampleResult aggregates the checks of one example problem.
type ExampleResult struct {
	Example string
	Logfile string
	Status  Status
	Checks  []CheckResult

	// Notice carries the missing-logfile explanation when Status is
	// StatusSkipped.
	Notice string

	Duration time.Duration
}

// Failed reports whether the example should render as a failure mark.
// Skipped examples count as failures: a missing logfile means the run
// that should have produced it did not complete.
func (r *ExampleResult) Failed() bool {
	return r.Status != StatusPassed
}

// CheckCounts returns (passed, failed, skipped) check totals.
func (r *ExampleResult) CheckCounts() (passed, failed, skipped int) {
	for _, c := range r.Checks {
		switch c.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return
}

// RunResult is the outcome of executing a whole suite.
type RunResult struct {
	RunID    string
	Suite    string
	Started  time.Time
	Duration time.Duration

	Examples []ExampleResult

	// Excluded lists examples whose required conditions were not enabled.
	Excluded []string
}

// Counts returns aggregate check totals across all examples.
func (r *RunResult) Counts() (passed, failed, skipped int) {
	for i := range r.Examples {
		p, f, s := r.Examples[i].CheckCounts()
		passed += p
		failed += f
		skipped += s
	}
	return
}

// FailedExamples returns the number of examples that did not pass.
func (r *RunResult) FailedExamples() int {
	n := 0
	for i := range r.Examples {
		if r.Examples[i].Failed() {
			n++
		}
	}
	return n
}

// Success reports whether every example passed.
func (r *RunResult) Success() bool {
	return r.FailedExamples() == 0
}
