package report

import (
	"encoding/xml"
	"fmt"
	"os"

	"github.com/logvet/logvet/internal/model"
)

// JUnit report structures, matching the layout CI systems ingest.
type junitTestsuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []junitTestsuite `xml:"testsuite"`
}

type junitTestsuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []junitTestcase `xml:"testcase"`
}

type junitTestcase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Failure   *junitMessage `xml:"failure,omitempty"`
	Skipped   *junitMessage `xml:"skipped,omitempty"`
}

type junitMessage struct {
	Message string `xml:"message,attr"`
}

// WriteJUnit writes the run as a JUnit-style XML report file.
func WriteJUnit(path string, run *model.RunResult) error {
	passed, failed, skipped := run.Counts()
	doc := junitTestsuites{
		Name:     run.Suite,
		Tests:    passed + failed + skipped,
		Failures: failed,
		Skipped:  skipped,
		Time:     fmt.Sprintf("%.3f", run.Duration.Seconds()),
	}

	for i := range run.Examples {
		ex := &run.Examples[i]
		_, exFailed, exSkipped := ex.CheckCounts()
		ts := junitTestsuite{
			Name:     ex.Example,
			Tests:    len(ex.Checks),
			Failures: exFailed,
			Skipped:  exSkipped,
			Time:     fmt.Sprintf("%.3f", ex.Duration.Seconds()),
		}
		for _, check := range ex.Checks {
			tc := junitTestcase{
				Name:      fmt.Sprintf("%s %q", check.Kind, check.Name),
				Classname: ex.Example,
			}
			switch check.Status {
			case model.StatusFailed:
				tc.Failure = &junitMessage{Message: check.Message}
			case model.StatusSkipped:
				tc.Skipped = &junitMessage{Message: check.Message}
			}
			ts.Cases = append(ts.Cases, tc)
		}
		doc.Suites = append(doc.Suites, ts)
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal junit report: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write junit report: %w", err)
	}
	return nil
}
