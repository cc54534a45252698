// Package suite defines the regression-suite dataset: example problems,
// their logfiles, and the checks to run against each logfile.
package suite

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/logvet/logvet/internal/model"
)

// Suite is one regression-test dataset, usually loaded from YAML.
type Suite struct {
	// Name identifies the suite in reports.
	Name string `yaml:"name"`

	// Conditions declares the condition names examples may require
	// (e.g. "mpi"). Undeclared names in a Requires list are a
	// validation error.
	Conditions []string `yaml:"conditions,omitempty"`

	Examples []Example `yaml:"examples"`
}

// Example is one example problem: a logfile and the checks against it.
type Example struct {
	// Name of the example problem, e.g. "2d_eig/SRL: Serial-iter/err".
	Name string `yaml:"name"`

	// Logfile is a local path (possibly relative to a base directory)
	// or an s3:// URI.
	Logfile string `yaml:"logfile"`

	// Requires lists condition names that must all be enabled for this
	// example to run. Examples with unmet conditions are excluded, not
	// failed.
	Requires []string `yaml:"requires,omitempty"`

	Checks []Check `yaml:"checks"`
}

// Check is a single assertion against a logfile. Exactly one of Label
// or Phrase must be set:
//
//   - Label set: a value check. The first line containing Label whose
//     Column-th whitespace field from the right parses as a float
//     supplies the value, which must lie within Target +/- Tolerance.
//   - Phrase set: a keyphrase check. Passes if the phrase occurs on
//     some line, or, with Absent, if it occurs on none.
type Check struct {
	Label     string  `yaml:"label,omitempty"`
	Target    float64 `yaml:"target"`
	Tolerance float64 `yaml:"tolerance,omitempty"`
	Column    int     `yaml:"column,omitempty"`

	Phrase string `yaml:"phrase,omitempty"`
	Absent bool   `yaml:"absent,omitempty"`
}

// Kind classifies the check from its populated fields.
func (c Check) Kind() model.CheckKind {
	switch {
	case c.Label != "":
		return model.KindValue
	case c.Absent:
		return model.KindAbsent
	default:
		return model.KindPhrase
	}
}

// Name returns the label or phrase used to identify the check in reports.
func (c Check) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Phrase
}

// Load reads and validates a suite from a YAML file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a suite from YAML bytes.
func Parse(data []byte) (*Suite, error) {
	var s Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse suite: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the suite for structural errors.
func (s *Suite) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("suite: name is required")
	}
	declared := make(map[string]bool, len(s.Conditions))
	for _, c := range s.Conditions {
		if c == "" {
			return fmt.Errorf("suite %q: empty condition name", s.Name)
		}
		declared[c] = true
	}
	if len(s.Examples) == 0 {
		return fmt.Errorf("suite %q: no examples", s.Name)
	}
	for i, ex := range s.Examples {
		where := fmt.Sprintf("example %d (%q)", i, ex.Name)
		if ex.Name == "" {
			return fmt.Errorf("suite %q: example %d: name is required", s.Name, i)
		}
		if ex.Logfile == "" {
			return fmt.Errorf("suite %q: %s: logfile is required", s.Name, where)
		}
		if len(ex.Checks) == 0 {
			return fmt.Errorf("suite %q: %s: no checks", s.Name, where)
		}
		for _, req := range ex.Requires {
			if !declared[req] {
				return fmt.Errorf("suite %q: %s: requires undeclared condition %q", s.Name, where, req)
			}
		}
		for j, c := range ex.Checks {
			if err := c.validate(); err != nil {
				return fmt.Errorf("suite %q: %s: check %d: %w", s.Name, where, j, err)
			}
		}
	}
	return nil
}

func (c Check) validate() error {
	if c.Label != "" && c.Phrase != "" {
		return fmt.Errorf("label and phrase are mutually exclusive")
	}
	if c.Label == "" && c.Phrase == "" {
		return fmt.Errorf("one of label or phrase is required")
	}
	if c.Label != "" {
		if c.Column < 1 {
			return fmt.Errorf("column must be >= 1 (counted from the right)")
		}
		if c.Tolerance <= 0 {
			return fmt.Errorf("tolerance must be > 0")
		}
		if c.Absent {
			return fmt.Errorf("absent applies to phrase checks only")
		}
	}
	return nil
}

// Enabled partitions the examples by the given condition set. It
// returns the examples whose requirements are all met, and the names
// of those excluded. Registration order is preserved.
func (s *Suite) Enabled(conditions map[string]bool) (enabled []Example, excluded []string) {
	for _, ex := range s.Examples {
		ok := true
		for _, req := range ex.Requires {
			if !conditions[req] {
				ok = false
				break
			}
		}
		if ok {
			enabled = append(enabled, ex)
		} else {
			excluded = append(excluded, ex.Name)
		}
	}
	return enabled, excluded
}

// CheckCount returns the total number of registered checks.
func (s *Suite) CheckCount() int {
	n := 0
	for _, ex := range s.Examples {
		n += len(ex.Checks)
	}
	return n
}

// Logfiles returns the distinct logfile locations, sorted.
func (s *Suite) Logfiles() []string {
	seen := make(map[string]bool)
	for _, ex := range s.Examples {
		seen[ex.Logfile] = true
	}
	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}
