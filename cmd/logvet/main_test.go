package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeSuite(t *testing.T, dir, doc string) string {
	t.Helper()
	path := filepath.Join(dir, "suite.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunRun_FailureReturnsSentinel(t *testing.T) {
	// A failing run must unwind through the normal return path (so
	// deferred cleanup runs) and signal the exit status via errRunFailed.
	dir := t.TempDir()
	path := writeSuite(t, dir, `name: failing
examples:
  - name: "missing-log"
    logfile: nope.log
    checks:
      - phrase: end of time-step loop
`)

	err := runRun(runCmd, []string{path})
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("runRun() error = %v, want errRunFailed", err)
	}
}

func TestRunRun_Success(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ok.log"), []byte("end of time-step loop\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := writeSuite(t, dir, `name: passing
examples:
  - name: "ok"
    logfile: ok.log
    checks:
      - phrase: end of time-step loop
`)

	if err := runRun(runCmd, []string{path}); err != nil {
		t.Fatalf("runRun() error = %v, want nil", err)
	}
}
