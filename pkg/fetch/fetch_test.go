package fetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSplitS3URI(t *testing.T) {
	tests := []struct {
		location string
		bucket   string
		key      string
		ok       bool
	}{
		{"s3://ci-artifacts/srlLog/eig1.err", "ci-artifacts", "srlLog/eig1.err", true},
		{"s3://bucket/key", "bucket", "key", true},
		{"s3://bucket/", "", "", false},
		{"s3://bucket", "", "", false},
		{"s3://", "", "", false},
		{"srlLog/eig1.err", "", "", false},
		{"/abs/path.log", "", "", false},
		{"https://example.com/x.log", "", "", false},
	}
	for _, tt := range tests {
		bucket, key, ok := SplitS3URI(tt.location)
		if ok != tt.ok || bucket != tt.bucket || key != tt.key {
			t.Errorf("SplitS3URI(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.location, bucket, key, ok, tt.bucket, tt.key, tt.ok)
		}
	}
}

func TestResolve_Local(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "run.log"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &Resolver{BaseDir: dir}

	path, cleanup, err := r.Resolve(context.Background(), "run.log")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	defer cleanup()
	if path != filepath.Join(dir, "run.log") {
		t.Errorf("path = %q, want joined onto base dir", path)
	}

	abs := filepath.Join(dir, "run.log")
	path, cleanup, err = r.Resolve(context.Background(), abs)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	defer cleanup()
	if path != abs {
		t.Errorf("path = %q, absolute paths must pass through untouched", path)
	}
}

func TestResolve_NoBaseDir(t *testing.T) {
	r := &Resolver{}
	path, cleanup, err := r.Resolve(context.Background(), "rel/run.log")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	defer cleanup()
	if path != "rel/run.log" {
		t.Errorf("path = %q, want unchanged relative path", path)
	}
}
