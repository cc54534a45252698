package scan

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Open opens a logfile, transparently decompressing gzip-compressed
// logs. Returns the reader, a cleanup function to close resources, and
// any error; open failures wrap ErrLogfileMissing.
func Open(path string) (io.Reader, func() error, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrLogfileMissing, err)
	}

	if isGzip(path) {
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("%w: %v", ErrLogfileMissing, err)
		}
		cleanup := func() error {
			gz.Close()
			return file.Close()
		}
		return gz, cleanup, nil
	}

	cleanup := func() error {
		return file.Close()
	}
	return file, cleanup, nil
}

func isGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}
