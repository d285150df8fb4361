package core

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrSourceUnavailable wraps failures to open or read the source file,
	// and configuration errors detected before the source is touched.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrStreamClosed is returned by every Processor operation after Close.
	ErrStreamClosed = errors.New("stream closed")
)

func sourceError(err error) error {
	return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
}

// sourceReader tags read failures of the raw source so they can be told
// apart from scratch write failures after io.Copy.
type sourceReader struct {
	r io.Reader
}

func (s sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		err = sourceError(err)
	}
	return n, err
}
