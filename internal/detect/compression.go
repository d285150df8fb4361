// Package detect holds the three heuristics of the detection phase:
// compression, character encoding and column separator. Each one is a
// one-shot guess that the caller may bypass by supplying the value.
package detect

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Compression is the result of classifying the leading bytes of a source.
type Compression int

const (
	Raw Compression = iota
	Gzip
)

func (c Compression) String() string {
	if c == Gzip {
		return "gzip"
	}
	return "raw"
}

var gzipMagic = []byte{0x1f, 0x8b}

// ClassifyCompression inspects the first bytes of a source. Fewer than two
// bytes is always Raw.
func ClassifyCompression(peek []byte) Compression {
	if bytes.HasPrefix(peek, gzipMagic) {
		return Gzip
	}
	return Raw
}

// Decompress returns a plain byte stream over src and whether it was
// decompressed.
//
// With force nil the leading bytes are classified; with force set the
// caller's flag is used without looking. A gzip header that fails to parse
// downgrades to the raw stream, replaying the bytes consumed while parsing,
// so src never needs to be seekable. Closing the returned reader does not
// close src.
func Decompress(src io.Reader, force *bool) (bool, io.ReadCloser, error) {
	br := bufio.NewReader(src)

	tryGzip := false
	switch {
	case force != nil:
		tryGzip = *force
	default:
		peek, err := br.Peek(len(gzipMagic))
		if err != nil && !errors.Is(err, io.EOF) {
			return false, nil, fmt.Errorf("peek source: %w", err)
		}
		tryGzip = ClassifyCompression(peek) == Gzip
	}

	if !tryGzip {
		return false, io.NopCloser(br), nil
	}

	rec := &recordingReader{r: br}
	zr, err := gzip.NewReader(rec)
	if err != nil {
		if isFormatError(err) {
			return false, io.NopCloser(io.MultiReader(bytes.NewReader(rec.buf.Bytes()), br)), nil
		}
		return false, nil, fmt.Errorf("open gzip stream: %w", err)
	}
	rec.stop()

	return true, zr, nil
}

// isFormatError reports whether err means "this is not gzip data" rather
// than an I/O failure.
func isFormatError(err error) bool {
	return errors.Is(err, gzip.ErrHeader) ||
		errors.Is(err, gzip.ErrChecksum) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// recordingReader keeps a copy of everything read through it until stop is
// called.
type recordingReader struct {
	r       io.Reader
	buf     bytes.Buffer
	stopped bool
}

func (r *recordingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if !r.stopped && n > 0 {
		r.buf.Write(p[:n])
	}
	return n, err
}

func (r *recordingReader) stop() {
	r.stopped = true
	r.buf = bytes.Buffer{}
}
