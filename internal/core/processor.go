package core

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"

	"github.com/JonMunkholm/fileprocessor/internal/detect"
	"github.com/JonMunkholm/fileprocessor/internal/record"
	"github.com/JonMunkholm/fileprocessor/internal/scratch"
)

// Processor is a normalized, rewindable view of one delimited source file.
//
// Open decompresses the source, copies it into a private scratch file,
// settles the encoding and separator, and returns a Processor in the ready
// state. The detected configuration never changes afterwards. Close removes
// the scratch file; every operation after that returns ErrStreamClosed.
//
// A Processor is not safe for concurrent use.
type Processor struct {
	path       string
	store      *scratch.Store
	rows       *RowStream
	logger     *slog.Logger
	compressed bool
	detected   detect.Encoding
	separator  byte
	skipBlanks bool
	closed     bool
}

// Open builds a Processor for the file at path.
//
// Unreadable sources and invalid options fail with ErrSourceUnavailable. A
// pinned UTF-8 encoding on non-conforming bytes fails with a
// *scratch.DecodeError. On any failure no scratch file is left behind.
func Open(path string, opts Options) (*Processor, error) {
	s, err := opts.resolve()
	if err != nil {
		return nil, sourceError(err)
	}

	src, err := os.OpenFile(path, os.O_RDONLY|s.SourceFlag, s.SourcePerm)
	if err != nil {
		return nil, sourceError(err)
	}

	store, err := scratch.New(s.ScratchDir)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("create scratch file: %w", err)
	}

	p := &Processor{
		path:       path,
		store:      store,
		logger:     s.logger.With("source", path),
		skipBlanks: s.skipBlanks,
	}
	if err := p.build(src, s); err != nil {
		if rerr := store.Remove(); rerr != nil {
			p.logger.Warn("failed to remove scratch file", "path", store.Path(), "error", rerr)
		}
		return nil, err
	}
	return p, nil
}

// With opens path, calls fn with the Processor and closes it on every exit
// path, panics included. fn's error takes precedence over Close's.
func With(path string, opts Options, fn func(*Processor) error) (err error) {
	p, err := Open(path, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(p)
}

// build runs the detection pipeline: compression, encoding, separator.
func (p *Processor) build(src *os.File, s settings) error {
	if err := p.materialize(src, s.Compressed); err != nil {
		return err
	}

	if s.encoding != nil {
		if err := detect.ApplyEncoding(p.store, *s.encoding); err != nil {
			return fmt.Errorf("open %s: %w", p.path, err)
		}
		p.detected = *s.encoding
	} else {
		enc, err := detect.DetectEncoding(p.store, FallbackEncoding)
		if err != nil {
			return fmt.Errorf("detect encoding: %w", err)
		}
		p.detected = enc
	}

	p.separator = s.ColumnSeparator
	if p.separator == 0 {
		sep, err := detect.DetectSeparator(p.store)
		if err != nil {
			return fmt.Errorf("detect separator: %w", err)
		}
		p.separator = sep
	}

	p.rows = newRowStream(p.store, s, p.separator)
	if err := p.rows.loadHeader(); err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	p.logger.Debug("source ready",
		"scratch", p.store.Path(),
		"compressed", p.compressed,
		"encoding", p.detected.String(),
		"separator", string(p.separator),
		"skip_blanks", p.skipBlanks,
	)
	return nil
}

// materialize drains the decompressed source into the scratch store and
// releases both the source and the store's write handle.
func (p *Processor) materialize(src *os.File, force *bool) error {
	defer src.Close()

	compressed, plain, err := detect.Decompress(src, force)
	if err != nil {
		return sourceError(err)
	}
	defer plain.Close()

	counter := WrapForMaterialize(sourceReader{r: plain})
	if _, err := io.Copy(p.store, counter); err != nil {
		if errors.Is(err, ErrSourceUnavailable) {
			return err
		}
		return fmt.Errorf("materialize %s: %w", p.path, err)
	}
	if err := p.store.Close(); err != nil {
		return fmt.Errorf("materialize %s: %w", p.path, err)
	}

	p.compressed = compressed
	p.logger.Debug("source materialized", "compressed", compressed, "bytes", counter.BytesRead)
	return nil
}

// Path returns the source path the Processor was opened from.
func (p *Processor) Path() string { return p.path }

// Compressed reports whether the source was gzip-compressed.
func (p *Processor) Compressed() bool { return p.compressed }

// DetectedEncoding returns the encoding the source bytes were in.
func (p *Processor) DetectedEncoding() detect.Encoding { return p.detected }

// Encoding returns the encoding rows are delivered in, which is always UTF-8.
func (p *Processor) Encoding() detect.Encoding { return detect.UTF8 }

// ColumnSeparator returns the field separator in effect.
func (p *Processor) ColumnSeparator() byte { return p.separator }

// SkipBlanks reports whether blank rows are skipped.
func (p *Processor) SkipBlanks() bool { return p.skipBlanks }

// Headers returns the header row when Options.Headers was set, else nil.
func (p *Processor) Headers() record.Row { return p.rows.Header() }

// Closed reports whether Close has been called.
func (p *Processor) Closed() bool { return p.closed }

// Count counts the rows satisfying pred; nil counts the rows Each visits.
func (p *Processor) Count(pred func(record.Row) bool) (int, error) {
	if p.closed {
		return 0, ErrStreamClosed
	}
	return p.rows.Count(pred)
}

// TotalCount counts every row including blanks.
func (p *Processor) TotalCount() (int, error) {
	if p.closed {
		return 0, ErrStreamClosed
	}
	return p.rows.TotalCount()
}

// Each visits the remaining rows from the current position.
func (p *Processor) Each(fn func(record.Row) error) error {
	if p.closed {
		return ErrStreamClosed
	}
	return p.rows.Each(fn)
}

// Rows returns a restartable iterator over the rows.
func (p *Processor) Rows() iter.Seq2[record.Row, error] {
	if p.closed {
		return func(yield func(record.Row, error) bool) {
			yield(nil, ErrStreamClosed)
		}
	}
	return p.rows.Rows()
}

// ProcessRange calls fn for the rows at indices [offset, offset+limit).
// Pass NoLimit to run to the end.
func (p *Processor) ProcessRange(offset, limit int, fn func(record.Row, int) error) error {
	if p.closed {
		return ErrStreamClosed
	}
	return p.rows.ProcessRange(offset, limit, fn)
}

// Sample returns up to n rows from the start.
func (p *Processor) Sample(n int) ([]record.Row, error) {
	if p.closed {
		return nil, ErrStreamClosed
	}
	return p.rows.Sample(n)
}

// Shift returns the next raw row, blanks included, or io.EOF.
func (p *Processor) Shift() (record.Row, error) {
	if p.closed {
		return nil, ErrStreamClosed
	}
	return p.rows.Shift()
}

// Rewind moves back to the first row.
func (p *Processor) Rewind() error {
	if p.closed {
		return ErrStreamClosed
	}
	return p.rows.Rewind()
}

// Close removes the scratch file. It is safe to call more than once.
func (p *Processor) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.store.Remove(); err != nil {
		return fmt.Errorf("remove scratch file: %w", err)
	}
	return nil
}
