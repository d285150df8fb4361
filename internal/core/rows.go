package core

import (
	"errors"
	"io"
	"iter"

	"github.com/JonMunkholm/fileprocessor/internal/record"
)

// errStopRange ends ProcessRange's pass once the window is filled.
var errStopRange = errors.New("range complete")

// rewindReader is the part of a scratch store a RowStream reads from.
type rewindReader interface {
	io.Reader
	Rewind() error
}

// RowStream iterates the rows of a normalized scratch store. It applies the
// header and blank-row policies on top of a record.Reader and is restartable
// through Rewind. Not safe for concurrent use.
type RowStream struct {
	src        rewindReader
	parser     *record.Reader
	skipBlanks bool
	headers    bool

	header     record.Row
	headerRead bool
}

func newRowStream(src rewindReader, s settings, sep byte) *RowStream {
	parser := record.NewReader(src)
	parser.Comma = sep
	if s.Quote != 0 {
		parser.Quote = s.Quote
	}
	parser.RowSep = s.RowSeparator

	return &RowStream{
		src:        src,
		parser:     parser,
		skipBlanks: s.skipBlanks,
		headers:    s.Headers,
	}
}

// Rewind moves back to the first row.
func (s *RowStream) Rewind() error {
	if err := s.src.Rewind(); err != nil {
		return err
	}
	s.parser.Reset(s.src)
	s.headerRead = false
	return nil
}

// Header returns the header row, or nil when the stream has no header.
func (s *RowStream) Header() record.Row { return s.header }

// Shift returns the next row from the current position without skipping
// blanks. It returns io.EOF at the end of the stream.
func (s *RowStream) Shift() (record.Row, error) {
	if s.headers && !s.headerRead {
		h, err := s.readHeader()
		if err != nil {
			return nil, err
		}
		s.header = h
		s.headerRead = true
	}
	return s.parser.Read()
}

// keep reports whether row is visited under the blank policy.
func (s *RowStream) keep(row record.Row) bool {
	return !(s.skipBlanks && row.Blank())
}

// Count rewinds and counts the rows satisfying pred. A nil pred counts the
// rows Each would visit. The stream is rewound again afterwards.
func (s *RowStream) Count(pred func(record.Row) bool) (int, error) {
	if pred == nil {
		pred = s.keep
	}
	return s.count(pred)
}

// TotalCount counts every row, blank or not. The header is not a row.
func (s *RowStream) TotalCount() (int, error) {
	return s.count(func(record.Row) bool { return true })
}

func (s *RowStream) count(pred func(record.Row) bool) (n int, err error) {
	if err := s.Rewind(); err != nil {
		return 0, err
	}
	defer func() {
		if rerr := s.Rewind(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	for {
		row, err := s.Shift()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if pred(row) {
			n++
		}
	}
}

// Each calls fn for every remaining row from the current position, skipping
// blank rows when the stream skips blanks. A non-nil error from fn stops the
// pass and is returned.
func (s *RowStream) Each(fn func(record.Row) error) error {
	for {
		row, err := s.Shift()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if !s.keep(row) {
			continue
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

// Rows returns an iterator over the rows Each would visit. Every range over
// it starts from the first row.
func (s *RowStream) Rows() iter.Seq2[record.Row, error] {
	return func(yield func(record.Row, error) bool) {
		if err := s.Rewind(); err != nil {
			yield(nil, err)
			return
		}
		for {
			row, err := s.Shift()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !s.keep(row) {
				continue
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// ProcessRange calls fn with each row whose zero-based index, among the rows
// Each would visit, lies in [offset, offset+limit). A negative limit runs to
// the end. The stream is rewound before and after, whatever the outcome.
func (s *RowStream) ProcessRange(offset, limit int, fn func(record.Row, int) error) (err error) {
	if err := s.Rewind(); err != nil {
		return err
	}
	defer func() {
		if rerr := s.Rewind(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if limit == 0 {
		return nil
	}
	if offset < 0 {
		offset = 0
	}

	index := 0
	err = s.Each(func(row record.Row) error {
		if index >= offset {
			if err := fn(row, index); err != nil {
				return err
			}
		}
		index++
		if limit > 0 && index-offset >= limit {
			return errStopRange
		}
		return nil
	})
	if errors.Is(err, errStopRange) {
		return nil
	}
	return err
}

// Sample returns up to n rows from the start of the stream. A negative n
// returns every row.
func (s *RowStream) Sample(n int) ([]record.Row, error) {
	var rows []record.Row
	err := s.ProcessRange(0, n, func(row record.Row, _ int) error {
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

// loadHeader reads the header once so it is available before iteration.
func (s *RowStream) loadHeader() error {
	if !s.headers {
		return nil
	}
	if err := s.Rewind(); err != nil {
		return err
	}
	h, err := s.readHeader()
	switch {
	case err == nil:
		s.header = h
	case !errors.Is(err, io.EOF):
		return err
	}
	return s.Rewind()
}

// readHeader returns the first row that is not skipped under the blank
// policy, so leading blank lines never become the header.
func (s *RowStream) readHeader() (record.Row, error) {
	for {
		row, err := s.parser.Read()
		if err != nil {
			return nil, err
		}
		if s.keep(row) {
			return row, nil
		}
	}
}
