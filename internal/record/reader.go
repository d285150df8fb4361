// Package record parses delimited text into rows.
//
// The parser follows RFC 4180 quoting with a configurable field separator,
// quote character and row terminator. Unlike encoding/csv it does not drop
// empty physical lines: an empty line is returned as a one-field blank row,
// so callers decide whether blank rows count.
package record

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrBareQuote is returned when a quote appears inside an unquoted field.
	ErrBareQuote = errors.New("bare quote in non-quoted field")
	// ErrQuote is returned when a closing quote is followed by something
	// other than a separator, a row terminator or another quote.
	ErrQuote = errors.New("extraneous data after closing quote")
	// ErrUnterminatedQuote is returned when input ends inside a quoted field.
	ErrUnterminatedQuote = errors.New("unterminated quoted field")
)

// ParseError carries the position of a malformed record. Line and Column
// are 1-based; Column counts bytes.
type ParseError struct {
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("record: parse error on line %d, column %d: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Row is one parsed record.
//
// Fields are never null: an empty unquoted field and a quoted "" both
// read as "". Callers that need NULL, such as pgload, treat "" as NULL.
type Row []string

// Blank reports whether every field of the row is empty.
func (r Row) Blank() bool {
	for _, f := range r {
		if f != "" {
			return false
		}
	}
	return true
}

// Reader reads rows from a byte stream. It is not safe for concurrent use.
type Reader struct {
	// Comma is the field separator. Zero means ','.
	Comma byte
	// Quote is the quote character. Zero means '"'.
	Quote byte
	// RowSep is the row terminator. Empty accepts "\n", "\r\n" and "\r".
	RowSep string

	br     *bufio.Reader
	field  []byte
	line   int
	column int
}

// NewReader returns a Reader with default delimiters reading from r.
func NewReader(r io.Reader) *Reader {
	rd := &Reader{Comma: ',', Quote: '"'}
	rd.Reset(r)
	return rd
}

// Reset discards buffered input and position, and reads from src from now
// on. Delimiter settings are kept.
func (r *Reader) Reset(src io.Reader) {
	if r.br == nil {
		r.br = bufio.NewReader(src)
	} else {
		r.br.Reset(src)
	}
	r.line = 1
	r.column = 0
}

// Line returns the line the next record starts on.
func (r *Reader) Line() int { return r.line }

// Read returns the next row, or io.EOF when the input is exhausted.
func (r *Reader) Read() (Row, error) {
	comma, quote := r.Comma, r.Quote
	if comma == 0 {
		comma = ','
	}
	if quote == 0 {
		quote = '"'
	}

	var row Row
	r.field = r.field[:0]
	started := false
	fieldStart := true
	inQuotes := false
	closedQuote := false

	for {
		b, err := r.br.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			if !started {
				return nil, io.EOF
			}
			if inQuotes {
				return nil, r.parseError(ErrUnterminatedQuote)
			}
			return append(row, string(r.field)), nil
		}
		started = true
		r.column++

		if inQuotes {
			switch b {
			case quote:
				inQuotes = false
				closedQuote = true
			case '\n':
				r.field = append(r.field, b)
				r.line++
				r.column = 0
			default:
				r.field = append(r.field, b)
			}
			continue
		}

		switch {
		case b == comma:
			row = append(row, string(r.field))
			r.field = r.field[:0]
			fieldStart = true
			closedQuote = false
		case r.rowEnd(b):
			r.line++
			r.column = 0
			return append(row, string(r.field)), nil
		case b == quote && closedQuote:
			// Doubled quote inside a quoted field.
			r.field = append(r.field, quote)
			inQuotes = true
			closedQuote = false
		case b == quote && fieldStart:
			inQuotes = true
			fieldStart = false
		case b == quote:
			return nil, r.parseError(ErrBareQuote)
		case closedQuote:
			return nil, r.parseError(ErrQuote)
		default:
			r.field = append(r.field, b)
			fieldStart = false
		}
	}
}

// ReadAll reads every remaining row.
func (r *Reader) ReadAll() ([]Row, error) {
	var rows []Row
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

// rowEnd reports whether b, already consumed, starts a row terminator, and
// consumes the rest of the terminator when it does.
func (r *Reader) rowEnd(b byte) bool {
	if r.RowSep == "" {
		switch b {
		case '\n':
			return true
		case '\r':
			if next, err := r.br.Peek(1); err == nil && next[0] == '\n' {
				_, _ = r.br.Discard(1)
			}
			return true
		}
		return false
	}

	if b != r.RowSep[0] {
		return false
	}
	rest := r.RowSep[1:]
	if rest == "" {
		return true
	}
	next, err := r.br.Peek(len(rest))
	if err != nil || !bytes.Equal(next, []byte(rest)) {
		return false
	}
	_, _ = r.br.Discard(len(rest))
	return true
}

func (r *Reader) parseError(err error) error {
	return &ParseError{Line: r.line, Column: r.column, Err: err}
}
