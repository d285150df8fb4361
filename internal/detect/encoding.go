package detect

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/fileprocessor/internal/scratch"
)

// Encoding is one of the two character encodings a source may use.
type Encoding int

const (
	UTF8 Encoding = iota
	Latin1
)

// ErrUnsupportedEncoding is returned by ParseEncoding for names other than
// UTF-8 and ISO-8859-1.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

func (e Encoding) String() string {
	if e == Latin1 {
		return "ISO-8859-1"
	}
	return "UTF-8"
}

// Mode returns the scratch read mode that decodes e into UTF-8.
func (e Encoding) Mode() scratch.Mode {
	if e == Latin1 {
		return scratch.ModeReadLatin1
	}
	return scratch.ModeReadUTF8
}

// ParseEncoding resolves a caller-supplied encoding name. Case, dashes,
// underscores and spaces are ignored.
func ParseEncoding(name string) (Encoding, error) {
	key := strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(name)))

	switch key {
	case "utf8":
		return UTF8, nil
	case "iso88591", "latin1", "l1":
		return Latin1, nil
	default:
		return UTF8, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}
}

// Reopener is the part of a scratch store the encoding detector drives.
type Reopener interface {
	io.Reader
	Reopen(mode scratch.Mode) error
	Rewind() error
}

// DetectEncoding reads the whole store as strict UTF-8. If any byte
// sequence is invalid the store is reopened under fallback (in practice
// Latin1, which accepts every byte) and fallback is reported. The store is
// left rewound in the winning mode.
func DetectEncoding(store Reopener, fallback Encoding) (Encoding, error) {
	if err := store.Reopen(scratch.ModeReadUTF8); err != nil {
		return UTF8, err
	}

	enc := UTF8
	if _, err := io.Copy(io.Discard, store); err != nil {
		var decodeErr *scratch.DecodeError
		if !errors.As(err, &decodeErr) {
			return UTF8, fmt.Errorf("read for encoding detection: %w", err)
		}
		if err := store.Reopen(fallback.Mode()); err != nil {
			return UTF8, err
		}
		enc = fallback
	}

	if err := store.Rewind(); err != nil {
		return enc, err
	}
	return enc, nil
}

// ApplyEncoding reopens the store under a caller-pinned encoding without
// trying the other one. A pinned UTF-8 is still read through once so that
// non-conforming bytes fail here, as a *scratch.DecodeError, instead of in
// the middle of iteration.
func ApplyEncoding(store Reopener, enc Encoding) error {
	if err := store.Reopen(enc.Mode()); err != nil {
		return err
	}
	if enc == UTF8 {
		if _, err := io.Copy(io.Discard, store); err != nil {
			return fmt.Errorf("source is not %s: %w", enc, err)
		}
	}
	return store.Rewind()
}
