// Package scratch provides the private temporary file that holds the
// normalized copy of a source file while it is being processed.
//
// A Store goes through one write phase and then only changes how its bytes
// are interpreted:
//
//	New (ModeWrite) -> Write... -> Close -> Reopen(ModeReadUTF8 | ModeReadLatin1) -> Rewind...
//
// The first read-mode Reopen seals the content. Reopening for write after
// that fails with ErrSealed, so the bytes read by every later pass are the
// bytes that were written once.
package scratch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"
)

// ScratchPrefix is the basename prefix of every scratch file.
const ScratchPrefix = "file-processor-"

// Mode selects how the store's handle is opened and how its bytes are decoded.
type Mode int

const (
	// ModeWrite appends raw bytes. A new Store starts in this mode.
	ModeWrite Mode = iota
	// ModeReadUTF8 reads bytes verbatim and fails with a *DecodeError on the
	// first invalid UTF-8 sequence.
	ModeReadUTF8
	// ModeReadLatin1 reads ISO-8859-1 bytes and transcodes them to UTF-8.
	ModeReadLatin1
)

func (m Mode) String() string {
	switch m {
	case ModeWrite:
		return "write"
	case ModeReadUTF8:
		return "read:utf-8"
	case ModeReadLatin1:
		return "read:iso-8859-1:utf-8"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

var (
	// ErrClosed is returned by I/O on a store whose handle is closed.
	ErrClosed = errors.New("scratch: store is closed")
	// ErrNotWritable is returned by Write outside ModeWrite.
	ErrNotWritable = errors.New("scratch: store is not open for writing")
	// ErrNotReadable is returned by Read in ModeWrite.
	ErrNotReadable = errors.New("scratch: store is not open for reading")
	// ErrSealed is returned when reopening for write after a read-mode reopen.
	ErrSealed = errors.New("scratch: content is sealed")
)

// Store is a single-use temporary file with a stable, unpredictable path.
// It is not safe for concurrent use.
type Store struct {
	path   string
	file   *os.File
	mode   Mode
	reader io.Reader
	sealed bool
}

// New creates a scratch file in dir (os.TempDir when empty) and opens it
// for appending.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = os.TempDir()
	}

	path := filepath.Join(dir, ScratchPrefix+uuid.NewString())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("scratch: create %s: %w", path, err)
	}

	return &Store{path: path, file: f, mode: ModeWrite}, nil
}

// Path returns the on-disk location of the store.
func (s *Store) Path() string { return s.path }

// Mode returns the mode of the current (or most recent) handle.
func (s *Store) Mode() Mode { return s.mode }

// Closed reports whether the store currently has no open handle.
func (s *Store) Closed() bool { return s.file == nil }

// Sealed reports whether the store has been reopened for reading.
func (s *Store) Sealed() bool { return s.sealed }

// Write appends p to the store.
func (s *Store) Write(p []byte) (int, error) {
	if s.file == nil {
		return 0, ErrClosed
	}
	if s.mode != ModeWrite {
		return 0, ErrNotWritable
	}

	n, err := s.file.Write(p)
	if err != nil {
		return n, fmt.Errorf("scratch: write: %w", err)
	}
	return n, nil
}

// Read reads decoded bytes under the current mode. io.EOF and *DecodeError
// are returned unwrapped.
func (s *Store) Read(p []byte) (int, error) {
	if s.file == nil {
		return 0, ErrClosed
	}
	if s.mode == ModeWrite {
		return 0, ErrNotReadable
	}
	return s.reader.Read(p)
}

// Close closes the active handle. The file stays on disk. Closing an
// already closed store is a no-op.
func (s *Store) Close() error {
	if s.file == nil {
		return nil
	}

	err := s.file.Close()
	s.file = nil
	s.reader = nil
	if err != nil {
		return fmt.Errorf("scratch: close: %w", err)
	}
	return nil
}

// Reopen closes the current handle (if any) and opens the same path under
// mode, replacing the active handle. The content is preserved.
func (s *Store) Reopen(mode Mode) error {
	var flag int
	switch mode {
	case ModeWrite:
		if s.sealed {
			return ErrSealed
		}
		flag = os.O_WRONLY | os.O_APPEND
	case ModeReadUTF8, ModeReadLatin1:
		flag = os.O_RDONLY
	default:
		return fmt.Errorf("scratch: unknown mode %s", mode)
	}

	if err := s.Close(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, flag, 0)
	if err != nil {
		return fmt.Errorf("scratch: reopen %s as %s: %w", s.path, mode, err)
	}

	s.file = f
	s.mode = mode
	if mode != ModeWrite {
		s.sealed = true
	}
	s.reader = s.decoder()
	return nil
}

// Rewind moves to the start of the file and resets decoder state.
func (s *Store) Rewind() error {
	if s.file == nil {
		return ErrClosed
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("scratch: rewind: %w", err)
	}
	s.reader = s.decoder()
	return nil
}

// Remove closes the store and deletes its file.
func (s *Store) Remove() error {
	closeErr := s.Close()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("scratch: remove %s: %w", s.path, err)
	}
	return closeErr
}

func (s *Store) decoder() io.Reader {
	switch s.mode {
	case ModeReadUTF8:
		return newUTF8Validator(s.file)
	case ModeReadLatin1:
		return charmap.ISO8859_1.NewDecoder().Reader(s.file)
	default:
		return nil
	}
}
