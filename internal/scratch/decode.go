package scratch

// decode.go implements the strict UTF-8 read mode.
//
// utf8Validator passes valid UTF-8 through unchanged and stops at the first
// invalid sequence with a *DecodeError. Multi-byte sequences that straddle
// read boundaries are reassembled through a bufio.Reader, so only a sequence
// that is really malformed (or truncated at EOF) is reported.

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

const validatorBufferSize = 32 * 1024

// ErrInvalidUTF8 is the sentinel wrapped by every DecodeError.
var ErrInvalidUTF8 = errors.New("invalid UTF-8 byte sequence")

// DecodeError reports the byte offset of the first invalid UTF-8 sequence.
type DecodeError struct {
	Offset int64
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("scratch: invalid UTF-8 byte sequence at offset %d", e.Offset)
}

func (e *DecodeError) Unwrap() error { return ErrInvalidUTF8 }

type utf8Validator struct {
	src *bufio.Reader

	// Validated bytes of a rune that did not fit in the caller's buffer.
	carry []byte

	offset int64
	err    error
}

func newUTF8Validator(r io.Reader) *utf8Validator {
	return &utf8Validator{src: bufio.NewReaderSize(r, validatorBufferSize)}
}

func (v *utf8Validator) Read(p []byte) (int, error) {
	if len(v.carry) > 0 {
		n := copy(p, v.carry)
		v.carry = v.carry[n:]
		return n, nil
	}
	if v.err != nil {
		return 0, v.err
	}
	if len(p) == 0 {
		return 0, nil
	}

	n := 0
	for n < len(p) {
		if v.src.Buffered() == 0 {
			if n > 0 {
				return n, nil
			}
			if _, err := v.src.Peek(1); err != nil {
				return 0, err
			}
		}

		// ASCII run: copy straight through.
		chunk, _ := v.src.Peek(v.src.Buffered())
		if room := len(p) - n; len(chunk) > room {
			chunk = chunk[:room]
		}
		run := asciiPrefix(chunk)
		if run > 0 {
			copy(p[n:], chunk[:run])
			_, _ = v.src.Discard(run)
			n += run
			v.offset += int64(run)
			continue
		}

		// Multi-byte rune at the head of the buffer.
		head, err := v.src.Peek(utf8.UTFMax)
		if len(head) == 0 {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		r, size := utf8.DecodeRune(head)
		if r == utf8.RuneError && size == 1 {
			v.err = &DecodeError{Offset: v.offset}
			return n, v.err
		}

		if room := len(p) - n; size > room {
			if n > 0 {
				return n, nil
			}
			copy(p, head[:room])
			v.carry = append(v.carry[:0], head[room:size]...)
			_, _ = v.src.Discard(size)
			v.offset += int64(size)
			return room, nil
		}

		copy(p[n:], head[:size])
		_, _ = v.src.Discard(size)
		n += size
		v.offset += int64(size)
	}

	return n, nil
}

// asciiPrefix returns the length of the leading run of bytes below 0x80.
func asciiPrefix(data []byte) int {
	for i, b := range data {
		if b >= utf8.RuneSelf {
			return i
		}
	}
	return len(data)
}
