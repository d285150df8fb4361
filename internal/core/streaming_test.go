package core

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("A;B\na;b\n")...),
			expected: "A;B\na;b\n",
		},
		{
			name:     "file without BOM",
			input:    []byte("A;B\na;b\n"),
			expected: "A;B\na;b\n",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
		{
			name:     "short file",
			input:    []byte("a"),
			expected: "a",
		},
		{
			name:     "BOM in the middle is kept",
			input:    append([]byte("a,"), 0xEF, 0xBB, 0xBF),
			expected: string(append([]byte("a,"), 0xEF, 0xBB, 0xBF)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewBOMSkippingReader(bytes.NewReader(tt.input))
			result, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestBOMSkippingReader_SmallReads(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello")...)
	reader := NewBOMSkippingReader(iotest.OneByteReader(bytes.NewReader(input)))

	result, err := io.ReadAll(iotest.OneByteReader(reader))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != "hello" {
		t.Errorf("got %q, want %q", string(result), "hello")
	}
}

func TestCountingReader(t *testing.T) {
	input := strings.Repeat("x", 1000)
	reader := NewCountingReader(strings.NewReader(input))

	// Read in chunks
	buf := make([]byte, 100)
	totalRead := 0
	for {
		n, err := reader.Read(buf)
		totalRead += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if totalRead != len(input) {
		t.Errorf("total read = %d, want %d", totalRead, len(input))
	}
	if reader.BytesRead != int64(len(input)) {
		t.Errorf("BytesRead = %d, want %d", reader.BytesRead, len(input))
	}
}

func TestWrapForMaterialize(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Jo\xe3o;x\n")...)

	reader := WrapForMaterialize(bytes.NewReader(input))
	result, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// BOM stripped, non-UTF-8 bytes left for the encoding detector
	expected := "Jo\xe3o;x\n"
	if string(result) != expected {
		t.Errorf("got %q, want %q", string(result), expected)
	}
	if reader.BytesRead != int64(len(expected)) {
		t.Errorf("BytesRead = %d, want %d", reader.BytesRead, len(expected))
	}
}
