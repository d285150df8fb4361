package record

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_Read(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		comma  byte
		quote  byte
		rowSep string
		want   []Row
	}{
		{
			name:  "basic",
			input: "A,B,C\na1,b1,c1\n",
			want:  []Row{{"A", "B", "C"}, {"a1", "b1", "c1"}},
		},
		{
			name:  "no trailing newline",
			input: "A,B\na,b",
			want:  []Row{{"A", "B"}, {"a", "b"}},
		},
		{
			name:  "crlf",
			input: "A,B\r\na,b\r\n",
			want:  []Row{{"A", "B"}, {"a", "b"}},
		},
		{
			name:  "bare cr",
			input: "A,B\ra,b\r",
			want:  []Row{{"A", "B"}, {"a", "b"}},
		},
		{
			name:  "blank lines are rows",
			input: "A,B\n\na,b\n\r\n",
			want:  []Row{{"A", "B"}, {""}, {"a", "b"}, {""}},
		},
		{
			name:  "lines with no data",
			input: "A;B;C\n;;\n",
			comma: ';',
			want:  []Row{{"A", "B", "C"}, {"", "", ""}},
		},
		{
			name:  "quoted separator",
			input: "a,\"b,b\",c\n",
			want:  []Row{{"a", "b,b", "c"}},
		},
		{
			name:  "escaped quote",
			input: "a,\"b\"\"c\",d\n",
			want:  []Row{{"a", "b\"c", "d"}},
		},
		{
			name:  "embedded newline",
			input: "A,B\n\"multi\nline\",x\n",
			want:  []Row{{"A", "B"}, {"multi\nline", "x"}},
		},
		{
			name:  "empty quoted field",
			input: "\"\",a,\"\"\n",
			want:  []Row{{"", "a", ""}},
		},
		{
			name:  "custom quote",
			input: "'a;b';c\n",
			comma: ';',
			quote: '\'',
			want:  []Row{{"a;b", "c"}},
		},
		{
			name:   "custom row separator",
			input:  "a,b|c,d|",
			rowSep: "|",
			want:   []Row{{"a", "b"}, {"c", "d"}},
		},
		{
			name:   "multi-byte row separator keeps lone newline",
			input:  "a,b\nc\r\nd,e\r\n",
			rowSep: "\r\n",
			want:   []Row{{"a", "b\nc"}, {"d", "e"}},
		},
		{
			name:   "row separator prefix at eof",
			input:  "a,b\r",
			rowSep: "\r\n",
			want:   []Row{{"a", "b\r"}},
		},
		{
			name:  "utf-8 fields",
			input: "Endereço;João\n",
			comma: ';',
			want:  []Row{{"Endereço", "João"}},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(iotest.HalfReader(strings.NewReader(tt.input)))
			if tt.comma != 0 {
				r.Comma = tt.comma
			}
			if tt.quote != 0 {
				r.Quote = tt.quote
			}
			r.RowSep = tt.rowSep

			got, err := r.ReadAll()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReader_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   error
		line   int
		column int
	}{
		{"bare quote", "a,b\"c\n", ErrBareQuote, 1, 4},
		{"data after closing quote", "\"a\"b,c\n", ErrQuote, 1, 4},
		{"unterminated", "A,B\n\"abc\n", ErrUnterminatedQuote, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.input))
			_, err := r.ReadAll()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.line, perr.Line)
			assert.Equal(t, tt.column, perr.Column)
		})
	}
}

func TestReader_ResetRestarts(t *testing.T) {
	r := NewReader(strings.NewReader("a;b\nc;d\n"))
	r.Comma = ';'

	row, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, Row{"a", "b"}, row)
	assert.Equal(t, 2, r.Line())

	r.Reset(strings.NewReader("x;y\n"))
	assert.Equal(t, 1, r.Line())
	row, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, Row{"x", "y"}, row)

	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_EmptyFieldsAreNotNull(t *testing.T) {
	r := NewReader(strings.NewReader("a,,\"\",b\n"))

	row, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, Row{"a", "", "", "b"}, row)
	assert.False(t, row.Blank())
}

func TestRow_Blank(t *testing.T) {
	assert.True(t, Row{}.Blank())
	assert.True(t, Row{""}.Blank())
	assert.True(t, Row{"", "", ""}.Blank())
	assert.False(t, Row{"", "x"}.Blank())
	assert.False(t, Row{" "}.Blank())
}
