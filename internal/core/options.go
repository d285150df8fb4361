package core

import (
	"log/slog"
	"os"

	"github.com/JonMunkholm/fileprocessor/internal/detect"
)

// Configuration defaults applied when an Options field is left unset.
const (
	// DefaultSkipBlanks drops rows whose fields are all empty.
	DefaultSkipBlanks = true

	// FallbackEncoding is assumed when the source is not valid UTF-8.
	FallbackEncoding = detect.Latin1

	// NoLimit makes ProcessRange run to the end of the stream.
	NoLimit = -1
)

// Options configures Open. The zero value detects everything.
type Options struct {
	// Compressed pins gzip handling. Nil probes the magic number, false
	// reads the source as-is, true forces gzip and falls back to raw when
	// the source has no gzip header.
	Compressed *bool

	// Encoding pins the source encoding ("UTF-8" or "ISO-8859-1", aliases
	// accepted). Empty detects it.
	Encoding string

	// ColumnSeparator pins the field separator. Zero detects it.
	ColumnSeparator byte

	// SkipBlanks controls whether blank rows are visited and counted.
	// Nil means DefaultSkipBlanks.
	SkipBlanks *bool

	// Headers treats the first row as a header: it is exposed by
	// Processor.Headers and never counted or iterated.
	Headers bool

	// Quote is the quote character. Zero means '"'.
	Quote byte

	// RowSeparator is the row terminator. Empty accepts \n, \r\n and \r.
	RowSeparator string

	// SourceFlag is OR-ed with os.O_RDONLY when opening the source.
	SourceFlag int

	// SourcePerm is passed through to os.OpenFile.
	SourcePerm os.FileMode

	// ScratchDir holds the scratch file. Empty means os.TempDir().
	ScratchDir string

	// Logger receives debug output about detection. Nil means slog.Default().
	Logger *slog.Logger
}

// Bool returns a pointer to v, for the tri-state Options fields.
func Bool(v bool) *bool { return &v }

// settings is Options after defaults and validation.
type settings struct {
	Options
	encoding   *detect.Encoding
	skipBlanks bool
	logger     *slog.Logger
}

func (o Options) resolve() (settings, error) {
	s := settings{
		Options:    o,
		skipBlanks: DefaultSkipBlanks,
		logger:     o.Logger,
	}
	if o.SkipBlanks != nil {
		s.skipBlanks = *o.SkipBlanks
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if o.Encoding != "" {
		enc, err := detect.ParseEncoding(o.Encoding)
		if err != nil {
			return settings{}, err
		}
		s.encoding = &enc
	}
	return s, nil
}
