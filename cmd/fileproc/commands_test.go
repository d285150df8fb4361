package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/fileprocessor/internal/core"
	"github.com/JonMunkholm/fileprocessor/internal/pgload"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--scratch-dir", t.TempDir()))
	err := cmd.Execute()
	return out.String(), err
}

func TestInspectCommand(t *testing.T) {
	path := writeFile(t, "Name;City\nJo\xe3o;Porto\n\nAna;\n")

	out, err := run(t, "inspect", "--headers", path)
	require.NoError(t, err)
	assert.Contains(t, out, "detected encoding: ISO-8859-1")
	assert.Contains(t, out, `column separator:  ';'`)
	assert.Contains(t, out, "headers:           Name, City")
	assert.Contains(t, out, "rows:              2")
	assert.Contains(t, out, "total rows:        3")
}

func TestRowsCommand(t *testing.T) {
	path := writeFile(t, "Name;City\nJo\xe3o;Porto\n\nAna;\nBea;Faro\n")

	t.Run("all rows", func(t *testing.T) {
		out, err := run(t, "rows", "--headers", path)
		require.NoError(t, err)
		assert.Equal(t, "Name,City\nJoão,Porto\nAna,\nBea,Faro\n", out)
	})

	t.Run("window", func(t *testing.T) {
		out, err := run(t, "rows", "--offset", "1", "--limit", "1", "--output-separator", "tab", path)
		require.NoError(t, err)
		assert.Equal(t, "João\tPorto\n", out)
	})

	t.Run("keep blanks", func(t *testing.T) {
		out, err := run(t, "rows", "--headers", "--keep-blanks", "--offset", "1", "--limit", "1", path)
		require.NoError(t, err)
		assert.Equal(t, "Name,City\n,\n", out)
	})

	t.Run("negative offset", func(t *testing.T) {
		_, err := run(t, "rows", "--offset", "-1", path)
		assert.Error(t, err)
	})
}

func TestLoadCommand_NoDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	path := writeFile(t, "a,b\n1,2\n")

	_, err := run(t, "load", "--table", "people", path)
	assert.ErrorIs(t, err, pgload.ErrDatabaseDisabled)
}

func TestMissingFile(t *testing.T) {
	_, err := run(t, "inspect", filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
}

func TestFlagsOptions(t *testing.T) {
	tests := []struct {
		name    string
		flags   flags
		check   func(t *testing.T, opts core.Options)
		wantErr bool
	}{
		{
			name:  "defaults detect everything",
			flags: flags{compressed: "auto"},
			check: func(t *testing.T, opts core.Options) {
				assert.Nil(t, opts.Compressed)
				assert.Zero(t, opts.ColumnSeparator)
				assert.Zero(t, opts.Quote)
				require.NotNil(t, opts.SkipBlanks)
				assert.True(t, *opts.SkipBlanks)
			},
		},
		{
			name:  "pinned values",
			flags: flags{compressed: "false", separator: "tab", quote: "'", keepBlanks: true, headers: true},
			check: func(t *testing.T, opts core.Options) {
				require.NotNil(t, opts.Compressed)
				assert.False(t, *opts.Compressed)
				assert.Equal(t, byte('\t'), opts.ColumnSeparator)
				assert.Equal(t, byte('\''), opts.Quote)
				assert.False(t, *opts.SkipBlanks)
				assert.True(t, opts.Headers)
			},
		},
		{
			name:  "forced gzip",
			flags: flags{compressed: "gzip"},
			check: func(t *testing.T, opts core.Options) {
				require.NotNil(t, opts.Compressed)
				assert.True(t, *opts.Compressed)
			},
		},
		{name: "bad compressed", flags: flags{compressed: "zip"}, wantErr: true},
		{name: "bad separator", flags: flags{separator: ";;"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := tt.flags.options()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, opts)
		})
	}
}
