package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/fileprocessor/internal/core"
	"github.com/JonMunkholm/fileprocessor/internal/logging"
	"github.com/JonMunkholm/fileprocessor/internal/pgload"
	"github.com/JonMunkholm/fileprocessor/internal/record"
)

// flags holds the processor options shared by every command.
type flags struct {
	encoding     string
	separator    string
	quote        string
	rowSeparator string
	compressed   string
	headers      bool
	keepBlanks   bool
	scratchDir   string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "fileproc",
		Short:         "Inspect and load delimited text files",
		Long:          `Detects compression, encoding and separator of CSV-like files, counts and prints their rows, and bulk-loads them into Postgres.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.encoding, "encoding", "e", "", "Source encoding (UTF-8 or ISO-8859-1); detected when empty")
	pf.StringVarP(&f.separator, "separator", "s", "", `Column separator, a single character or "tab"; detected when empty`)
	pf.StringVar(&f.quote, "quote", "", `Quote character (default '"')`)
	pf.StringVar(&f.rowSeparator, "row-separator", "", "Row terminator; any line ending when empty")
	pf.StringVar(&f.compressed, "compressed", "auto", "Gzip handling: auto, true or false")
	pf.BoolVarP(&f.headers, "headers", "H", false, "Treat the first row as a header")
	pf.BoolVar(&f.keepBlanks, "keep-blanks", false, "Visit and count rows whose fields are all empty")
	pf.StringVar(&f.scratchDir, "scratch-dir", "", "Directory for the scratch file (default: OS temp dir)")
	pf.StringVar(&f.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		logging.Setup(cmd.ErrOrStderr(), f.logLevel, "text")
	}

	root.AddCommand(newInspectCmd(f), newRowsCmd(f), newLoadCmd(f))
	return root
}

// options turns the flags into processor options.
func (f *flags) options() (core.Options, error) {
	opts := core.Options{
		Encoding:     f.encoding,
		RowSeparator: f.rowSeparator,
		Headers:      f.headers,
		SkipBlanks:   core.Bool(!f.keepBlanks),
		ScratchDir:   f.scratchDir,
		Logger:       slog.Default(),
	}

	var err error
	if opts.ColumnSeparator, err = charFlag("separator", f.separator); err != nil {
		return opts, err
	}
	if opts.Quote, err = charFlag("quote", f.quote); err != nil {
		return opts, err
	}

	switch strings.ToLower(f.compressed) {
	case "", "auto":
	case "true", "yes", "gzip":
		opts.Compressed = core.Bool(true)
	case "false", "no", "none":
		opts.Compressed = core.Bool(false)
	default:
		return opts, fmt.Errorf("invalid --compressed %q: want auto, true or false", f.compressed)
	}
	return opts, nil
}

func charFlag(name, v string) (byte, error) {
	switch {
	case v == "":
		return 0, nil
	case strings.EqualFold(v, "tab"), v == `\t`:
		return '\t', nil
	case len(v) == 1:
		return v[0], nil
	default:
		return 0, fmt.Errorf("invalid --%s %q: must be a single character", name, v)
	}
}

func newInspectCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the detected configuration and row counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options()
			if err != nil {
				return err
			}
			return core.With(args[0], opts, func(p *core.Processor) error {
				count, err := p.Count(nil)
				if err != nil {
					return err
				}
				total, err := p.TotalCount()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "file:              %s\n", p.Path())
				fmt.Fprintf(out, "compressed:        %t\n", p.Compressed())
				fmt.Fprintf(out, "detected encoding: %s\n", p.DetectedEncoding())
				fmt.Fprintf(out, "column separator:  %q\n", p.ColumnSeparator())
				fmt.Fprintf(out, "skip blanks:       %t\n", p.SkipBlanks())
				if h := p.Headers(); h != nil {
					fmt.Fprintf(out, "headers:           %s\n", strings.Join(h, ", "))
				}
				fmt.Fprintf(out, "rows:              %d\n", count)
				fmt.Fprintf(out, "total rows:        %d\n", total)
				return nil
			})
		},
	}
}

func newRowsCmd(f *flags) *cobra.Command {
	var (
		offset int
		limit  int
		outSep string
	)
	cmd := &cobra.Command{
		Use:   "rows FILE",
		Short: "Print rows as UTF-8 CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options()
			if err != nil {
				return err
			}
			sep, err := charFlag("output-separator", outSep)
			if err != nil {
				return err
			}
			if offset < 0 {
				return fmt.Errorf("invalid --offset %d: must not be negative", offset)
			}

			w := csv.NewWriter(cmd.OutOrStdout())
			if sep != 0 {
				w.Comma = rune(sep)
			}
			err = core.With(args[0], opts, func(p *core.Processor) error {
				if h := p.Headers(); h != nil {
					if err := w.Write(h); err != nil {
						return err
					}
				}
				return p.ProcessRange(offset, limit, func(row record.Row, _ int) error {
					return w.Write(row)
				})
			})
			if err != nil {
				return err
			}
			w.Flush()
			return w.Error()
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "Index of the first row to print")
	cmd.Flags().IntVar(&limit, "limit", core.NoLimit, "Number of rows to print; negative prints all")
	cmd.Flags().StringVar(&outSep, "output-separator", ",", "Column separator of the output")
	return cmd
}

func newLoadCmd(f *flags) *cobra.Command {
	var (
		table  string
		create bool
		dbURL  string
	)
	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Copy rows into a Postgres table named by the header row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options()
			if err != nil {
				return err
			}
			opts.Headers = true

			if dbURL == "" {
				dbURL = os.Getenv("DATABASE_URL")
			}
			if dbURL == "" {
				return errors.Join(pgload.ErrDatabaseDisabled,
					errors.New("set --database-url or DATABASE_URL"))
			}

			ctx := cmd.Context()
			conn, err := pgx.Connect(ctx, dbURL)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer conn.Close(ctx)

			return core.With(args[0], opts, func(p *core.Processor) error {
				res, err := pgload.Load(ctx, conn, table, p, pgload.Options{CreateTable: create})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "loaded %d rows into %s (%s)\n",
					res.Rows, res.Table, strings.Join(res.Columns, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "", "Target table, optionally schema-qualified")
	_ = cmd.MarkFlagRequired("table")
	cmd.Flags().BoolVar(&create, "create", false, "Create the table with text columns if it does not exist")
	cmd.Flags().StringVar(&dbURL, "database-url", "", "PostgreSQL connection string (default: $DATABASE_URL)")
	return cmd
}
