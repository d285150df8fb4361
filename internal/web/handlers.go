package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/fileprocessor/internal/core"
	"github.com/JonMunkholm/fileprocessor/internal/logging"
	"github.com/JonMunkholm/fileprocessor/internal/pgload"
	"github.com/JonMunkholm/fileprocessor/internal/record"
)

// InspectResponse is returned by POST /api/inspect.
type InspectResponse struct {
	ID               string       `json:"id"`
	Filename         string       `json:"filename"`
	Size             int64        `json:"size"`
	Compressed       bool         `json:"compressed"`
	DetectedEncoding string       `json:"detected_encoding"`
	Encoding         string       `json:"encoding"`
	ColumnSeparator  string       `json:"column_separator"`
	SkipBlanks       bool         `json:"skip_blanks"`
	Headers          []string     `json:"headers,omitempty"`
	Count            int          `json:"count"`
	TotalCount       int          `json:"total_count"`
	Offset           int          `json:"offset"`
	Rows             []record.Row `json:"rows"`
}

// LoadResponse is returned by POST /api/load/{table}.
type LoadResponse struct {
	ID       string   `json:"id"`
	Filename string   `json:"filename"`
	Table    string   `json:"table"`
	Columns  []string `json:"columns"`
	Rows     int64    `json:"rows"`
}

// handleInspect detects the configuration of an uploaded file and returns
// its counts plus a window of rows.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	up, err := s.receive(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer up.release()

	opts, err := parseOptions(r, s.cfg.Inspect.ScratchDir)
	if err != nil {
		respondError(w, r, err)
		return
	}
	offset, err := intField(r, "offset", 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit, err := intField(r, "limit", s.cfg.Inspect.PreviewRows)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if offset < 0 {
		respondError(w, r, &fieldError{field: "offset", reason: "must not be negative"})
		return
	}
	if limit < 0 || limit > s.cfg.Inspect.MaxPreviewRows {
		respondError(w, r, &fieldError{
			field:  "limit",
			reason: fmt.Sprintf("must be between 0 and %d", s.cfg.Inspect.MaxPreviewRows),
		})
		return
	}

	log := logging.WithFields(r.Context(), "upload_id", up.id, "filename", up.filename)
	opts.Logger = log

	resp := InspectResponse{ID: up.id, Filename: up.filename, Size: up.size, Offset: offset, Rows: []record.Row{}}
	err = core.With(up.path, opts, func(p *core.Processor) error {
		resp.Compressed = p.Compressed()
		resp.DetectedEncoding = p.DetectedEncoding().String()
		resp.Encoding = p.Encoding().String()
		resp.ColumnSeparator = string(p.ColumnSeparator())
		resp.SkipBlanks = p.SkipBlanks()
		resp.Headers = p.Headers()

		var err error
		if resp.Count, err = p.Count(nil); err != nil {
			return err
		}
		if resp.TotalCount, err = p.TotalCount(); err != nil {
			return err
		}
		return p.ProcessRange(offset, limit, func(row record.Row, _ int) error {
			if err := r.Context().Err(); err != nil {
				return err
			}
			resp.Rows = append(resp.Rows, row)
			return nil
		})
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	log.Info("file inspected",
		"count", resp.Count,
		"total_count", resp.TotalCount,
		"encoding", resp.DetectedEncoding,
		"compressed", resp.Compressed,
	)
	writeJSON(w, http.StatusOK, resp)
}

// handleLoad copies the rows of an uploaded file into a Postgres table. The
// first row always names the columns.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		respondError(w, r, pgload.ErrDatabaseDisabled)
		return
	}

	table := chi.URLParam(r, "table")
	if _, err := pgload.ParseTable(table); err != nil {
		respondError(w, r, &fieldError{field: "table", reason: err.Error()})
		return
	}

	up, err := s.receive(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer up.release()

	opts, err := parseOptions(r, s.cfg.Inspect.ScratchDir)
	if err != nil {
		respondError(w, r, err)
		return
	}
	opts.Headers = true
	create, err := boolField(r, "create")
	if err != nil {
		respondError(w, r, err)
		return
	}

	log := logging.WithFields(r.Context(), "upload_id", up.id, "filename", up.filename, "table", table)
	opts.Logger = log

	var res pgload.Result
	err = core.With(up.path, opts, func(p *core.Processor) error {
		var err error
		res, err = pgload.Load(r.Context(), s.db, table, p, pgload.Options{
			CreateTable: create != nil && *create,
			Logger:      log,
		})
		return err
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LoadResponse{
		ID:       up.id,
		Filename: up.filename,
		Table:    res.Table,
		Columns:  res.Columns,
		Rows:     res.Rows,
	})
}

// upload is a multipart file spooled to disk for the duration of a request.
type upload struct {
	id       string
	filename string
	size     int64
	path     string
	release  func()
}

// receive takes an inspection slot, reads the multipart form and spools its
// "file" part to disk. The caller must call release.
func (s *Server) receive(w http.ResponseWriter, r *http.Request) (*upload, error) {
	if err := s.limiter.Acquire(r.Context()); err != nil {
		return nil, err
	}

	maxSize := s.cfg.Inspect.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.limiter.Release()
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, err
		}
		return nil, &fieldError{field: "file", reason: err.Error()}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.limiter.Release()
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
		return nil, errNoFile
	}
	defer file.Close()

	path, err := s.spool(file)
	if err != nil {
		s.limiter.Release()
		r.MultipartForm.RemoveAll()
		return nil, err
	}

	log := logging.FromContext(r.Context())
	return &upload{
		id:       uuid.NewString(),
		filename: header.Filename,
		size:     header.Size,
		path:     path,
		release: func() {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn("failed to remove upload", "path", path, "error", err)
			}
			r.MultipartForm.RemoveAll()
			s.limiter.Release()
		},
	}, nil
}

// spool copies an uploaded part to a file in the scratch directory so the
// processor can open it by path.
func (s *Server) spool(file multipart.File) (string, error) {
	dst, err := os.CreateTemp(s.cfg.Inspect.ScratchDir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("spool upload: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("spool upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("spool upload: %w", err)
	}
	return dst.Name(), nil
}

// parseOptions reads the processor options shared by inspect and load from
// the form. Empty fields are detected.
func parseOptions(r *http.Request, scratchDir string) (core.Options, error) {
	opts := core.Options{
		Encoding:     r.FormValue("encoding"),
		RowSeparator: r.FormValue("row_separator"),
		ScratchDir:   scratchDir,
	}

	var err error
	if opts.ColumnSeparator, err = byteField(r, "separator"); err != nil {
		return opts, err
	}
	if opts.Quote, err = byteField(r, "quote"); err != nil {
		return opts, err
	}
	if v := r.FormValue("compressed"); v != "" && v != "auto" {
		if opts.Compressed, err = boolField(r, "compressed"); err != nil {
			return opts, err
		}
	}
	if opts.SkipBlanks, err = boolField(r, "skip_blanks"); err != nil {
		return opts, err
	}
	headers, err := boolField(r, "headers")
	if err != nil {
		return opts, err
	}
	opts.Headers = headers != nil && *headers
	return opts, nil
}

// byteField parses a single-byte form value. "tab" is accepted for '\t'.
func byteField(r *http.Request, name string) (byte, error) {
	v := r.FormValue(name)
	switch {
	case v == "":
		return 0, nil
	case strings.EqualFold(v, "tab"):
		return '\t', nil
	case len(v) == 1:
		return v[0], nil
	default:
		return 0, &fieldError{field: name, reason: "must be a single character"}
	}
}

// boolField parses an optional boolean form value. Missing returns nil.
func boolField(r *http.Request, name string) (*bool, error) {
	v := r.FormValue(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, &fieldError{field: name, reason: "must be true or false"}
	}
	return &b, nil
}

// intField parses an optional integer form value.
func intField(r *http.Request, name string, def int) (int, error) {
	v := r.FormValue(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &fieldError{field: name, reason: "must be an integer"}
	}
	return n, nil
}
