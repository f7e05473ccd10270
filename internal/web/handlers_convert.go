package web

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/seconvert/internal/core"
	"github.com/JonMunkholm/seconvert/internal/core/observers"
	"github.com/JonMunkholm/seconvert/internal/logging"
)

// LoadResult is the response of a table load.
type LoadResult struct {
	ConversionID string     `json:"conversion_id"`
	Table        string     `json:"table"`
	RowsCopied   int64      `json:"rows_copied"`
	Stats        core.Stats `json:"stats"`
}

// conversion runs fn with a conversion slot and a converter built from the
// request. Responses are buffered by fn, so a failed conversion never
// produces partial output.
func (s *Server) conversion(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, conv *core.Converter) error) {
	ctx, cancel := s.startConversion(w, r)
	defer cancel()
	r = r.WithContext(ctx)

	if err := s.limiter.Acquire(ctx); err != nil {
		respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	conv, err := s.newConverter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := fn(ctx, conv); err != nil {
		respondError(w, r, err)
	}
}

// newConverter builds a converter for the {from} and {to} URL parameters.
// The observer, duplicates and invalid query parameters override the
// configured defaults.
func (s *Server) newConverter(r *http.Request) (*core.Converter, error) {
	from, err := s.lookupSchema(chi.URLParam(r, "from"))
	if err != nil {
		return nil, err
	}
	to, err := s.lookupSchema(chi.URLParam(r, "to"))
	if err != nil {
		return nil, err
	}

	opts, err := s.cfg.Convert.ConverterOptions()
	if err != nil {
		return nil, err
	}
	q := r.URL.Query()
	if v := q.Get("duplicates"); v != "" {
		if opts.RejectDuplicatePKs, err = core.ParseRejectPolicy(v); err != nil {
			return nil, withStatus(http.StatusBadRequest, fmt.Errorf("duplicates: %w", err))
		}
	}
	if v := q.Get("invalid"); v != "" {
		if opts.RejectInvalidPKs, err = core.ParseRejectPolicy(v); err != nil {
			return nil, withStatus(http.StatusBadRequest, fmt.Errorf("invalid: %w", err))
		}
	}

	key := q.Get("observer")
	if key == "" {
		key = observers.IdentityKey
	}
	if _, ok := core.Get(key); !ok {
		return nil, withStatus(http.StatusBadRequest, fmt.Errorf("unknown observer %q", key))
	}
	obs, err := core.NewObserver(key, from, to)
	if err != nil {
		return nil, err
	}

	opts.From, opts.To, opts.Observer = from, to, obs
	opts.Logger = logging.WithFields(r.Context(), "observer", key)
	return core.NewConverter(opts)
}

// handleConvert converts a CSV request body and returns the CSV output.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	s.conversion(w, r, func(ctx context.Context, conv *core.Converter) error {
		var buf bytes.Buffer
		if err := conv.EachRow(s.requestBody(ctx, w, r), &buf); err != nil {
			return err
		}
		writeCSV(w, conv, buf.Bytes())
		return nil
	})
}

// handleConvertJSON converts a JSON request body whose rows are the array
// at the dotted path query parameter, and returns CSV output.
func (s *Server) handleConvertJSON(w http.ResponseWriter, r *http.Request) {
	var path []string
	if p := r.URL.Query().Get("path"); p != "" {
		path = strings.Split(p, ".")
	}

	s.conversion(w, r, func(ctx context.Context, conv *core.Converter) error {
		var buf bytes.Buffer
		if err := conv.JSONConvert(s.requestBody(ctx, w, r), path, &buf); err != nil {
			return err
		}
		writeCSV(w, conv, buf.Bytes())
		return nil
	})
}

// handlePreview returns the first output rows of a CSV request body as JSON.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", core.DefaultPreviewRows)

	s.conversion(w, r, func(ctx context.Context, conv *core.Converter) error {
		p, err := conv.Preview(s.requestBody(ctx, w, r), limit)
		if err != nil {
			return err
		}
		writeJSON(w, p)
		return nil
	})
}

// handleLoad converts a CSV request body into a Postgres table. The table
// query parameter defaults to the destination schema id; kinds lists
// column types as field:kind pairs.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		respondError(w, r, withStatus(http.StatusServiceUnavailable,
			fmt.Errorf("table loads are disabled: no database is configured")))
		return
	}
	kinds, err := core.ParseColumnKinds(r.URL.Query().Get("kinds"))
	if err != nil {
		respondError(w, r, withStatus(http.StatusBadRequest, err))
		return
	}

	s.conversion(w, r, func(ctx context.Context, conv *core.Converter) error {
		load := core.TableLoad{
			Table:     r.URL.Query().Get("table"),
			Columns:   kinds,
			BatchSize: s.cfg.Database.CopyBatchSize,
		}
		if load.Table == "" {
			load.Table = conv.To().ID()
		}

		copied, err := conv.ConvertToTable(ctx, s.db, s.requestBody(ctx, w, r), load)
		if err != nil {
			return err
		}
		writeJSON(w, LoadResult{
			ConversionID: core.ConversionIDFromContext(ctx),
			Table:        load.Table,
			RowsCopied:   copied,
			Stats:        conv.Stats(),
		})
		return nil
	})
}

// writeCSV writes a finished conversion with its stats as headers.
func writeCSV(w http.ResponseWriter, conv *core.Converter, body []byte) {
	stats := conv.Stats()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", conv.To().ID()+".csv"))
	w.Header().Set("X-Rows-Read", strconv.Itoa(stats.RowsRead))
	w.Header().Set("X-Rows-Written", strconv.Itoa(stats.RowsWritten))
	w.Header().Set("X-Rows-Dropped", strconv.Itoa(stats.Dropped))
	w.Write(body)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
