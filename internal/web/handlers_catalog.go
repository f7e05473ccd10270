package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/seconvert/internal/core"
	"github.com/JonMunkholm/seconvert/internal/schema"
)

// SchemaSummary describes a schema in listings.
type SchemaSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Version     string   `json:"version,omitempty"`
	Description string   `json:"description,omitempty"`
	PrimaryKey  []string `json:"primary_key"`
	FieldCount  int      `json:"field_count"`
}

// SchemaDetail is the JSON form of one schema.
type SchemaDetail struct {
	SchemaSummary
	Comment string        `json:"comment,omitempty"`
	Fields  []FieldDetail `json:"fields"`
}

// FieldDetail is the JSON form of one field.
type FieldDetail struct {
	ID          string `json:"id"`
	Header      string `json:"header"`
	Description string `json:"description,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

func summarize(s *schema.Schema) SchemaSummary {
	pk := s.PrimaryKey()
	if pk == nil {
		pk = []string{}
	}
	return SchemaSummary{
		ID:          s.ID(),
		Name:        s.Name(),
		Version:     s.Version(),
		Description: s.Description(),
		PrimaryKey:  pk,
		FieldCount:  s.Len(),
	}
}

// handleHealth reports liveness, catalog size and conversion slots.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":      "ok",
		"schemas":     s.catalog.Len(),
		"observers":   core.ObserverCount(),
		"conversions": s.limiter.Status(),
		"database":    s.db != nil,
	})
}

// handleListSchemas returns every schema in the catalog.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	all := s.catalog.All()
	result := make([]SchemaSummary, len(all))
	for i, sc := range all {
		result[i] = summarize(sc)
	}
	writeJSON(w, result)
}

// handleGetSchema returns one schema as JSON, or as a definition file when
// format is yaml or csv.
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	sc, err := s.lookupSchema(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	switch format {
	case "", "json":
		detail := SchemaDetail{SchemaSummary: summarize(sc), Comment: sc.Comment()}
		for _, f := range sc.Fields() {
			detail.Fields = append(detail.Fields, FieldDetail{
				ID:          f.ID,
				Header:      f.Header,
				Description: f.Description,
				Comment:     f.Comment,
			})
		}
		writeJSON(w, detail)

	case "yaml", "yml", "csv":
		contentType, ext, write := "application/yaml", "yaml", sc.WriteYAML
		if format == "csv" {
			contentType, ext, write = "text/csv; charset=utf-8", "csv", sc.WriteCSV
		}
		var buf bytes.Buffer
		if err := write(&buf); err != nil {
			respondError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sc.ID()+"."+ext))
		w.Write(buf.Bytes())

	default:
		respondError(w, r, withStatus(http.StatusBadRequest,
			fmt.Errorf("format %q is not supported: expected json, yaml or csv", format)))
	}
}

// handleListObservers returns the registered observers.
func (s *Server) handleListObservers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, core.All())
}

func (s *Server) lookupSchema(id string) (*schema.Schema, error) {
	sc, ok := s.catalog.Get(id)
	if !ok {
		return nil, withStatus(http.StatusNotFound, fmt.Errorf("unknown schema %q", id))
	}
	return sc, nil
}
