package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/jumpsim/internal/ensemble"
)

// ExportData is the JSON document written by ExportJSON.
type ExportData struct {
	Run     RunMetadata       `json:"run"`
	Summary *ensemble.Summary `json:"summary"`
}

// ExportJSON writes a run and its summary as indented JSON.
func ExportJSON(w io.Writer, meta RunMetadata, summary *ensemble.Summary) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Run: meta, Summary: summary})
}
