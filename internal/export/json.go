package export

import (
	"encoding/json"
	"io"

	"github.com/alienxp03/council/internal/core"
)

// JSONExporter exports session records to JSON format.
type JSONExporter struct{}

// Export writes the session record as indented JSON.
func (e *JSONExporter) Export(rec *core.SessionRecord, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rec)
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return "json"
}
