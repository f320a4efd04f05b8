package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/edugenai/insights/internal/model"
)

// Export is the document written by the report command.
type Export struct {
	GeneratedAt time.Time       `json:"generated_at"`
	View        model.ViewState `json:"view"`
	Report      Report          `json:"report"`
}

// WriteExport encodes an indented Export of r to w.
func WriteExport(w io.Writer, view model.ViewState, r Report, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Export{GeneratedAt: now.UTC(), View: view, Report: r}); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
