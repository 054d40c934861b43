package export

import (
	"encoding/json"
	"io"

	"github.com/dalemusser/formhub/internal/domain/models"
)

// writeJSON writes a plain array of per-record value maps.
func writeJSON(w io.Writer, records []models.Record) error {
	out := make([]map[string]models.Value, len(records))
	for i, r := range records {
		out[i] = r.Values
		if out[i] == nil {
			out[i] = map[string]models.Value{}
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
