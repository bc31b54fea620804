package surface

import (
	"encoding/json"
	"io"
)

// JSONRenderer marshals Explained to indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(w io.Writer, e *Explained) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
