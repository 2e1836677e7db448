package export

import (
	"bytes"
	"encoding/json"
	"io"

	"cvinsight/internal/errors"
	"cvinsight/internal/types"
)

// WriteJSON writes the candidate exactly as normalized, indented by two spaces.
func WriteJSON(w io.Writer, c types.NormalizedCandidate) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return errors.NewIOError("EXPORT_WRITE_FAILED", "Failed to write JSON export", err)
	}
	return nil
}

// JSON returns the JSON export as bytes.
func JSON(c types.NormalizedCandidate) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
