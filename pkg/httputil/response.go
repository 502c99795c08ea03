package httputil

import (
	"encoding/json"
	"net/http"
)

type Envelope map[string]any

// JSON writes v as the whole response body. Wire shapes are flat on
// purpose, downstream clients match fields by name with no envelope.
func JSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if v == nil {
		return nil
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	return enc.Encode(v)
}

func Error(w http.ResponseWriter, status int, message string) error {
	w.Header().Set("Cache-Control", "no-store")
	return JSON(w, status, Envelope{"error": message})
}
