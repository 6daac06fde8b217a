package handler

import (
	"encoding/json"
	"net/http"
)

// RegisterBuiltins adds the handlers that ship with the modkit binary.
// Embedding applications register their own handlers alongside these.
func RegisterBuiltins(c *Catalog) {
	c.MustRegister("health.ok", healthOK)
	c.MustRegister("debug.echo", debugEcho)
}

func healthOK(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func debugEcho(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"query":  r.URL.Query(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
