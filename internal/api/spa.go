package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

// spaFileSystem serves index.html for paths that are not files, so the HUD
// can be reloaded on any route.
type spaFileSystem struct {
	root http.FileSystem
}

// Open opens the named file, falling back to index.html when it is missing.
func (s *spaFileSystem) Open(name string) (http.File, error) {
	f, err := s.root.Open(name)
	if os.IsNotExist(err) && !strings.HasPrefix(name, "/api/") {
		return s.root.Open("index.html")
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError sends {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
