package api

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"headsup/internal/ui"
	"headsup/pkg/version"
)

// NewServer creates and configures the HTTP server.
// ws serves the browser link; shutdown is called by POST /api/shutdown.
func NewServer(addr string, state *StateHandler, cfg *ConfigHandler, cache *CacheHandler, tileH *TileHandler, stats *StatsHandler, ws http.Handler, shutdown func()) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewMux(state, cfg, cache, tileH, stats, ws, shutdown),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewMux registers every route. Nil handlers leave their routes out.
func NewMux(state *StateHandler, cfg *ConfigHandler, cache *CacheHandler, tileH *TileHandler, stats *StatsHandler, ws http.Handler, shutdown func()) *http.ServeMux {
	mux := http.NewServeMux()

	// 1. Health and version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2. Navigation state
	if state != nil {
		mux.Handle("GET /api/state", state)
	}

	// 3. Settings panel
	if cfg != nil {
		mux.HandleFunc("/api/config", cfg.HandleConfig)
	}

	// 4. Offline tile cache
	if cache != nil {
		mux.HandleFunc("POST /api/cache/area", cache.HandleCacheArea)
		mux.HandleFunc("GET /api/cache/status", cache.HandleStatus)
	}
	if tileH != nil {
		mux.HandleFunc("GET /tiles/{z}/{x}/{y}", tileH.HandleTile)
	}

	// 5. Diagnostics
	if stats != nil {
		mux.Handle("GET /api/stats", stats)
	}
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	// 6. Browser link
	if ws != nil {
		mux.Handle("GET /ws", ws)
	}

	// 7. Shutdown
	if shutdown != nil {
		mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
			slog.Info("Graceful shutdown initiated via API")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("Shutting down...")); err != nil {
				slog.Error("Failed to write shutdown response", "error", err)
			}
			// Let the response flush first.
			go func() {
				time.Sleep(100 * time.Millisecond)
				shutdown()
			}()
		})
	}

	// 8. HUD page
	distFS, err := fs.Sub(ui.DistFS, "dist")
	if err != nil {
		panic(fmt.Sprintf("Failed to subtree dist from embedded assets: %v", err))
	}
	mux.Handle("/", http.FileServer(&spaFileSystem{root: http.FS(distFS)}))

	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}
