package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"headsup/pkg/geo"
	"headsup/pkg/request"
	"headsup/pkg/tiles"
)

// TileStore reads and writes cached tiles. store.SQLiteStore satisfies it.
type TileStore interface {
	GetTile(ctx context.Context, url string) ([]byte, bool)
	PutTile(ctx context.Context, url string, t geo.TileID, data []byte) error
}

// TileHandler serves map tiles from the offline cache and fills the cache
// from the tile server on a miss.
type TileHandler struct {
	source  tiles.Source
	store   TileStore
	fetcher tiles.Fetcher
	maxZoom int
}

// NewTileHandler creates a new TileHandler. A nil fetcher serves cached tiles
// only.
func NewTileHandler(src tiles.Source, st TileStore, f tiles.Fetcher, maxZoom int) *TileHandler {
	return &TileHandler{source: src, store: st, fetcher: f, maxZoom: maxZoom}
}

// HandleTile serves GET /tiles/{z}/{x}/{y}.png.
func (h *TileHandler) HandleTile(w http.ResponseWriter, r *http.Request) {
	t, ok := parseTile(r)
	if !ok || !t.Valid() || t.Zoom > h.maxZoom {
		http.Error(w, "invalid tile", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	u := h.source.URL(t)
	if data, ok := h.store.GetTile(ctx, u); ok {
		writeTile(w, data, "HIT")
		return
	}
	if h.fetcher == nil {
		http.Error(w, "tile not cached", http.StatusNotFound)
		return
	}

	data, err := h.fetcher.Get(ctx, u, "")
	if err != nil {
		var se *request.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			http.Error(w, "tile not found", http.StatusNotFound)
			return
		}
		slog.Warn("Tile fetch failed", "tile", t, "error", err)
		http.Error(w, "tile unavailable", http.StatusBadGateway)
		return
	}
	if err := h.store.PutTile(ctx, u, t, data); err != nil {
		slog.Warn("Failed to store tile", "tile", t, "error", err)
	}
	writeTile(w, data, "MISS")
}

func parseTile(r *http.Request) (geo.TileID, bool) {
	z, err1 := strconv.Atoi(r.PathValue("z"))
	x, err2 := strconv.Atoi(r.PathValue("x"))
	y, err3 := strconv.Atoi(strings.TrimSuffix(r.PathValue("y"), ".png"))
	if err1 != nil || err2 != nil || err3 != nil {
		return geo.TileID{}, false
	}
	return geo.TileID{Zoom: z, X: x, Y: y}, true
}

func writeTile(w http.ResponseWriter, data []byte, cache string) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("X-Tile-Cache", cache)
	if _, err := w.Write(data); err != nil {
		slog.Debug("Failed to write tile", "error", err)
	}
}
