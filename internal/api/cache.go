package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"headsup/pkg/geo"
	"headsup/pkg/nav"
	"headsup/pkg/tiles"
)

// Caching notices shown on the HUD.
const (
	cachingNotice    = "Caching map tiles for offline use..."
	noPositionNotice = "No GPS position available"
)

// Prefetcher starts background tile caching runs. tiles.Prefetcher
// satisfies it.
type Prefetcher interface {
	Start(ctx context.Context, center *geo.Point, r tiles.Region, progress func(tiles.Progress)) (uuid.UUID, error)
	Status() tiles.Status
}

// TileCounter reports what the tile store holds.
type TileCounter interface {
	CountTiles(ctx context.Context) (int, error)
	CountTilesByZoom(ctx context.Context) (map[int]int, error)
}

// CacheHandler serves the offline tile cache endpoints.
type CacheHandler struct {
	// ctx bounds caching runs; they outlive the request that started them.
	ctx      context.Context
	pf       Prefetcher
	nav      Navigator
	notifier nav.Notifier
	counter  TileCounter
	region   func(center geo.Point, zoom int) tiles.Region
}

// NewCacheHandler creates a new CacheHandler. region builds the caching area
// for a position and the current map zoom; nil uses tiles.DefaultRegion.
func NewCacheHandler(ctx context.Context, pf Prefetcher, n Navigator, notifier nav.Notifier, counter TileCounter, region func(geo.Point, int) tiles.Region) *CacheHandler {
	if region == nil {
		region = tiles.DefaultRegion
	}
	return &CacheHandler{
		ctx:      ctx,
		pf:       pf,
		nav:      n,
		notifier: notifier,
		counter:  counter,
		region:   region,
	}
}

// CacheAreaResponse is returned when a run was started.
type CacheAreaResponse struct {
	RunID   uuid.UUID `json:"run_id"`
	Message string    `json:"message"`
}

// HandleCacheArea starts caching the tiles around the current position.
func (h *CacheHandler) HandleCacheArea(w http.ResponseWriter, r *http.Request) {
	center := h.nav.Position()
	if center == nil {
		h.notify(nav.LevelError, noPositionNotice)
		writeError(w, http.StatusConflict, noPositionNotice)
		return
	}

	region := h.region(*center, h.nav.Settings().Zoom)
	id, err := h.pf.Start(h.ctx, center, region, h.progress)
	switch {
	case errors.Is(err, tiles.ErrNoPosition):
		h.notify(nav.LevelError, noPositionNotice)
		writeError(w, http.StatusConflict, noPositionNotice)
		return
	case errors.Is(err, tiles.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		slog.Error("Failed to start tile caching", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start tile caching")
		return
	}

	h.notify(nav.LevelInfo, cachingNotice)
	writeJSON(w, http.StatusAccepted, CacheAreaResponse{RunID: id, Message: cachingNotice})
}

func (h *CacheHandler) progress(p tiles.Progress) {
	level := nav.LevelInfo
	if p.Done && !p.Canceled {
		level = nav.LevelSuccess
	}
	h.notify(level, p.Message())
}

func (h *CacheHandler) notify(level nav.Level, msg string) {
	if h.notifier != nil {
		h.notifier.Notify(nav.Status{Level: level, Message: msg})
	}
}

// CacheStatusResponse describes the last run and the stored tiles.
type CacheStatusResponse struct {
	tiles.Status
	Tiles  int         `json:"tiles"`
	ByZoom map[int]int `json:"by_zoom"`
}

// HandleStatus returns the caching state.
func (h *CacheHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := CacheStatusResponse{Status: h.pf.Status(), ByZoom: map[int]int{}}
	if h.counter != nil {
		ctx := r.Context()
		n, err := h.counter.CountTiles(ctx)
		if err != nil {
			slog.Error("Failed to count tiles", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to count tiles")
			return
		}
		byZoom, err := h.counter.CountTilesByZoom(ctx)
		if err != nil {
			slog.Error("Failed to count tiles", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to count tiles")
			return
		}
		resp.Tiles = n
		resp.ByZoom = byZoom
	}
	writeJSON(w, http.StatusOK, resp)
}
