package api

import (
	"net/http"
	"runtime"
	"sort"
	"sync"

	"headsup/pkg/tracker"
)

// StatsHandler serves provider usage counters and process diagnostics.
type StatsHandler struct {
	tracker *tracker.Tracker
	clients func() int

	mu     sync.Mutex
	maxMem uint64
}

// NewStatsHandler creates a StatsHandler. clients, when non-nil, reports the
// number of connected HUD clients.
func NewStatsHandler(t *tracker.Tracker, clients func() int) *StatsHandler {
	return &StatsHandler{tracker: t, clients: clients}
}

type ProviderStatsDTO struct {
	CacheHits     int64 `json:"cache_hits"`
	CacheMisses   int64 `json:"cache_misses"`
	APISuccess    int64 `json:"api_success"`
	APIZeroResult int64 `json:"api_zero"`
	APIFailures   int64 `json:"api_errors"`
	BytesFetched  int64 `json:"bytes_fetched"`
	HitRate       int64 `json:"hit_rate"`
}

type Diagnostics struct {
	MemoryMB    uint64 `json:"memory_mb"`
	MemoryMaxMB uint64 `json:"memory_max_mb"`
	Goroutines  int    `json:"goroutines"`
	Clients     int    `json:"clients"`
}

type StatsResponse struct {
	Diagnostics Diagnostics                 `json:"diagnostics"`
	Providers   map[string]ProviderStatsDTO `json:"providers"`
	Order       []string                    `json:"order"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	resp := StatsResponse{
		Diagnostics: h.diagnostics(),
		Providers:   make(map[string]ProviderStatsDTO, len(snapshot)),
	}

	for provider, stats := range snapshot {
		totalCache := stats.CacheHits + stats.CacheMisses
		hitRate := int64(0)
		if totalCache > 0 {
			hitRate = (stats.CacheHits * 100) / totalCache
		}
		resp.Providers[provider] = ProviderStatsDTO{
			CacheHits:     stats.CacheHits,
			CacheMisses:   stats.CacheMisses,
			APISuccess:    stats.APISuccess,
			APIZeroResult: stats.APIZeroResult,
			APIFailures:   stats.APIFailures,
			BytesFetched:  stats.BytesFetched,
			HitRate:       hitRate,
		}
		resp.Order = append(resp.Order, provider)
	}
	sort.Strings(resp.Order)

	writeJSON(w, http.StatusOK, resp)
}

func (h *StatsHandler) diagnostics() Diagnostics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	h.mu.Lock()
	if ms.Sys > h.maxMem {
		h.maxMem = ms.Sys
	}
	peak := h.maxMem
	h.mu.Unlock()

	d := Diagnostics{
		MemoryMB:    bToMb(ms.Sys),
		MemoryMaxMB: bToMb(peak),
		Goroutines:  runtime.NumGoroutine(),
	}
	if h.clients != nil {
		d.Clients = h.clients()
	}
	return d
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
