package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headsup/pkg/tracker"
)

func TestStatsHandler(t *testing.T) {
	tr := tracker.New()
	tr.TrackCacheHit("nominatim")
	tr.TrackCacheHit("nominatim")
	tr.TrackCacheHit("nominatim")
	tr.TrackCacheMiss("nominatim")
	tr.TrackAPISuccess("nominatim")
	tr.TrackAPIZero("nominatim")
	tr.TrackAPISuccess("osm-tiles")
	tr.TrackBytes("osm-tiles", 2048)

	h := NewStatsHandler(tr, func() int { return 2 })
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, []string{"nominatim", "osm-tiles"}, resp.Order)
	nom := resp.Providers["nominatim"]
	assert.Equal(t, int64(3), nom.CacheHits)
	assert.Equal(t, int64(1), nom.CacheMisses)
	assert.Equal(t, int64(75), nom.HitRate)
	assert.Equal(t, int64(1), nom.APIZeroResult)

	tiles := resp.Providers["osm-tiles"]
	assert.Equal(t, int64(0), tiles.HitRate)
	assert.Equal(t, int64(2048), tiles.BytesFetched)

	assert.Equal(t, 2, resp.Diagnostics.Clients)
	assert.Positive(t, resp.Diagnostics.Goroutines)
	assert.GreaterOrEqual(t, resp.Diagnostics.MemoryMaxMB, resp.Diagnostics.MemoryMB)
}
