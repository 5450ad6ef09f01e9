package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headsup/pkg/config"
	"headsup/pkg/nav"
)

// countingEngine counts settings updates reaching the engine.
type countingEngine struct {
	*nav.Engine
	updates int
}

func (p *countingEngine) UpdateSettings(fn func(*nav.Settings)) error {
	p.updates++
	return p.Engine.UpdateSettings(fn)
}

func newConfigHandler(t *testing.T) (*ConfigHandler, *config.UnifiedProvider, *countingEngine) {
	t.Helper()
	prov := config.NewProvider(config.DefaultConfig(), newTestStore(t))
	e := &countingEngine{Engine: newEngine()}
	return NewConfigHandler(prov, e), prov, e
}

func doConfig(h *ConfigHandler, method, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/api/config", http.NoBody)
	} else {
		req = httptest.NewRequest(method, "/api/config", strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.HandleConfig(w, req)
	return w
}

func TestHandleGetConfig(t *testing.T) {
	h, _, _ := newConfigHandler(t)

	w := doConfig(h, http.MethodGet, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var got config.Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, config.Settings{
		GPSInterval: 0.1,
		MapZoom:     17,
		ShowSpeed:   true,
		ShowStreet:  true,
		ShowCompass: true,
		ShowTrail:   true,
		RotateMap:   true,
		SpeedUnit:   config.SpeedKMH,

		MapTransition:      0.5,
		RotationTransition: 0.8,
	}, got)
}

func TestHandleSetConfig(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		check      func(t *testing.T, prov *config.UnifiedProvider, e *countingEngine)
	}{
		{
			name:       "PartialUpdate",
			body:       `{"mapZoom": 15, "speedUnit": "mph", "showTrail": false}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, prov *config.UnifiedProvider, e *countingEngine) {
				s := prov.Settings(context.Background())
				assert.Equal(t, 15, s.MapZoom)
				assert.Equal(t, config.SpeedMPH, s.SpeedUnit)
				assert.False(t, s.ShowTrail)
				assert.True(t, s.RotateMap, "untouched fields keep their value")

				ns := e.Settings()
				assert.Equal(t, 15, ns.Zoom)
				assert.Equal(t, config.SpeedMPH, ns.SpeedUnit)
				assert.False(t, ns.TrailEnabled)
				assert.Equal(t, 1, e.updates)
			},
		},
		{
			name:       "Interval",
			body:       `{"gpsInterval": 1.5}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, prov *config.UnifiedProvider, e *countingEngine) {
				assert.Equal(t, 1500*time.Millisecond, prov.Interval(context.Background()))
				assert.Equal(t, 1500*time.Millisecond, e.Settings().Interval)
			},
		},
		{
			name:       "OutOfRange",
			body:       `{"mapZoom": 25}`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, prov *config.UnifiedProvider, e *countingEngine) {
				assert.Equal(t, 17, prov.MapZoom(context.Background()))
				assert.Equal(t, 0, e.updates)
			},
		},
		{
			name:       "Smoothness",
			body:       `{"mapTransitionDuration": 1.25, "rotationTransitionDuration": 0}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, prov *config.UnifiedProvider, e *countingEngine) {
				assert.Equal(t, 1250*time.Millisecond, prov.MapTransition(context.Background()))
				assert.Zero(t, prov.RotationTransition(context.Background()))

				ns := e.Settings()
				assert.Equal(t, 1250*time.Millisecond, ns.MapTransition)
				assert.Zero(t, ns.RotationTransition)
			},
		},
		{
			name:       "SmoothnessOutOfRange",
			body:       `{"rotationTransitionDuration": 9}`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, prov *config.UnifiedProvider, e *countingEngine) {
				assert.Equal(t, 800*time.Millisecond, prov.RotationTransition(context.Background()))
				assert.Equal(t, 800*time.Millisecond, e.Settings().RotationTransition)
			},
		},
		{
			name:       "UnknownUnit",
			body:       `{"speedUnit": "knots"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "BadJSON",
			body:       `{"mapZoom":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, prov, e := newConfigHandler(t)
			w := doConfig(h, http.MethodPut, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.check != nil {
				tt.check(t, prov, e)
			}
		})
	}
}

func TestHandleResetConfig(t *testing.T) {
	h, prov, e := newConfigHandler(t)

	require.Equal(t, http.StatusOK, doConfig(h, http.MethodPut, `{"mapZoom": 12, "rotateMap": false}`).Code)
	require.Equal(t, 12, e.Settings().Zoom)

	w := doConfig(h, http.MethodDelete, "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 17, prov.MapZoom(context.Background()))
	assert.Equal(t, 17, e.Settings().Zoom)
	assert.True(t, e.Settings().RotationEnabled)
}

func TestHandleConfig_Methods(t *testing.T) {
	h, _, _ := newConfigHandler(t)
	assert.Equal(t, http.StatusOK, doConfig(h, http.MethodOptions, "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, doConfig(h, http.MethodPatch, "").Code)
}
