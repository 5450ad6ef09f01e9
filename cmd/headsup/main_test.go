package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headsup/pkg/config"
	"headsup/pkg/hub"
	"headsup/pkg/position/demo"
	"headsup/pkg/probe"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "headsup.yaml")

	cfg := config.DefaultConfig()
	cfg.Server.Address = "localhost:0" // 0 lets the OS choose a free port
	cfg.Position.Provider = "demo"
	cfg.DB.Path = filepath.Join(dir, "headsup.db")
	cfg.Log.Server.Path = filepath.Join(dir, "logs", "server.log")
	cfg.Log.Requests.Path = filepath.Join(dir, "logs", "requests.log")
	cfg.Display.ShowStreet = false
	require.NoError(t, config.Save(cfgPath, cfg))

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	// Cancel quickly to verify the startup and shutdown sequence.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, run(ctx, cfgPath))

	_, err := os.Stat(cfg.DB.Path)
	assert.NoError(t, err)
	_, err = os.Stat(cfg.Log.Server.Path)
	assert.NoError(t, err)
}

func TestRun_BadConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "headsup.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("position:\n  provider: carrier-pigeon\n"), 0o644))

	err := run(context.Background(), cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestInitPositionSource(t *testing.T) {
	h := hub.New(nil)
	defer h.Close()

	tests := []struct {
		provider string
		port     string
		wantHub  bool
	}{
		{provider: "browser", wantHub: true},
		{provider: "demo"},
		// An unusable port falls back to the simulator.
		{provider: "serial", port: filepath.Join(t.TempDir(), "no-such-tty")},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Position.Provider = tt.provider
			cfg.Position.Serial.Port = tt.port

			src, closeFn := initPositionSource(context.Background(), cfg, h)
			defer closeFn()
			if tt.wantHub {
				assert.Same(t, h, src)
			} else {
				assert.Nil(t, src)
			}
		})
	}
}

func TestDemoFactory(t *testing.T) {
	d := config.DefaultConfig().Demo
	d.Seed = 7
	d.StartLat, d.StartLon = 48.8566, 2.3522

	a := demoFactory(d)(250 * time.Millisecond).(*demo.Simulator)
	b := demoFactory(d)(250 * time.Millisecond).(*demo.Simulator)
	assert.Equal(t, 250*time.Millisecond, a.Interval())

	fa, fb := a.Next(), b.Next()
	assert.Equal(t, fa.Point, fb.Point, "same seed, same walk")
	assert.InDelta(t, 48.8566, fa.Point.Lat, 0.001)
	assert.True(t, fa.Simulated)
}

func TestStartupProbes(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DB.Path = filepath.Join(dir, "headsup.db")

	dbConn, st, err := initDB(cfg)
	require.NoError(t, err)
	defer dbConn.Close()

	svcs := initServices(cfg, st)
	defer svcs.Hub.Close()
	prov := config.NewProvider(cfg, st)

	results := probe.Run(context.Background(), startupProbes(dbConn, svcs, prov))
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Passed(), r.Probe.Name)
	}

	svcs.TileSource.URLTemplate = "https://tiles.example.com/{z}/{x}.png"
	err = probe.AnalyzeResults(probe.Run(context.Background(), startupProbes(dbConn, svcs, prov)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Tile Source")
}
