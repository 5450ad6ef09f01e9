package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"headsup/pkg/config"
	"headsup/pkg/geo"
	"headsup/pkg/hub"
	"headsup/pkg/position"
	"headsup/pkg/position/demo"
	"headsup/pkg/position/nmea"
)

// initPositionSource picks the fix source named by position.provider. A nil
// source makes the engine drive itself from the simulator. The returned func
// releases the source.
func initPositionSource(ctx context.Context, cfg *config.Config, h *hub.Hub) (position.Source, func()) {
	switch cfg.Position.Provider {
	case "demo":
		slog.Info("Position Source: Demo")
		return nil, func() {}

	case "serial":
		slog.Info("Position Source: Serial NMEA", "port", cfg.Position.Serial.Port, "baud", cfg.Position.Serial.Baud)
		rx, err := nmea.Open(cfg.Position.Serial.Port, cfg.Position.Serial.Baud)
		if err != nil {
			slog.Error("Failed to open GPS receiver, falling back to Demo", "error", err)
			return nil, func() {}
		}
		go func() {
			if err := rx.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
				slog.Error("GPS receiver stopped", "error", err)
			}
		}()
		return rx, func() { _ = rx.Close() }

	default:
		slog.Info("Position Source: Browser")
		return h, func() {}
	}
}

// demoFactory builds the simulator the engine falls back to.
func demoFactory(d config.DemoConfig) func(time.Duration) position.Source {
	return func(interval time.Duration) position.Source {
		seed := d.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		return demo.New(demo.Config{
			Start:         geo.Point{Lat: d.StartLat, Lon: d.StartLon},
			StartHeading:  d.StartHeading,
			Interval:      interval,
			StepDeg:       d.StepDeg,
			TurnJitterDeg: d.TurnJitterDeg,
			MinSpeedKmh:   d.MinSpeedKmh,
			MaxSpeedKmh:   d.MaxSpeedKmh,
			Seed:          seed,
		})
	}
}
