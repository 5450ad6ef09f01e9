package nav

import (
	"time"

	"headsup/pkg/config"
	"headsup/pkg/position"
)

// Settings are the read-only inputs of the engine. They are replaced as a
// whole by Engine.UpdateSettings.
type Settings struct {
	Interval           time.Duration
	Zoom               int
	TrailEnabled       bool
	RotationEnabled    bool
	SpeedUnit          config.SpeedUnit
	TrailCapacity      int
	MapTransition      time.Duration
	RotationTransition time.Duration
	ShowStreet         bool
	StreetMinDistance  float64 // meters between reverse geocoding lookups
	SpeedFromElapsed   bool    // derive speed from fix timestamps instead of Interval
	Position           position.Options
}

// DefaultSettings mirrors config.DefaultConfig.
func DefaultSettings() Settings {
	return FromConfig(config.DefaultConfig(), nil)
}

// FromConfig builds engine settings from the YAML config, with the settings
// panel values in panel taking precedence when non-nil.
func FromConfig(cfg *config.Config, panel *config.Settings) Settings {
	s := Settings{
		Interval:           time.Duration(cfg.Position.Interval),
		Zoom:               cfg.Map.Zoom,
		TrailEnabled:       cfg.Display.ShowTrail,
		RotationEnabled:    cfg.Display.RotateMap,
		SpeedUnit:          cfg.Display.SpeedUnit,
		TrailCapacity:      cfg.Display.TrailCapacity,
		MapTransition:      time.Duration(cfg.Display.MapTransition),
		RotationTransition: time.Duration(cfg.Display.RotationTransition),
		ShowStreet:         cfg.Display.ShowStreet,
		StreetMinDistance:  float64(cfg.Geocode.MinDistance),
		SpeedFromElapsed:   cfg.Position.SpeedFromElapsed,
		Position: position.Options{
			HighAccuracy: cfg.Position.HighAccuracy,
			Timeout:      time.Duration(cfg.Position.Timeout),
			MaximumAge:   time.Duration(cfg.Position.MaximumAge),
		},
	}
	if panel != nil {
		s = s.WithPanel(*panel)
	}
	return s
}

// WithPanel returns s with the settings panel values applied.
func (s Settings) WithPanel(p config.Settings) Settings {
	if d := p.Interval(); d > 0 {
		s.Interval = d
	}
	if p.MapZoom > 0 {
		s.Zoom = p.MapZoom
	}
	s.TrailEnabled = p.ShowTrail
	s.RotationEnabled = p.RotateMap
	s.ShowStreet = p.ShowStreet
	if p.SpeedUnit != "" {
		s.SpeedUnit = p.SpeedUnit
	}
	s.MapTransition = p.MapTransitionTime()
	s.RotationTransition = p.RotationTransitionTime()
	return s
}

func (s Settings) withDefaults() Settings {
	d := config.DefaultConfig()
	if s.Interval <= 0 {
		s.Interval = time.Duration(d.Position.Interval)
	}
	if s.TrailCapacity <= 0 {
		s.TrailCapacity = d.Display.TrailCapacity
	}
	if s.SpeedUnit == "" {
		s.SpeedUnit = config.SpeedKMH
	}
	if s.Position.Timeout <= 0 {
		s.Position.Timeout = position.DefaultOptions().Timeout
	}
	return s
}
