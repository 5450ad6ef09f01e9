package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"headsup/pkg/store"
)

// Provider defines the interface for accessing unified configuration.
type Provider interface {
	Interval(ctx context.Context) time.Duration
	MapZoom(ctx context.Context) int
	ShowSpeed(ctx context.Context) bool
	ShowStreet(ctx context.Context) bool
	ShowCompass(ctx context.Context) bool
	ShowTrail(ctx context.Context) bool
	RotateMap(ctx context.Context) bool
	SpeedUnit(ctx context.Context) SpeedUnit
	MapTransition(ctx context.Context) time.Duration
	RotationTransition(ctx context.Context) time.Duration

	// Settings returns every settings panel value at once.
	Settings(ctx context.Context) Settings

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// Settings is the settings panel as the UI sees it. GPSInterval and the
// transition durations are seconds.
type Settings struct {
	GPSInterval        float64   `json:"gpsInterval"`
	MapZoom            int       `json:"mapZoom"`
	ShowSpeed          bool      `json:"showSpeed"`
	ShowStreet         bool      `json:"showStreet"`
	ShowCompass        bool      `json:"showCompass"`
	ShowTrail          bool      `json:"showTrail"`
	RotateMap          bool      `json:"rotateMap"`
	SpeedUnit          SpeedUnit `json:"speedUnit"`
	MapTransition      float64   `json:"mapTransitionDuration"`
	RotationTransition float64   `json:"rotationTransitionDuration"`
}

// MaxTransition is the longest movement or rotation smoothing the panel
// accepts.
const MaxTransition = 5 * time.Second

// Interval returns GPSInterval as a duration.
func (s Settings) Interval() time.Duration {
	return seconds(s.GPSInterval)
}

// MapTransitionTime returns MapTransition as a duration.
func (s Settings) MapTransitionTime() time.Duration {
	return seconds(s.MapTransition)
}

// RotationTransitionTime returns RotationTransition as a duration.
func (s Settings) RotationTransitionTime() time.Duration {
	return seconds(s.RotationTransition)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// ErrInvalidSetting is returned when a settings value is out of range.
var ErrInvalidSetting = errors.New("invalid setting")

// Validate checks the values against the limits of the map.
func (s Settings) Validate(maxZoom int) error {
	if math.IsNaN(s.GPSInterval) || s.GPSInterval < 0.05 || s.GPSInterval > 60 {
		return fmt.Errorf("%w: gpsInterval %v must be within [0.05, 60] seconds", ErrInvalidSetting, s.GPSInterval)
	}
	if s.MapZoom < 1 || s.MapZoom > maxZoom {
		return fmt.Errorf("%w: mapZoom %d must be within [1, %d]", ErrInvalidSetting, s.MapZoom, maxZoom)
	}
	if _, err := ParseSpeedUnit(string(s.SpeedUnit)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	limit := MaxTransition.Seconds()
	for name, v := range map[string]float64{
		"mapTransitionDuration":      s.MapTransition,
		"rotationTransitionDuration": s.RotationTransition,
	} {
		if math.IsNaN(v) || v < 0 || v > limit {
			return fmt.Errorf("%w: %s %v must be within [0, %v] seconds", ErrInvalidSetting, name, v, limit)
		}
	}
	return nil
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

// --- Implementations ---

func (p *UnifiedProvider) Interval(ctx context.Context) time.Duration {
	return p.getDuration(ctx, KeyGPSInterval, time.Duration(p.base.Position.Interval))
}

func (p *UnifiedProvider) MapZoom(ctx context.Context) int {
	return p.getInt(ctx, KeyMapZoom, p.base.Map.Zoom)
}

func (p *UnifiedProvider) ShowSpeed(ctx context.Context) bool {
	return p.getBool(ctx, KeyShowSpeed, p.base.Display.ShowSpeed)
}

func (p *UnifiedProvider) ShowStreet(ctx context.Context) bool {
	return p.getBool(ctx, KeyShowStreet, p.base.Display.ShowStreet)
}

func (p *UnifiedProvider) ShowCompass(ctx context.Context) bool {
	return p.getBool(ctx, KeyShowCompass, p.base.Display.ShowCompass)
}

func (p *UnifiedProvider) ShowTrail(ctx context.Context) bool {
	return p.getBool(ctx, KeyShowTrail, p.base.Display.ShowTrail)
}

func (p *UnifiedProvider) RotateMap(ctx context.Context) bool {
	return p.getBool(ctx, KeyRotateMap, p.base.Display.RotateMap)
}

func (p *UnifiedProvider) SpeedUnit(ctx context.Context) SpeedUnit {
	fallback := p.base.Display.SpeedUnit
	if fallback == "" {
		fallback = SpeedKMH
	}
	u, err := ParseSpeedUnit(p.getString(ctx, KeySpeedUnit, string(fallback)))
	if err != nil {
		return fallback
	}
	return u
}

func (p *UnifiedProvider) MapTransition(ctx context.Context) time.Duration {
	return p.getTransition(ctx, KeyMapTransition, time.Duration(p.base.Display.MapTransition))
}

func (p *UnifiedProvider) RotationTransition(ctx context.Context) time.Duration {
	return p.getTransition(ctx, KeyRotationTransition, time.Duration(p.base.Display.RotationTransition))
}

func (p *UnifiedProvider) Settings(ctx context.Context) Settings {
	return Settings{
		GPSInterval:        p.Interval(ctx).Seconds(),
		MapZoom:            p.MapZoom(ctx),
		ShowSpeed:          p.ShowSpeed(ctx),
		ShowStreet:         p.ShowStreet(ctx),
		ShowCompass:        p.ShowCompass(ctx),
		ShowTrail:          p.ShowTrail(ctx),
		RotateMap:          p.RotateMap(ctx),
		SpeedUnit:          p.SpeedUnit(ctx),
		MapTransition:      p.MapTransition(ctx).Seconds(),
		RotationTransition: p.RotationTransition(ctx).Seconds(),
	}
}

// SaveSettings validates s and persists every value.
func (p *UnifiedProvider) SaveSettings(ctx context.Context, s Settings) error {
	if err := s.Validate(p.base.Map.MaxZoom); err != nil {
		return err
	}
	if p.store == nil {
		return errors.New("no state store configured")
	}

	values := map[string]string{
		KeyGPSInterval: s.Interval().String(),
		KeyMapZoom:     strconv.Itoa(s.MapZoom),
		KeyShowSpeed:   strconv.FormatBool(s.ShowSpeed),
		KeyShowStreet:  strconv.FormatBool(s.ShowStreet),
		KeyShowCompass: strconv.FormatBool(s.ShowCompass),
		KeyShowTrail:   strconv.FormatBool(s.ShowTrail),
		KeyRotateMap:   strconv.FormatBool(s.RotateMap),
		KeySpeedUnit:   string(s.SpeedUnit),

		KeyMapTransition:      s.MapTransitionTime().String(),
		KeyRotationTransition: s.RotationTransitionTime().String(),
	}
	for _, key := range SettingsKeys {
		if err := p.store.SetState(ctx, key, values[key]); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return nil
}

// ResetSettings removes every persisted override so the YAML values apply.
func (p *UnifiedProvider) ResetSettings(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	for _, key := range SettingsKeys {
		if err := p.store.DeleteState(ctx, key); err != nil {
			return fmt.Errorf("reset %s: %w", key, err)
		}
	}
	return nil
}

// --- Helpers ---

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getInt(ctx context.Context, key string, fallback int) int {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				return i
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getBool(ctx context.Context, key string, fallback bool) bool {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val == "true"
		}
	}
	return fallback
}

// getTransition is getDuration for values where zero (no smoothing) is valid.
func (p *UnifiedProvider) getTransition(ctx context.Context, key string, fallback time.Duration) time.Duration {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if dur, err := ParseDuration(val); err == nil && dur >= 0 {
				return dur
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getDuration(ctx context.Context, key string, fallback time.Duration) time.Duration {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if dur, err := ParseDuration(val); err == nil && dur > 0 {
				return dur
			}
		}
	}
	return fallback
}
