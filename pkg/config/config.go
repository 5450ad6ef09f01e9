package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Request  RequestConfig  `yaml:"request"`
	Log      LogConfig      `yaml:"log"`
	DB       DBConfig       `yaml:"db"`
	Server   ServerConfig   `yaml:"server"`
	Position PositionConfig `yaml:"position"`
	Display  DisplayConfig  `yaml:"display"`
	Map      MapConfig      `yaml:"map"`
	Cache    CacheConfig    `yaml:"cache"`
	Geocode  GeocodeConfig  `yaml:"geocode"`
	Demo     DemoConfig     `yaml:"demo"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries   int           `yaml:"retries"`
	Timeout   Duration      `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	Backoff   BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// PositionConfig selects and tunes the positioning source.
type PositionConfig struct {
	Provider         string       `yaml:"provider"` // "browser", "serial", "demo"
	Interval         Duration     `yaml:"interval"`
	HighAccuracy     bool         `yaml:"high_accuracy"`
	Timeout          Duration     `yaml:"timeout"`
	MaximumAge       Duration     `yaml:"maximum_age"`
	SpeedFromElapsed bool         `yaml:"speed_from_elapsed"`
	Serial           SerialConfig `yaml:"serial"`
}

// SerialConfig holds settings for an NMEA GPS receiver.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// DisplayConfig holds the heads-up display toggles.
type DisplayConfig struct {
	ShowSpeed          bool      `yaml:"show_speed"`
	ShowStreet         bool      `yaml:"show_street"`
	ShowCompass        bool      `yaml:"show_compass"`
	ShowTrail          bool      `yaml:"show_trail"`
	RotateMap          bool      `yaml:"rotate_map"`
	SpeedUnit          SpeedUnit `yaml:"speed_unit"`
	TrailCapacity      int       `yaml:"trail_capacity"`
	MapTransition      Duration  `yaml:"map_transition"`
	RotationTransition Duration  `yaml:"rotation_transition"`
}

// MapConfig holds the base map settings.
type MapConfig struct {
	Zoom       int      `yaml:"zoom"`
	MaxZoom    int      `yaml:"max_zoom"`
	TileURL    string   `yaml:"tile_url"`
	Subdomains []string `yaml:"subdomains"`
}

// CacheConfig holds offline tile caching settings.
type CacheConfig struct {
	RadiusDeg     float64  `yaml:"radius_deg"`
	ZoomBelow     int      `yaml:"zoom_below"`
	ZoomAbove     int      `yaml:"zoom_above"`
	MinZoom       int      `yaml:"min_zoom"`
	MaxZoom       int      `yaml:"max_zoom"`
	Concurrency   int      `yaml:"concurrency"`
	ProgressEvery int      `yaml:"progress_every"`
	TTL           Duration `yaml:"ttl"`
}

// GeocodeConfig holds reverse geocoding settings.
type GeocodeConfig struct {
	BaseURL     string   `yaml:"base_url"`
	MinDistance Distance `yaml:"min_distance"`
	MemorySize  int      `yaml:"memory_size"`
	MemoryTTL   Duration `yaml:"memory_ttl"`
}

// DemoConfig holds settings for the simulated drive.
type DemoConfig struct {
	StartLat      float64 `yaml:"start_lat"`
	StartLon      float64 `yaml:"start_lon"`
	StartHeading  float64 `yaml:"start_heading"`
	StepDeg       float64 `yaml:"step_deg"`
	TurnJitterDeg float64 `yaml:"turn_jitter_deg"`
	MinSpeedKmh   float64 `yaml:"min_speed_kmh"`
	MaxSpeedKmh   float64 `yaml:"max_speed_kmh"`
	Seed          uint64  `yaml:"seed"` // 0 picks a random seed at startup
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path       string `yaml:"path"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Request: RequestConfig{
			Retries:   3,
			Timeout:   Duration(30 * time.Second),
			UserAgent: "NFS-Minimap/1.0",
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:       "logs/server.log",
				Level:      "INFO",
				MaxSizeMB:  10,
				MaxBackups: 3,
			},
			Requests: LogSettings{
				Path:       "logs/requests.log",
				Level:      "INFO",
				MaxSizeMB:  10,
				MaxBackups: 1,
			},
		},
		DB: DBConfig{
			Path: "data/headsup.db",
		},
		Server: ServerConfig{
			Address: "localhost:1990",
		},
		Position: PositionConfig{
			Provider:     "browser",
			Interval:     Duration(100 * time.Millisecond),
			HighAccuracy: true,
			Timeout:      Duration(5 * time.Second),
			MaximumAge:   0,
			Serial: SerialConfig{
				Baud: 4800,
			},
		},
		Display: DisplayConfig{
			ShowSpeed:          true,
			ShowStreet:         true,
			ShowCompass:        true,
			ShowTrail:          true,
			RotateMap:          true,
			SpeedUnit:          SpeedKMH,
			TrailCapacity:      100,
			MapTransition:      Duration(500 * time.Millisecond),
			RotationTransition: Duration(800 * time.Millisecond),
		},
		Map: MapConfig{
			Zoom:       17,
			MaxZoom:    19,
			TileURL:    "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
			Subdomains: []string{"a"},
		},
		Cache: CacheConfig{
			RadiusDeg:     0.02,
			ZoomBelow:     2,
			ZoomAbove:     2,
			MinZoom:       13,
			MaxZoom:       19,
			Concurrency:   2,
			ProgressEvery: 10,
			TTL:           Duration(30 * Day),
		},
		Geocode: GeocodeConfig{
			BaseURL:     "https://nominatim.openstreetmap.org",
			MinDistance: Distance(25),
			MemorySize:  256,
			MemoryTTL:   Duration(time.Hour),
		},
		Demo: DemoConfig{
			StartLat:      40.7128,
			StartLon:      -74.0060,
			StepDeg:       0.0001,
			TurnJitterDeg: 15,
			MinSpeedKmh:   40,
			MaxSpeedKmh:   80,
			Seed:          0,
		},
	}
}

// Load reads the configuration from path, creating it with defaults when it
// does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	// Env overrides are applied in memory only, never written back.
	if v := os.Getenv("HEADSUP_TILE_URL"); v != "" {
		cfg.Map.TileURL = v
	}
	if v := os.Getenv("HEADSUP_USER_AGENT"); v != "" {
		cfg.Request.UserAgent = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail far from the config file.
func (c *Config) Validate() error {
	switch c.Position.Provider {
	case "browser", "serial", "demo":
	default:
		return fmt.Errorf("invalid position.provider %q: must be browser, serial or demo", c.Position.Provider)
	}
	if c.Position.Interval <= 0 {
		return fmt.Errorf("position.interval must be positive")
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > c.Map.MaxZoom {
		return fmt.Errorf("map.zoom %d outside [0, %d]", c.Map.Zoom, c.Map.MaxZoom)
	}
	if c.Cache.MinZoom > c.Cache.MaxZoom {
		return fmt.Errorf("cache.min_zoom %d above cache.max_zoom %d", c.Cache.MinZoom, c.Cache.MaxZoom)
	}
	if c.Cache.RadiusDeg <= 0 {
		return fmt.Errorf("cache.radius_deg must be positive")
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Heads-up Minimap Configuration
# ------------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), nm (nautical miles), ft (feet)

`)
	data = append(header, data...)

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: browser, serial, demo\n${1}provider:"))

	reUnit := regexp.MustCompile(`(?m)^(\s+)speed_unit:`)
	data = reUnit.ReplaceAll(data, []byte("${1}# Options: kmh, mph\n${1}speed_unit:"))

	reTiles := regexp.MustCompile(`(?m)^(\s+)tile_url:`)
	data = reTiles.ReplaceAll(data, []byte("${1}# Placeholders: {s} subdomain, {z} zoom, {x}, {y}\n${1}tile_url:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
