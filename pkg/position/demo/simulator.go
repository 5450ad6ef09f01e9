// Package demo generates a synthetic drive for when no real positioning is
// available.
package demo

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"headsup/pkg/geo"
	"headsup/pkg/position"
)

// Config holds the simulated drive parameters.
type Config struct {
	Start         geo.Point
	StartHeading  float64
	Interval      time.Duration
	StepDeg       float64 // degrees of lat/lon moved per tick
	TurnJitterDeg float64 // heading changes by up to +/- this per tick
	MinSpeedKmh   float64
	MaxSpeedKmh   float64
	Seed          uint64
}

// DefaultConfig starts in lower Manhattan heading north.
func DefaultConfig() Config {
	return Config{
		Start:         geo.Point{Lat: 40.7128, Lon: -74.0060},
		Interval:      100 * time.Millisecond,
		StepDeg:       0.0001,
		TurnJitterDeg: 15,
		MinSpeedKmh:   40,
		MaxSpeedKmh:   80,
		Seed:          1,
	}
}

// Simulator implements position.Source with a random walk. The same seed
// always produces the same sequence of fixes.
type Simulator struct {
	mu      sync.Mutex
	cfg     Config
	rng     *rand.Rand
	pos     geo.Point
	heading float64
	last    *position.Fix
	now     func() time.Time
}

// New creates a simulator. Zero fields of cfg fall back to DefaultConfig.
func New(cfg Config) *Simulator {
	def := DefaultConfig()
	if cfg.Start == (geo.Point{}) {
		cfg.Start = def.Start
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.StepDeg <= 0 {
		cfg.StepDeg = def.StepDeg
	}
	if cfg.TurnJitterDeg < 0 {
		cfg.TurnJitterDeg = 0
	}
	if cfg.MaxSpeedKmh <= 0 {
		cfg.MinSpeedKmh, cfg.MaxSpeedKmh = def.MinSpeedKmh, def.MaxSpeedKmh
	}
	if cfg.MinSpeedKmh > cfg.MaxSpeedKmh {
		cfg.MinSpeedKmh = cfg.MaxSpeedKmh
	}

	return &Simulator{
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		pos:     cfg.Start,
		heading: wrap(cfg.StartHeading),
		now:     time.Now,
	}
}

// Interval returns the tick period.
func (s *Simulator) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Interval
}

// SetInterval changes the tick period for later Watch calls. The walk itself
// continues from its current position.
func (s *Simulator) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Interval = d
}

// Next advances the walk by one tick and returns the resulting fix.
func (s *Simulator) Next() position.Fix {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.heading = wrap(s.heading + (s.rng.Float64()*2-1)*s.cfg.TurnJitterDeg)
	rad := s.heading * math.Pi / 180
	s.pos.Lat += s.cfg.StepDeg * math.Cos(rad)
	s.pos.Lon += s.cfg.StepDeg * math.Sin(rad)

	kmh := s.cfg.MinSpeedKmh + s.rng.Float64()*(s.cfg.MaxSpeedKmh-s.cfg.MinSpeedKmh)
	speed := kmh / 3.6
	heading := s.heading

	fix := position.Fix{
		Point:     s.pos,
		Speed:     &speed,
		Heading:   &heading,
		Timestamp: s.now(),
		Simulated: true,
	}
	s.last = &fix
	return fix
}

// Current implements position.Source. It returns the last generated fix, or
// generates the first one.
func (s *Simulator) Current(_ context.Context, _ position.Options) (position.Fix, error) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last != nil {
		return *last, nil
	}
	return s.Next(), nil
}

// Watch implements position.Source, emitting one fix per interval.
func (s *Simulator) Watch(ctx context.Context, _ position.Options, onFix func(position.Fix), _ func(error)) (position.Subscription, error) {
	interval := s.Interval()
	stopCh := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				fix := s.Next()
				if onFix != nil {
					onFix(fix)
				}
			}
		}
	}()

	return position.NewSubscription(func() {
		close(stopCh)
		wg.Wait()
	}), nil
}

func wrap(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
