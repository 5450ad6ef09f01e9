// Package position defines the contract between the navigation engine and the
// things that produce position fixes: a browser geolocation feed, a serial GPS
// receiver, or the demo simulator.
package position

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"headsup/pkg/geo"
)

var (
	// ErrUnavailable means no positioning capability exists at all.
	ErrUnavailable = errors.New("position source unavailable")
	// ErrPermissionDenied means the user refused location access.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrPositionUnavailable means the receiver could not determine a position.
	ErrPositionUnavailable = errors.New("position unavailable")
	// ErrTimeout means no fix arrived within Options.Timeout.
	ErrTimeout = errors.New("position request timed out")
)

// Fix is one position report.
type Fix struct {
	Point     geo.Point `json:"point"`
	Speed     *float64  `json:"speed,omitempty"`   // m/s, nil when not reported
	Heading   *float64  `json:"heading,omitempty"` // degrees true, nil when not reported
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Simulated bool      `json:"simulated,omitempty"`
}

// ReportedSpeed returns the reported speed in m/s when it is present,
// non-negative and finite also in km/h.
func (f Fix) ReportedSpeed() (float64, bool) {
	if f.Speed == nil {
		return 0, false
	}
	v := *f.Speed
	if math.IsNaN(v) || math.IsInf(v*3.6, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// ReportedHeading returns the reported heading in [0, 360) when present.
func (f Fix) ReportedHeading() (float64, bool) {
	if f.Heading == nil {
		return 0, false
	}
	v := *f.Heading
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	v = math.Mod(v, 360)
	if v < 0 {
		v += 360
	}
	return v, true
}

// Options mirror the knobs a geolocation request accepts.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration // zero waits until the context is done
	MaximumAge   time.Duration // zero always demands a fresh fix
}

// DefaultOptions returns high accuracy, a 5s timeout and no cached fixes.
func DefaultOptions() Options {
	return Options{
		HighAccuracy: true,
		Timeout:      5 * time.Second,
		MaximumAge:   0,
	}
}

// Subscription is a handle to a continuous watch.
type Subscription interface {
	// Stop ends the watch. It is safe to call more than once.
	Stop()
}

// Source produces fixes.
type Source interface {
	// Watch delivers every new fix to onFix and every failure to onErr until
	// the subscription is stopped or ctx is done.
	Watch(ctx context.Context, opts Options, onFix func(Fix), onErr func(error)) (Subscription, error)
	// Current returns a single fix, honoring opts.MaximumAge and opts.Timeout.
	Current(ctx context.Context, opts Options) (Fix, error)
}

// StopFunc adapts a function to Subscription, running it at most once.
type StopFunc struct {
	once sync.Once
	fn   func()
}

// NewSubscription wraps fn as a Subscription.
func NewSubscription(fn func()) *StopFunc {
	return &StopFunc{fn: fn}
}

// Stop runs the wrapped function the first time it is called.
func (s *StopFunc) Stop() {
	s.once.Do(func() {
		if s.fn != nil {
			s.fn()
		}
	})
}

// Message renders a positioning error as the notice shown to the driver.
func Message(err error) string {
	msg := "GPS Error: "
	switch {
	case errors.Is(err, ErrPermissionDenied):
		msg += "Permission denied. Please allow location access."
	case errors.Is(err, ErrPositionUnavailable):
		msg += "Position unavailable."
	case errors.Is(err, ErrTimeout):
		msg += "Request timeout."
	default:
		msg += "Unknown error."
	}
	return msg
}
