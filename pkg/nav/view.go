package nav

import (
	"context"
	"time"

	"headsup/pkg/config"
	"headsup/pkg/geo"
)

// ViewUpdate is what the map widget should show after a fix or a settings
// change.
type ViewUpdate struct {
	Center             geo.Point
	Zoom               int
	Animate            bool
	MapTransition      time.Duration
	RotationDeg        *float64 // nil: rotation disabled, show north up
	RotationTransition time.Duration
	Trail              []geo.Point
	TrailVisible       bool
	Speed              float64 // in SpeedUnit
	SpeedUnit          config.SpeedUnit
	HeadingDeg         float64
	Simulated          bool
}

// Level classifies a Status.
type Level string

const (
	LevelInfo    Level = "info"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// Status is a transient notice for the driver.
type Status struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// ViewSink receives view updates, in order.
type ViewSink interface {
	Apply(ViewUpdate)
}

// Notifier receives status notices and street label changes.
type Notifier interface {
	Notify(Status)
	StreetChanged(label string)
}

// Labeler resolves a position to a street label.
type Labeler interface {
	Label(ctx context.Context, p geo.Point) (string, error)
}

type nopSink struct{}

func (nopSink) Apply(ViewUpdate) {}

type nopNotifier struct{}

func (nopNotifier) Notify(Status)        {}
func (nopNotifier) StreetChanged(string) {}
