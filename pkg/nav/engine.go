// Package nav turns a stream of position fixes into the heads-up view: map
// center, smoothed rotation, speed, heading and the recent trail.
package nav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"headsup/pkg/config"
	"headsup/pkg/geo"
	"headsup/pkg/logging"
	"headsup/pkg/position"
	"headsup/pkg/position/demo"
)

// DemoNotice is shown when the engine falls back to the simulator.
const DemoNotice = "GPS not available. Using demo mode."

const streetLookupTimeout = 10 * time.Second

// ErrNotRunning is returned by Restart before Start.
var ErrNotRunning = errors.New("tracking not started")

// Phase is the engine lifecycle state.
type Phase int

const (
	Uninitialized Phase = iota // no fix yet
	Tracking                   // at least one fix accepted
)

func (p Phase) String() string {
	if p == Tracking {
		return "tracking"
	}
	return "uninitialized"
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is a copy of the navigation state.
type State struct {
	Phase       Phase       `json:"phase"`
	Current     *geo.Point  `json:"current,omitempty"`
	Previous    *geo.Point  `json:"previous,omitempty"`
	HeadingDeg  float64     `json:"heading_deg"`
	RotationDeg float64     `json:"rotation_deg"`
	SpeedKmh    float64     `json:"speed_kmh"`
	Simulated   bool        `json:"simulated"`
	Street      string      `json:"street,omitempty"`
	Trail       []geo.Point `json:"trail"`
	LastFix     time.Time   `json:"last_fix,omitempty"`
	Running     bool        `json:"running"`
	Simulating  bool        `json:"simulating"`
}

// Deps are the collaborators of an Engine. Every field is optional.
type Deps struct {
	// Source produces fixes. Nil, or a Watch failing with
	// position.ErrUnavailable, switches the engine to the simulator.
	Source   position.Source
	Sink     ViewSink
	Notifier Notifier
	// Labeler enables street labels.
	Labeler Labeler
	// Simulator builds the fallback source for the given tick interval. It is
	// called at most once; later interval changes reach sources that have a
	// SetInterval method.
	Simulator func(interval time.Duration) position.Source
	Logger    *slog.Logger
}

type intervalSetter interface {
	SetInterval(d time.Duration)
}

// Engine is the navigation state machine. Fixes are applied one at a time
// and in order; Start, Stop and Restart are serialized against each other.
type Engine struct {
	deps   Deps
	logger *slog.Logger

	// mu guards the navigation state and settings. It is held for a whole
	// fix transition including the sink call.
	mu        sync.Mutex
	settings  Settings
	phase     Phase
	current   *geo.Point
	previous  *geo.Point
	heading   float64
	rotation  float64
	speedKmh  float64
	simulated bool
	street    string
	lastFix   time.Time
	trail     *geo.Trail

	// life guards the tracking session.
	life       sync.Mutex
	baseCtx    context.Context
	sub        position.Subscription
	cancel     context.CancelFunc
	pollDone   chan struct{}
	running    bool
	simulating atomic.Bool
	gen        atomic.Uint64
	sim        position.Source

	streetJob *DistanceJob
}

// NewEngine creates an engine in the Uninitialized phase.
func NewEngine(s Settings, deps Deps) *Engine {
	s = s.withDefaults()
	if deps.Sink == nil {
		deps.Sink = nopSink{}
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Simulator == nil {
		deps.Simulator = func(interval time.Duration) position.Source {
			cfg := demo.DefaultConfig()
			cfg.Interval = interval
			return demo.New(cfg)
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		deps:     deps,
		logger:   logger.With("component", "nav"),
		settings: s,
		trail:    geo.NewTrail(s.TrailCapacity),
	}
	e.streetJob = NewDistanceJob("StreetLabel", s.StreetMinDistance, e.lookupStreet)
	return e
}

// HandleFix applies one fix and emits the resulting view update. It returns
// false when the fix was rejected: an invalid coordinate, or a timestamp not
// newer than the last accepted fix (the same fix delivered by both the watch
// and the poll).
func (e *Engine) HandleFix(fix position.Fix) (ViewUpdate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !fix.Point.Valid() {
		e.logger.Warn("Rejected invalid fix", "lat", fix.Point.Lat, "lon", fix.Point.Lon)
		return ViewUpdate{}, false
	}
	if !fix.Timestamp.IsZero() && !e.lastFix.IsZero() && !fix.Timestamp.After(e.lastFix) {
		logging.Trace(e.logger, "Dropped stale fix", "ts", fix.Timestamp, "last", e.lastFix)
		return ViewUpdate{}, false
	}

	s := e.settings
	next := fix.Point

	// 1. shift
	if e.current != nil {
		prev := *e.current
		e.previous = &prev
	}

	// 2-3. speed and heading
	if fix.Simulated {
		if v, ok := fix.ReportedSpeed(); ok {
			e.speedKmh = v * 3.6
		}
		if h, ok := fix.ReportedHeading(); ok {
			e.heading = h
		}
	} else {
		if v, ok := fix.ReportedSpeed(); ok {
			e.speedKmh = v * 3.6
		} else if e.previous != nil {
			e.speedKmh = geo.Distance(*e.previous, next) / e.elapsedSeconds(s, fix) * 3.6
		}
		// Coincident points have no direction; keep the last heading.
		if e.previous != nil && *e.previous != next {
			e.heading = geo.Bearing(*e.previous, next)
		}
	}

	// 4. position
	e.current = &next
	e.phase = Tracking
	e.simulated = fix.Simulated
	if !fix.Timestamp.IsZero() {
		e.lastFix = fix.Timestamp
	}

	// 5. trail
	if s.TrailEnabled {
		e.trail.Push(next)
	}

	// 6. rotation
	if s.RotationEnabled {
		e.rotation = geo.SmoothRotation(e.rotation, e.heading)
	}

	// 7. view
	v := e.viewLocked(!fix.Simulated)
	e.deps.Sink.Apply(v)

	logging.Trace(e.logger, "Fix applied", "lat", next.Lat, "lon", next.Lon,
		"heading", e.heading, "speed_kmh", e.speedKmh, "simulated", fix.Simulated)

	if s.ShowStreet && e.deps.Labeler != nil {
		e.streetJob.Trigger(context.Background(), next, nil)
	}
	return v, true
}

// elapsedSeconds is the divisor for derived speed: the configured sampling
// interval, or the measured gap between fix timestamps when enabled and
// available.
func (e *Engine) elapsedSeconds(s Settings, fix position.Fix) float64 {
	if s.SpeedFromElapsed && !fix.Timestamp.IsZero() && !e.lastFix.IsZero() {
		if d := fix.Timestamp.Sub(e.lastFix); d > 0 {
			return d.Seconds()
		}
	}
	return s.Interval.Seconds()
}

func (e *Engine) viewLocked(animate bool) ViewUpdate {
	s := e.settings
	v := ViewUpdate{
		Zoom:               s.Zoom,
		Animate:            animate,
		MapTransition:      s.MapTransition,
		RotationTransition: s.RotationTransition,
		TrailVisible:       s.TrailEnabled,
		Speed:              s.SpeedUnit.FromKmh(e.speedKmh),
		SpeedUnit:          s.SpeedUnit,
		HeadingDeg:         e.heading,
		Simulated:          e.simulated,
	}
	if e.current != nil {
		v.Center = *e.current
	}
	if s.RotationEnabled {
		r := e.rotation
		v.RotationDeg = &r
	}
	if s.TrailEnabled {
		v.Trail = e.trail.Snapshot()
	}
	return v
}

// refreshLocked re-emits the view after a settings change.
func (e *Engine) refreshLocked() {
	if e.phase != Tracking {
		return
	}
	e.deps.Sink.Apply(e.viewLocked(false))
}

// State returns a snapshot of the navigation state.
func (e *Engine) State() State {
	e.life.Lock()
	running := e.running
	e.life.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	st := State{
		Phase:       e.phase,
		HeadingDeg:  e.heading,
		RotationDeg: e.rotation,
		SpeedKmh:    e.speedKmh,
		Simulated:   e.simulated,
		Street:      e.street,
		Trail:       e.trail.Snapshot(),
		LastFix:     e.lastFix,
		Running:     running,
		Simulating:  e.simulating.Load(),
	}
	if e.current != nil {
		c := *e.current
		st.Current = &c
	}
	if e.previous != nil {
		p := *e.previous
		st.Previous = &p
	}
	return st
}

// Position returns the current position, or nil before the first fix.
func (e *Engine) Position() *geo.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	c := *e.current
	return &c
}

// Settings returns the active settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// --- Toggles ---

// SetTrailEnabled shows or hides the trail. While hidden the trail stops
// growing; accumulated points are kept and shown again on re-enable.
func (e *Engine) SetTrailEnabled(on bool) {
	e.update(func(s *Settings) { s.TrailEnabled = on })
}

// SetRotationEnabled turns heading-up rotation on or off. The smoothed
// rotation baseline is kept while off.
func (e *Engine) SetRotationEnabled(on bool) {
	e.update(func(s *Settings) { s.RotationEnabled = on })
}

// SetSpeedUnit changes how speed is presented. Stored speed stays km/h.
func (e *Engine) SetSpeedUnit(u config.SpeedUnit) {
	e.update(func(s *Settings) { s.SpeedUnit = u })
}

// SetZoom changes the map zoom level.
func (e *Engine) SetZoom(z int) {
	e.update(func(s *Settings) { s.Zoom = z })
}

// SetShowStreet enables or disables street label lookups.
func (e *Engine) SetShowStreet(on bool) {
	e.update(func(s *Settings) { s.ShowStreet = on })
}

// SetInterval changes the sampling interval and restarts tracking when it
// is running.
func (e *Engine) SetInterval(d time.Duration) error {
	return e.UpdateSettings(func(s *Settings) { s.Interval = d })
}

// UpdateSettings applies fn to a copy of the settings and installs the
// result. A changed interval restarts tracking.
func (e *Engine) UpdateSettings(fn func(*Settings)) error {
	changed := e.update(fn)
	if !changed {
		return nil
	}
	err := e.Restart()
	if errors.Is(err, ErrNotRunning) {
		return nil
	}
	return err
}

// update applies fn and reports whether the interval changed.
func (e *Engine) update(fn func(*Settings)) (intervalChanged bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.settings
	next := old
	fn(&next)
	next = next.withDefaults()
	if next.TrailCapacity != old.TrailCapacity {
		// Capacity is fixed per trail; keep the newest points.
		t := geo.NewTrail(next.TrailCapacity)
		for _, p := range e.trail.Snapshot() {
			t.Push(p)
		}
		e.trail = t
	}
	if next.StreetMinDistance != old.StreetMinDistance {
		e.streetJob.SetThreshold(next.StreetMinDistance)
	}
	if next.ShowStreet && !old.ShowStreet {
		e.streetJob.Reset()
	}
	e.settings = next
	e.refreshLocked()
	return next.Interval != old.Interval
}

// --- Tracking lifecycle ---

// Start opens a continuous watch and a periodic poll on the source. Without
// a source, or when it reports position.ErrUnavailable, the simulator takes
// over. ctx bounds the whole tracking session, including later restarts.
func (e *Engine) Start(ctx context.Context) error {
	e.life.Lock()
	defer e.life.Unlock()
	if e.running {
		return nil
	}
	e.baseCtx = ctx
	return e.startLocked()
}

// Restart stops the watch and the poll, then starts a new pair with the
// current settings. No fix from the old pair is applied afterwards.
func (e *Engine) Restart() error {
	e.life.Lock()
	defer e.life.Unlock()
	if !e.running {
		return ErrNotRunning
	}
	e.stopLocked()
	return e.startLocked()
}

// Stop ends tracking and waits for the poll loop to exit.
func (e *Engine) Stop() {
	e.life.Lock()
	defer e.life.Unlock()
	e.stopLocked()
}

// Running reports whether tracking is active.
func (e *Engine) Running() bool {
	e.life.Lock()
	defer e.life.Unlock()
	return e.running
}

// Simulating reports whether fixes come from the simulator.
func (e *Engine) Simulating() bool {
	return e.simulating.Load()
}

func (e *Engine) startLocked() error {
	s := e.Settings()
	src := e.deps.Source

	var err error
	if src != nil && !e.simulating.Load() {
		err = e.openLocked(src, s, true)
		if err == nil {
			e.logger.Info("Tracking started", "interval", s.Interval)
			return nil
		}
		if !errors.Is(err, position.ErrUnavailable) {
			e.logger.Error("Failed to start tracking", "error", err)
			e.deps.Notifier.Notify(Status{Level: LevelError, Message: position.Message(err)})
			return err
		}
	}

	// One simulator per engine: restarts keep the drive going from where it is.
	if e.sim == nil {
		if err != nil {
			e.logger.Warn(DemoNotice, "error", err)
		} else {
			e.logger.Warn(DemoNotice)
		}
		e.deps.Notifier.Notify(Status{Level: LevelError, Message: DemoNotice})
		e.sim = e.deps.Simulator(s.Interval)
	} else if r, ok := e.sim.(intervalSetter); ok {
		r.SetInterval(s.Interval)
	}
	e.simulating.Store(true)
	// Simulated fixes arrive on the simulator's own timer; no poll.
	if err := e.openLocked(e.sim, s, false); err != nil {
		return fmt.Errorf("start simulator: %w", err)
	}
	return nil
}

func (e *Engine) openLocked(src position.Source, s Settings, poll bool) error {
	ctx, cancel := context.WithCancel(e.baseCtx)
	gen := e.gen.Add(1)

	onFix := func(f position.Fix) {
		if e.gen.Load() != gen {
			return
		}
		e.HandleFix(f)
	}
	onErr := func(err error) {
		if e.gen.Load() != gen {
			return
		}
		e.handleError(err)
	}

	sub, err := src.Watch(ctx, s.Position, onFix, onErr)
	if err != nil {
		cancel()
		return err
	}

	done := make(chan struct{})
	if poll {
		go e.poll(ctx, src, s, done, onFix, onErr)
	} else {
		close(done)
	}

	e.sub = sub
	e.cancel = cancel
	e.pollDone = done
	e.running = true
	return nil
}

func (e *Engine) stopLocked() {
	if !e.running {
		return
	}
	// Invalidate callbacks first so nothing from this pair lands after Stop.
	e.gen.Add(1)
	e.sub.Stop()
	e.cancel()
	<-e.pollDone

	e.sub = nil
	e.cancel = nil
	e.pollDone = nil
	e.running = false
	e.logger.Info("Tracking stopped")
}

func (e *Engine) poll(ctx context.Context, src position.Source, s Settings, done chan<- struct{}, onFix func(position.Fix), onErr func(error)) {
	defer close(done)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fix, err := src.Current(ctx, s.Position)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				onErr(err)
				continue
			}
			onFix(fix)
		}
	}
}

// handleError surfaces a per-fix failure. State is left unchanged. A source
// that turns out to have no positioning at all hands over to the simulator.
func (e *Engine) handleError(err error) {
	if errors.Is(err, position.ErrUnavailable) {
		// Callbacks may run on the poll goroutine, which a stop waits for.
		go e.switchToSimulation()
		return
	}
	e.logger.Warn("Position error", "error", err)
	e.deps.Notifier.Notify(Status{Level: LevelError, Message: position.Message(err)})
}

func (e *Engine) switchToSimulation() {
	e.life.Lock()
	defer e.life.Unlock()
	if !e.running || e.simulating.Load() {
		return
	}
	e.stopLocked()
	e.simulating.Store(true)
	if err := e.startLocked(); err != nil {
		e.logger.Error("Failed to start simulation", "error", err)
	}
}

// --- Street label ---

func (e *Engine) lookupStreet(ctx context.Context, p geo.Point) {
	ctx, cancel := context.WithTimeout(ctx, streetLookupTimeout)
	defer cancel()

	label, err := e.deps.Labeler.Label(ctx, p)
	if err != nil {
		e.logger.Warn("Street lookup failed", "error", err)
		return
	}

	e.mu.Lock()
	changed := label != e.street
	e.street = label
	e.mu.Unlock()

	if changed {
		e.logger.Debug("Street changed", "street", label)
		e.deps.Notifier.StreetChanged(label)
	}
}

// WaitStreet blocks until no street lookup is in flight or ctx is done.
func (e *Engine) WaitStreet(ctx context.Context) error {
	t := time.NewTicker(5 * time.Millisecond)
	defer t.Stop()
	for e.streetJob.Running() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}
