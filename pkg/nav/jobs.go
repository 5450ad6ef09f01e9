package nav

import (
	"context"
	"sync"
	"sync/atomic"

	"headsup/pkg/geo"
)

// BaseJob provides atomic running state to prevent re-entry.
type BaseJob struct {
	name    string
	running int32 // 1 if running, 0 otherwise
}

func NewBaseJob(name string) BaseJob {
	return BaseJob{name: name}
}

func (b *BaseJob) Name() string {
	return b.name
}

// TryLock attempts to set running to 1. Returns true if successful.
func (b *BaseJob) TryLock() bool {
	return atomic.CompareAndSwapInt32(&b.running, 0, 1)
}

func (b *BaseJob) Unlock() {
	atomic.StoreInt32(&b.running, 0)
}

// Running reports whether an action is in flight.
func (b *BaseJob) Running() bool {
	return atomic.LoadInt32(&b.running) == 1
}

// DistanceJob runs an action asynchronously once the vehicle has moved at
// least threshold meters since the last run. At most one run is in flight.
type DistanceJob struct {
	BaseJob
	mu        sync.Mutex
	lastPos   geo.Point
	threshold float64 // meters
	firstRun  bool
	action    func(context.Context, geo.Point)
}

func NewDistanceJob(name string, thresholdMeters float64, action func(context.Context, geo.Point)) *DistanceJob {
	return &DistanceJob{
		BaseJob:   NewBaseJob(name),
		threshold: thresholdMeters,
		action:    action,
		firstRun:  true,
	}
}

// SetThreshold changes the minimum distance between runs.
func (j *DistanceJob) SetThreshold(meters float64) {
	j.mu.Lock()
	j.threshold = meters
	j.mu.Unlock()
}

func (j *DistanceJob) ShouldFire(p geo.Point) bool {
	if j.Running() {
		return false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.firstRun {
		return true
	}
	return geo.Distance(j.lastPos, p) >= j.threshold
}

// Trigger starts the action in a goroutine when ShouldFire holds and no run
// is in flight. done, when non-nil, is closed after the action returns.
func (j *DistanceJob) Trigger(ctx context.Context, p geo.Point, done chan<- struct{}) bool {
	if !j.ShouldFire(p) || !j.TryLock() {
		return false
	}
	j.mu.Lock()
	j.lastPos = p
	j.firstRun = false
	j.mu.Unlock()

	go func() {
		defer j.Unlock()
		if done != nil {
			defer close(done)
		}
		j.action(ctx, p)
	}()
	return true
}

// Reset makes the next ShouldFire succeed regardless of distance.
func (j *DistanceJob) Reset() {
	j.mu.Lock()
	j.firstRun = true
	j.mu.Unlock()
}
