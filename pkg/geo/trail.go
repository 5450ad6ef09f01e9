package geo

import "sync"

// Trail is a bounded FIFO of recent positions. When full, pushing a new point
// evicts the oldest one.
type Trail struct {
	mu       sync.RWMutex
	points   []Point
	capacity int
}

// NewTrail creates a trail holding at most capacity points (minimum 1).
func NewTrail(capacity int) *Trail {
	if capacity < 1 {
		capacity = 1
	}
	return &Trail{
		points:   make([]Point, 0, capacity),
		capacity: capacity,
	}
}

// Push appends p, dropping the oldest point when the trail is at capacity.
func (t *Trail) Push(p Point) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.points) >= t.capacity {
		copy(t.points, t.points[1:])
		t.points = t.points[:len(t.points)-1]
	}
	t.points = append(t.points, p)
}

// Snapshot returns a copy of the points, oldest first.
func (t *Trail) Snapshot() []Point {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Point, len(t.points))
	copy(out, t.points)
	return out
}

// Len returns the number of points held.
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.points)
}

// Cap returns the configured capacity.
func (t *Trail) Cap() int {
	return t.capacity
}

// Reset clears the trail.
func (t *Trail) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.points = t.points[:0]
}
