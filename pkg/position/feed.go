package position

import (
	"context"
	"sync"
	"time"
)

type watcher struct {
	onFix func(Fix)
	onErr func(error)
}

type result struct {
	fix Fix
	err error
}

// Feed fans fixes pushed by a producer out to watchers and one-shot waiters.
// It implements Source for producers that cannot be polled directly.
type Feed struct {
	mu       sync.Mutex
	nextID   int
	watchers map[int]watcher
	waiters  map[chan result]struct{}
	last     *Fix

	// OnRequest, when set, is called each time Current has to wait for a
	// fresh fix, so the producer can be asked for one.
	OnRequest func()

	now func() time.Time
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		watchers: make(map[int]watcher),
		waiters:  make(map[chan result]struct{}),
		now:      time.Now,
	}
}

// Publish delivers fix to all watchers and pending Current calls.
func (f *Feed) Publish(fix Fix) {
	if fix.Timestamp.IsZero() {
		fix.Timestamp = f.now()
	}

	f.mu.Lock()
	last := fix
	f.last = &last
	ws := f.snapshotLocked()
	waiters := f.waiters
	f.waiters = make(map[chan result]struct{})
	f.mu.Unlock()

	for ch := range waiters {
		ch <- result{fix: fix}
	}
	for _, w := range ws {
		if w.onFix != nil {
			w.onFix(fix)
		}
	}
}

// PublishError delivers err to all watchers and pending Current calls.
func (f *Feed) PublishError(err error) {
	f.mu.Lock()
	ws := f.snapshotLocked()
	waiters := f.waiters
	f.waiters = make(map[chan result]struct{})
	f.mu.Unlock()

	for ch := range waiters {
		ch <- result{err: err}
	}
	for _, w := range ws {
		if w.onErr != nil {
			w.onErr(err)
		}
	}
}

func (f *Feed) snapshotLocked() []watcher {
	out := make([]watcher, 0, len(f.watchers))
	for _, w := range f.watchers {
		out = append(out, w)
	}
	return out
}

// Latest returns the most recent fix, if any.
func (f *Feed) Latest() (Fix, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return Fix{}, false
	}
	return *f.last, true
}

// Watchers returns the number of active watchers.
func (f *Feed) Watchers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}

// Watch implements Source.
func (f *Feed) Watch(ctx context.Context, _ Options, onFix func(Fix), onErr func(error)) (Subscription, error) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.watchers[id] = watcher{onFix: onFix, onErr: onErr}
	f.mu.Unlock()

	remove := NewSubscription(func() {
		f.mu.Lock()
		delete(f.watchers, id)
		f.mu.Unlock()
	})
	stop := context.AfterFunc(ctx, remove.Stop)
	sub := NewSubscription(func() {
		stop()
		remove.Stop()
	})
	return sub, nil
}

// Current implements Source. A cached fix is returned when it is younger than
// opts.MaximumAge; otherwise it waits for the next Publish or PublishError.
func (f *Feed) Current(ctx context.Context, opts Options) (Fix, error) {
	f.mu.Lock()
	if f.last != nil && opts.MaximumAge > 0 && f.now().Sub(f.last.Timestamp) <= opts.MaximumAge {
		fix := *f.last
		f.mu.Unlock()
		return fix, nil
	}
	ch := make(chan result, 1)
	f.waiters[ch] = struct{}{}
	onRequest := f.OnRequest
	f.mu.Unlock()

	if onRequest != nil {
		onRequest()
	}

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-ch:
		return r.fix, r.err
	case <-timeout:
		f.dropWaiter(ch)
		return Fix{}, ErrTimeout
	case <-ctx.Done():
		f.dropWaiter(ch)
		return Fix{}, ctx.Err()
	}
}

func (f *Feed) dropWaiter(ch chan result) {
	f.mu.Lock()
	delete(f.waiters, ch)
	f.mu.Unlock()
}
