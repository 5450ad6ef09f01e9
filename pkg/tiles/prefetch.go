package tiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"headsup/pkg/geo"
)

var (
	// ErrNoPosition is returned when caching is requested before any fix.
	ErrNoPosition = errors.New("no GPS position available")
	// ErrBusy is returned by Start while another run is in progress.
	ErrBusy = errors.New("tile caching already in progress")

	errEmptyTile = errors.New("empty tile response")
)

// Fetcher downloads a URL. request.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, u, cacheKey string) ([]byte, error)
}

// Store persists downloaded tiles. store.SQLiteStore satisfies it.
type Store interface {
	PutTile(ctx context.Context, url string, t geo.TileID, data []byte) error
	HasTile(ctx context.Context, url string) (bool, error)
}

// Options tune a Prefetcher. Zero values fall back to defaults.
type Options struct {
	Source        Source
	Limits        Limits
	Concurrency   int  // tiles in flight; 1 fetches sequentially
	ProgressEvery int  // report after every N cached tiles
	Refresh       bool // fetch tiles that are already stored
	Logger        *slog.Logger
}

// Progress is reported while a run is going and once more when it ends.
type Progress struct {
	RunID    uuid.UUID `json:"run_id"`
	Planned  int       `json:"planned"`
	Cached   int       `json:"cached"`
	Failed   int       `json:"failed"`
	Done     bool      `json:"done"`
	Canceled bool      `json:"canceled"`
}

// Message is the status line shown to the driver.
func (p Progress) Message() string {
	switch {
	case p.Done && p.Canceled:
		return fmt.Sprintf("Tile caching stopped after %d tiles", p.Cached)
	case p.Done:
		return fmt.Sprintf("Successfully cached %d tiles for offline use!", p.Cached)
	default:
		return fmt.Sprintf("Cached %d/%d tiles...", p.Cached, p.Planned)
	}
}

// Summary is the outcome of a run.
type Summary struct {
	RunID    uuid.UUID     `json:"run_id"`
	Planned  int           `json:"planned"`
	Cached   int           `json:"cached"`
	Failed   int           `json:"failed"`
	Canceled bool          `json:"canceled"`
	Duration time.Duration `json:"duration"`
}

// Status describes the most recent run.
type Status struct {
	Running bool      `json:"running"`
	Last    *Progress `json:"last,omitempty"`
}

// Prefetcher downloads planned tiles into a Store.
type Prefetcher struct {
	fetcher Fetcher
	store   Store
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	last    *Progress
}

// NewPrefetcher creates a Prefetcher.
func NewPrefetcher(f Fetcher, s Store, opts Options) *Prefetcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 10
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Prefetcher{
		fetcher: f,
		store:   s,
		opts:    opts,
		logger:  logger.With("component", "tiles"),
	}
}

// Run caches every tile of r around center and blocks until done. A nil
// center fails with ErrNoPosition before anything is fetched. Individual tile
// failures are counted, never fatal. Cancelling ctx stops scheduling further
// tiles; the summary then has Canceled set.
//
// progress, when non-nil, is called after every ProgressEvery cached tiles
// and once with Done set. Calls never overlap.
func (p *Prefetcher) Run(ctx context.Context, center *geo.Point, r Region, progress func(Progress)) (Summary, error) {
	if center == nil || !center.Valid() {
		return Summary{}, ErrNoPosition
	}
	r.Center = *center
	return p.run(ctx, uuid.New(), r, progress), nil
}

// Stream runs in the background and delivers progress on the returned
// channel, which is closed after the Done report. Callers must drain it.
func (p *Prefetcher) Stream(ctx context.Context, center *geo.Point, r Region) (<-chan Progress, error) {
	if center == nil || !center.Valid() {
		return nil, ErrNoPosition
	}
	r.Center = *center

	ch := make(chan Progress, 4)
	go func() {
		defer close(ch)
		p.run(ctx, uuid.New(), r, func(pr Progress) { ch <- pr })
	}()
	return ch, nil
}

// Start begins a background run unless one is already going and returns its
// id. Status reflects its progress.
func (p *Prefetcher) Start(ctx context.Context, center *geo.Point, r Region, progress func(Progress)) (uuid.UUID, error) {
	if center == nil || !center.Valid() {
		return uuid.Nil, ErrNoPosition
	}
	r.Center = *center

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return uuid.Nil, ErrBusy
	}
	p.running = true
	p.mu.Unlock()

	id := uuid.New()
	go func() {
		defer func() {
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
		}()
		p.run(ctx, id, r, progress)
	}()
	return id, nil
}

// Status returns the state of the most recent run.
func (p *Prefetcher) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{Running: p.running}
	if p.last != nil {
		last := *p.last
		st.Last = &last
	}
	return st
}

func (p *Prefetcher) run(ctx context.Context, id uuid.UUID, r Region, progress func(Progress)) Summary {
	start := time.Now()
	plan := Plan(r, p.opts.Limits)
	p.logger.Info("Caching map tiles for offline use...", "run", id, "tiles", len(plan),
		"center", fmt.Sprintf("%.5f,%.5f", r.Center.Lat, r.Center.Lon))

	var (
		mu     sync.Mutex
		cached int
		failed int
	)
	report := func(pr Progress) {
		p.mu.Lock()
		p.last = &pr
		p.mu.Unlock()
		if progress != nil {
			progress(pr)
		}
	}
	report(Progress{RunID: id, Planned: len(plan)})

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)

	for _, t := range plan {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			err := p.fetchOne(ctx, t)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				cached++
				if cached%p.opts.ProgressEvery == 0 {
					report(Progress{RunID: id, Planned: len(plan), Cached: cached, Failed: failed})
				}
			case ctx.Err() != nil:
				// Cancelled mid-flight; not the tile's fault.
			default:
				failed++
				p.logger.Warn("Failed to cache tile", "tile", t.String(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{
		RunID:    id,
		Planned:  len(plan),
		Cached:   cached,
		Failed:   failed,
		Canceled: ctx.Err() != nil && cached+failed < len(plan),
		Duration: time.Since(start),
	}
	report(Progress{RunID: id, Planned: sum.Planned, Cached: sum.Cached, Failed: sum.Failed, Done: true, Canceled: sum.Canceled})

	p.logger.Info("Tile caching finished", "run", id, "cached", sum.Cached, "failed", sum.Failed,
		"canceled", sum.Canceled, "duration", sum.Duration.Round(time.Millisecond))
	return sum
}

func (p *Prefetcher) fetchOne(ctx context.Context, t geo.TileID) error {
	u := p.opts.Source.URL(t)
	if !p.opts.Refresh {
		if ok, err := p.store.HasTile(ctx, u); err == nil && ok {
			return nil
		}
	}
	data, err := p.fetcher.Get(ctx, u, "")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errEmptyTile
	}
	if err := p.store.PutTile(ctx, u, t, data); err != nil {
		return fmt.Errorf("store tile %s: %w", t, err)
	}
	return nil
}
