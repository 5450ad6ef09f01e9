package nmea

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.bug.st/serial"

	"headsup/pkg/position"
)

// Receiver turns a stream of NMEA sentences into position fixes.
type Receiver struct {
	port   io.ReadCloser
	feed   *position.Feed
	logger *slog.Logger

	closeOnce sync.Once
}

// Open opens a serial GPS receiver at path (8N1).
func Open(path string, baud int) (*Receiver, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewReceiver(port), nil
}

// NewReceiver wraps an already open stream.
func NewReceiver(r io.ReadCloser) *Receiver {
	return &Receiver{
		port:   r,
		feed:   position.NewFeed(),
		logger: slog.With("component", "nmea"),
	}
}

// Run reads sentences until ctx is done or the stream ends.
func (r *Receiver) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = r.Close() })
	defer stop()

	scan := bufio.NewScanner(r.port)
	for scan.Scan() {
		r.handleLine(scan.Text())
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scan.Err(); err != nil {
		return fmt.Errorf("nmea read: %w", err)
	}
	return io.EOF
}

func (r *Receiver) handleLine(line string) {
	fix, err := ParseRMC(line)
	switch {
	case err == nil:
		r.feed.Publish(fix)
	case errors.Is(err, ErrNotRMC):
	case errors.Is(err, position.ErrPositionUnavailable):
		r.feed.PublishError(err)
	default:
		r.logger.Debug("Dropping sentence", "line", line, "error", err)
	}
}

// Watch implements position.Source.
func (r *Receiver) Watch(ctx context.Context, opts position.Options, onFix func(position.Fix), onErr func(error)) (position.Subscription, error) {
	return r.feed.Watch(ctx, opts, onFix, onErr)
}

// Current implements position.Source.
func (r *Receiver) Current(ctx context.Context, opts position.Options) (position.Fix, error) {
	return r.feed.Current(ctx, opts)
}

// Close releases the underlying port.
func (r *Receiver) Close() error {
	var err error
	r.closeOnce.Do(func() { err = r.port.Close() })
	return err
}
