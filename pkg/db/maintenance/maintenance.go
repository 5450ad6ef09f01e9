package maintenance

import (
	"context"
	"log/slog"
	"time"

	"headsup/pkg/db"
)

// Run prunes expired responses and map tiles. Failures are logged and never
// stop startup.
func Run(ctx context.Context, d *db.DB, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	slog.Info("Starting database maintenance...", "ttl", ttl)

	if ctx.Err() != nil {
		return
	}
	if n, err := d.PruneCache(ttl); err != nil {
		slog.Error("Cache pruning failed", "error", err)
	} else {
		slog.Info("Cache pruning completed", "removed", n)
	}

	if ctx.Err() != nil {
		return
	}
	if n, err := d.PruneTiles(ttl); err != nil {
		slog.Error("Tile pruning failed", "error", err)
	} else {
		slog.Info("Tile pruning completed", "removed", n)
	}
}
