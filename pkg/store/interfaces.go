package store

import (
	"context"

	"headsup/pkg/geo"
)

// CacheStore handles generic key-value caching.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
}

// TileStore handles offline map tile persistence, keyed by tile URL.
type TileStore interface {
	PutTile(ctx context.Context, url string, tile geo.TileID, data []byte) error
	GetTile(ctx context.Context, url string) ([]byte, bool)
	HasTile(ctx context.Context, url string) (bool, error)
	CountTiles(ctx context.Context) (int, error)
	CountTilesByZoom(ctx context.Context) (map[int]int, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
