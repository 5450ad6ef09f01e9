package maintenance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"headsup/pkg/db"
)

func TestMaintenance(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "maint_test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	oldDeadline := time.Now().Add(-40 * 24 * time.Hour).UTC().Format("2006-01-02 15:04:05")
	newDeadline := time.Now().Add(-1 * 24 * time.Hour).UTC().Format("2006-01-02 15:04:05")

	for _, q := range []struct {
		query string
		args  []any
	}{
		{"INSERT INTO cache (key, value, created_at) VALUES (?, ?, ?)", []any{"old-key", "old-val", oldDeadline}},
		{"INSERT INTO cache (key, value, created_at) VALUES (?, ?, ?)", []any{"new-key", "new-val", newDeadline}},
		{"INSERT INTO tile_cache (url, zoom, x, y, data, created_at) VALUES (?, 17, 1, 1, ?, ?)", []any{"old-tile", []byte{1}, oldDeadline}},
	} {
		if _, err := d.Exec(q.query, q.args...); err != nil {
			t.Fatal(err)
		}
	}

	Run(context.Background(), d, 30*24*time.Hour)

	var count int
	if err := d.QueryRow("SELECT count(*) FROM cache").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 cache entry, got %d", count)
	}
	if err := d.QueryRow("SELECT count(*) FROM tile_cache").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected 0 tiles, got %d", count)
	}
}

func TestMaintenance_DisabledTTL(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "maint_off.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	old := time.Now().Add(-400 * 24 * time.Hour).UTC().Format("2006-01-02 15:04:05")
	if _, err := d.Exec("INSERT INTO cache (key, value, created_at) VALUES ('k', 'v', ?)", old); err != nil {
		t.Fatal(err)
	}

	Run(context.Background(), d, 0)

	var count int
	_ = d.QueryRow("SELECT count(*) FROM cache").Scan(&count)
	if count != 1 {
		t.Errorf("expected entry kept, got %d", count)
	}
}
