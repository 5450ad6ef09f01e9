package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"headsup/pkg/db"
)

func TestDB(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "nested", "db_test.db")

	d, err := db.Init(path)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if d == nil {
		t.Fatal("Init() returned nil DB")
	}
	defer d.Close()

	for _, table := range []string{"persistent_state", "cache", "tile_cache"} {
		var n int
		if err := d.QueryRow("SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("table %s missing", table)
		}
	}
}

func TestDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	d, err := db.Init(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Exec("INSERT INTO persistent_state (key, value) VALUES ('k', 'v')"); err != nil {
		t.Fatal(err)
	}
	d.Close()

	d, err = db.Init(path)
	if err != nil {
		t.Fatalf("second Init() failed: %v", err)
	}
	defer d.Close()

	var v string
	if err := d.QueryRow("SELECT value FROM persistent_state WHERE key='k'").Scan(&v); err != nil || v != "v" {
		t.Errorf("value = %q, err = %v", v, err)
	}
}

func TestDB_Prune(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "prune.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	old := time.Now().Add(-40 * 24 * time.Hour).UTC().Format("2006-01-02 15:04:05")
	fresh := time.Now().Add(-time.Hour).UTC().Format("2006-01-02 15:04:05")

	mustExec := func(q string, args ...any) {
		t.Helper()
		if _, err := d.Exec(q, args...); err != nil {
			t.Fatal(err)
		}
	}
	mustExec("INSERT INTO cache (key, value, created_at) VALUES (?, ?, ?)", "old", "x", old)
	mustExec("INSERT INTO cache (key, value, created_at) VALUES (?, ?, ?)", "new", "x", fresh)
	mustExec("INSERT INTO tile_cache (url, zoom, x, y, data, created_at) VALUES (?, 1, 0, 0, ?, ?)", "u-old", []byte{1}, old)
	mustExec("INSERT INTO tile_cache (url, zoom, x, y, data, created_at) VALUES (?, 1, 0, 1, ?, ?)", "u-new", []byte{1}, fresh)

	n, err := d.PruneCache(30 * 24 * time.Hour)
	if err != nil || n != 1 {
		t.Errorf("PruneCache() = %d, %v; want 1, nil", n, err)
	}
	n, err = d.PruneTiles(30 * 24 * time.Hour)
	if err != nil || n != 1 {
		t.Errorf("PruneTiles() = %d, %v; want 1, nil", n, err)
	}

	var remaining int
	_ = d.QueryRow("SELECT count(*) FROM tile_cache").Scan(&remaining)
	if remaining != 1 {
		t.Errorf("tiles remaining = %d, want 1", remaining)
	}
}
