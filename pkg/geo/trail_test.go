package geo

import (
	"sync"
	"testing"
)

func TestTrail(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		pushes   int
		wantLen  int
		wantHead float64 // Lat of the oldest retained point
	}{
		{"Under Capacity", 5, 3, 3, 0},
		{"At Capacity", 5, 5, 5, 0},
		{"Over Capacity", 5, 8, 5, 3},
		{"Capacity 100, 150 Pushes", 100, 150, 100, 50},
		{"Zero Capacity Clamped", 0, 3, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTrail(tt.capacity)
			for i := 0; i < tt.pushes; i++ {
				tr.Push(Point{Lat: float64(i), Lon: 0})
			}
			snap := tr.Snapshot()
			if len(snap) != tt.wantLen || tr.Len() != tt.wantLen {
				t.Fatalf("len = %d/%d, want %d", len(snap), tr.Len(), tt.wantLen)
			}
			if snap[0].Lat != tt.wantHead {
				t.Errorf("oldest = %v, want %v", snap[0].Lat, tt.wantHead)
			}
			if last := snap[len(snap)-1].Lat; last != float64(tt.pushes-1) {
				t.Errorf("newest = %v, want %v", last, tt.pushes-1)
			}
			for i := 1; i < len(snap); i++ {
				if snap[i].Lat != snap[i-1].Lat+1 {
					t.Errorf("order broken at %d: %v", i, snap)
					break
				}
			}
		})
	}
}

func TestTrail_SnapshotIsCopy(t *testing.T) {
	tr := NewTrail(3)
	tr.Push(Point{Lat: 1})
	snap := tr.Snapshot()
	snap[0].Lat = 99
	if got := tr.Snapshot()[0].Lat; got != 1 {
		t.Errorf("snapshot mutation leaked: %v", got)
	}
}

func TestTrail_Reset(t *testing.T) {
	tr := NewTrail(3)
	tr.Push(Point{Lat: 1})
	tr.Push(Point{Lat: 2})
	tr.Reset()
	if tr.Len() != 0 {
		t.Errorf("len after reset = %d", tr.Len())
	}
	tr.Push(Point{Lat: 3})
	if s := tr.Snapshot(); len(s) != 1 || s[0].Lat != 3 {
		t.Errorf("unexpected snapshot after reset: %v", s)
	}
}

func TestTrail_Concurrent(t *testing.T) {
	tr := NewTrail(10)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Push(Point{Lat: float64(j)})
				_ = tr.Snapshot()
			}
		}()
	}
	wg.Wait()
	if tr.Len() != 10 {
		t.Errorf("len = %d, want 10", tr.Len())
	}
}
