package position

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestFix_ReportedSpeed(t *testing.T) {
	tests := []struct {
		name   string
		speed  *float64
		want   float64
		wantOK bool
	}{
		{"Nil", nil, 0, false},
		{"Zero", ptr(0), 0, true},
		{"Positive", ptr(13.5), 13.5, true},
		{"Negative", ptr(-1), 0, false},
		{"NaN", ptr(math.NaN()), 0, false},
		{"Inf", ptr(math.Inf(1)), 0, false},
		{"OverflowsKmh", ptr(1e308), 0, false},
		{"Large", ptr(1e300), 1e300, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Fix{Speed: tt.speed}.ReportedSpeed()
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ReportedSpeed() = %v, %v; want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFix_ReportedHeading(t *testing.T) {
	if _, ok := (Fix{}).ReportedHeading(); ok {
		t.Error("nil heading reported as present")
	}
	if h, ok := (Fix{Heading: ptr(-90)}).ReportedHeading(); !ok || h != 270 {
		t.Errorf("got %v, %v; want 270, true", h, ok)
	}
	if h, ok := (Fix{Heading: ptr(725)}).ReportedHeading(); !ok || h != 5 {
		t.Errorf("got %v, %v; want 5, true", h, ok)
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrPermissionDenied, "GPS Error: Permission denied. Please allow location access."},
		{ErrPositionUnavailable, "GPS Error: Position unavailable."},
		{fmt.Errorf("watch: %w", ErrTimeout), "GPS Error: Request timeout."},
		{errors.New("boom"), "GPS Error: Unknown error."},
	}
	for _, tt := range tests {
		if got := Message(tt.err); got != tt.want {
			t.Errorf("Message(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestStopFunc_Once(t *testing.T) {
	calls := 0
	s := NewSubscription(func() { calls++ })
	s.Stop()
	s.Stop()
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
