package geo

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		p1   Point
		p2   Point
		want float64
	}{
		{
			name: "Same Point",
			p1:   Point{Lat: 0, Lon: 0},
			p2:   Point{Lat: 0, Lon: 0},
			want: 0,
		},
		{
			name: "London to Paris",
			p1:   Point{Lat: 51.5074, Lon: -0.1278},
			p2:   Point{Lat: 48.8566, Lon: 2.3522},
			want: 344000, // Approx 344km
		},
		{
			name: "Equator 1 degree",
			p1:   Point{Lat: 0, Lon: 0},
			p2:   Point{Lat: 0, Lon: 1},
			want: 111319, // Approx 111km
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.p1, tt.p2)
			// Allow 1% margin of error due to float precision/earth radius var
			margin := tt.want * 0.01
			if math.Abs(got-tt.want) > margin && tt.want != 0 {
				t.Errorf("Distance() = %v, want %v (+/- %v)", got, tt.want, margin)
			}
		})
	}
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name string
		p1   Point
		p2   Point
		want float64
	}{
		{"Due North", Point{Lat: 0, Lon: 0}, Point{Lat: 1, Lon: 0}, 0},
		{"Due East", Point{Lat: 0, Lon: 0}, Point{Lat: 0, Lon: 1}, 90},
		{"Due South", Point{Lat: 1, Lon: 0}, Point{Lat: 0, Lon: 0}, 180},
		{"Due West", Point{Lat: 0, Lon: 1}, Point{Lat: 0, Lon: 0}, 270},
		{"Identical Points", Point{Lat: 40.7128, Lon: -74.006}, Point{Lat: 40.7128, Lon: -74.006}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(tt.p1, tt.p2)
			if math.IsNaN(got) || got < 0 || got >= 360 {
				t.Fatalf("Bearing() = %v, out of range", got)
			}
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("Bearing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{180, 180},
		{-180, 180},
		{190, -170},
		{-190, 170},
		{540, 180},
		{-720, 0},
		{359, -1},
	}

	for _, tt := range tests {
		if got := NormalizeAngle(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeAngle(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSmoothRotation(t *testing.T) {
	tests := []struct {
		name string
		prev float64
		next float64
		want float64
	}{
		{"Wrap Clockwise", 350, 10, 370},
		{"Wrap Counter Clockwise", 10, 350, -10},
		{"Simple", 90, 120, 120},
		{"Accumulated", 710, 5, 725},
		{"Half Turn", 0, 180, 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SmoothRotation(tt.prev, tt.next)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("SmoothRotation(%v, %v) = %v, want %v", tt.prev, tt.next, got, tt.want)
			}
			// Same direction modulo 360, and never more than half a turn away.
			if d := math.Mod(got-tt.next, 360); math.Abs(d) > 1e-9 && math.Abs(math.Abs(d)-360) > 1e-9 {
				t.Errorf("result %v not congruent to %v", got, tt.next)
			}
			if diff := got - tt.prev; diff <= -180 || diff > 180 {
				t.Errorf("diff %v outside (-180, 180]", diff)
			}
		})
	}
}

func TestDestinationPoint_RoundTrip(t *testing.T) {
	start := Point{Lat: 40.7128, Lon: -74.0060}
	for _, brg := range []float64{0, 45, 90, 200, 315} {
		dest := DestinationPoint(start, 500, brg)
		if d := Distance(start, dest); math.Abs(d-500) > 1 {
			t.Errorf("bearing %v: distance = %v, want 500", brg, d)
		}
		if got := Bearing(start, dest); math.Abs(NormalizeAngle(got-brg)) > 0.1 {
			t.Errorf("bearing %v: got %v", brg, got)
		}
	}
}

func TestPointValid(t *testing.T) {
	tests := []struct {
		p    Point
		want bool
	}{
		{Point{Lat: 0, Lon: 0}, true},
		{Point{Lat: 90, Lon: 180}, true},
		{Point{Lat: 90.1, Lon: 0}, false},
		{Point{Lat: 0, Lon: -180.5}, false},
		{Point{Lat: math.NaN(), Lon: 0}, false},
		{Point{Lat: 0, Lon: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		if got := tt.p.Valid(); got != tt.want {
			t.Errorf("%+v.Valid() = %v, want %v", tt.p, got, tt.want)
		}
	}
}
