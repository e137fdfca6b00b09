package units

import (
	"math"
	"testing"
)

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"pi stays pi", math.Pi, math.Pi},
		{"minus pi wraps to pi", -math.Pi, math.Pi},
		{"three pi", 3 * math.Pi, math.Pi},
		{"minus half pi", -math.Pi / 2, -math.Pi / 2},
		{"two pi wraps to zero", 2 * math.Pi, 0},
		{"large positive", 7 * math.Pi / 2, -math.Pi / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapAngle(tt.in)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("WrapAngle(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAngleDiff(t *testing.T) {
	// Crossing the ±π seam must give the short way round.
	got := AngleDiff(math.Pi-0.1, -math.Pi+0.1)
	if math.Abs(got-(-0.2)) > 1e-12 {
		t.Errorf("AngleDiff across seam = %v, want %v", got, -0.2)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5, -1, 1); got != 1 {
		t.Errorf("Clamp(5,-1,1) = %v, want 1", got)
	}
	if got := Clamp(-5, -1, 1); got != -1 {
		t.Errorf("Clamp(-5,-1,1) = %v, want -1", got)
	}
	if got := Clamp(0.5, -1, 1); got != 0.5 {
		t.Errorf("Clamp(0.5,-1,1) = %v, want 0.5", got)
	}
}

func TestConvertSpeed(t *testing.T) {
	if got := ConvertSpeed(10, KPH); math.Abs(got-36) > 1e-9 {
		t.Errorf("ConvertSpeed(10, kph) = %v, want 36", got)
	}
	if got := ConvertSpeed(10, MPH); math.Abs(got-22.3694) > 1e-4 {
		t.Errorf("ConvertSpeed(10, mph) = %v, want 22.3694", got)
	}
	if got := ConvertSpeed(10, "furlongs"); got != 10 {
		t.Errorf("unknown unit should pass through, got %v", got)
	}
}

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false, want true", u)
		}
	}
	if IsValid("knots") {
		t.Error("IsValid(knots) = true, want false")
	}
}
