package assist

import (
	"math"
	"testing"

	"github.com/gonum/floats"
)

// freeSystem has no forces at all: trajectories must stay straight.
type freeSystem struct{}

func (freeSystem) Accelerations(t float64, pos, vel, acc []float64) error {
	for i := range acc {
		acc[i] = 0
	}
	return nil
}

// twoBodySystem is a pure Kepler problem about a fixed center.
type twoBodySystem struct {
	mu float64
}

func (s twoBodySystem) Accelerations(t float64, pos, vel, acc []float64) error {
	for j := 0; j < len(pos)/3; j++ {
		x, y, z := pos[3*j], pos[3*j+1], pos[3*j+2]
		r := math.Sqrt(x*x + y*y + z*z)
		f := -s.mu / (r * r * r)
		acc[3*j] = f * x
		acc[3*j+1] = f * y
		acc[3*j+2] = f * z
	}
	return nil
}

func TestRadauStraightLine(t *testing.T) {
	r := NewRadau(freeSystem{}, 1, 0, 1)
	r.SetTolerance(1e-9)
	r.SetState([]float64{1, 0, 0}, []float64{1e-3, -2e-4, 5e-5})

	status, err := r.IntegrateUntil(1000)
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusOK {
		t.Fatalf("expected OK, got %s", status)
	}
	pos, vel := r.State()
	want := []float64{1 + 1e-3*1000, -2e-4 * 1000, 5e-5 * 1000}
	for i := 0; i < 3; i++ {
		if !floats.EqualWithinAbs(pos[i], want[i], 1e-12) {
			t.Fatalf("position drifted: got %v want %v", pos, want)
		}
	}
	if !floats.EqualWithinAbs(norm(vel), norm([]float64{1e-3, -2e-4, 5e-5}), 1e-16) {
		t.Fatalf("velocity changed on a free trajectory: %v", vel)
	}
}

func TestRadauKeplerEnergy(t *testing.T) {
	mu := planetGM[BodySun]
	a := 1.0
	v := math.Sqrt(mu / a)
	sys := twoBodySystem{mu: mu}

	r := NewRadau(sys, 1, 0, 5)
	r.SetTolerance(1e-9)
	r.SetState([]float64{a, 0, 0}, []float64{0, v, 0})

	energy := func() float64 {
		pos, vel := r.State()
		return 0.5*dot(vel, vel) - mu/norm(pos)
	}
	e0 := energy()

	// One hundred revolutions of the circular orbit.
	period := 2 * math.Pi * math.Sqrt(a*a*a/mu)
	status, err := r.IntegrateUntil(100 * period)
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusOK {
		t.Fatalf("expected OK, got %s", status)
	}
	if rel := math.Abs((energy() - e0) / e0); rel > 1e-12 {
		t.Fatalf("energy drifted by %.3e relative", rel)
	}
	// The orbit should still be circular at radius a.
	pos, _ := r.State()
	if !floats.EqualWithinAbs(norm(pos), a, 1e-9) {
		t.Fatalf("orbit radius drifted to %f", norm(pos))
	}
}

func TestRadauExactFinishTime(t *testing.T) {
	r := NewRadau(twoBodySystem{mu: planetGM[BodySun]}, 1, 2451545.0, 3)
	r.SetTolerance(1e-9)
	r.SetState([]float64{1, 0, 0}, []float64{0, 0.0172, 0})

	target := 2451545.0 + 123.456
	if status, err := r.IntegrateUntil(target); err != nil || status != StatusOK {
		t.Fatalf("status %s err %v", status, err)
	}
	if r.Time() != target {
		t.Fatalf("did not land on the target time: %.17g", r.Time())
	}
}

func TestRadauBackwardIntegration(t *testing.T) {
	mu := planetGM[BodySun]
	sys := twoBodySystem{mu: mu}
	r := NewRadau(sys, 1, 0, 5)
	r.SetTolerance(1e-11)
	x0 := []float64{1, 0, 0}
	v0 := []float64{0, math.Sqrt(mu), 0}
	r.SetState(x0, v0)

	if status, err := r.IntegrateUntil(200); err != nil || status != StatusOK {
		t.Fatalf("forward leg failed: %s %v", status, err)
	}
	if status, err := r.IntegrateUntil(0); err != nil || status != StatusOK {
		t.Fatalf("backward leg failed: %s %v", status, err)
	}
	pos, vel := r.State()
	for i := 0; i < 3; i++ {
		if !floats.EqualWithinAbs(pos[i], x0[i], 1e-9) {
			t.Fatalf("round trip position off: %v", pos)
		}
		if !floats.EqualWithinAbs(vel[i], v0[i], 1e-11) {
			t.Fatalf("round trip velocity off: %v", vel)
		}
	}
}

func TestRadauHeartbeatStops(t *testing.T) {
	r := NewRadau(twoBodySystem{mu: planetGM[BodySun]}, 1, 0, 1)
	r.SetState([]float64{1, 0, 0}, []float64{0, 0.0172, 0})
	calls := 0
	r.SetHeartbeat(func(rec StepRecord) Status {
		calls++
		if calls == 2 {
			return StatusUserStop
		}
		return StatusRunning
	})
	status, err := r.IntegrateUntil(1e6)
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusUserStop {
		t.Fatalf("expected user stop, got %s", status)
	}
	if r.StepsDone() != 2 {
		t.Fatalf("expected 2 steps, got %d", r.StepsDone())
	}
}

func TestRadauConstructorPanics(t *testing.T) {
	assertPanic(t, func() { NewRadau(nil, 1, 0, 1) })
	assertPanic(t, func() { NewRadau(freeSystem{}, 0, 0, 1) })
	assertPanic(t, func() { NewRadau(freeSystem{}, 1, 0, 0) })
}
