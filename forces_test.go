package assist

import (
	"errors"
	"math"
	"testing"
)

type termFunc func(f *forceModel, t float64, ps []Particle, nReal int, links []VariationalLink, origin BodyState) error

// fdModel builds a force model with the real speed of light; the fake
// Earth either rests on the barycenter or stays parked far away.
func fdModel(t *testing.T, earthAtOrigin bool) *forceModel {
	t.Helper()
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config validation failed: %s", err)
	}
	eph := NewEphemeris(&fakePlanets{earthAtOrigin: earthAtOrigin}, &fakeSmalls{})
	return &forceModel{cfg: &cfg, ephem: eph}
}

// checkTermJacobian compares the variational output of a force term
// against a central finite difference of its acceleration, column by
// column of the 3x6 Jacobian.
func checkTermJacobian(t *testing.T, name string, f *forceModel, term termFunc, base Particle, tol float64) {
	t.Helper()
	var origin BodyState
	const epoch = 2451545.0

	accel := func(p Particle) [3]float64 {
		ps := []Particle{p}
		ps[0].AX, ps[0].AY, ps[0].AZ = 0, 0, 0
		if err := term(f, epoch, ps, 1, nil, origin); err != nil {
			t.Fatalf("%s acceleration failed: %s", name, err)
		}
		return [3]float64{ps[0].AX, ps[0].AY, ps[0].AZ}
	}

	scale := math.Sqrt(base.X*base.X + base.Y*base.Y + base.Z*base.Z)
	vscale := math.Sqrt(base.VX*base.VX+base.VY*base.VY+base.VZ*base.VZ) + 1e-6

	for dir := 0; dir < 6; dir++ {
		eps := 1e-7 * scale
		if dir >= 3 {
			eps = 1e-7 * vscale
		}

		plus, minus := base, base
		switch dir {
		case 0:
			plus.X += eps
			minus.X -= eps
		case 1:
			plus.Y += eps
			minus.Y -= eps
		case 2:
			plus.Z += eps
			minus.Z -= eps
		case 3:
			plus.VX += eps
			minus.VX -= eps
		case 4:
			plus.VY += eps
			minus.VY -= eps
		case 5:
			plus.VZ += eps
			minus.VZ -= eps
		}
		ap := accel(plus)
		am := accel(minus)
		var fd [3]float64
		for c := 0; c < 3; c++ {
			fd[c] = (ap[c] - am[c]) / (2 * eps)
		}

		// Variational evaluation with a unit differential along dir.
		var delta Particle
		switch dir {
		case 0:
			delta.X = 1
		case 1:
			delta.Y = 1
		case 2:
			delta.Z = 1
		case 3:
			delta.VX = 1
		case 4:
			delta.VY = 1
		case 5:
			delta.VZ = 1
		}
		ps := []Particle{base, delta}
		links := []VariationalLink{{Parent: 0, Index: 1}}
		if err := term(f, epoch, ps, 1, links, origin); err != nil {
			t.Fatalf("%s variational evaluation failed: %s", name, err)
		}
		got := [3]float64{ps[1].AX, ps[1].AY, ps[1].AZ}

		ref := math.Max(math.Abs(fd[0]), math.Max(math.Abs(fd[1]), math.Abs(fd[2])))
		if ref == 0 {
			ref = 1e-30
		}
		for c := 0; c < 3; c++ {
			if diff := math.Abs(got[c] - fd[c]); diff > tol*ref {
				t.Fatalf("%s Jacobian column %d row %d: variational %e vs finite difference %e (rel %e)",
					name, dir, c, got[c], fd[c], diff/ref)
			}
		}
	}
}

func TestDirectGravityJacobian(t *testing.T) {
	base := Particle{X: 0.5, Y: 0.8, Z: 0.3, VX: -0.01, VY: 0.008, VZ: 0.002}
	checkTermJacobian(t, "direct gravity", fdModel(t, false),
		(*forceModel).directGravity, base, 1e-6)
}

func TestEarthHarmonicsJacobian(t *testing.T) {
	// A few Earth radii out, off both the pole and the equator.
	base := Particle{X: 1.1e-4, Y: 2.3e-4, Z: 1.7e-4, VX: 1e-3, VY: -2e-3, VZ: 5e-4}
	checkTermJacobian(t, "earth J2/J4", fdModel(t, true),
		(*forceModel).earthHarmonics, base, 1e-6)
}

func TestSunJ2Jacobian(t *testing.T) {
	base := Particle{X: 0.3, Y: -0.7, Z: 0.2, VX: 0.01, VY: 0.004, VZ: -0.002}
	checkTermJacobian(t, "sun J2", fdModel(t, false),
		(*forceModel).sunJ2, base, 1e-6)
}

func TestNonGravJacobian(t *testing.T) {
	base := Particle{
		X: 0.9, Y: -0.4, Z: 0.2, VX: 0.004, VY: 0.015, VZ: -0.003,
		A1: 2.840852439404e-9, A2: -2.521527931094e-10, A3: 2.317289821804e-10,
	}
	checkTermJacobian(t, "non-gravitational", fdModel(t, false),
		(*forceModel).nonGrav, base, 1e-5)
}

func TestRelativisticJacobian(t *testing.T) {
	base := Particle{X: 0.4, Y: 0.1, Z: -0.05, VX: -0.005, VY: 0.025, VZ: 0.001}
	checkTermJacobian(t, "damour-deruelle", fdModel(t, false),
		(*forceModel).relativistic, base, 1e-6)
}

func TestEIHJacobian(t *testing.T) {
	base := Particle{X: 0.4, Y: 0.1, Z: -0.05, VX: -0.005, VY: 0.025, VZ: 0.001}
	checkTermJacobian(t, "EIH", fdModel(t, false),
		(*forceModel).eih, base, 1e-5)
}

func TestEvaluateZeroesAccelerations(t *testing.T) {
	cfg := quietConfig(t)
	f := newTestForceModel(t, cfg)
	ps := []Particle{{X: 1, VY: 0.0172, AX: 42, AY: 42, AZ: 42}}
	if err := f.Evaluate(2451545.0, ps, 1, nil); err != nil {
		t.Fatal(err)
	}
	// The stale scratch value must be gone; only the solar pull of
	// order GM/r² should remain.
	if math.Abs(ps[0].AX+planetGM[BodySun]) > 1e-6 {
		t.Fatalf("acceleration not rebuilt: ax=%e", ps[0].AX)
	}
}

func TestEvaluateDetectsNonFinite(t *testing.T) {
	cfg := quietConfig(t)
	f := newTestForceModel(t, cfg)
	// A particle exactly on top of the Sun divides by zero.
	ps := []Particle{{X: 0, Y: 0, Z: 0}}
	err := f.Evaluate(2451545.0, ps, 1, nil)
	if err == nil {
		t.Fatal("expected a numerical failure")
	}
	if !errors.Is(err, ErrNumericalFailure) {
		t.Fatalf("expected ErrNumericalFailure, got %s", err)
	}
	var nf NumericalFailure
	if !errors.As(err, &nf) {
		t.Fatalf("expected a NumericalFailure, got %T", err)
	}
	if nf.Particle != 0 {
		t.Fatalf("wrong particle index: %d", nf.Particle)
	}
}

func TestEvaluateGeocentricIndirectTerm(t *testing.T) {
	cfg := quietConfig(t)
	cfg.Geocentric = true
	eph := NewEphemeris(&fakePlanets{earthCircular: true}, &fakeSmalls{})
	f := &forceModel{cfg: &cfg, ephem: eph}

	// For a particle near the Earth the solar pull and the indirect
	// term nearly cancel, leaving the Earth's own attraction plus a
	// small tidal residue.
	r := 1e-3
	ps := []Particle{{X: r, Y: 0, Z: 0}}
	if err := f.Evaluate(0, ps, 1, nil); err != nil {
		t.Fatal(err)
	}
	want := -planetGM[BodyEarth] / (r * r)
	if math.Abs(ps[0].AX-want) > 0.01*math.Abs(want) {
		t.Fatalf("geocentric acceleration off: got %e want %e", ps[0].AX, want)
	}
}
