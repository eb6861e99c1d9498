package assist

import (
	"math"
	"testing"
)

// parkDistance is where fake sources put bodies that should not
// influence a test: far enough that their pull is below roundoff.
const parkDistance = 1e9

// fakePlanets is an analytic PlanetSource. The Sun sits at the
// barycenter; the Earth is parked far away unless placed at rest on
// the origin or on a circular heliocentric orbit; every other body is
// parked far away on its own axis, where its pull is below roundoff.
type fakePlanets struct {
	earthCircular bool // Earth on a circular heliocentric orbit
	earthAtOrigin bool // Earth at rest on the barycenter
	sunFar        bool // park the Sun too, for geocentric-only dynamics
	queries       int
}

func (f *fakePlanets) BarycentricState(body int, jd float64) (pos, vel, acc [3]float64, err error) {
	f.queries++
	switch {
	case body == BodySun:
		if f.sunFar {
			pos = [3]float64{0, parkDistance, 0}
		}
		return
	case body == BodyEarth && f.earthCircular:
		a := 1.0
		n := math.Sqrt(planetGM[BodySun] / (a * a * a))
		s, c := math.Sincos(n * jd)
		pos = [3]float64{a * c, a * s, 0}
		vel = [3]float64{-a * n * s, a * n * c, 0}
		acc = [3]float64{-a * n * n * c, -a * n * n * s, 0}
		return
	case body == BodyEarth && f.earthAtOrigin:
		return
	default:
		pos = [3]float64{parkDistance + float64(body), float64(body), 0}
		return
	}
}

// fakeSmalls parks every asteroid far away unless mainBelt is set, in
// which case they sit on a ring at 2.7 au.
type fakeSmalls struct {
	mainBelt bool
}

func (f *fakeSmalls) HelioPosition(i int, jd float64) ([3]float64, error) {
	if f.mainBelt {
		θ := 2 * math.Pi * float64(i) / NAst
		s, c := math.Sincos(θ)
		return [3]float64{2.7 * c, 2.7 * s, 0.1 * s}, nil
	}
	return [3]float64{parkDistance + 100 + float64(i), -float64(i), 0}, nil
}

// quietConfig is a validated barycentric configuration with the
// relativistic term suppressed (c effectively infinite), leaving pure
// gravity for the analytic comparisons.
func quietConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.C = 1e30
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config validation failed: %s", err)
	}
	return cfg
}

func newTestForceModel(t *testing.T, cfg Config) *forceModel {
	t.Helper()
	eph := NewEphemeris(&fakePlanets{}, &fakeSmalls{})
	return &forceModel{cfg: &cfg, ephem: eph}
}

func assertPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic")
		}
	}()
	f()
}
