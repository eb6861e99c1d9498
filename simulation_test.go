package assist

import (
	"math"
	"testing"

	"github.com/gonum/floats"
)

func attachAmpleOutput(sim *Simulation, nParticles, maxSteps int) {
	rows := maxSteps*10 + 1
	sim.AttachOutput(make([]float64, rows), make([]float64, rows*6*nParticles), nil)
}

// One full circular revolution about the Sun must come back to the
// starting point.
func TestSimulationKeplerClosure(t *testing.T) {
	cfg := quietConfig(t)
	sim, err := NewSimulation(cfg, &fakePlanets{}, &fakeSmalls{})
	if err != nil {
		t.Fatal(err)
	}
	mu := planetGM[BodySun]
	v := math.Sqrt(mu)
	if err := sim.AddParticles([]float64{1, 0, 0, 0, v, 0}); err != nil {
		t.Fatal(err)
	}
	attachAmpleOutput(sim, 1, 512)

	period := 2 * math.Pi / math.Sqrt(mu)
	status, _ := sim.IntegrateUntil(0, period)
	if status != StatusOK {
		t.Fatalf("status %s", status)
	}
	final := sim.FinalState()
	if !floats.EqualWithinAbs(final[0], 1, 1e-8) ||
		!floats.EqualWithinAbs(final[1], 0, 1e-8) ||
		!floats.EqualWithinAbs(final[2], 0, 1e-8) {
		t.Fatalf("orbit did not close: %v", final[:3])
	}
}

// The integrated variational state must match a finite difference of
// two neighbouring trajectories.
func TestSimulationVariationalAgainstFiniteDifference(t *testing.T) {
	mu := planetGM[BodySun]
	v := math.Sqrt(mu)
	base := []float64{1, 0, 0, 0, v, 0}
	const span = 60.0
	const h = 1e-6

	run := func(state []float64, withVar bool) []float64 {
		cfg := quietConfig(t)
		sim, err := NewSimulation(cfg, &fakePlanets{}, &fakeSmalls{})
		if err != nil {
			t.Fatal(err)
		}
		if err := sim.AddParticles(state); err != nil {
			t.Fatal(err)
		}
		n := 1
		if withVar {
			if err := sim.AddVariationals([]float64{1, 0, 0, 0, 0, 0}, []int{0}); err != nil {
				t.Fatal(err)
			}
			n = 2
		}
		attachAmpleOutput(sim, n, 256)
		if status, _ := sim.IntegrateUntil(0, span); status != StatusOK {
			t.Fatalf("status %s", status)
		}
		if withVar {
			p := sim.particles[1]
			return []float64{p.X, p.Y, p.Z, p.VX, p.VY, p.VZ}
		}
		return sim.FinalState()
	}

	variational := run(base, true)

	plus := append([]float64(nil), base...)
	plus[0] += h
	minus := append([]float64(nil), base...)
	minus[0] -= h
	fPlus := run(plus, false)
	fMinus := run(minus, false)

	scale := 0.0
	for c := 0; c < 3; c++ {
		if v := math.Abs(variational[c]); v > scale {
			scale = v
		}
	}
	for c := 0; c < 6; c++ {
		fd := (fPlus[c] - fMinus[c]) / (2 * h)
		ref := scale
		if c >= 3 {
			ref = scale * math.Sqrt(mu)
		}
		if math.Abs(variational[c]-fd) > 1e-5*ref {
			t.Fatalf("component %d: variational %e vs finite difference %e", c, variational[c], fd)
		}
	}
}

// Barycentric and geocentric runs of the same trajectory must agree
// after moving back to a common frame.
func TestSimulationFrameEquivalence(t *testing.T) {
	const span = 30.0
	planets := func() *fakePlanets { return &fakePlanets{earthCircular: true} }

	// Barycentric initial conditions.
	bary := []float64{0.5, 0, 0.1, 0, 0.02, 0}

	cfgB := quietConfig(t)
	simB, err := NewSimulation(cfgB, planets(), &fakeSmalls{})
	if err != nil {
		t.Fatal(err)
	}
	if err := simB.AddParticles(bary); err != nil {
		t.Fatal(err)
	}
	attachAmpleOutput(simB, 1, 256)
	if status, _ := simB.IntegrateUntil(0, span); status != StatusOK {
		t.Fatalf("barycentric status %s", status)
	}
	finalB := simB.FinalState()

	// The same trajectory in geocentric coordinates.
	src := planets()
	e0p, e0v, _, _ := src.BarycentricState(BodyEarth, 0)
	geo := []float64{
		bary[0] - e0p[0], bary[1] - e0p[1], bary[2] - e0p[2],
		bary[3] - e0v[0], bary[4] - e0v[1], bary[5] - e0v[2],
	}
	cfgG := quietConfig(t)
	cfgG.Geocentric = true
	simG, err := NewSimulation(cfgG, planets(), &fakeSmalls{})
	if err != nil {
		t.Fatal(err)
	}
	if err := simG.AddParticles(geo); err != nil {
		t.Fatal(err)
	}
	attachAmpleOutput(simG, 1, 256)
	if status, _ := simG.IntegrateUntil(0, span); status != StatusOK {
		t.Fatalf("geocentric status %s", status)
	}
	finalG := simG.FinalState()

	ePp, ePv, _, _ := src.BarycentricState(BodyEarth, span)
	reconciled := []float64{
		finalG[0] + ePp[0], finalG[1] + ePp[1], finalG[2] + ePp[2],
		finalG[3] + ePv[0], finalG[4] + ePv[1], finalG[5] + ePv[2],
	}
	for c := 0; c < 3; c++ {
		if !floats.EqualWithinAbs(finalB[c], reconciled[c], 1e-9) {
			t.Fatalf("position component %d: barycentric %.15g vs reconciled %.15g", c, finalB[c], reconciled[c])
		}
	}
}

// A close Earth orbit must regress its node at the secular J2 rate.
func TestSimulationEarthJ2NodalPrecession(t *testing.T) {
	cfg := quietConfig(t)
	cfg.Geocentric = true
	sim, err := NewSimulation(cfg, &fakePlanets{sunFar: true, earthAtOrigin: true}, &fakeSmalls{})
	if err != nil {
		t.Fatal(err)
	}

	gmE := planetGM[BodyEarth]
	r0 := 2 * EarthEqRadius
	vc := math.Sqrt(gmE / r0)
	incl := Deg2rad(45)
	state := []float64{r0, 0, 0, 0, vc * math.Cos(incl), vc * math.Sin(incl)}
	if err := sim.AddParticles(state); err != nil {
		t.Fatal(err)
	}
	attachAmpleOutput(sim, 1, 2048)

	const span = 10.0
	status, _ := sim.IntegrateUntil(0, span)
	if status != StatusOK {
		t.Fatalf("status %s", status)
	}
	final := sim.FinalState()

	node := func(s []float64) float64 {
		h := cross(s[:3], s[3:6])
		// Ascending node vector n = z × h.
		return math.Atan2(h[0], -h[1])
	}
	dΩ := node(final) - node(state)
	for dΩ > math.Pi {
		dΩ -= 2 * math.Pi
	}
	for dΩ < -math.Pi {
		dΩ += 2 * math.Pi
	}

	n := math.Sqrt(gmE / (r0 * r0 * r0))
	want := -1.5 * EarthJ2 * n * math.Pow(EarthEqRadius/r0, 2) * math.Cos(incl) * span
	if math.Abs(dΩ-want) > 0.02*math.Abs(want) {
		t.Fatalf("nodal precession %e, analytic %e", dΩ, want)
	}
}

// Toggling the asteroid ring on and off must move a 1 au orbit by a
// tiny but nonzero amount.
func TestSimulationAsteroidContribution(t *testing.T) {
	run := func(belt bool) []float64 {
		cfg := quietConfig(t)
		sim, err := NewSimulation(cfg, &fakePlanets{}, &fakeSmalls{mainBelt: belt})
		if err != nil {
			t.Fatal(err)
		}
		v := math.Sqrt(planetGM[BodySun])
		if err := sim.AddParticles([]float64{1, 0, 0, 0, v, 0}); err != nil {
			t.Fatal(err)
		}
		attachAmpleOutput(sim, 1, 512)
		if status, _ := sim.IntegrateUntil(0, 365.25); status != StatusOK {
			t.Fatalf("status %s", status)
		}
		return sim.FinalState()
	}

	on := run(true)
	off := run(false)
	var diff float64
	for c := 0; c < 3; c++ {
		diff += (on[c] - off[c]) * (on[c] - off[c])
	}
	diff = math.Sqrt(diff)
	if diff == 0 {
		t.Fatal("asteroid ring had no effect at all")
	}
	if diff > 1e-7 {
		t.Fatalf("asteroid displacement implausibly large: %e au", diff)
	}
}

func TestSimulationUserStop(t *testing.T) {
	sim, _, _ := newKeplerSim(t, 256)
	sim.StopIntegration()
	status, nOut := sim.IntegrateUntil(0, 1000)
	if status != StatusUserStop {
		t.Fatalf("expected user stop, got %s", status)
	}
	if nOut != 1 {
		t.Fatalf("expected a stop at the first boundary, got %d steps", nOut)
	}
}

func TestSimulationInputValidation(t *testing.T) {
	cfg := quietConfig(t)
	sim, err := NewSimulation(cfg, &fakePlanets{}, &fakeSmalls{})
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.AddParticles([]float64{1, 2, 3}); err == nil {
		t.Fatal("expected a length error")
	}
	if err := sim.AddParticles([]float64{1, 0, 0, 0, 0.017, 0}); err != nil {
		t.Fatal(err)
	}
	if err := sim.AddVariationals([]float64{1, 0, 0, 0, 0, 0}, []int{3}); err == nil {
		t.Fatal("expected a parent range error")
	}
	if err := sim.SetNonGrav(2, 1, 0, 0); err == nil {
		t.Fatal("expected a particle range error")
	}
}

// Pointing the configuration at missing ephemeris files must surface
// an ephemeris error and leave the buffers untouched.
func TestIntegrateMissingEphemeris(t *testing.T) {
	t.Setenv("JPL_SB_EPHEM", "/no/such/file.bsp")
	t.Setenv("JPL_PLANET_EPHEM", "/no/such/de441.bin")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}

	outTime := make([]float64, 11)
	outState := make([]float64, 66)
	status, nOut := Integrate(cfg, 0, 10,
		[]float64{1, 0, 0, 0, 0.017, 0}, nil, nil, outTime, outState)
	if status != StatusEphemerisError {
		t.Fatalf("expected ephemeris error, got %s", status)
	}
	if nOut != 0 {
		t.Fatalf("expected no output, got %d", nOut)
	}
	for i, v := range outTime {
		if v != 0 {
			t.Fatalf("time buffer touched at %d", i)
		}
	}
	for i, v := range outState {
		if v != 0 {
			t.Fatalf("state buffer touched at %d", i)
		}
	}
}

func TestSimulationVariationalOrderingInvariant(t *testing.T) {
	cfg := quietConfig(t)
	sim, err := NewSimulation(cfg, &fakePlanets{}, &fakeSmalls{})
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.AddParticles([]float64{1, 0, 0, 0, 0.017, 0, 1.1, 0, 0, 0, 0.016, 0}); err != nil {
		t.Fatal(err)
	}
	if err := sim.AddVariationals([]float64{1, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0}, []int{1, 0}); err != nil {
		t.Fatal(err)
	}
	for _, link := range sim.links {
		if link.Index <= link.Parent {
			t.Fatalf("variational index %d does not exceed parent %d", link.Index, link.Parent)
		}
	}
	// Real particles must not be allowed after variationals.
	if err := sim.AddParticles([]float64{2, 0, 0, 0, 0.01, 0}); err == nil {
		t.Fatal("expected an ordering error")
	}
}
