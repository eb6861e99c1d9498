package assist

import (
	"errors"
	"fmt"
	"math"

	"github.com/mshafiee/jpleph"
)

// ErrBodyIndexOutOfRange is returned for a perturber index outside [0, NTot).
var ErrBodyIndexOutOfRange = errors.New("body index out of range")

// ErrEphemerisUnavailable is returned when an ephemeris file cannot be
// opened or does not cover the requested time.
var ErrEphemerisUnavailable = errors.New("ephemeris unavailable")

// isEphemerisError reports whether err stems from the ephemeris layer
// rather than from the dynamics.
func isEphemerisError(err error) bool {
	return errors.Is(err, ErrEphemerisUnavailable) || errors.Is(err, ErrBodyIndexOutOfRange)
}

// BodyState is the state of a perturber at a given TDB time: GM in
// au^3/day^2, barycentric position in au, velocity in au/day and
// acceleration in au/day^2. Velocity and acceleration are NaN for
// asteroids, whose SPK segments carry positions only.
type BodyState struct {
	GM      float64
	X, Y, Z float64
	VX, VY, VZ float64
	AX, AY, AZ float64
}

// PlanetSource yields the barycentric state of a planetary body
// (index 0..NEphem-1) at a TDB Julian date, in au, au/day, au/day^2.
type PlanetSource interface {
	BarycentricState(body int, jd float64) (pos, vel, acc [3]float64, err error)
}

// SmallBodySource yields the heliocentric position of asteroid i
// (0..NAst-1) at a TDB Julian date, in au.
type SmallBodySource interface {
	HelioPosition(i int, jd float64) ([3]float64, error)
}

// Ephemeris is the façade through which the force model sees every
// perturber. It translates asteroid positions from heliocentric to
// barycentric using a Sun state memoised per query time, and keeps a
// per-time cache of perturber states so that the repeated force
// evaluations of the Radau corrector do not hit the readers again.
type Ephemeris struct {
	planets PlanetSource
	smalls  SmallBodySource

	// Sun memo for the asteroid translation; any new jd invalidates it.
	sunJD    float64
	sunValid bool
	sunPos   [3]float64

	// Per-time state cache across corrector iterations.
	cache map[float64]*[NTot]cachedState
}

type cachedState struct {
	ok bool
	st BodyState
}

// NewEphemeris builds the façade from a planetary source and an
// optional small-body source. A nil smalls leaves the asteroid indices
// unavailable (queries for them return ErrEphemerisUnavailable).
func NewEphemeris(planets PlanetSource, smalls SmallBodySource) *Ephemeris {
	if planets == nil {
		panic("ephemeris requires a planetary source")
	}
	return &Ephemeris{
		planets: planets,
		smalls:  smalls,
		cache:   make(map[float64]*[NTot]cachedState),
	}
}

// Query returns the state of perturber i at TDB Julian date jd.
func (e *Ephemeris) Query(i int, jd float64) (BodyState, error) {
	if i < 0 || i >= NTot {
		return BodyState{}, fmt.Errorf("%w: %d", ErrBodyIndexOutOfRange, i)
	}
	entry := e.cache[jd]
	if entry == nil {
		if len(e.cache) > 64 {
			// The corrector only ever revisits the node times of the
			// current step; anything older is stale.
			e.cache = make(map[float64]*[NTot]cachedState)
		}
		entry = new([NTot]cachedState)
		e.cache[jd] = entry
	}
	if entry[i].ok {
		return entry[i].st, nil
	}
	st, err := e.query(i, jd)
	if err != nil {
		return BodyState{}, err
	}
	entry[i] = cachedState{ok: true, st: st}
	return st, nil
}

func (e *Ephemeris) query(i int, jd float64) (BodyState, error) {
	if i < NEphem {
		pos, vel, acc, err := e.planets.BarycentricState(i, jd)
		if err != nil {
			return BodyState{}, err
		}
		return BodyState{
			GM: planetGM[i],
			X:  pos[0], Y: pos[1], Z: pos[2],
			VX: vel[0], VY: vel[1], VZ: vel[2],
			AX: acc[0], AY: acc[1], AZ: acc[2],
		}, nil
	}
	if e.smalls == nil {
		return BodyState{}, fmt.Errorf("%w: no small-body source", ErrEphemerisUnavailable)
	}
	helio, err := e.smalls.HelioPosition(i-NEphem, jd)
	if err != nil {
		return BodyState{}, err
	}
	if !e.sunValid || e.sunJD != jd {
		sun, _, _, err := e.planets.BarycentricState(BodySun, jd)
		if err != nil {
			return BodyState{}, err
		}
		e.sunPos = sun
		e.sunJD = jd
		e.sunValid = true
	}
	nan := math.NaN()
	return BodyState{
		GM: asteroidGM[i-NEphem],
		X:  helio[0] + e.sunPos[0],
		Y:  helio[1] + e.sunPos[1],
		Z:  helio[2] + e.sunPos[2],
		VX: nan, VY: nan, VZ: nan,
		AX: nan, AY: nan, AZ: nan,
	}, nil
}

// JPLPlanetSource adapts a jpleph DE kernel to the PlanetSource
// interface. jpleph interpolates positions in au and velocities in
// au/day directly; accelerations, which the DE files do not carry for
// consumers, are derived by a symmetric finite difference of the
// interpolated velocity.
type JPLPlanetSource struct {
	eph *jpleph.Ephemeris
	cau float64
}

// accelStep is the half-width, in days, of the velocity finite
// difference used for planetary accelerations.
const accelStep = 0.05

// jplTargets maps the perturber table onto jpleph body numbers.
var jplTargets = [NEphem]jpleph.Planet{
	jpleph.Sun,
	jpleph.Mercury,
	jpleph.Venus,
	jpleph.Earth,
	jpleph.Moon,
	jpleph.Mars,
	jpleph.Jupiter,
	jpleph.Saturn,
	jpleph.Uranus,
	jpleph.Neptune,
	jpleph.Pluto,
}

// NewJPLPlanetSource opens a binary DE kernel.
func NewJPLPlanetSource(path string) (*JPLPlanetSource, error) {
	eph, err := jpleph.NewEphemeris(path, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEphemerisUnavailable, err)
	}
	return &JPLPlanetSource{eph: eph, cau: eph.GetEphemerisDouble(jpleph.AUinKM)}, nil
}

// Close releases the kernel file.
func (s *JPLPlanetSource) Close() error {
	return s.eph.Close()
}

// AUKilometres returns the kernel's own au-to-kilometre scale factor.
func (s *JPLPlanetSource) AUKilometres() float64 {
	return s.cau
}

// KernelName returns the DE series name stored in the kernel.
func (s *JPLPlanetSource) KernelName() string {
	return s.eph.GetEphemName()
}

// BarycentricState implements PlanetSource.
func (s *JPLPlanetSource) BarycentricState(body int, jd float64) (pos, vel, acc [3]float64, err error) {
	if body < 0 || body >= NEphem {
		err = fmt.Errorf("%w: %d", ErrBodyIndexOutOfRange, body)
		return
	}
	pos, vel, err = s.pv(body, jd)
	if err != nil {
		return
	}
	_, vMinus, err := s.pv(body, jd-accelStep)
	if err != nil {
		return
	}
	_, vPlus, err := s.pv(body, jd+accelStep)
	if err != nil {
		return
	}
	for k := 0; k < 3; k++ {
		acc[k] = (vPlus[k] - vMinus[k]) / (2 * accelStep)
	}
	return
}

func (s *JPLPlanetSource) pv(body int, jd float64) (pos, vel [3]float64, err error) {
	p, v, err := s.eph.CalculatePV(jd, jplTargets[body], jpleph.CenterSolarSystemBarycenter, true)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrEphemerisUnavailable, err)
		return
	}
	pos = [3]float64{p.X, p.Y, p.Z}
	vel = [3]float64{v.DX, v.DY, v.DZ}
	return
}
