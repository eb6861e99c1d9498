package assist

import (
	"fmt"
	"os"
	"time"

	kitlog "github.com/go-kit/kit/log"
)

/* Handles the ephemeris-quality propagations. */

// Simulation owns one integration run: the particle set, the force
// model, the Radau driver and the dense-output recorder. It is built
// fresh per run; the output buffers stay owned by the caller and the
// core keeps no state between runs.
type Simulation struct {
	cfg   Config
	ephem *Ephemeris
	force *forceModel

	particles []Particle
	links     []VariationalLink
	nReal     int

	driver   *Radau
	recorder *Recorder

	stopChan chan bool
	warnings []string
	logger   kitlog.Logger
}

// NewSimulation builds a simulation from a validated configuration and
// the two ephemeris sources.
func NewSimulation(cfg Config, planets PlanetSource, smalls SmallBodySource) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	klog = kitlog.With(klog, "subsys", "assist")
	return &Simulation{
		cfg:      cfg,
		ephem:    NewEphemeris(planets, smalls),
		stopChan: make(chan bool, 1),
		logger:   klog,
	}, nil
}

// SetLogger replaces the default stdout logger.
func (s *Simulation) SetLogger(l kitlog.Logger) { s.logger = l }

// AddParticles appends real test particles from a 6n-vector of
// (x,y,z,vx,vy,vz) states. Must be called before AddVariationals.
func (s *Simulation) AddParticles(instate []float64) error {
	if len(instate)%6 != 0 {
		return fmt.Errorf("%w: instate length %d is not a multiple of 6", ErrInvalidConfiguration, len(instate))
	}
	if len(s.links) > 0 {
		return fmt.Errorf("%w: real particles must precede variational particles", ErrInvalidConfiguration)
	}
	for i := 0; i+5 < len(instate); i += 6 {
		s.particles = append(s.particles, Particle{
			X: instate[i], Y: instate[i+1], Z: instate[i+2],
			VX: instate[i+3], VY: instate[i+4], VZ: instate[i+5],
		})
	}
	s.nReal = len(s.particles)
	return nil
}

// AddVariationals appends first-order variational particles. invar is
// a 6m-vector of differentials and parents[i] names the real particle
// the i-th variational belongs to.
func (s *Simulation) AddVariationals(invar []float64, parents []int) error {
	if len(invar) != 6*len(parents) {
		return fmt.Errorf("%w: %d variational states for %d parent indices", ErrInvalidConfiguration, len(invar)/6, len(parents))
	}
	for i, parent := range parents {
		if parent < 0 || parent >= s.nReal {
			return fmt.Errorf("%w: variational parent %d out of range", ErrInvalidConfiguration, parent)
		}
		s.links = append(s.links, VariationalLink{Parent: parent, Index: len(s.particles)})
		s.particles = append(s.particles, Particle{
			X: invar[6*i], Y: invar[6*i+1], Z: invar[6*i+2],
			VX: invar[6*i+3], VY: invar[6*i+4], VZ: invar[6*i+5],
		})
	}
	return nil
}

// SetNonGrav sets the Marsden coefficients of real particle i.
func (s *Simulation) SetNonGrav(i int, a1, a2, a3 float64) error {
	if i < 0 || i >= s.nReal {
		return fmt.Errorf("%w: particle %d out of range", ErrInvalidConfiguration, i)
	}
	s.particles[i].A1 = a1
	s.particles[i].A2 = a2
	s.particles[i].A3 = a3
	return nil
}

// AttachOutput wraps the caller-owned dense-output buffers. subNodes
// may be nil for the default uniform spacing.
func (s *Simulation) AttachOutput(times, states []float64, subNodes []float64) {
	s.recorder = NewRecorder(times, states, len(s.particles), subNodes)
}

// StopIntegration requests a clean stop at the next step boundary.
func (s *Simulation) StopIntegration() {
	select {
	case s.stopChan <- true:
	default:
	}
}

// Warnings returns the messages recorded during the run, such as
// corrector non-convergence notices.
func (s *Simulation) Warnings() []string { return s.warnings }

// Accelerations implements System by scattering the state vector into
// the particle set, running the force model, and gathering the
// resulting accelerations.
func (s *Simulation) Accelerations(t float64, pos, vel, acc []float64) error {
	for i := range s.particles {
		p := &s.particles[i]
		p.X, p.Y, p.Z = pos[3*i], pos[3*i+1], pos[3*i+2]
		p.VX, p.VY, p.VZ = vel[3*i], vel[3*i+1], vel[3*i+2]
	}
	if err := s.force.Evaluate(t, s.particles, s.nReal, s.links); err != nil {
		return err
	}
	for i := range s.particles {
		p := &s.particles[i]
		acc[3*i], acc[3*i+1], acc[3*i+2] = p.AX, p.AY, p.AZ
	}
	return nil
}

// IntegrateUntil runs the simulation from tStart to tEnd (TDB Julian
// dates) and returns the final status plus the number of accepted
// steps. Output buffers must have been attached first.
func (s *Simulation) IntegrateUntil(tStart, tEnd float64) (Status, int) {
	if s.recorder == nil {
		s.logger.Log("level", "critical", "err", "no output buffers attached")
		return StatusNumericalFailure, 0
	}
	if s.nReal == 0 {
		s.logger.Log("level", "critical", "err", "no particles")
		return StatusNumericalFailure, 0
	}
	s.force = &forceModel{cfg: &s.cfg, ephem: s.ephem}

	dt0 := s.cfg.InitialDt
	if tEnd < tStart && dt0 > 0 {
		dt0 = -dt0
	}
	s.driver = NewRadau(s, len(s.particles), tStart, dt0)
	s.driver.SetTolerance(s.cfg.Epsilon)
	s.driver.SetMinDt(s.cfg.MinDt)
	s.driver.SetExactFinishTime(s.cfg.ExactFinishTime)
	s.driver.SetWarningHandler(func(msg string) {
		s.warnings = append(s.warnings, msg)
		s.logger.Log("level", "warning", "message", msg)
	})

	pos := make([]float64, 3*len(s.particles))
	vel := make([]float64, 3*len(s.particles))
	for i, p := range s.particles {
		pos[3*i], pos[3*i+1], pos[3*i+2] = p.X, p.Y, p.Z
		vel[3*i], vel[3*i+1], vel[3*i+2] = p.VX, p.VY, p.VZ
	}
	s.driver.SetState(pos, vel)
	s.recorder.RecordInitial(tStart, pos, vel)

	s.driver.SetHeartbeat(func(rec StepRecord) Status {
		select {
		case <-s.stopChan:
			return StatusUserStop
		default:
		}
		return s.recorder.Heartbeat(rec)
	})

	wallStart := time.Now()
	status, err := s.driver.IntegrateUntil(tEnd)
	nOut := s.driver.StepsDone()
	if err != nil {
		s.logger.Log("level", "critical", "status", status, "err", err)
		return status, nOut
	}

	// Leave the particle set at the driver's final state so the caller
	// may resume from it.
	fPos, fVel := s.driver.State()
	for i := range s.particles {
		p := &s.particles[i]
		p.X, p.Y, p.Z = fPos[3*i], fPos[3*i+1], fPos[3*i+2]
		p.VX, p.VY, p.VZ = fVel[3*i], fVel[3*i+1], fVel[3*i+2]
	}

	duration := time.Since(wallStart)
	s.logger.Log("level", "notice", "status", status.String(), "steps", nOut,
		"t", s.driver.Time(), "duration", duration.String())

	// Release intermediate allocations; the output buffers stay with
	// the caller.
	s.driver = nil
	s.force = nil
	return status, nOut
}

// FinalState returns the 6n state vector of the real particles after a
// run, for resuming with fresh buffers.
func (s *Simulation) FinalState() []float64 {
	out := make([]float64, 6*s.nReal)
	for i := 0; i < s.nReal; i++ {
		p := s.particles[i]
		out[6*i], out[6*i+1], out[6*i+2] = p.X, p.Y, p.Z
		out[6*i+3], out[6*i+4], out[6*i+5] = p.VX, p.VY, p.VZ
	}
	return out
}

// Integrate mirrors the C integration entry point over raw slices: it
// builds a simulation from cfg, opens the ephemeris files named there,
// injects n real particles from instate and the variational particles
// from invar/invarParent, runs to tEnd, and fills the caller-owned
// outTime/outState buffers. It returns the run status and the number
// of accepted steps.
func Integrate(cfg Config, tStart, tEnd float64,
	instate []float64,
	invarParent []int, invar []float64,
	outTime, outState []float64) (Status, int) {

	if err := cfg.Validate(); err != nil {
		return StatusNumericalFailure, 0
	}
	planets, err := NewJPLPlanetSource(cfg.PlanetPath)
	if err != nil {
		return StatusEphemerisError, 0
	}
	defer planets.Close()
	smalls, err := NewSPKSource(cfg.SmallBodyPath, planets.AUKilometres())
	if err != nil {
		return StatusEphemerisError, 0
	}
	defer smalls.Close()

	sim, err := NewSimulation(cfg, planets, smalls)
	if err != nil {
		return StatusNumericalFailure, 0
	}
	if err := sim.AddParticles(instate); err != nil {
		return StatusNumericalFailure, 0
	}
	if err := sim.AddVariationals(invar, invarParent); err != nil {
		return StatusNumericalFailure, 0
	}
	sim.AttachOutput(outTime, outState, nil)
	return sim.IntegrateUntil(tStart, tEnd)
}
