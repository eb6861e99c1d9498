package assist

import (
	"fmt"
	"math"
)

// System couples a force model to the Radau driver: fill acc with the
// accelerations of the state (pos, vel) at TDB time t. All three
// slices have length 3N in particle order.
type System interface {
	Accelerations(t float64, pos, vel, acc []float64) error
}

// StepRecord is handed to the heartbeat after every accepted step. The
// slices alias the integrator's internal storage and are only valid
// for the duration of the call.
type StepRecord struct {
	TBegin     float64 // time at the start of the step
	Dt         float64 // the step just completed
	X0, V0, A0 []float64
	B          *[7][]float64 // converged b-coefficients, each 3N long
	Steps      int           // accepted steps so far, this one included
}

// Heartbeat runs after each accepted step; returning anything other
// than StatusRunning stops the driver at this step boundary.
type Heartbeat func(rec StepRecord) Status

// radauH holds the eight Gauss–Radau spacings within a step.
var radauH = [8]float64{
	0.0,
	0.0562625605369221464656521910318,
	0.180240691736892364987579942780,
	0.352624717113169637373907769648,
	0.547153626330555383001448554766,
	0.734210177215410531523210605558,
	0.885320946839095768090359771030,
	0.977520613561287501891174488626,
}

// radauW[k][i] is the coefficient of h^i in Π_{j=1..k}(h−h_j): the
// triangular change of basis from the Newton (g) to the monomial (b)
// representation of the acceleration polynomial.
var radauW [7][7]float64

// binom caches the binomial coefficients needed to rescale the
// b-polynomial onto the next step.
var binom [8][8]float64

func init() {
	for k := 0; k < 7; k++ {
		// Expand Π_{j=1..k}(h − h_j) one factor at a time.
		poly := []float64{1}
		for j := 1; j <= k; j++ {
			next := make([]float64, len(poly)+1)
			for i, c := range poly {
				next[i] -= c * radauH[j]
				next[i+1] += c
			}
			poly = next
		}
		for i, c := range poly {
			radauW[k][i] = c
		}
	}
	for n := 0; n < 8; n++ {
		binom[n][0] = 1
		for k := 1; k <= n; k++ {
			binom[n][k] = binom[n-1][k-1] + binom[n-1][k]
		}
	}
}

const (
	// correctorTol is the fractional self-consistency demanded of the
	// b-coefficients within a step.
	correctorTol = 1e-16
	// maxCorrectorIter bounds the predictor-corrector loop.
	maxCorrectorIter = 12
	// safetyFactor governs step rejection and growth.
	safetyFactor = 0.25
	// maxRejections bounds consecutive rejected attempts of one step.
	maxRejections = 10
)

// Radau is an adaptive 15th-order Gauss–Radau integrator in the IAS15
// family: each step iterates seven b-coefficient vectors over the
// interior nodes until self-consistent, then estimates the error from
// the highest-order coefficient.
type Radau struct {
	sys System
	n   int // 3N

	t, dt   float64
	dtLast  float64
	epsilon float64
	minDt   float64
	exact   bool

	x0, v0, a0 []float64
	at         []float64
	xs, vs     []float64
	b, g       [7][]float64

	steps     int
	heartbeat Heartbeat
	warn      func(msg string)
}

// NewRadau builds a driver over nParticles particles. t0 and dt0 seed
// the clock and the first trial step.
func NewRadau(sys System, nParticles int, t0, dt0 float64) *Radau {
	if sys == nil {
		panic("config System may not be nil")
	}
	if nParticles <= 0 {
		panic("config nParticles must be positive")
	}
	if dt0 == 0 {
		panic("config dt0 may not be zero")
	}
	n := 3 * nParticles
	r := &Radau{
		sys:     sys,
		n:       n,
		t:       t0,
		dt:      dt0,
		epsilon: 1e-9,
		minDt:   1e-2,
		exact:   true,
		x0:      make([]float64, n),
		v0:      make([]float64, n),
		a0:      make([]float64, n),
		at:      make([]float64, n),
		xs:      make([]float64, n),
		vs:      make([]float64, n),
	}
	for k := 0; k < 7; k++ {
		r.b[k] = make([]float64, n)
		r.g[k] = make([]float64, n)
	}
	return r
}

// SetTolerance sets the step-size control tolerance ε.
func (r *Radau) SetTolerance(epsilon float64) { r.epsilon = epsilon }

// SetMinDt sets the smallest step the controller may take, in days.
func (r *Radau) SetMinDt(minDt float64) { r.minDt = minDt }

// SetExactFinishTime controls whether the last step is truncated onto
// the target time.
func (r *Radau) SetExactFinishTime(exact bool) { r.exact = exact }

// SetHeartbeat installs the per-step hook.
func (r *Radau) SetHeartbeat(hb Heartbeat) { r.heartbeat = hb }

// SetWarningHandler installs the sink for non-convergence warnings.
func (r *Radau) SetWarningHandler(fn func(msg string)) { r.warn = fn }

// Time returns the current integration time.
func (r *Radau) Time() float64 { return r.t }

// StepsDone returns the number of accepted steps.
func (r *Radau) StepsDone() int { return r.steps }

// SetState loads the state vectors. Must be called before the first
// step and may be called between runs to resume.
func (r *Radau) SetState(pos, vel []float64) {
	copy(r.x0, pos)
	copy(r.v0, vel)
}

// State exposes the current position and velocity vectors.
func (r *Radau) State() (pos, vel []float64) { return r.x0, r.v0 }

// IntegrateUntil advances the state to tEnd. It returns StatusOK on
// reaching the target, the heartbeat's status if one stops the run, or
// StatusNumericalFailure / StatusEphemerisError from the force model.
func (r *Radau) IntegrateUntil(tEnd float64) (Status, error) {
	dir := 1.0
	if tEnd < r.t {
		dir = -1.0
	}
	if r.dt*dir < 0 {
		r.dt = -r.dt
	}

	if err := r.sys.Accelerations(r.t, r.x0, r.v0, r.a0); err != nil {
		return statusFromError(err), err
	}

	for (tEnd-r.t)*dir > 1e-12 {
		truncated := false
		if r.exact && (r.t+r.dt-tEnd)*dir > 0 {
			r.dt = tEnd - r.t
			truncated = true
		}
		status, err := r.step()
		if err != nil {
			return status, err
		}
		if r.heartbeat != nil {
			rec := StepRecord{
				TBegin: r.t,
				Dt:     r.dtLast,
				X0:     r.x0, V0: r.v0, A0: r.a0,
				B:     &r.b,
				Steps: r.steps,
			}
			// The heartbeat sees the start-of-step state; x0/v0/a0 are
			// rolled forward only after it runs.
			if st := r.heartbeat(rec); st != StatusRunning {
				r.advance()
				return st, nil
			}
		}
		if err := r.advance(); err != nil {
			return statusFromError(err), err
		}
		if truncated {
			// Land exactly on the target so roundoff in t+dt cannot
			// leave a sliver of a step behind.
			r.t = tEnd
		}
	}
	return StatusOK, nil
}

func statusFromError(err error) Status {
	switch {
	case err == nil:
		return StatusRunning
	case isEphemerisError(err):
		return StatusEphemerisError
	default:
		return StatusNumericalFailure
	}
}

// step attempts steps at the current dt, rejecting and refining until
// one is accepted. On return the b-coefficients describe the accepted
// step of size dtLast starting at the still-unmodified (x0, v0, a0).
func (r *Radau) step() (Status, error) {
	rejections := 0
	for {
		converged, err := r.iterate()
		if err != nil {
			return statusFromError(err), err
		}

		// Error estimate from the highest-order b against the largest
		// acceleration, as a global criterion over all components.
		maxB6, maxA := 0.0, 0.0
		for k := 0; k < r.n; k++ {
			if v := math.Abs(r.b[6][k]); v > maxB6 {
				maxB6 = v
			}
			if v := math.Abs(r.a0[k]); v > maxA {
				maxA = v
			}
		}
		var dtNew float64
		if maxB6 == 0 || maxA == 0 {
			// Force-free or perfectly resolved: grow.
			dtNew = r.dt / safetyFactor
		} else {
			dtNew = r.dt * math.Pow(r.epsilon/(maxB6/maxA), 1./7.)
		}

		atFloor := math.Abs(r.dt) <= r.minDt
		reject := !converged || math.Abs(dtNew) < math.Abs(r.dt)*safetyFactor
		if reject && !atFloor {
			rejections++
			if rejections > maxRejections {
				err := fmt.Errorf("%w: step at t=%f rejected %d times", ErrNumericalFailure, r.t, rejections)
				return StatusNumericalFailure, err
			}
			if !converged {
				r.warnf("corrector failed to converge at t=%f, dt=%e; retrying with a smaller step", r.t, r.dt)
				dtNew = r.dt / 2
			}
			if math.Abs(dtNew) < r.minDt {
				dtNew = math.Copysign(r.minDt, r.dt)
			}
			// Rescale the b-polynomial onto the shorter step so the
			// next attempt starts from a sensible predictor.
			r.predictScale(dtNew / r.dt)
			r.dt = dtNew
			continue
		}
		if reject && atFloor && !converged {
			r.warnf("corrector failed to converge at t=%f with dt at the floor; accepting step", r.t)
		}

		// Accept.
		r.dtLast = r.dt
		r.steps++
		if math.Abs(dtNew) > math.Abs(r.dt)/safetyFactor {
			dtNew = r.dt / safetyFactor
		}
		if math.Abs(dtNew) < r.minDt {
			dtNew = math.Copysign(r.minDt, r.dt)
		}
		r.dt = dtNew
		return StatusRunning, nil
	}
}

// advance rolls (x0, v0, a0) and the clock over the accepted step and
// rescales the b-polynomial onto the next step as its predictor.
func (r *Radau) advance() error {
	dt := r.dtLast
	for k := 0; k < r.n; k++ {
		x := r.x0[k] + dt*r.v0[k] + dt*dt*(r.a0[k]/2.+
			r.b[0][k]/6.+r.b[1][k]/12.+r.b[2][k]/20.+r.b[3][k]/30.+
			r.b[4][k]/42.+r.b[5][k]/56.+r.b[6][k]/72.)
		v := r.v0[k] + dt*(r.a0[k]+
			r.b[0][k]/2.+r.b[1][k]/3.+r.b[2][k]/4.+r.b[3][k]/5.+
			r.b[4][k]/6.+r.b[5][k]/7.+r.b[6][k]/8.)
		r.x0[k] = x
		r.v0[k] = v
	}
	r.t += dt

	r.predictNextB(r.dt / dt)

	if err := r.sys.Accelerations(r.t, r.x0, r.v0, r.a0); err != nil {
		return err
	}
	return nil
}

// predictScale rescales the b-polynomial in place onto a step of
// q times the current length with the same starting point.
func (r *Radau) predictScale(q float64) {
	for k := 0; k < r.n; k++ {
		qi := 1.0
		for m := 0; m < 7; m++ {
			qi *= q
			r.b[m][k] *= qi
		}
	}
}

// predictNextB re-expands the acceleration polynomial of the completed
// step about its endpoint, scaled by q = dtNext/dtDone, giving the
// predictor b for the next step.
func (r *Radau) predictNextB(q float64) {
	var next [7]float64
	for k := 0; k < r.n; k++ {
		qj := 1.0
		for j := 1; j <= 7; j++ {
			qj *= q
			sum := 0.0
			for m := j - 1; m < 7; m++ {
				sum += binom[m+1][j] * r.b[m][k]
			}
			next[j-1] = qj * sum
		}
		for m := 0; m < 7; m++ {
			r.b[m][k] = next[m]
		}
	}
}

// iterate runs the predictor-corrector sweep over the seven interior
// nodes until the b-coefficients are self-consistent.
func (r *Radau) iterate() (bool, error) {
	// Seed g from the predicted b.
	r.seedG()

	lastErr := math.Inf(1)
	for iter := 0; iter < maxCorrectorIter; iter++ {
		maxDb6, maxA := 0.0, 0.0

		for node := 1; node < 8; node++ {
			h := radauH[node]
			tNode := r.t + r.dt*h

			xs, vs := r.subStepState(h)
			if err := r.sys.Accelerations(tNode, xs, vs, r.at); err != nil {
				return false, err
			}

			m := node - 1
			for k := 0; k < r.n; k++ {
				// Divided difference of (a−a0)/h over the nodes seen.
				tmp := (r.at[k] - r.a0[k]) / h
				for p := 0; p < m; p++ {
					tmp = (tmp - r.g[p][k]) / (h - radauH[p+1])
				}
				db := tmp - r.g[m][k]
				r.g[m][k] = tmp
				for i := 0; i <= m; i++ {
					r.b[i][k] += db * radauW[m][i]
				}
				if m == 6 {
					if v := math.Abs(db); v > maxDb6 {
						maxDb6 = v
					}
					if v := math.Abs(r.at[k]); v > maxA {
						maxA = v
					}
				}
			}
		}

		var errEst float64
		if maxA == 0 {
			errEst = maxDb6
		} else {
			errEst = maxDb6 / maxA
		}
		if errEst < correctorTol {
			return true, nil
		}
		if iter > 1 && errEst >= lastErr {
			// The iteration has stalled at roundoff.
			return true, nil
		}
		lastErr = errEst
	}
	return false, nil
}

// seedG converts the monomial b-coefficients into their Newton form by
// back-substituting the triangular system b_i = Σ_{m≥i} g_m W[m][i].
// The W diagonal is 1 (the node polynomials are monic).
func (r *Radau) seedG() {
	for k := 0; k < r.n; k++ {
		for row := 6; row >= 0; row-- {
			sum := r.b[row][k]
			for col := row + 1; col < 7; col++ {
				sum -= r.g[col][k] * radauW[col][row]
			}
			r.g[row][k] = sum
		}
	}
}

// subStepState evaluates the position and velocity polynomials at
// spacing h of the current step.
func (r *Radau) subStepState(h float64) (xs, vs []float64) {
	var s [9]float64
	s[0] = r.dt * h
	s[1] = s[0] * s[0] / 2.
	s[2] = s[1] * h / 3.
	s[3] = s[2] * h / 2.
	s[4] = 3. * s[3] * h / 5.
	s[5] = 2. * s[4] * h / 3.
	s[6] = 5. * s[5] * h / 7.
	s[7] = 3. * s[6] * h / 4.
	s[8] = 7. * s[7] * h / 9.

	var sv [8]float64
	sv[0] = r.dt * h
	sv[1] = sv[0] * h / 2.
	sv[2] = 2. * sv[1] * h / 3.
	sv[3] = 3. * sv[2] * h / 4.
	sv[4] = 4. * sv[3] * h / 5.
	sv[5] = 5. * sv[4] * h / 6.
	sv[6] = 6. * sv[5] * h / 7.
	sv[7] = 7. * sv[6] * h / 8.

	xs, vs = r.xs, r.vs
	for k := 0; k < r.n; k++ {
		xs[k] = r.x0[k] + s[8]*r.b[6][k] + s[7]*r.b[5][k] + s[6]*r.b[4][k] +
			s[5]*r.b[3][k] + s[4]*r.b[2][k] + s[3]*r.b[1][k] + s[2]*r.b[0][k] +
			s[1]*r.a0[k] + s[0]*r.v0[k]
		vs[k] = r.v0[k] + sv[7]*r.b[6][k] + sv[6]*r.b[5][k] + sv[5]*r.b[4][k] +
			sv[4]*r.b[3][k] + sv[3]*r.b[2][k] + sv[2]*r.b[1][k] + sv[1]*r.b[0][k] +
			sv[0]*r.a0[k]
	}
	return xs, vs
}

func (r *Radau) warnf(format string, args ...interface{}) {
	if r.warn != nil {
		r.warn(fmt.Sprintf(format, args...))
	}
}
