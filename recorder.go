package assist

// DefaultSubNodes returns the default dense-output spacings: ten
// uniform sub-nodes per step.
func DefaultSubNodes() []float64 {
	hg := make([]float64, 10)
	for k := range hg {
		hg[k] = float64(k+1) / 10
	}
	return hg
}

// Recorder reconstructs densely sampled trajectories from the
// integrator's b-coefficients after every accepted step and appends
// them to caller-owned buffers. Row layout: the first row holds the
// initial conditions; each step then appends one row per sub-node,
// six doubles per particle. When fewer than one full step of capacity
// remains, the heartbeat reports StatusBufferFull and the driver stops
// at the step boundary.
type Recorder struct {
	times  []float64
	states []float64

	hg       []float64
	nPart    int
	capSteps int
	rows     int
}

// NewRecorder wraps the caller-owned buffers. subNodes must be
// monotonically increasing within (0, 1]; nil selects the default
// uniform spacing. The step capacity is derived from whichever buffer
// is smaller.
func NewRecorder(times, states []float64, nParticles int, subNodes []float64) *Recorder {
	if nParticles <= 0 {
		panic("config nParticles must be positive")
	}
	if subNodes == nil {
		subNodes = DefaultSubNodes()
	}
	last := 0.0
	for _, h := range subNodes {
		if h <= last || h > 1 {
			panic("config subNodes must increase monotonically within (0,1]")
		}
		last = h
	}
	rows := len(times)
	if r := len(states) / (6 * nParticles); r < rows {
		rows = r
	}
	capSteps := 0
	if rows > 0 {
		capSteps = (rows - 1) / len(subNodes)
	}
	return &Recorder{
		times:    times,
		states:   states,
		hg:       subNodes,
		nPart:    nParticles,
		capSteps: capSteps,
	}
}

// Capacity returns how many steps the buffers can hold.
func (r *Recorder) Capacity() int { return r.capSteps }

// SamplesWritten returns the number of rows filled so far.
func (r *Recorder) SamplesWritten() int { return r.rows }

// RecordInitial writes the t0 row. Must be called once before the
// integration starts.
func (r *Recorder) RecordInitial(t float64, pos, vel []float64) {
	if r.capSteps < 1 {
		return
	}
	r.times[0] = t
	for j := 0; j < r.nPart; j++ {
		off := 6 * j
		r.states[off+0] = pos[3*j+0]
		r.states[off+1] = pos[3*j+1]
		r.states[off+2] = pos[3*j+2]
		r.states[off+3] = vel[3*j+0]
		r.states[off+4] = vel[3*j+1]
		r.states[off+5] = vel[3*j+2]
	}
	r.rows = 1
}

// Heartbeat implements the integrator hook: evaluate the position and
// velocity polynomials of the completed step on the sub-node set and
// append the samples.
func (r *Recorder) Heartbeat(rec StepRecord) Status {
	if rec.Steps > r.capSteps {
		return StatusBufferFull
	}
	nSub := len(r.hg)
	base := (rec.Steps-1)*nSub + 1

	var s [9]float64
	for n, h := range r.hg {
		row := base + n
		t := rec.TBegin + rec.Dt*h
		r.times[row] = t

		s[0] = rec.Dt * h
		s[1] = s[0] * s[0] / 2.
		s[2] = s[1] * h / 3.
		s[3] = s[2] * h / 2.
		s[4] = 3. * s[3] * h / 5.
		s[5] = 2. * s[4] * h / 3.
		s[6] = 5. * s[5] * h / 7.
		s[7] = 3. * s[6] * h / 4.
		s[8] = 7. * s[7] * h / 9.

		b := rec.B
		for j := 0; j < r.nPart; j++ {
			off := row*6*r.nPart + 6*j
			for c := 0; c < 3; c++ {
				k := 3*j + c
				r.states[off+c] = rec.X0[k] + s[8]*b[6][k] + s[7]*b[5][k] +
					s[6]*b[4][k] + s[5]*b[3][k] + s[4]*b[2][k] + s[3]*b[1][k] +
					s[2]*b[0][k] + s[1]*rec.A0[k] + s[0]*rec.V0[k]
			}
		}

		s[0] = rec.Dt * h
		s[1] = s[0] * h / 2.
		s[2] = 2. * s[1] * h / 3.
		s[3] = 3. * s[2] * h / 4.
		s[4] = 4. * s[3] * h / 5.
		s[5] = 5. * s[4] * h / 6.
		s[6] = 6. * s[5] * h / 7.
		s[7] = 7. * s[6] * h / 8.

		for j := 0; j < r.nPart; j++ {
			off := row*6*r.nPart + 6*j
			for c := 0; c < 3; c++ {
				k := 3*j + c
				r.states[off+3+c] = rec.V0[k] + s[7]*b[6][k] + s[6]*b[5][k] +
					s[5]*b[4][k] + s[4]*b[3][k] + s[3]*b[2][k] + s[2]*b[1][k] +
					s[1]*b[0][k] + s[0]*rec.A0[k]
			}
		}
	}
	r.rows = base + nSub

	if r.capSteps-rec.Steps < 1 {
		return StatusBufferFull
	}
	return StatusRunning
}
