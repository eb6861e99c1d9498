package assist

// Particle is a massless test particle, or a first-order variational
// partner of one. Positions are in au, velocities in au/day; the
// acceleration fields are scratch space refilled on every force
// evaluation. For a variational particle the components are the
// differentials δx…δvz.
type Particle struct {
	X, Y, Z    float64
	VX, VY, VZ float64
	AX, AY, AZ float64

	// Marsden non-gravitational coefficients, au/day^2 at 1 au.
	// Meaningful on real particles only.
	A1, A2, A3 float64
}

// VariationalLink binds a variational particle, living at Index in the
// particle array, to the real particle it varies. The particle array
// keeps the ordering [real_0 … real_{n-1}, var_0 … var_{m-1}], so
// Index always strictly exceeds Parent.
type VariationalLink struct {
	Parent int
	Index  int
}
