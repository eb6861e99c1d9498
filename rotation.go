package assist

import (
	"math"

	"github.com/gonum/matrix/mat64"
)

// Frame is a body-equatorial frame defined by the right ascension and
// declination of the body's pole. Its rotation carries ICRF vectors
// into the frame whose z axis is the pole: a z-rotation by α followed
// by an x-rotation by (90°−δ). The trigonometric factors are
// precomputed so that the force terms never call Sincos themselves.
type Frame struct {
	sinα, cosα float64
	sinδ, cosδ float64
}

// NewFrame returns the body-equatorial frame for a pole at the given
// right ascension and declination, both in degrees.
func NewFrame(raDeg, decDeg float64) Frame {
	sinα, cosα := math.Sincos(raDeg * deg2rad)
	sinδ, cosδ := math.Sincos(decDeg * deg2rad)
	return Frame{sinα: sinα, cosα: cosα, sinδ: sinδ, cosδ: cosδ}
}

// EarthFrame is the Earth-equatorial frame, pole frozen at J2000.
var EarthFrame = NewFrame(EarthPoleRA, EarthPoleDec)

// SunFrame is the solar-equatorial frame (Carrington pole).
var SunFrame = NewFrame(SunPoleRA, SunPoleDec)

// Rotate carries an ICRF vector into the body-equatorial frame.
func (f Frame) Rotate(x, y, z float64) (float64, float64, float64) {
	xp := -x*f.sinα + y*f.cosα
	yp := -x*f.cosα*f.sinδ - y*f.sinα*f.sinδ + z*f.cosδ
	zp := x*f.cosα*f.cosδ + y*f.sinα*f.cosδ + z*f.sinδ
	return xp, yp, zp
}

// InverseRotate carries a body-equatorial vector back to ICRF.
func (f Frame) InverseRotate(x, y, z float64) (float64, float64, float64) {
	xp := -x*f.sinα - y*f.cosα*f.sinδ + z*f.cosα*f.cosδ
	yp := x*f.cosα - y*f.sinα*f.sinδ + z*f.sinα*f.cosδ
	zp := y*f.cosδ + z*f.sinδ
	return xp, yp, zp
}

// Matrix returns the 3x3 rotation matrix R such that v_eq = R v_icrf.
func (f Frame) Matrix() *mat64.Dense {
	return mat64.NewDense(3, 3, []float64{
		-f.sinα, f.cosα, 0,
		-f.cosα * f.sinδ, -f.sinα * f.sinδ, f.cosδ,
		f.cosα * f.cosδ, f.sinα * f.cosδ, f.sinδ,
	})
}

// RotateJacobian expresses a Jacobian computed in the body-equatorial
// frame in ICRF coordinates via the sandwich product Rᵀ J R. J must be
// 3x3, or 6x6 in which case each 3x3 quadrant is sandwiched in place
// (the identity extension for the velocity block).
func (f Frame) RotateJacobian(j *mat64.Dense) *mat64.Dense {
	r, c := j.Dims()
	if r != c || (r != 3 && r != 6) {
		panic("RotateJacobian expects a 3x3 or 6x6 matrix")
	}
	rot := f.Matrix()
	out := mat64.NewDense(r, c, nil)
	for bi := 0; bi < r; bi += 3 {
		for bj := 0; bj < c; bj += 3 {
			var block, tmp mat64.Dense
			block.Clone(j.View(bi, bj, 3, 3))
			tmp.Mul(rot.T(), &block)
			block.Mul(&tmp, rot)
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					out.Set(bi+a, bj+b, block.At(a, b))
				}
			}
		}
	}
	return out
}
