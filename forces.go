package assist

import (
	"errors"
	"fmt"
	"math"
)

// ErrNumericalFailure is returned when a force term produces a
// non-finite acceleration.
var ErrNumericalFailure = errors.New("numerical failure")

// NumericalFailure names the force term and particle that produced a
// non-finite acceleration.
type NumericalFailure struct {
	Term     string
	Particle int
}

func (e NumericalFailure) Error() string {
	return fmt.Sprintf("numerical failure: non-finite acceleration from %s term on particle %d", e.Term, e.Particle)
}

// Unwrap lets errors.Is match ErrNumericalFailure.
func (e NumericalFailure) Unwrap() error { return ErrNumericalFailure }

// forceModel evaluates the full ephemeris force on a particle set:
// direct Newtonian gravity from all perturbers, Earth J2/J4, solar J2,
// optional non-gravitational forces, and a relativistic correction
// (Damour–Deruelle, or the EIH formulation when configured). Every
// term also advances the variational particles through its analytic
// Jacobian.
type forceModel struct {
	cfg   *Config
	ephem *Ephemeris
}

// Evaluate fills the acceleration fields of every particle at TDB time
// t. ps holds the nReal test particles followed by the variational
// particles described by links.
func (f *forceModel) Evaluate(t float64, ps []Particle, nReal int, links []VariationalLink) error {
	for i := range ps {
		ps[i].AX, ps[i].AY, ps[i].AZ = 0, 0, 0
	}

	// The offset position adjusts particle coordinates onto the active
	// reference origin: the geocenter, or the barycenter (zeros).
	var origin BodyState
	if f.cfg.Geocentric {
		var err error
		origin, err = f.ephem.Query(BodyEarth, t)
		if err != nil {
			return err
		}
	}

	if err := f.directGravity(t, ps, nReal, links, origin); err != nil {
		return err
	}
	if err := f.checkFinite("direct", ps); err != nil {
		return err
	}

	if err := f.earthHarmonics(t, ps, nReal, links, origin); err != nil {
		return err
	}
	if err := f.checkFinite("earth J2/J4", ps); err != nil {
		return err
	}

	if err := f.sunJ2(t, ps, nReal, links, origin); err != nil {
		return err
	}
	if err := f.checkFinite("sun J2", ps); err != nil {
		return err
	}

	if f.cfg.NonGravActive {
		if err := f.nonGrav(t, ps, nReal, links, origin); err != nil {
			return err
		}
		if err := f.checkFinite("non-gravitational", ps); err != nil {
			return err
		}
	}

	if f.cfg.UseEIH {
		if err := f.eih(t, ps, nReal, links, origin); err != nil {
			return err
		}
		if err := f.checkFinite("EIH", ps); err != nil {
			return err
		}
	} else {
		if err := f.relativistic(t, ps, nReal, links, origin); err != nil {
			return err
		}
		if err := f.checkFinite("relativistic", ps); err != nil {
			return err
		}
	}

	if f.cfg.Geocentric {
		// Indirect term of the geocentric equations of motion. It does
		// not depend on the particle state, so the variational
		// particles are untouched.
		for j := 0; j < nReal; j++ {
			ps[j].AX -= origin.AX
			ps[j].AY -= origin.AY
			ps[j].AZ -= origin.AZ
		}
		if err := f.checkFinite("indirect", ps); err != nil {
			return err
		}
	}
	return nil
}

func (f *forceModel) checkFinite(term string, ps []Particle) error {
	for i := range ps {
		if math.IsNaN(ps[i].AX) || math.IsInf(ps[i].AX, 0) ||
			math.IsNaN(ps[i].AY) || math.IsInf(ps[i].AY, 0) ||
			math.IsNaN(ps[i].AZ) || math.IsInf(ps[i].AZ, 0) {
			return NumericalFailure{Term: term, Particle: i}
		}
	}
	return nil
}

// directGravity accumulates the Newtonian point-mass attraction of
// every perturber, and its position Jacobian onto the variational
// particles. Perturbers are the outer loop so each ephemeris query is
// amortised across all particles, and the summation order is fixed for
// bit-identical runs.
func (f *forceModel) directGravity(t float64, ps []Particle, nReal int, links []VariationalLink, origin BodyState) error {
	for i := 0; i < NTot; i++ {
		body, err := f.ephem.Query(i, t)
		if err != nil {
			return err
		}

		for j := 0; j < nReal; j++ {
			p := &ps[j]
			dx := p.X + (origin.X - body.X)
			dy := p.Y + (origin.Y - body.Y)
			dz := p.Z + (origin.Z - body.Z)
			r2 := dx*dx + dy*dy + dz*dz
			r := math.Sqrt(r2)
			prefac := body.GM / (r2 * r)

			p.AX -= prefac * dx
			p.AY -= prefac * dy
			p.AZ -= prefac * dz
		}
	}

	// Variational equations for the direct forces.
	for i := 0; i < NTot; i++ {
		body, err := f.ephem.Query(i, t)
		if err != nil {
			return err
		}

		for j := 0; j < nReal; j++ {
			dx := ps[j].X + (origin.X - body.X)
			dy := ps[j].Y + (origin.Y - body.Y)
			dz := ps[j].Z + (origin.Z - body.Z)
			r2 := dx*dx + dy*dy + dz*dz
			r := math.Sqrt(r2)
			r3inv := 1. / (r2 * r)
			r5inv := 3. * r3inv / r2

			dxdx := dx*dx*r5inv - r3inv
			dydy := dy*dy*r5inv - r3inv
			dzdz := dz*dz*r5inv - r3inv
			dxdy := dx * dy * r5inv
			dxdz := dx * dz * r5inv
			dydz := dy * dz * r5inv

			for _, link := range links {
				if link.Parent != j {
					continue
				}
				v := &ps[link.Index]
				ddx, ddy, ddz := v.X, v.Y, v.Z

				dax := ddx*dxdx + ddy*dxdy + ddz*dxdz
				day := ddx*dxdy + ddy*dydy + ddz*dydz
				daz := ddx*dxdz + ddy*dydz + ddz*dzdz

				// No variational mass contributions for test particles.
				v.AX += body.GM * dax
				v.AY += body.GM * day
				v.AZ += body.GM * daz
			}
		}
	}
	return nil
}

// earthHarmonics applies the Earth's J2 and J4 zonal harmonics. The
// work happens in the Earth-equatorial frame: rotate the geocentric
// separation in, evaluate the zonal polynomials, rotate the
// acceleration (and, for variational particles, the Jacobian sandwich)
// back out.
func (f *forceModel) earthHarmonics(t float64, ps []Particle, nReal int, links []VariationalLink, origin BodyState) error {
	earth, err := f.ephem.Query(BodyEarth, t)
	if err != nil {
		return err
	}
	gm := earth.GM
	fr := EarthFrame

	for j := 0; j < nReal; j++ {
		p := &ps[j]
		dx0 := p.X + (origin.X - earth.X)
		dy0 := p.Y + (origin.Y - earth.Y)
		dz0 := p.Z + (origin.Z - earth.Z)
		r2 := dx0*dx0 + dy0*dy0 + dz0*dz0
		r := math.Sqrt(r2)

		dx, dy, dz := fr.Rotate(dx0, dy0, dz0)

		costheta2 := dz * dz / r2
		j2prefac := 3. * EarthJ2 * EarthEqRadius * EarthEqRadius / r2 / r2 / r / 2.
		j2fac := 5.*costheta2 - 1.

		resx := gm * j2prefac * j2fac * dx
		resy := gm * j2prefac * j2fac * dy
		resz := gm * j2prefac * (j2fac - 2.) * dz

		j4prefac := 5. * EarthJ4 * EarthEqRadius * EarthEqRadius * EarthEqRadius * EarthEqRadius / r2 / r2 / r2 / r / 8.
		j4fac := 63.*costheta2*costheta2 - 42.*costheta2 + 3.

		resx += gm * j4prefac * j4fac * dx
		resy += gm * j4prefac * j4fac * dy
		resz += gm * j4prefac * (j4fac + 12. - 28.*costheta2) * dz

		resx, resy, resz = fr.InverseRotate(resx, resy, resz)

		p.AX += resx
		p.AY += resy
		p.AZ += resz

		// Jacobian entries in the equatorial frame.
		j2fac2 := 7.*costheta2 - 1.
		j2fac3 := 35.*costheta2*costheta2 - 30.*costheta2 + 3.

		dxdx := gm * j2prefac * (j2fac - 5.*j2fac2*dx*dx/r2)
		dydy := gm * j2prefac * (j2fac - 5.*j2fac2*dy*dy/r2)
		dzdz := gm * j2prefac * (-1.) * j2fac3
		dxdy := gm * j2prefac * (-5.) * j2fac2 * dx * dy / r2
		dydz := gm * j2prefac * (-5.) * (j2fac2 - 2.) * dy * dz / r2
		dxdz := gm * j2prefac * (-5.) * (j2fac2 - 2.) * dx * dz / r2

		j4fac2 := 33.*costheta2*costheta2 - 18.*costheta2 + 1.
		j4fac3 := 33.*costheta2*costheta2 - 30.*costheta2 + 5.
		j4fac4 := 231.*costheta2*costheta2*costheta2 - 315.*costheta2*costheta2 + 105.*costheta2 - 5.

		dxdxJ4 := gm * j4prefac * (j4fac - 21.*j4fac2*dx*dx/r2)
		dydyJ4 := gm * j4prefac * (j4fac - 21.*j4fac2*dy*dy/r2)
		dzdzJ4 := gm * j4prefac * (-3.) * j4fac4
		dxdyJ4 := gm * j4prefac * (-21.) * j4fac2 * dx * dy / r2
		dydzJ4 := gm * j4prefac * (-21.) * j4fac3 * dy * dz / r2
		dxdzJ4 := gm * j4prefac * (-21.) * j4fac3 * dx * dz / r2

		for _, link := range links {
			if link.Parent != j {
				continue
			}
			v := &ps[link.Index]
			ddx, ddy, ddz := fr.Rotate(v.X, v.Y, v.Z)

			dax := ddx*dxdx + ddy*dxdy + ddz*dxdz
			day := ddx*dxdy + ddy*dydy + ddz*dydz
			daz := ddx*dxdz + ddy*dydz + ddz*dzdz

			dax += ddx*dxdxJ4 + ddy*dxdyJ4 + ddz*dxdzJ4
			day += ddx*dxdyJ4 + ddy*dydyJ4 + ddz*dydzJ4
			daz += ddx*dxdzJ4 + ddy*dydzJ4 + ddz*dzdzJ4

			dax, day, daz = fr.InverseRotate(dax, day, daz)

			v.AX += dax
			v.AY += day
			v.AZ += daz
		}
	}
	return nil
}

// sunJ2 applies the solar quadrupole in the solar-equatorial frame.
// Same shape as the Earth harmonics with the J4 block absent.
func (f *forceModel) sunJ2(t float64, ps []Particle, nReal int, links []VariationalLink, origin BodyState) error {
	sun, err := f.ephem.Query(BodySun, t)
	if err != nil {
		return err
	}
	gm := sun.GM
	fr := SunFrame

	for j := 0; j < nReal; j++ {
		p := &ps[j]
		dx0 := p.X + (origin.X - sun.X)
		dy0 := p.Y + (origin.Y - sun.Y)
		dz0 := p.Z + (origin.Z - sun.Z)
		r2 := dx0*dx0 + dy0*dy0 + dz0*dz0
		r := math.Sqrt(r2)

		dx, dy, dz := fr.Rotate(dx0, dy0, dz0)

		costheta2 := dz * dz / r2
		prefac := 3. * SunJ2 * SunEqRadius * SunEqRadius / r2 / r2 / r / 2.
		fac := 5.*costheta2 - 1.
		fac2 := 7.*costheta2 - 1.
		fac3 := 35.*costheta2*costheta2 - 30.*costheta2 + 3.

		resx := gm * prefac * fac * dx
		resy := gm * prefac * fac * dy
		resz := gm * prefac * (fac - 2.) * dz

		resx, resy, resz = fr.InverseRotate(resx, resy, resz)

		p.AX += resx
		p.AY += resy
		p.AZ += resz

		dxdx := gm * prefac * (fac - 5.*fac2*dx*dx/r2)
		dydy := gm * prefac * (fac - 5.*fac2*dy*dy/r2)
		dzdz := gm * prefac * (-1.) * fac3
		dxdy := gm * prefac * (-5.) * fac2 * dx * dy / r2
		dydz := gm * prefac * (-5.) * (fac2 - 2.) * dy * dz / r2
		dxdz := gm * prefac * (-5.) * (fac2 - 2.) * dx * dz / r2

		for _, link := range links {
			if link.Parent != j {
				continue
			}
			v := &ps[link.Index]
			ddx, ddy, ddz := fr.Rotate(v.X, v.Y, v.Z)

			dax := ddx*dxdx + ddy*dxdy + ddz*dxdz
			day := ddx*dxdy + ddy*dydy + ddz*dydz
			daz := ddx*dxdz + ddy*dydz + ddz*dzdz

			dax, day, daz = fr.InverseRotate(dax, day, daz)

			v.AX += dax
			v.AY += day
			v.AZ += daz
		}
	}
	return nil
}

// nonGrav applies the Marsden A1/A2/A3 comet model with g(r) = 1/r²:
// radial, transverse and out-of-plane components scaled by the
// heliocentric distance. The full 3x6 Jacobian feeds the variational
// particles. Particles with all three coefficients zero are skipped.
func (f *forceModel) nonGrav(t float64, ps []Particle, nReal int, links []VariationalLink, origin BodyState) error {
	sun, err := f.ephem.Query(BodySun, t)
	if err != nil {
		return err
	}

	for j := 0; j < nReal; j++ {
		p := &ps[j]
		A1, A2, A3 := p.A1, p.A2, p.A3
		if A1 == 0 && A2 == 0 && A3 == 0 {
			continue
		}

		dx := p.X + (origin.X - sun.X)
		dy := p.Y + (origin.Y - sun.Y)
		dz := p.Z + (origin.Z - sun.Z)
		r2 := dx*dx + dy*dy + dz*dz
		r := math.Sqrt(r2)
		g := 1.0 / r2

		dvx := p.VX + (origin.VX - sun.VX)
		dvy := p.VY + (origin.VY - sun.VY)
		dvz := p.VZ + (origin.VZ - sun.VZ)

		hx := dy*dvz - dz*dvy
		hy := dz*dvx - dx*dvz
		hz := dx*dvy - dy*dvx
		h := math.Sqrt(hx*hx + hy*hy + hz*hz)

		tx := hy*dz - hz*dy
		ty := hz*dx - hx*dz
		tz := hx*dy - hy*dx
		tt := math.Sqrt(tx*tx + ty*ty + tz*tz)

		p.AX += A1*g*dx/r + A2*g*tx/tt + A3*g*hx/h
		p.AY += A1*g*dy/r + A2*g*ty/tt + A3*g*hy/h
		p.AZ += A1*g*dz/r + A2*g*tz/tt + A3*g*hz/h

		r3 := r * r2
		v2 := dvx*dvx + dvy*dvy + dvz*dvz
		rdotv := dx*dvx + dy*dvy + dz*dvz
		vdott := dvx*tx + dvy*ty + dvz*tz

		dgdr := -2. * g / r
		dgx := dgdr * dx / r
		dgy := dgdr * dy / r
		dgz := dgdr * dz / r

		hxh3 := hx / (h * h * h)
		hyh3 := hy / (h * h * h)
		hzh3 := hz / (h * h * h)

		txt3 := tx / (tt * tt * tt)
		tyt3 := ty / (tt * tt * tt)
		tzt3 := tz / (tt * tt * tt)

		dxdx := A1*(dgx*dx/r+g*(1./r-dx*dx/r3)) +
			A2*(dgx*tx/tt+g*((dx*dvx-rdotv)/tt-txt3*(2.*dx*vdott-rdotv*tx))) +
			A3*(dgx*hx/h+g*(-hxh3)*(v2*dx-rdotv*dvx))

		dydy := A1*(dgy*dy/r+g*(1./r-dy*dy/r3)) +
			A2*(dgy*ty/tt+g*((dy*dvy-rdotv)/tt-tyt3*(2.*dy*vdott-rdotv*ty))) +
			A3*(dgy*hy/h+g*(-hyh3)*(v2*dy-rdotv*dvy))

		dzdz := A1*(dgz*dz/r+g*(1./r-dz*dz/r3)) +
			A2*(dgz*tz/tt+g*((dz*dvz-rdotv)/tt-tzt3*(2.*dz*vdott-rdotv*tz))) +
			A3*(dgz*hz/h+g*(-hzh3)*(v2*dz-rdotv*dvz))

		dxdy := A1*(dgy*dx/r+g*(-dx*dy/r3)) +
			A2*(dgy*tx/tt+g*((2*dy*dvx-dx*dvy)/tt-txt3*(2*dy*vdott-rdotv*ty))) +
			A3*(dgy*hx/h+g*(dvz/h-hxh3*(v2*dy-rdotv*dvy)))

		dydx := A1*(dgx*dy/r+g*(-dy*dx/r3)) +
			A2*(dgx*ty/tt+g*((2*dx*dvy-dy*dvx)/tt-tyt3*(2*dx*vdott-rdotv*tx))) +
			A3*(dgx*hy/h+g*(-dvz/h-hyh3*(v2*dx-rdotv*dvx)))

		dxdz := A1*(dgz*dx/r+g*(-dx*dz/r3)) +
			A2*(dgz*tx/tt+g*((2*dz*dvx-dx*dvz)/tt-txt3*(2*dz*vdott-rdotv*tz))) +
			A3*(dgz*hx/h+g*(-dvy/h-hxh3*(v2*dz-rdotv*dvz)))

		dzdx := A1*(dgx*dz/r+g*(-dz*dx/r3)) +
			A2*(dgx*tz/tt+g*((2*dx*dvz-dz*dvx)/tt-tzt3*(2*dx*vdott-rdotv*tx))) +
			A3*(dgx*hz/h+g*(dvy/h-hzh3*(v2*dx-rdotv*dvx)))

		dydz := A1*(dgz*dy/r+g*(-dy*dz/r3)) +
			A2*(dgz*ty/tt+g*((2*dz*dvy-dy*dvz)/tt-tyt3*(2*dz*vdott-rdotv*tz))) +
			A3*(dgz*hy/h+g*(dvx/h-hyh3*(v2*dz-rdotv*dvz)))

		dzdy := A1*(dgy*dz/r+g*(-dz*dy/r3)) +
			A2*(dgy*tz/tt+g*((2*dy*dvz-dz*dvy)/tt-tzt3*(2*dy*vdott-rdotv*ty))) +
			A3*(dgy*hz/h+g*(-dvx/h-hzh3*(v2*dy-rdotv*dvy)))

		dxdvx := A2*g*((dy*dy+dz*dz)/tt-txt3*r2*tx) +
			A3*g*(-hxh3)*(r2*dvx-dx*rdotv)

		dydvy := A2*g*((dx*dx+dz*dz)/tt-tyt3*r2*ty) +
			A3*g*(-hyh3)*(r2*dvy-dy*rdotv)

		dzdvz := A2*g*((dx*dx+dy*dy)/tt-tzt3*r2*tz) +
			A3*g*(-hzh3)*(r2*dvz-dz*rdotv)

		dxdvy := A2*g*(-dy*dx/tt-tyt3*r2*tx) +
			A3*g*(-dz/h-hxh3*(r2*dvy-dy*rdotv))

		dydvx := A2*g*(-dx*dy/tt-txt3*r2*ty) +
			A3*g*(dz/h-hyh3*(r2*dvx-dx*rdotv))

		dxdvz := A2*g*(-dz*dx/tt-tzt3*r2*tx) +
			A3*g*(dy/h-hxh3*(r2*dvz-dz*rdotv))

		dzdvx := A2*g*(-dx*dz/tt-txt3*r2*tz) +
			A3*g*(-dy/h-hzh3*(r2*dvx-dx*rdotv))

		dydvz := A2*g*(-dz*dy/tt-tzt3*r2*ty) +
			A3*g*(-dx/h-hyh3*(r2*dvz-dz*rdotv))

		dzdvy := A2*g*(-dy*dz/tt-tyt3*r2*tz) +
			A3*g*(dx/h-hzh3*(r2*dvy-dy*rdotv))

		for _, link := range links {
			if link.Parent != j {
				continue
			}
			v := &ps[link.Index]
			ddx, ddy, ddz := v.X, v.Y, v.Z
			ddvx, ddvy, ddvz := v.VX, v.VY, v.VZ

			dax := ddx*dxdx + ddy*dxdy + ddz*dxdz +
				ddvx*dxdvx + ddvy*dxdvy + ddvz*dxdvz
			day := ddx*dydx + ddy*dydy + ddz*dydz +
				ddvx*dydvx + ddvy*dydvy + ddvz*dydvz
			daz := ddx*dzdx + ddy*dzdy + ddz*dzdz +
				ddvx*dzdvx + ddvy*dzdvy + ddvz*dzdvz

			v.AX += dax
			v.AY += day
			v.AZ += daz
		}
	}
	return nil
}

// relativistic applies the Damour–Deruelle one-body solar correction
//
//	a = GM/(r³c²) · [ (4GM/r − v²)·d + 4(d·v)·v ]
//
// with the full position and velocity Jacobian.
func (f *forceModel) relativistic(t float64, ps []Particle, nReal int, links []VariationalLink, origin BodyState) error {
	sun, err := f.ephem.Query(BodySun, t)
	if err != nil {
		return err
	}
	gm := sun.GM
	c2 := f.cfg.C2

	for j := 0; j < nReal; j++ {
		p := &ps[j]
		px := p.X + (origin.X - sun.X)
		py := p.Y + (origin.Y - sun.Y)
		pz := p.Z + (origin.Z - sun.Z)
		pvx := p.VX + (origin.VX - sun.VX)
		pvy := p.VY + (origin.VY - sun.VY)
		pvz := p.VZ + (origin.VZ - sun.VZ)

		v2 := pvx*pvx + pvy*pvy + pvz*pvz
		r := math.Sqrt(px*px + py*py + pz*pz)

		A := 4.0*gm/r - v2
		B := 4.0 * (px*pvx + py*pvy + pz*pvz)
		prefac := gm / (r * r * r * c2)

		p.AX += prefac * (A*px + B*pvx)
		p.AY += prefac * (A*py + B*pvy)
		p.AZ += prefac * (A*pz + B*pvz)

		dpdr := -3.0 * prefac / r

		dxdx := dpdr*px/r*(A*px+B*pvx) + prefac*(A-px*(px/r)*4.0*gm/(r*r)+4.0*pvx*pvx)
		dxdy := dpdr*py/r*(A*px+B*pvx) + prefac*(-px*(py/r)*4.0*gm/(r*r)+4.0*pvy*pvx)
		dxdz := dpdr*pz/r*(A*px+B*pvx) + prefac*(-px*(pz/r)*4.0*gm/(r*r)+4.0*pvz*pvx)
		dxdvx := prefac * (-2.0*pvx*px + 4.0*px*pvx + B)
		dxdvy := prefac * (-2.0*pvy*px + 4.0*py*pvx)
		dxdvz := prefac * (-2.0*pvz*px + 4.0*pz*pvx)

		dydx := dpdr*px/r*(A*py+B*pvy) + prefac*(-py*(px/r)*4.0*gm/(r*r)+4.0*pvx*pvy)
		dydy := dpdr*py/r*(A*py+B*pvy) + prefac*(A-py*(py/r)*4.0*gm/(r*r)+4.0*pvy*pvy)
		dydz := dpdr*pz/r*(A*py+B*pvy) + prefac*(-py*(pz/r)*4.0*gm/(r*r)+4.0*pvz*pvy)
		dydvx := prefac * (-2.0*pvx*py + 4.0*px*pvy)
		dydvy := prefac * (-2.0*pvy*py + 4.0*py*pvy + B)
		dydvz := prefac * (-2.0*pvz*py + 4.0*pz*pvy)

		dzdx := dpdr*px/r*(A*pz+B*pvz) + prefac*(-pz*(px/r)*4.0*gm/(r*r)+4.0*pvx*pvz)
		dzdy := dpdr*py/r*(A*pz+B*pvz) + prefac*(-pz*(py/r)*4.0*gm/(r*r)+4.0*pvy*pvz)
		dzdz := dpdr*pz/r*(A*pz+B*pvz) + prefac*(A-pz*(pz/r)*4.0*gm/(r*r)+4.0*pvz*pvz)
		dzdvx := prefac * (-2.0*pvx*pz + 4.0*px*pvz)
		dzdvy := prefac * (-2.0*pvy*pz + 4.0*py*pvz)
		dzdvz := prefac * (-2.0*pvz*pz + 4.0*pz*pvz + B)

		for _, link := range links {
			if link.Parent != j {
				continue
			}
			v := &ps[link.Index]
			ddx, ddy, ddz := v.X, v.Y, v.Z
			ddvx, ddvy, ddvz := v.VX, v.VY, v.VZ

			dax := ddx*dxdx + ddy*dxdy + ddz*dxdz +
				ddvx*dxdvx + ddvy*dxdvy + ddvz*dxdvz
			day := ddx*dydx + ddy*dydy + ddz*dydz +
				ddvx*dydvx + ddvy*dydvy + ddvz*dydvz
			daz := ddx*dzdx + ddy*dzdy + ddz*dzdz +
				ddvx*dzdvx + ddvy*dzdvy + ddvz*dzdvz

			v.AX += dax
			v.AY += day
			v.AZ += daz
		}
	}
	return nil
}
