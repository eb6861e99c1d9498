package assist

import "math"

// eihBodies is the number of perturbers treated as 1PN sources in the
// EIH sum. The solar term dominates by several orders of magnitude, so
// only the Sun is active; the loop form is kept so the sum can be
// widened to all planetary bodies.
const eihBodies = 1

// eih applies the Einstein–Infeld–Hoffmann 1PN correction with
// β = γ = 1, including the full position and velocity Jacobian for the
// variational particles. The source acceleration entering the formula
// is rebuilt from the Newtonian pulls of the other planetary bodies
// rather than read from the ephemeris, which keeps the term consistent
// with the point-mass model it corrects.
func (f *forceModel) eih(t float64, ps []Particle, nReal int, links []VariationalLink, origin BodyState) error {
	c2 := f.cfg.C2
	beta := 1.0
	gamma := 1.0

	for i := 0; i < nReal; i++ {
		p := &ps[i]

		var dxdx, dxdy, dxdz, dxdvx, dxdvy, dxdvz float64
		var dydx, dydy, dydz, dydvx, dydvy, dydvz float64
		var dzdx, dzdy, dzdz, dzdvx, dzdvy, dzdvz float64

		var term7xSum, term7ySum, term7zSum float64
		var dterm7xSumdx, dterm7xSumdy, dterm7xSumdz float64
		var dterm7xSumdvx, dterm7xSumdvy, dterm7xSumdvz float64
		var dterm7ySumdx, dterm7ySumdy, dterm7ySumdz float64
		var dterm7ySumdvx, dterm7ySumdvy, dterm7ySumdvz float64
		var dterm7zSumdx, dterm7zSumdy, dterm7zSumdz float64
		var dterm7zSumdvx, dterm7zSumdvy, dterm7zSumdvz float64

		var term8xSum, term8ySum, term8zSum float64
		var dterm8xSumdx, dterm8xSumdy, dterm8xSumdz float64
		var dterm8ySumdx, dterm8ySumdy, dterm8ySumdz float64
		var dterm8zSumdx, dterm8zSumdy, dterm8zSumdz float64

		var grx, gry, grz float64

		for j := 0; j < eihBodies; j++ {
			bj, err := f.ephem.Query(j, t)
			if err != nil {
				return err
			}

			dxij := p.X + (origin.X - bj.X)
			dyij := p.Y + (origin.Y - bj.Y)
			dzij := p.Z + (origin.Z - bj.Z)
			rij2 := dxij*dxij + dyij*dyij + dzij*dzij
			rij := math.Sqrt(rij2)
			prefacij := bj.GM / (rij * rij * rij)

			dprefacijdx := -3.0 * bj.GM / (rij * rij * rij * rij * rij) * dxij
			dprefacijdy := -3.0 * bj.GM / (rij * rij * rij * rij * rij) * dyij
			dprefacijdz := -3.0 * bj.GM / (rij * rij * rij * rij * rij) * dzij

			vi2 := p.VX*p.VX + p.VY*p.VY + p.VZ*p.VZ

			term2 := gamma / c2 * vi2
			dterm2dvx := 2.0 * gamma / c2 * p.VX
			dterm2dvy := 2.0 * gamma / c2 * p.VY
			dterm2dvz := 2.0 * gamma / c2 * p.VZ

			vjx := bj.VX - origin.VX
			vjy := bj.VY - origin.VY
			vjz := bj.VZ - origin.VZ

			vj2 := vjx*vjx + vjy*vjy + vjz*vjz
			term3 := (1 + gamma) / c2 * vj2
			// The variational equations do not depend on term3.

			vidotvj := p.VX*vjx + p.VY*vjy + p.VZ*vjz
			term4 := -2 * (1 + gamma) / c2 * vidotvj
			dterm4dvx := -2 * (1 + gamma) / c2 * vjx
			dterm4dvy := -2 * (1 + gamma) / c2 * vjy
			dterm4dvz := -2 * (1 + gamma) / c2 * vjz

			rijdotvj := dxij*vjx + dyij*vjy + dzij*vjz
			term5 := -1.5 / c2 * (rijdotvj * rijdotvj) / rij2
			dterm5dx := -3.0 / c2 * rijdotvj / rij * (vjx/rij - rijdotvj*dxij/(rij*rij*rij))
			dterm5dy := -3.0 / c2 * rijdotvj / rij * (vjy/rij - rijdotvj*dyij/(rij*rij*rij))
			dterm5dz := -3.0 / c2 * rijdotvj / rij * (vjz/rij - rijdotvj*dzij/(rij*rij*rij))

			fx := (2+2*gamma)*p.VX - (1+2*gamma)*vjx
			fy := (2+2*gamma)*p.VY - (1+2*gamma)*vjy
			fz := (2+2*gamma)*p.VZ - (1+2*gamma)*vjz
			fdot := dxij*fx + dyij*fy + dzij*fz

			dfdx := fx
			dfdy := fy
			dfdz := fz
			dfdvx := dxij * (2 + 2*gamma)
			dfdvy := dyij * (2 + 2*gamma)
			dfdvz := dzij * (2 + 2*gamma)

			relvx := p.VX - vjx
			relvy := p.VY - vjy
			relvz := p.VZ - vjz

			term7xSum += prefacij * fdot * relvx
			term7ySum += prefacij * fdot * relvy
			term7zSum += prefacij * fdot * relvz

			dterm7xSumdx += dprefacijdx*fdot*relvx + prefacij*dfdx*relvx
			dterm7xSumdy += dprefacijdy*fdot*relvx + prefacij*dfdy*relvx
			dterm7xSumdz += dprefacijdz*fdot*relvx + prefacij*dfdz*relvx
			dterm7xSumdvx += prefacij*dfdvx*relvx + prefacij*fdot
			dterm7xSumdvy += prefacij * dfdvy * relvx
			dterm7xSumdvz += prefacij * dfdvz * relvx

			dterm7ySumdx += dprefacijdx*fdot*relvy + prefacij*dfdx*relvy
			dterm7ySumdy += dprefacijdy*fdot*relvy + prefacij*dfdy*relvy
			dterm7ySumdz += dprefacijdz*fdot*relvy + prefacij*dfdz*relvy
			dterm7ySumdvx += prefacij * dfdvx * relvy
			dterm7ySumdvy += prefacij*dfdvy*relvy + prefacij*fdot
			dterm7ySumdvz += prefacij * dfdvz * relvy

			dterm7zSumdx += dprefacijdx*fdot*relvz + prefacij*dfdx*relvz
			dterm7zSumdy += dprefacijdy*fdot*relvz + prefacij*dfdy*relvz
			dterm7zSumdz += dprefacijdz*fdot*relvz + prefacij*dfdz*relvz
			dterm7zSumdvx += prefacij * dfdvx * relvz
			dterm7zSumdvy += prefacij * dfdvy * relvz
			dterm7zSumdvz += prefacij*dfdvz*relvz + prefacij*fdot

			var term0, dterm0dx, dterm0dy, dterm0dz float64
			var term1 float64
			axj, ayj, azj := 0.0, 0.0, 0.0

			for k := 0; k < NEphem; k++ {
				bk, err := f.ephem.Query(k, t)
				if err != nil {
					return err
				}

				dxik := p.X + (origin.X - bk.X)
				dyik := p.Y + (origin.Y - bk.Y)
				dzik := p.Z + (origin.Z - bk.Z)
				rik := math.Sqrt(dxik*dxik + dyik*dyik + dzik*dzik)

				term0 += bk.GM / rik
				dterm0dx -= bk.GM / (rik * rik * rik) * dxik
				dterm0dy -= bk.GM / (rik * rik * rik) * dyik
				dterm0dz -= bk.GM / (rik * rik * rik) * dzik

				if k != j {
					dxjk := bj.X - bk.X
					dyjk := bj.Y - bk.Y
					dzjk := bj.Z - bk.Z
					rjk := math.Sqrt(dxjk*dxjk + dyjk*dyjk + dzjk*dzjk)

					term1 += bk.GM / rjk

					axj -= bk.GM * dxjk / (rjk * rjk * rjk)
					ayj -= bk.GM * dyjk / (rjk * rjk * rjk)
					azj -= bk.GM * dzjk / (rjk * rjk * rjk)
				}
			}

			term0 *= -2 * (beta + gamma) / c2
			dterm0dx *= -2 * (beta + gamma) / c2
			dterm0dy *= -2 * (beta + gamma) / c2
			dterm0dz *= -2 * (beta + gamma) / c2

			term1 *= -(2*beta - 1) / c2

			rijdotaj := dxij*(axj-origin.AX) + dyij*(ayj-origin.AY) + dzij*(azj-origin.AZ)
			term6 := -0.5 / c2 * rijdotaj
			dterm6dx := -0.5 / c2 * (axj - origin.AX)
			dterm6dy := -0.5 / c2 * (ayj - origin.AY)
			dterm6dz := -0.5 / c2 * (azj - origin.AZ)

			term8x := bj.GM * axj / rij * (3 + 4*gamma) / 2
			term8y := bj.GM * ayj / rij * (3 + 4*gamma) / 2
			term8z := bj.GM * azj / rij * (3 + 4*gamma) / 2

			term8xSum += term8x
			term8ySum += term8y
			term8zSum += term8z

			dterm8xSumdx += -bj.GM * axj / (rij * rij * rij) * dxij * (3 + 4*gamma) / 2
			dterm8xSumdy += -bj.GM * axj / (rij * rij * rij) * dyij * (3 + 4*gamma) / 2
			dterm8xSumdz += -bj.GM * axj / (rij * rij * rij) * dzij * (3 + 4*gamma) / 2

			dterm8ySumdx += -bj.GM * ayj / (rij * rij * rij) * dxij * (3 + 4*gamma) / 2
			dterm8ySumdy += -bj.GM * ayj / (rij * rij * rij) * dyij * (3 + 4*gamma) / 2
			dterm8ySumdz += -bj.GM * ayj / (rij * rij * rij) * dzij * (3 + 4*gamma) / 2

			dterm8zSumdx += -bj.GM * azj / (rij * rij * rij) * dxij * (3 + 4*gamma) / 2
			dterm8zSumdy += -bj.GM * azj / (rij * rij * rij) * dyij * (3 + 4*gamma) / 2
			dterm8zSumdz += -bj.GM * azj / (rij * rij * rij) * dzij * (3 + 4*gamma) / 2

			factor := term0 + term1 + term2 + term3 + term4 + term5 + term6

			dfactordx := dterm0dx + dterm5dx + dterm6dx
			dfactordy := dterm0dy + dterm5dy + dterm6dy
			dfactordz := dterm0dz + dterm5dz + dterm6dz
			dfactordvx := dterm2dvx + dterm4dvx
			dfactordvy := dterm2dvy + dterm4dvy
			dfactordvz := dterm2dvz + dterm4dvz

			grx += -prefacij * dxij * factor
			gry += -prefacij * dyij * factor
			grz += -prefacij * dzij * factor

			dxdx += -dprefacijdx*dxij*factor - prefacij*factor - prefacij*dxij*dfactordx
			dxdy += -dprefacijdy*dxij*factor - prefacij*dxij*dfactordy
			dxdz += -dprefacijdz*dxij*factor - prefacij*dxij*dfactordz
			dxdvx += -prefacij * dxij * dfactordvx
			dxdvy += -prefacij * dxij * dfactordvy
			dxdvz += -prefacij * dxij * dfactordvz

			dydx += -dprefacijdx*dyij*factor - prefacij*dyij*dfactordx
			dydy += -dprefacijdy*dyij*factor - prefacij*factor - prefacij*dyij*dfactordy
			dydz += -dprefacijdz*dyij*factor - prefacij*dyij*dfactordz
			dydvx += -prefacij * dyij * dfactordvx
			dydvy += -prefacij * dyij * dfactordvy
			dydvz += -prefacij * dyij * dfactordvz

			dzdx += -dprefacijdx*dzij*factor - prefacij*dzij*dfactordx
			dzdy += -dprefacijdy*dzij*factor - prefacij*dzij*dfactordy
			dzdz += -dprefacijdz*dzij*factor - prefacij*factor - prefacij*dzij*dfactordz
			dzdvx += -prefacij * dzij * dfactordvx
			dzdvy += -prefacij * dzij * dfactordvy
			dzdvz += -prefacij * dzij * dfactordvz
		}

		grx += term7xSum/c2 + term8xSum/c2
		gry += term7ySum/c2 + term8ySum/c2
		grz += term7zSum/c2 + term8zSum/c2

		dxdx += dterm7xSumdx/c2 + dterm8xSumdx/c2
		dxdy += dterm7xSumdy/c2 + dterm8xSumdy/c2
		dxdz += dterm7xSumdz/c2 + dterm8xSumdz/c2
		dxdvx += dterm7xSumdvx / c2
		dxdvy += dterm7xSumdvy / c2
		dxdvz += dterm7xSumdvz / c2

		dydx += dterm7ySumdx/c2 + dterm8ySumdx/c2
		dydy += dterm7ySumdy/c2 + dterm8ySumdy/c2
		dydz += dterm7ySumdz/c2 + dterm8ySumdz/c2
		dydvx += dterm7ySumdvx / c2
		dydvy += dterm7ySumdvy / c2
		dydvz += dterm7ySumdvz / c2

		dzdx += dterm7zSumdx/c2 + dterm8zSumdx/c2
		dzdy += dterm7zSumdy/c2 + dterm8zSumdy/c2
		dzdz += dterm7zSumdz/c2 + dterm8zSumdz/c2
		dzdvx += dterm7zSumdvx / c2
		dzdvy += dterm7zSumdvy / c2
		dzdvz += dterm7zSumdvz / c2

		p.AX += grx
		p.AY += gry
		p.AZ += grz

		for _, link := range links {
			if link.Parent != i {
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
