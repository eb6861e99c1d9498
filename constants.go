package assist

// Physical constants and body tables. Units are au, days, and solar
// masses throughout; every GM below is G*mass in au^3/day^2, taken
// from the DE440/441 header so that the force model stays consistent
// with the ephemerides it reads.

const (
	// AU is one astronomical unit in kilometers.
	AU = 149597870.700
	// SpeedOfLight is c in au/day.
	SpeedOfLight = 173.14463267424031
	// GravitationalConstant is G in au^3 Msun^-1 day^-2 (equals GM_Sun
	// since masses are in solar masses).
	GravitationalConstant = 2.959122082841196e-04
)

// Perturber counts. Indices [0,NEphem) are planetary bodies served by
// the DE ephemeris; [NEphem,NTot) are massive asteroids served by the
// small-body SPK file.
const (
	NEphem = 11
	NAst   = 16
	NTot   = NEphem + NAst
)

// Planetary body indices within the perturber table.
const (
	BodySun = iota
	BodyMercury
	BodyVenus
	BodyEarth
	BodyMoon
	BodyMars
	BodyJupiter
	BodySaturn
	BodyUranus
	BodyNeptune
	BodyPluto
)

// planetGM holds G*mass for the planetary bodies, DE440/441 values.
var planetGM = [NEphem]float64{
	0.2959122082841196e-03, // sun
	0.4912500194889318e-10, // mercury
	0.7243452332644119e-09, // venus
	0.8887692446707102e-09, // earth
	0.1093189462402435e-10, // moon
	0.9549548829725812e-10, // mars
	0.2825345825225792e-06, // jupiter
	0.8459705993376290e-07, // saturn
	0.1292026564968240e-07, // uranus
	0.1524357347885194e-07, // neptune
	0.2175096464893358e-11, // pluto
}

var planetNames = [NEphem]string{
	"Sun", "Mercury", "Venus", "Earth", "Moon", "Mars",
	"Jupiter", "Saturn", "Uranus", "Neptune", "Pluto",
}

// asteroidGM holds G*mass for the sixteen massive main-belt asteroids
// of the sb441-n16 file, DE441 values, in the file's segment order.
var asteroidGM = [NAst]float64{
	3.2191392075878588e-15, // 107 camilla
	1.3964518123081070e-13, // 1 ceres
	2.0917175955133682e-15, // 65 cybele
	8.6836253492286545e-15, // 511 davida
	4.5107799051436795e-15, // 15 eunomia
	2.4067012218937576e-15, // 31 euphrosyne
	5.9824315264869841e-15, // 52 europa
	1.2542530761640810e-14, // 10 hygiea
	6.3110343420878887e-15, // 704 interamnia
	2.5416014973471498e-15, // 7 iris
	4.2823439677995011e-15, // 3 juno
	3.0471146330043200e-14, // 2 pallas
	3.5445002842488978e-15, // 16 psyche
	4.8345606546105521e-15, // 87 sylvia
	2.6529436610356353e-15, // 88 thisbe
	3.8548000225257904e-14, // 4 vesta
}

var asteroidNames = [NAst]string{
	"Camilla", "Ceres", "Cybele", "Davida", "Eunomia", "Euphrosyne",
	"Europa", "Hygiea", "Interamnia", "Iris", "Juno", "Pallas",
	"Psyche", "Sylvia", "Thisbe", "Vesta",
}

// Zonal harmonic constants.
const (
	// EarthJ2 and EarthJ4 are the Earth's zonal harmonics, DE441-aligned.
	EarthJ2 = 1.0826253900e-03
	EarthJ4 = -1.619898e-06
	// EarthEqRadius is the Earth's equatorial radius in au.
	EarthEqRadius = 6378.1366 / AU
	// SunJ2 is the Sun's quadrupole moment.
	SunJ2 = 2.196139151652982e-07
	// SunEqRadius is the solar equatorial radius in au.
	SunEqRadius = 696000.0 / AU
)

// Body-fixed pole orientations at J2000, in degrees.
// The Earth pole is frozen on the ICRF z axis; the sub-arcsecond
// offset of the true J2000 pole is not modelled.
const (
	EarthPoleRA  = 0.0
	EarthPoleDec = 90.0
	SunPoleRA    = 286.13
	SunPoleDec   = 63.87
)

// BodyName returns the name of perturber i, or "body out of range" if i
// is outside [0, NTot).
func BodyName(i int) string {
	if i >= 0 && i < NEphem {
		return planetNames[i]
	}
	if i >= NEphem && i < NTot {
		return asteroidNames[i-NEphem]
	}
	return "body out of range"
}
