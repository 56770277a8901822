// Package units provides shared angle and wavelength constants used by the
// coordinate-transform and footprint code.
package units

import "math"

// Angle conversion factors.
const (
	DegToRad = math.Pi / 180.0
	RadToDeg = 180.0 / math.Pi
	// ArcsecPerDeg is the number of arcseconds in one degree.
	ArcsecPerDeg = 3600.0
)

// Micron is one micrometre in metres. Wavelengths cross the slit and IFU
// transforms in metres; reference tables quote microns.
const Micron = 1e-6

// SpeedOfLight is c in metres per second, used by the barycentric
// velocity correction.
const SpeedOfLight = 299792458.0

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * DegToRad }

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * RadToDeg }

// DegToArcsec converts an angle in degrees to arcseconds.
func DegToArcsec(deg float64) float64 { return deg * ArcsecPerDeg }

// ArcsecToDeg converts an angle in arcseconds to degrees.
func ArcsecToDeg(arcsec float64) float64 { return arcsec / ArcsecPerDeg }
