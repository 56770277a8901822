package wcs

import "github.com/skycal-data/skycal/internal/units"

// VelocityCorrection builds the wavelength correction to the barycentric
// reference frame for a radial velocity in m/s. The returned transform
// scales a single wavelength coordinate by 1/(1 + velosys/c) and inverts
// exactly.
func VelocityCorrection(velosys float64) Transform {
	return Scale{Factor: 1.0 / (1.0 + velosys/units.SpeedOfLight)}
}
