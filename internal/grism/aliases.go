package grism

import "github.com/skycal-data/skycal/internal/wcs"

// Type aliases for the transform-chain package, so dispersion models
// satisfy wcs.Transform without qualifying every signature.

// Transform is the chain transform interface.
type Transform = wcs.Transform
