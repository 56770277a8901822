package wcs

import (
	"math"

	"github.com/skycal-data/skycal/internal/units"
)

// TanSky is the gnomonic (TAN) deprojection from tangent-plane offsets to
// celestial coordinates, with the tangent point at (RARef, DecRef). Inputs
// are intermediate world coordinates (xi, eta) in degrees; outputs are
// (ra, dec) in degrees with ra normalised into [0, 360).
type TanSky struct {
	RARef  float64
	DecRef float64
}

func (t TanSky) NIn() int  { return 2 }
func (t TanSky) NOut() int { return 2 }

func (t TanSky) Eval(in []float64) ([]float64, error) {
	if err := checkArity(t, in); err != nil {
		return nil, err
	}
	xi := units.Radians(in[0])
	eta := units.Radians(in[1])
	ra0 := units.Radians(t.RARef)
	dec0 := units.Radians(t.DecRef)

	rho := math.Hypot(xi, eta)
	if rho == 0 {
		return []float64{normRA(t.RARef), t.DecRef}, nil
	}
	c := math.Atan(rho)
	sinC, cosC := math.Sincos(c)
	sinD0, cosD0 := math.Sincos(dec0)

	dec := math.Asin(cosC*sinD0 + eta*sinC*cosD0/rho)
	ra := ra0 + math.Atan2(xi*sinC, rho*cosD0*cosC-eta*sinD0*sinC)

	return []float64{normRA(units.Degrees(ra)), units.Degrees(dec)}, nil
}

func (t TanSky) Inverse() (Transform, error) {
	return SkyTan{RARef: t.RARef, DecRef: t.DecRef}, nil
}

// SkyTan is the forward gnomonic projection: (ra, dec) degrees to
// tangent-plane (xi, eta) degrees. Points on the far hemisphere project
// to NaN.
type SkyTan struct {
	RARef  float64
	DecRef float64
}

func (t SkyTan) NIn() int  { return 2 }
func (t SkyTan) NOut() int { return 2 }

func (t SkyTan) Eval(in []float64) ([]float64, error) {
	if err := checkArity(t, in); err != nil {
		return nil, err
	}
	ra := units.Radians(in[0])
	dec := units.Radians(in[1])
	ra0 := units.Radians(t.RARef)
	dec0 := units.Radians(t.DecRef)

	sinD, cosD := math.Sincos(dec)
	sinD0, cosD0 := math.Sincos(dec0)
	sinDR, cosDR := math.Sincos(ra - ra0)

	cosC := sinD0*sinD + cosD0*cosD*cosDR
	if cosC <= 0 {
		return []float64{math.NaN(), math.NaN()}, nil
	}
	xi := cosD * sinDR / cosC
	eta := (cosD0*sinD - sinD0*cosD*cosDR) / cosC

	return []float64{units.Degrees(xi), units.Degrees(eta)}, nil
}

func (t SkyTan) Inverse() (Transform, error) {
	return TanSky{RARef: t.RARef, DecRef: t.DecRef}, nil
}

func normRA(ra float64) float64 {
	ra = math.Mod(ra, 360.0)
	if ra < 0 {
		ra += 360.0
	}
	return ra
}
