package grism

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/skycal-data/skycal/internal/monitoring"
)

var (
	// ErrNoWavelengthRange reports that no wavelength-range data is
	// available for a requested filter/order.
	ErrNoWavelengthRange = errors.New("no wavelength-range data")
	// ErrNotWFSS reports a wavelength-range reference not built for
	// slitless modes.
	ErrNotWFSS = errors.New("wavelengthrange reference file not for WFSS")
)

// RangeEntry is one (order, filter) -> wavelength interval row of the
// reference table. Wavelengths are in microns.
type RangeEntry struct {
	Order  int     `json:"order"`
	Filter string  `json:"filter"`
	LMin   float64 `json:"lmin"`
	LMax   float64 `json:"lmax"`
}

// OrderSelection names the default extraction orders for one filter.
type OrderSelection struct {
	Filter string `json:"filter"`
	Orders []int  `json:"orders"`
}

// WavelengthRange is the per-instrument wavelength-range reference table
// governing grism extraction extents.
type WavelengthRange struct {
	ExposureType  string           `json:"exposure_type"`
	ExtractOrders []OrderSelection `json:"extract_orders"`
	Ranges        []RangeEntry     `json:"ranges"`
}

// LoadWavelengthRange reads a wavelength-range reference table from a
// JSON file and validates that it applies to slitless exposures.
func LoadWavelengthRange(path string) (*WavelengthRange, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading wavelengthrange reference: %w", err)
	}
	var wr WavelengthRange
	if err := json.Unmarshal(raw, &wr); err != nil {
		return nil, fmt.Errorf("parsing wavelengthrange reference: %w", err)
	}
	if !strings.Contains(wr.ExposureType, "WFSS") {
		monitoring.Logf("Wavelengthrange reference file not for WFSS")
		return nil, ErrNotWFSS
	}
	return &wr, nil
}

// OrdersForFilter returns the default extraction orders for a filter.
func (wr *WavelengthRange) OrdersForFilter(filter string) ([]int, error) {
	for _, sel := range wr.ExtractOrders {
		if sel.Filter == filter {
			return sel.Orders, nil
		}
	}
	return nil, fmt.Errorf("%w: no extract orders for filter %q", ErrNoWavelengthRange, filter)
}

// WFSSRange collects the wavelength interval per requested order for a
// filter. Every requested order must be present in the table.
func (wr *WavelengthRange) WFSSRange(filter string, orders []int) (map[int][2]float64, error) {
	out := make(map[int][2]float64, len(orders))
	for _, order := range orders {
		found := false
		for _, e := range wr.Ranges {
			if e.Order == order && e.Filter == filter {
				out[order] = [2]float64{e.LMin, e.LMax}
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: filter %q order %d", ErrNoWavelengthRange, filter, order)
		}
	}
	return out, nil
}
