// Package config loads extraction and SIP-fit tuning parameters from
// JSON. Fields omitted from the file fall back to the documented
// defaults, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ExtractionConfig is the root configuration for a grism extraction run.
// Pointer fields distinguish "not set" from zero values.
type ExtractionConfig struct {
	// Extraction params
	MMagExtract       *float64 `json:"mmag_extract,omitempty"`
	ExtractOrders     []int    `json:"extract_orders,omitempty"`
	ExtractHalfHeight *int     `json:"wfss_extract_half_height,omitempty"`
	NBright           *int     `json:"nbright,omitempty"`

	// SIP fit params
	MaxPixError    *float64 `json:"max_pix_error,omitempty"`
	MaxInvPixError *float64 `json:"max_inv_pix_error,omitempty"`
	SIPDegree      *int     `json:"sip_degree,omitempty"`
	NPoints        *int     `json:"npoints,omitempty"`

	// Reference files
	WavelengthRangePath *string `json:"wavelength_range,omitempty"`
	SourceCatalogPath   *string `json:"source_catalog,omitempty"`
}

// EmptyExtractionConfig returns a config with all fields unset.
func EmptyExtractionConfig() *ExtractionConfig {
	return &ExtractionConfig{}
}

// LoadExtractionConfig loads an ExtractionConfig from a JSON file. The
// path must carry a .json extension; the file is size-capped for safety.
func LoadExtractionConfig(path string) (*ExtractionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyExtractionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks fields that have hard constraints. Unset fields are
// always valid.
func (c *ExtractionConfig) Validate() error {
	if c.ExtractHalfHeight != nil && *c.ExtractHalfHeight < 1 {
		return fmt.Errorf("wfss_extract_half_height must be positive, got %d", *c.ExtractHalfHeight)
	}
	if c.NBright != nil && *c.NBright < 1 {
		return fmt.Errorf("nbright must be positive, got %d", *c.NBright)
	}
	if c.MaxPixError != nil && *c.MaxPixError <= 0 {
		return fmt.Errorf("max_pix_error must be positive, got %g", *c.MaxPixError)
	}
	if c.SIPDegree != nil && (*c.SIPDegree < 1 || *c.SIPDegree > 6) {
		return fmt.Errorf("sip_degree must be in [1, 6], got %d", *c.SIPDegree)
	}
	if c.NPoints != nil && *c.NPoints < 3 {
		return fmt.Errorf("npoints must be at least 3, got %d", *c.NPoints)
	}
	return nil
}

// GetMMagExtract returns the magnitude cutoff, defaulting to extract-all.
func (c *ExtractionConfig) GetMMagExtract() float64 {
	if c.MMagExtract == nil {
		return 999.0 // default: no cutoff
	}
	return *c.MMagExtract
}

// GetMaxPixError returns the forward SIP fit tolerance in pixels.
func (c *ExtractionConfig) GetMaxPixError() float64 {
	if c.MaxPixError == nil {
		return 0.01 // default
	}
	return *c.MaxPixError
}

// GetNPoints returns the per-axis SIP sample count.
func (c *ExtractionConfig) GetNPoints() int {
	if c.NPoints == nil {
		return 12 // default
	}
	return *c.NPoints
}

// GetSourceCatalogPath returns the catalog path, or "" when unset.
func (c *ExtractionConfig) GetSourceCatalogPath() string {
	if c.SourceCatalogPath == nil {
		return ""
	}
	return *c.SourceCatalogPath
}

// GetWavelengthRangePath returns the reference-table path, or "" when
// unset.
func (c *ExtractionConfig) GetWavelengthRangePath() string {
	if c.WavelengthRangePath == nil {
		return ""
	}
	return *c.WavelengthRangePath
}
