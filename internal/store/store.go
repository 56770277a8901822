// Package store persists extraction runs, grism objects and footprints in
// a local sqlite database for later reporting.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/skycal-data/skycal/internal/grism"
)

type Store struct {
	*sql.DB
}

// Open opens (or creates) the sqlite database at path. Call MigrateUp
// before first use.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Store{db}, nil
}

// Run is one recorded extraction run.
type Run struct {
	ID           string
	ExposureType string
	Instrument   string
	Filter       string
	Timestamp    time.Time
}

// GrismRecord is one persisted (object, order) extraction box.
type GrismRecord struct {
	RunID      string
	SID        int64
	Order      int
	XMin       int
	XMax       int
	YMin       int
	YMax       int
	LamMin     float64
	LamMax     float64
	Partial    bool
	XCentroid  float64
	YCentroid  float64
	RA         float64
	Dec        float64
	ABMag      float64
	IsExtended bool
}

// FootprintRecord is one persisted s_region polygon with its wavelength
// range.
type FootprintRecord struct {
	RunID   string
	SRegion string
	LamMin  float64
	LamMax  float64
}

// CreateRun inserts a new run row and returns its generated ID.
func (s *Store) CreateRun(exposureType, instrument, filter string) (string, error) {
	id := uuid.NewString()
	_, err := s.Exec(
		`INSERT INTO runs (id, exposure_type, instrument, filter) VALUES (?, ?, ?, ?)`,
		id, exposureType, instrument, filter,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// SaveGrismObjects records every surviving (object, order) box of a run in
// one transaction.
func (s *Store) SaveGrismObjects(runID string, objects []grism.Object) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO grism_objects (
			run_id, sid, spectral_order,
			xmin, xmax, ymin, ymax,
			lam_min, lam_max, partial,
			x_centroid, y_centroid, ra, dec, abmag, is_extended
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, obj := range objects {
		for order, b := range obj.OrderBounding {
			wr := obj.WaveRange[order]
			_, err := stmt.Exec(
				runID, obj.SID, order,
				b.XMin, b.XMax, b.YMin, b.YMax,
				wr[0], wr[1], obj.PartialOrder[order],
				obj.XCentroid, obj.YCentroid,
				obj.SkyCentroid.RA, obj.SkyCentroid.Dec,
				obj.IsophotalABMag, obj.IsExtended,
			)
			if err != nil {
				return fmt.Errorf("failed to insert grism object %d order %d: %w", obj.SID, order, err)
			}
		}
	}
	return tx.Commit()
}

// GrismObjects returns a run's persisted extraction boxes ordered by
// source and order.
func (s *Store) GrismObjects(runID string) ([]GrismRecord, error) {
	rows, err := s.Query(`
		SELECT run_id, sid, spectral_order,
		       xmin, xmax, ymin, ymax,
		       lam_min, lam_max, partial,
		       x_centroid, y_centroid, ra, dec, abmag, is_extended
		FROM grism_objects
		WHERE run_id = ?
		ORDER BY sid, spectral_order`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query grism objects: %w", err)
	}
	defer rows.Close()

	var records []GrismRecord
	for rows.Next() {
		var r GrismRecord
		err := rows.Scan(
			&r.RunID, &r.SID, &r.Order,
			&r.XMin, &r.XMax, &r.YMin, &r.YMax,
			&r.LamMin, &r.LamMax, &r.Partial,
			&r.XCentroid, &r.YCentroid, &r.RA, &r.Dec, &r.ABMag, &r.IsExtended,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grism object: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SaveFootprint records an exposure's s_region and wavelength range.
func (s *Store) SaveFootprint(runID, sRegion string, lamMin, lamMax float64) error {
	_, err := s.Exec(
		`INSERT INTO footprints (run_id, s_region, lam_min, lam_max) VALUES (?, ?, ?, ?)`,
		runID, sRegion, lamMin, lamMax,
	)
	if err != nil {
		return fmt.Errorf("failed to insert footprint: %w", err)
	}
	return nil
}

// Footprints returns a run's persisted footprints.
func (s *Store) Footprints(runID string) ([]FootprintRecord, error) {
	rows, err := s.Query(
		`SELECT run_id, s_region, lam_min, lam_max FROM footprints WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query footprints: %w", err)
	}
	defer rows.Close()

	var records []FootprintRecord
	for rows.Next() {
		var r FootprintRecord
		if err := rows.Scan(&r.RunID, &r.SRegion, &r.LamMin, &r.LamMax); err != nil {
			return nil, fmt.Errorf("failed to scan footprint: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.Query(
		`SELECT id, exposure_type, instrument, filter, timestamp FROM runs ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.ExposureType, &r.Instrument, &r.Filter, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
