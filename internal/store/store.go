// Package store persists satellites, TLE history, discovery state, and
// propagation output in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cywf/tle-fetcher/internal/tle"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the SQLite database holding all durable state.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the database at path, creating parent
// directories and applying the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// GetOrCreateSatellite returns the row id for noradID, inserting it with
// name on first sight. An empty name never clobbers a stored one.
func (s *Store) GetOrCreateSatellite(ctx context.Context, noradID, name string) (int64, error) {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO satellites (norad_id, name, created_at) VALUES (?, ?, ?)
         ON CONFLICT(norad_id) DO UPDATE SET name = excluded.name
         WHERE excluded.name IS NOT NULL AND excluded.name != ''`,
		noradID,
		nullableString(name),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert satellite: %w", err)
	}

	var id int64
	row := s.db.QueryRowContext(ctx, `SELECT id FROM satellites WHERE norad_id = ?`, noradID)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup satellite: %w", err)
	}
	return id, nil
}

// SatelliteName returns the stored name for noradID, or "" when unknown.
func (s *Store) SatelliteName(ctx context.Context, noradID string) (string, error) {
	var name sql.NullString
	row := s.db.QueryRowContext(ctx, `SELECT name FROM satellites WHERE norad_id = ?`, noradID)
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("satellite name: %w", err)
	}
	return name.String, nil
}

// RecordTLE stores a validated record, deduplicating on (satellite,
// epoch, source). The record's epoch is decoded from line 1.
func (s *Store) RecordTLE(ctx context.Context, rec tle.Record, fetchedAt time.Time) error {
	epoch, err := tle.Epoch(rec.Line1)
	if err != nil {
		return fmt.Errorf("decode epoch: %w", err)
	}

	satID, err := s.GetOrCreateSatellite(ctx, rec.ObjectID, rec.Name)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO tles (satellite_id, line1, line2, epoch, source, fetched_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(satellite_id, epoch, source) DO UPDATE SET
             line1 = excluded.line1,
             line2 = excluded.line2,
             fetched_at = excluded.fetched_at`,
		satID,
		rec.Line1,
		rec.Line2,
		epoch.Format(time.RFC3339Nano),
		rec.Source,
		fetchedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert tle: %w", err)
	}
	return nil
}

// StoredTLE is a TLE row joined with its satellite.
type StoredTLE struct {
	Record    tle.Record
	Epoch     time.Time
	FetchedAt time.Time
}

// LatestTLE returns the most recent TLE for noradID by epoch, or nil
// when none is stored.
func (s *Store) LatestTLE(ctx context.Context, noradID string) (*StoredTLE, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT sat.norad_id, sat.name, t.line1, t.line2, t.epoch, t.source, t.fetched_at
         FROM tles t JOIN satellites sat ON sat.id = t.satellite_id
         WHERE sat.norad_id = ?
         ORDER BY t.epoch DESC, t.fetched_at DESC LIMIT 1`,
		noradID,
	)
	stored, err := scanStoredTLE(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest tle: %w", err)
	}
	return stored, nil
}

// LatestTLEs returns the newest stored TLE for every satellite, ordered
// by catalog number.
func (s *Store) LatestTLEs(ctx context.Context) ([]*StoredTLE, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT sat.norad_id, sat.name, t.line1, t.line2, t.epoch, t.source, t.fetched_at
         FROM tles t JOIN satellites sat ON sat.id = t.satellite_id
         WHERE t.id = (
             SELECT t2.id FROM tles t2 WHERE t2.satellite_id = t.satellite_id
             ORDER BY t2.epoch DESC, t2.fetched_at DESC LIMIT 1
         )
         ORDER BY sat.norad_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("latest tles: %w", err)
	}
	defer rows.Close()

	var latest []*StoredTLE
	for rows.Next() {
		stored, err := scanStoredTLE(rows)
		if err != nil {
			return nil, fmt.Errorf("latest tles: %w", err)
		}
		latest = append(latest, stored)
	}
	return latest, rows.Err()
}

// TLEHistory returns stored TLEs for noradID, newest epoch first.
func (s *Store) TLEHistory(ctx context.Context, noradID string, limit int) ([]*StoredTLE, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT sat.norad_id, sat.name, t.line1, t.line2, t.epoch, t.source, t.fetched_at
         FROM tles t JOIN satellites sat ON sat.id = t.satellite_id
         WHERE sat.norad_id = ?
         ORDER BY t.epoch DESC, t.fetched_at DESC LIMIT ?`,
		noradID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("tle history: %w", err)
	}
	defer rows.Close()

	var history []*StoredTLE
	for rows.Next() {
		stored, err := scanStoredTLE(rows)
		if err != nil {
			return nil, fmt.Errorf("tle history: %w", err)
		}
		history = append(history, stored)
	}
	return history, rows.Err()
}

func scanStoredTLE(scanner interface{ Scan(dest ...any) error }) (*StoredTLE, error) {
	var (
		noradID    string
		name       sql.NullString
		line1      string
		line2      string
		epochRaw   string
		source     string
		fetchedRaw string
	)
	if err := scanner.Scan(&noradID, &name, &line1, &line2, &epochRaw, &source, &fetchedRaw); err != nil {
		return nil, err
	}

	stored := &StoredTLE{
		Record: tle.Record{
			ObjectID: noradID,
			Name:     name.String,
			Line1:    line1,
			Line2:    line2,
			Source:   source,
		},
	}
	var err error
	if stored.Epoch, err = time.Parse(time.RFC3339Nano, epochRaw); err != nil {
		return nil, fmt.Errorf("parse epoch %q: %w", epochRaw, err)
	}
	if stored.FetchedAt, err = time.Parse(time.RFC3339Nano, fetchedRaw); err != nil {
		return nil, fmt.Errorf("parse fetched_at %q: %w", fetchedRaw, err)
	}
	return stored, nil
}

// Position is one sampled satellite state.
type Position struct {
	Timestamp  time.Time
	X, Y, Z    float64
	VX, VY, VZ float64
	Latitude   float64
	Longitude  float64
	AltitudeKm float64
}

// CreateRun opens a propagation run row and returns its id.
func (s *Store) CreateRun(ctx context.Context, noradID, frame, backend string) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO propagation_runs (norad_id, frame, backend, started_at)
         VALUES (?, ?, ?, ?)`,
		noradID,
		frame,
		backend,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun closes a propagation run with its sample count.
func (s *Store) FinishRun(ctx context.Context, runID int64, samples int) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE propagation_runs SET finished_at = ?, samples = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		samples,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordPositions stores sampled states for one run in a single
// transaction.
func (s *Store) RecordPositions(ctx context.Context, runID int64, noradID string, positions []Position) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin positions tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(
		ctx,
		`INSERT INTO positions (
            run_id, norad_id, timestamp, x, y, z, vx, vy, vz,
            latitude, longitude, altitude_km
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare positions insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range positions {
		if _, err := stmt.ExecContext(
			ctx,
			runID,
			noradID,
			p.Timestamp.UTC().Format(time.RFC3339Nano),
			p.X, p.Y, p.Z,
			p.VX, p.VY, p.VZ,
			p.Latitude, p.Longitude, p.AltitudeKm,
		); err != nil {
			return fmt.Errorf("insert position: %w", err)
		}
	}
	return tx.Commit()
}

// PositionsForRun returns the stored samples for a run in time order.
func (s *Store) PositionsForRun(ctx context.Context, runID int64) ([]Position, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT timestamp, x, y, z, vx, vy, vz, latitude, longitude, altitude_km
         FROM positions WHERE run_id = ? ORDER BY timestamp`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("positions for run: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var (
			p   Position
			raw string
		)
		if err := rows.Scan(&raw, &p.X, &p.Y, &p.Z, &p.VX, &p.VY, &p.VZ, &p.Latitude, &p.Longitude, &p.AltitudeKm); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		if p.Timestamp, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", raw, err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// IntegrityCheck runs SQLite's integrity check and returns its verdict
// ("ok" when the database is sound).
func (s *Store) IntegrityCheck(ctx context.Context) (string, error) {
	var verdict string
	row := s.db.QueryRowContext(ctx, `PRAGMA integrity_check`)
	if err := row.Scan(&verdict); err != nil {
		return "", fmt.Errorf("integrity check: %w", err)
	}
	return verdict, nil
}

// Counts returns the number of stored satellites and TLEs.
func (s *Store) Counts(ctx context.Context) (satellites, tles int64, err error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT (SELECT COUNT(*) FROM satellites), (SELECT COUNT(*) FROM tles)`,
	)
	if err := row.Scan(&satellites, &tles); err != nil {
		return 0, 0, fmt.Errorf("counts: %w", err)
	}
	return satellites, tles, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
