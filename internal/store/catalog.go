package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CatalogEntry is a TLE discovered from a catalog feed.
type CatalogEntry struct {
	Source  string
	NoradID string
	Name    string
	Line1   string
	Line2   string
	Epoch   time.Time
}

// StoreCatalogEntries inserts entries, skipping ones already seen, and
// returns the subset that was new.
func (s *Store) StoreCatalogEntries(ctx context.Context, entries []CatalogEntry) ([]CatalogEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin catalog tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	var fresh []CatalogEntry
	for _, entry := range entries {
		res, err := tx.ExecContext(
			ctx,
			`INSERT OR IGNORE INTO catalog_entries (
                source, norad_id, name, line1, line2, epoch, first_seen
            ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			entry.Source,
			entry.NoradID,
			nullableString(entry.Name),
			entry.Line1,
			entry.Line2,
			entry.Epoch.UTC().Format(time.RFC3339Nano),
			now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert catalog entry: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected > 0 {
			fresh = append(fresh, entry)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit catalog tx: %w", err)
	}
	return fresh, nil
}

// LatestCursor returns the most recent non-null cursor recorded for a
// discovery source. ok is false when no run has set one.
func (s *Store) LatestCursor(ctx context.Context, source string) (time.Time, bool, error) {
	var raw string
	row := s.db.QueryRowContext(
		ctx,
		`SELECT cursor FROM discovery_runs
         WHERE source = ? AND cursor IS NOT NULL ORDER BY id DESC LIMIT 1`,
		source,
	)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("latest cursor: %w", err)
	}
	cursor, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse cursor %q: %w", raw, err)
	}
	return cursor, true, nil
}

// MaxCatalogEpoch returns the newest entry epoch stored for a source.
// ok is false when the source has no entries.
func (s *Store) MaxCatalogEpoch(ctx context.Context, source string) (time.Time, bool, error) {
	var raw sql.NullString
	row := s.db.QueryRowContext(
		ctx,
		`SELECT MAX(epoch) FROM catalog_entries WHERE source = ?`,
		source,
	)
	if err := row.Scan(&raw); err != nil {
		return time.Time{}, false, fmt.Errorf("max catalog epoch: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return time.Time{}, false, nil
	}
	epoch, err := time.Parse(time.RFC3339Nano, raw.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse epoch %q: %w", raw.String, err)
	}
	return epoch, true, nil
}

// StartDiscoveryRun logs the beginning of a discovery run and returns
// the run id.
func (s *Store) StartDiscoveryRun(ctx context.Context, source string, since *time.Time, offline bool) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO discovery_runs (source, started_at, since, offline, used_cache, new_entries)
         VALUES (?, ?, ?, ?, 0, 0)`,
		source,
		time.Now().UTC().Format(time.RFC3339),
		nullableTimeString(since),
		boolToInt(offline),
	)
	if err != nil {
		return 0, fmt.Errorf("start discovery run: %w", err)
	}
	return res.LastInsertId()
}

// FinishDiscoveryRun closes a run with its outcome.
func (s *Store) FinishDiscoveryRun(ctx context.Context, runID int64, cursor *time.Time, usedCache bool, newEntries int) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE discovery_runs
         SET finished_at = ?, cursor = ?, used_cache = ?, new_entries = ?
         WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339),
		nullableTimeString(cursor),
		boolToInt(usedCache),
		newEntries,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish discovery run: %w", err)
	}
	return nil
}

// FailDiscoveryRun closes a run with an error message.
func (s *Store) FailDiscoveryRun(ctx context.Context, runID int64, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE discovery_runs SET finished_at = ?, error = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339),
		message,
		runID,
	)
	if err != nil {
		return fmt.Errorf("fail discovery run: %w", err)
	}
	return nil
}

// catalogCacheKey makes raw feed responses addressable per (source,
// since) pair so offline runs can replay them.
func catalogCacheKey(source string, since *time.Time) string {
	if since == nil {
		return source + "|none"
	}
	return source + "|" + since.UTC().Format(time.RFC3339Nano)
}

// StoreCatalogPayload caches a raw feed response.
func (s *Store) StoreCatalogPayload(ctx context.Context, source string, since *time.Time, payload string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO catalog_cache (cache_key, source, requested_since, fetched_at, payload)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(cache_key) DO UPDATE SET
             fetched_at = excluded.fetched_at,
             payload = excluded.payload,
             requested_since = excluded.requested_since`,
		catalogCacheKey(source, since),
		source,
		nullableTimeString(since),
		time.Now().UTC().Format(time.RFC3339),
		payload,
	)
	if err != nil {
		return fmt.Errorf("store catalog payload: %w", err)
	}
	return nil
}

// LoadCatalogPayload returns the cached feed response for (source,
// since), or ok=false when none exists.
func (s *Store) LoadCatalogPayload(ctx context.Context, source string, since *time.Time) (string, bool, error) {
	var payload string
	row := s.db.QueryRowContext(
		ctx,
		`SELECT payload FROM catalog_cache WHERE cache_key = ?`,
		catalogCacheKey(source, since),
	)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load catalog payload: %w", err)
	}
	return payload, true, nil
}

func nullableTimeString(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
