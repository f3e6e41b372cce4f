package store

import (
	"context"

	"github.com/cywf/tle-fetcher/internal/fetch"
)

// TLERepository adapts the store to the fetch.Repository interface so
// lookups can persist through SQLite instead of flat files.
type TLERepository struct {
	store *Store
}

// NewTLERepository wraps a store for use by the fetch service.
func NewTLERepository(s *Store) *TLERepository {
	return &TLERepository{store: s}
}

// Get returns the freshest stored TLE for id, or nil when none exists.
func (r *TLERepository) Get(ctx context.Context, id string) (*fetch.Entry, error) {
	stored, err := r.store.LatestTLE(ctx, id)
	if err != nil || stored == nil {
		return nil, err
	}
	return &fetch.Entry{
		Record:    stored.Record,
		FetchedAt: stored.FetchedAt,
		Source:    stored.Record.Source,
	}, nil
}

// Save records the fetched TLE.
func (r *TLERepository) Save(ctx context.Context, entry fetch.Entry) error {
	return r.store.RecordTLE(ctx, entry.Record, entry.FetchedAt)
}

var _ fetch.Repository = (*TLERepository)(nil)
