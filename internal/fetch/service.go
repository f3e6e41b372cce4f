package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/cywf/tle-fetcher/internal/metrics"
	"github.com/cywf/tle-fetcher/internal/source"
	"github.com/cywf/tle-fetcher/internal/tle"
)

// ErrOffline is returned when offline mode is requested but no cached or
// persisted entry exists for the identifier.
var ErrOffline = errors.New("offline mode requested but no cached TLE available")

// Result is the outcome of a single lookup.
type Result struct {
	Record    tle.Record
	Source    string
	FetchedAt time.Time
	Stale     bool
	Verified  bool
	Warnings  []string
}

// Options tune a lookup.
type Options struct {
	// TTL is how long cached entries stay fresh. Non-positive means
	// entries never expire.
	TTL time.Duration
	// Offline forbids network calls; stale data is served with a warning.
	Offline bool
	// VerifyPercent is the probability (0-100, or 0-1) that a cache hit
	// is re-checked against the network.
	VerifyPercent float64
}

// Service resolves TLE lookups through a memory cache, a persistent
// repository, and a prioritized list of network sources, in that order.
type Service struct {
	cache   *MemoryCache
	repo    Repository
	sources []*source.Client
	logger  *slog.Logger

	now  func() time.Time
	rand func() float64
}

// NewService wires a lookup service. repo may be nil when persistence is
// not wanted.
func NewService(cache *MemoryCache, repo Repository, sources []*source.Client, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{
		cache:   cache,
		repo:    repo,
		sources: sources,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		rand:    rand.Float64,
	}
}

// FetchMany resolves each identifier in turn; the first error aborts.
func (s *Service) FetchMany(ctx context.Context, ids []string, opts Options) ([]Result, error) {
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		res, err := s.FetchOne(ctx, id, opts)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// FetchOne resolves one catalog identifier.
func (s *Service) FetchOne(ctx context.Context, id string, opts Options) (Result, error) {
	now := s.now()

	cached := s.cache.Get(id, opts.TTL, true)
	if cached != nil && !cached.IsStale(opts.TTL, now) {
		metrics.RecordCacheHit("memory")
		result := Result{
			Record:    cached.Record,
			Source:    "cache",
			FetchedAt: cached.FetchedAt,
		}
		s.maybeVerify(ctx, id, *cached, &result, opts)
		return result, nil
	}

	var persisted *Entry
	if s.repo != nil {
		entry, err := s.repo.Get(ctx, id)
		if err != nil {
			s.logger.Warn("repository lookup failed", "id", id, "error", err)
		} else {
			persisted = entry
		}
	}
	if persisted != nil && !persisted.IsStale(opts.TTL, now) {
		metrics.RecordCacheHit("repository")
		s.cache.Set(*persisted)
		result := Result{
			Record:    persisted.Record,
			Source:    persisted.Source,
			FetchedAt: persisted.FetchedAt,
		}
		s.maybeVerify(ctx, id, *persisted, &result, opts)
		return result, nil
	}

	freshestStale := cached
	if persisted != nil && (freshestStale == nil || persisted.FetchedAt.After(freshestStale.FetchedAt)) {
		freshestStale = persisted
	}

	if opts.Offline {
		if freshestStale != nil {
			s.logger.Warn("operating offline with stale TLE", "id", id, "fetched_at", freshestStale.FetchedAt)
			return Result{
				Record:    freshestStale.Record,
				Source:    freshestStale.Source,
				FetchedAt: freshestStale.FetchedAt,
				Stale:     true,
				Warnings:  []string{"operating offline with stale TLE"},
			}, nil
		}
		return Result{}, fmt.Errorf("%s: %w", id, ErrOffline)
	}

	entry, err := s.fetchFromNetwork(ctx, id)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Record:    entry.Record,
		Source:    entry.Source,
		FetchedAt: entry.FetchedAt,
	}
	if freshestStale != nil {
		result.Warnings = append(result.Warnings, "replaced stale TLE with fresh network result")
	}
	return result, nil
}

// maybeVerify re-checks a cache or repository hit against the network
// with probability opts.VerifyPercent. A differing network record
// replaces the result; matching lines just refresh timestamps.
func (s *Service) maybeVerify(ctx context.Context, id string, held Entry, result *Result, opts Options) {
	if !s.shouldVerify(opts.VerifyPercent) {
		return
	}
	refreshed, err := s.fetchFromNetwork(ctx, id)
	if err != nil {
		s.logger.Warn("verification fetch failed", "id", id, "error", err)
		return
	}
	result.Verified = true
	if refreshed.Record.Line1 != held.Record.Line1 || refreshed.Record.Line2 != held.Record.Line2 {
		result.Warnings = append(result.Warnings, "cached entry replaced after verification")
		result.Record = refreshed.Record
		result.Source = refreshed.Source
		result.FetchedAt = refreshed.FetchedAt
	}
}

func (s *Service) shouldVerify(percent float64) bool {
	if percent <= 0 {
		return false
	}
	if percent > 1 {
		percent /= 100
	}
	return s.rand() < percent
}

// fetchFromNetwork walks the configured sources in priority order and
// returns the first entry that both downloads and parses.
func (s *Service) fetchFromNetwork(ctx context.Context, id string) (Entry, error) {
	var failures []string
	for _, client := range s.sources {
		payload, err := client.Fetch(ctx, id)
		if err != nil {
			metrics.RecordSourceFetch(client.Name, false)
			s.logger.Debug("source fetch failed", "source", client.Name, "id", id, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", client.Name, err))
			continue
		}
		rec, err := tle.Parse(payload, id, client.Name)
		if err != nil {
			metrics.RecordSourceFetch(client.Name, false)
			metrics.RecordParseFailure(client.Name)
			s.logger.Warn("source payload rejected", "source", client.Name, "id", id, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", client.Name, err))
			continue
		}
		metrics.RecordSourceFetch(client.Name, true)

		entry := Entry{Record: rec, FetchedAt: s.now(), Source: client.Name}
		s.cache.Set(entry)
		if s.repo != nil {
			if err := s.repo.Save(ctx, entry); err != nil {
				s.logger.Warn("repository save failed", "id", id, "error", err)
			}
		}
		return entry, nil
	}

	detail := strings.Join(failures, " | ")
	if detail == "" {
		detail = "no sources configured"
	}
	return Entry{}, fmt.Errorf("all sources failed for %s: %s", id, detail)
}
