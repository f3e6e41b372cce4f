package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cywf/tle-fetcher/internal/metrics"
	"github.com/cywf/tle-fetcher/internal/store"
)

// ErrNoCachedFeed is returned when an offline run finds no replayable
// payload for the requested source.
var ErrNoCachedFeed = errors.New("no cached feed response available for offline mode")

// SourceFor resolves a feed name to its implementation. group only
// applies to celestrak.
func SourceFor(name, group string) (CatalogSource, error) {
	switch name {
	case "celestrak":
		return CelestrakGroup{Group: group}, nil
	case "ivan":
		return IvanFeed{}, nil
	default:
		return nil, fmt.Errorf("unknown discovery source %q", name)
	}
}

// RunResult is the outcome of one discovery run.
type RunResult struct {
	RunID          int64
	Source         string
	NewEntries     []store.CatalogEntry
	UsedCache      bool
	Cursor         *time.Time
	EffectiveSince *time.Time
}

// Pipeline coordinates discovery runs and persists catalog state.
type Pipeline struct {
	store  *store.Store
	logger *slog.Logger
	loader Loader
}

// NewPipeline wires a discovery pipeline. loader may be nil to use the
// HTTP default.
func NewPipeline(st *store.Store, logger *slog.Logger, loader Loader) *Pipeline {
	if loader == nil {
		loader = HTTPLoader
	}
	return &Pipeline{store: st, logger: logger, loader: loader}
}

// Run ingests one source. When since is nil the cursor from the last
// successful run takes its place, so repeated runs only surface entries
// with newer epochs. Offline runs replay the cached payload instead of
// touching the network.
func (p *Pipeline) Run(ctx context.Context, src CatalogSource, since *time.Time, offline bool) (RunResult, error) {
	effectiveSince := since
	if effectiveSince == nil {
		cursor, ok, err := p.store.LatestCursor(ctx, src.Name())
		if err != nil {
			return RunResult{}, err
		}
		if ok {
			effectiveSince = &cursor
		}
	}

	runID, err := p.store.StartDiscoveryRun(ctx, src.Name(), effectiveSince, offline)
	if err != nil {
		return RunResult{}, err
	}

	result, err := p.execute(ctx, runID, src, effectiveSince, offline)
	if err != nil {
		if failErr := p.store.FailDiscoveryRun(ctx, runID, err.Error()); failErr != nil {
			p.logger.Error("recording run failure", "run_id", runID, "error", failErr)
		}
		return RunResult{}, err
	}
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, runID int64, src CatalogSource, since *time.Time, offline bool) (RunResult, error) {
	payload, usedCache, err := p.loadPayload(ctx, src, since, offline)
	if err != nil {
		return RunResult{}, err
	}

	entries, err := src.Parse(payload)
	if err != nil {
		return RunResult{}, fmt.Errorf("%s: %w", src.Name(), err)
	}

	// Only entries strictly newer than the boundary count as discoveries.
	filtered := entries
	if since != nil {
		filtered = make([]store.CatalogEntry, 0, len(entries))
		for _, entry := range entries {
			if entry.Epoch.After(*since) {
				filtered = append(filtered, entry)
			}
		}
	}

	fresh, err := p.store.StoreCatalogEntries(ctx, filtered)
	if err != nil {
		return RunResult{}, err
	}
	metrics.RecordDiscoveryEntries(src.Name(), len(fresh))

	var cursor *time.Time
	if max, ok, err := p.store.MaxCatalogEpoch(ctx, src.Name()); err != nil {
		return RunResult{}, err
	} else if ok {
		cursor = &max
	}

	if err := p.store.FinishDiscoveryRun(ctx, runID, cursor, usedCache, len(fresh)); err != nil {
		return RunResult{}, err
	}

	p.logger.Info("discovery run complete",
		"run_id", runID,
		"source", src.Name(),
		"parsed", len(entries),
		"new", len(fresh),
		"used_cache", usedCache,
	)

	return RunResult{
		RunID:          runID,
		Source:         src.Name(),
		NewEntries:     fresh,
		UsedCache:      usedCache,
		Cursor:         cursor,
		EffectiveSince: since,
	}, nil
}

func (p *Pipeline) loadPayload(ctx context.Context, src CatalogSource, since *time.Time, offline bool) (string, bool, error) {
	if offline {
		payload, ok, err := p.store.LoadCatalogPayload(ctx, src.Name(), since)
		if err != nil {
			return "", false, err
		}
		if !ok {
			return "", false, fmt.Errorf("%s: %w", src.Name(), ErrNoCachedFeed)
		}
		return payload, true, nil
	}

	payload, err := p.loader(ctx, src.BuildURL(since))
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", src.Name(), err)
	}
	if err := p.store.StoreCatalogPayload(ctx, src.Name(), since, payload); err != nil {
		return "", false, err
	}
	return payload, false, nil
}
