package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cywf/tle-fetcher/internal/config"
	"github.com/cywf/tle-fetcher/internal/fetch"
	"github.com/cywf/tle-fetcher/internal/source"
	"github.com/cywf/tle-fetcher/internal/store"
)

// appContext lazily builds the pieces commands share: configuration,
// logger, database, and the lookup service.
type appContext struct {
	configPath *string

	cfg    *config.Config
	logger *slog.Logger
}

// setup loads configuration and the logger once per invocation.
func (a *appContext) setup() (*config.Config, *slog.Logger, error) {
	if a.cfg != nil {
		return a.cfg, a.logger, nil
	}

	cfg, err := config.Load(*a.configPath)
	if err != nil {
		return nil, nil, err
	}

	a.cfg = cfg
	a.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}))
	return a.cfg, a.logger, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openStore opens the SQLite database configured under paths.db_path.
func (a *appContext) openStore() (*store.Store, error) {
	cfg, _, err := a.setup()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Paths.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", cfg.Paths.DBPath, err)
	}
	return st, nil
}

// newService wires the lookup service. When st is non-nil TLEs persist
// through SQLite; otherwise the flat-file repository under tle_dir is
// used.
func (a *appContext) newService(st *store.Store) (*fetch.Service, error) {
	cfg, logger, err := a.setup()
	if err != nil {
		return nil, err
	}

	var repo fetch.Repository
	if st != nil {
		repo = store.NewTLERepository(st)
	} else {
		fileRepo, err := fetch.NewFileRepository(cfg.Paths.TLEDir)
		if err != nil {
			return nil, err
		}
		repo = fileRepo
	}

	order := source.ParseOrder(cfg.Fetch.SourceOrder, source.DefaultOrder)
	clients := source.BuildClients(order)
	if len(clients) == 0 {
		return nil, fmt.Errorf("no known sources in order %q", cfg.Fetch.SourceOrder)
	}

	return fetch.NewService(fetch.NewMemoryCache(), repo, clients, logger), nil
}

// fetchOptions translates configuration into per-lookup options.
// offlineFlag forces offline mode on top of the configured value.
func (a *appContext) fetchOptions(offlineFlag bool) fetch.Options {
	return fetch.Options{
		TTL:           a.cfg.CacheTTL(),
		Offline:       a.cfg.Fetch.Offline || offlineFlag,
		VerifyPercent: a.cfg.Fetch.VerifyPercent,
	}
}
