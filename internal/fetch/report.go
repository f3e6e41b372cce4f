package fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cywf/tle-fetcher/internal/tle"
)

// ReportEntry summarizes one stored TLE. Unreadable files keep their
// identifier and carry the failure in Error instead.
type ReportEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Epoch     string `json:"epoch,omitempty"`
	Source    string `json:"source,omitempty"`
	FetchedAt string `json:"fetched_at,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Report is a machine-readable summary of stored TLEs.
type Report struct {
	Generated   string        `json:"generated"`
	Count       int           `json:"count"`
	IDs         []string      `json:"ids"`
	Sources     []string      `json:"sources"`
	LatestEpoch string        `json:"latest_epoch,omitempty"`
	Entries     []ReportEntry `json:"entries"`
}

// BuildReport aggregates entries into a summary stamped at now.
func BuildReport(entries []ReportEntry, now time.Time) Report {
	ids := make(map[string]bool)
	sources := make(map[string]bool)
	var latest string
	for _, entry := range entries {
		if entry.ID != "" {
			ids[entry.ID] = true
		}
		if entry.Source != "" {
			sources[entry.Source] = true
		}
		if entry.Epoch > latest {
			latest = entry.Epoch
		}
	}
	return Report{
		Generated:   now.UTC().Format(time.RFC3339),
		Count:       len(entries),
		IDs:         sortedKeys(ids),
		Sources:     sortedKeys(sources),
		LatestEpoch: latest,
		Entries:     entries,
	}
}

// FileReportEntries summarizes every <id>.tle file under dir, in
// filename order. Files that fail validation become error entries
// rather than aborting the report.
func FileReportEntries(dir string) ([]ReportEntry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.tle"))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sort.Strings(paths)

	var entries []ReportEntry
	for _, path := range paths {
		id := stem(path)
		data, err := os.ReadFile(path)
		if err != nil {
			entries = append(entries, ReportEntry{ID: id, Path: path, Error: err.Error()})
			continue
		}
		rec, err := tle.Parse(string(data), id, "cache")
		if err != nil {
			entries = append(entries, ReportEntry{ID: id, Path: path, Error: err.Error()})
			continue
		}
		epoch, err := tle.Epoch(rec.Line1)
		if err != nil {
			entries = append(entries, ReportEntry{ID: id, Path: path, Error: err.Error()})
			continue
		}
		entries = append(entries, ReportEntry{
			ID:     rec.ObjectID,
			Name:   rec.Name,
			Epoch:  epoch.Format(time.RFC3339Nano),
			Source: rec.Source,
			Path:   path,
		})
	}
	return entries, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
