// Package ingest discovers TLEs from bulk catalog feeds and records
// them through the store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cywf/tle-fetcher/internal/source"
	"github.com/cywf/tle-fetcher/internal/store"
	"github.com/cywf/tle-fetcher/internal/tle"
)

// Loader retrieves a raw feed payload. Injected so tests and offline
// replays can bypass the network.
type Loader func(ctx context.Context, url string) (string, error)

// HTTPLoader fetches feed payloads with the standard client headers.
func HTTPLoader(ctx context.Context, feedURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating feed request: %w", err)
	}
	req.Header.Set("User-Agent", source.UserAgent)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return "", fmt.Errorf("reading feed body: %w", err)
	}
	return string(body), nil
}

// CatalogSource describes one bulk feed the pipeline can ingest.
type CatalogSource interface {
	Name() string
	BuildURL(since *time.Time) string
	Parse(payload string) ([]store.CatalogEntry, error)
}

// CelestrakGroup ingests a CelesTrak element group feed (plain TLE
// text, no incremental cursor support on the server side).
type CelestrakGroup struct {
	Group string
}

func (c CelestrakGroup) Name() string { return "celestrak" }

func (c CelestrakGroup) BuildURL(_ *time.Time) string {
	group := c.Group
	if group == "" {
		group = "active"
	}
	params := url.Values{}
	params.Set("GROUP", group)
	params.Set("FORMAT", "tle")
	return "https://celestrak.org/NORAD/elements/gp.php?" + params.Encode()
}

func (c CelestrakGroup) Parse(payload string) ([]store.CatalogEntry, error) {
	return entriesFromText(payload, c.Name())
}

// IvanFeed ingests the tle.ivanstanojevic.me collection API (JSON with
// a "member" array; plain TLE text accepted as a fallback).
type IvanFeed struct{}

func (IvanFeed) Name() string { return "ivan" }

func (IvanFeed) BuildURL(_ *time.Time) string {
	return "https://tle.ivanstanojevic.me/api/tle"
}

func (f IvanFeed) Parse(payload string) ([]store.CatalogEntry, error) {
	var doc struct {
		Member []ivanMember `json:"member"`
	}
	if err := json.Unmarshal([]byte(payload), &doc); err != nil || doc.Member == nil {
		// Some mirrors serve plain TLE text.
		return entriesFromText(payload, f.Name())
	}

	var entries []store.CatalogEntry
	for _, item := range doc.Member {
		if item.Line1 == "" || item.Line2 == "" {
			continue
		}
		pair, err := json.Marshal(map[string]any{
			"name":  item.Name,
			"line1": item.Line1,
			"line2": item.Line2,
		})
		if err != nil {
			return nil, fmt.Errorf("encode member: %w", err)
		}
		rec, err := tle.Parse(string(pair), item.SatelliteID.String(), f.Name())
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", item.SatelliteID.String(), err)
		}
		epoch, err := memberEpoch(item, rec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, store.CatalogEntry{
			Source:  f.Name(),
			NoradID: rec.ObjectID,
			Name:    rec.Name,
			Line1:   rec.Line1,
			Line2:   rec.Line2,
			Epoch:   epoch,
		})
	}
	return entries, nil
}

type ivanMember struct {
	SatelliteID jsonID `json:"satelliteId"`
	Name        string `json:"name"`
	Line1       string `json:"line1"`
	Line2       string `json:"line2"`
	Date        string `json:"date"`
	Timestamp   string `json:"timestamp"`
	Epoch       string `json:"epoch"`
}

// jsonID tolerates the feed serving satellite ids as either numbers or
// strings.
type jsonID string

func (id *jsonID) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(string(data), `"`)
	if trimmed == "null" {
		trimmed = ""
	}
	*id = jsonID(trimmed)
	return nil
}

func (id jsonID) String() string { return string(id) }

// memberEpoch resolves a member's epoch. The feed has served it under
// "timestamp", "epoch", and "date" across API revisions; the element
// line is the fallback when none parses.
func memberEpoch(item ivanMember, rec tle.Record) (time.Time, error) {
	for _, raw := range []string{item.Timestamp, item.Epoch, item.Date} {
		if raw == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	epoch, err := tle.Epoch(rec.Line1)
	if err != nil {
		return time.Time{}, fmt.Errorf("member %s epoch: %w", rec.ObjectID, err)
	}
	return epoch, nil
}

// entriesFromText extracts every adjacent "1 "/"2 " pair from a bulk
// text feed, skipping duplicate line pairs, and validates each through
// the parsing core.
func entriesFromText(payload, sourceName string) ([]store.CatalogEntry, error) {
	var lines []string
	for _, raw := range strings.Split(payload, "\n") {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	seen := make(map[[2]string]bool)
	var entries []store.CatalogEntry
	for i := 0; i+1 < len(lines); i++ {
		if !strings.HasPrefix(lines[i], "1 ") || !strings.HasPrefix(lines[i+1], "2 ") {
			continue
		}
		pair := [2]string{lines[i], lines[i+1]}
		if seen[pair] {
			continue
		}
		seen[pair] = true

		block := lines[i] + "\n" + lines[i+1]
		if i > 0 && !strings.HasPrefix(lines[i-1], "1 ") && !strings.HasPrefix(lines[i-1], "2 ") {
			block = lines[i-1] + "\n" + block
		}
		rec, err := tle.Parse(block, "", sourceName)
		if err != nil {
			return nil, fmt.Errorf("feed entry at line %d: %w", i+1, err)
		}
		epoch, err := tle.Epoch(rec.Line1)
		if err != nil {
			return nil, fmt.Errorf("feed entry %s epoch: %w", rec.ObjectID, err)
		}
		entries = append(entries, store.CatalogEntry{
			Source:  sourceName,
			NoradID: rec.ObjectID,
			Name:    rec.Name,
			Line1:   rec.Line1,
			Line2:   rec.Line2,
			Epoch:   epoch,
		})
	}
	return entries, nil
}
