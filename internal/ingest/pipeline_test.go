package ingest

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/cywf/tle-fetcher/internal/store"
	"github.com/cywf/tle-fetcher/internal/tle"
)

const (
	issName  = "ISS (ZARYA)"
	issLine1 = "1 25544U 98067A   20344.91719907  .00001264  00000-0  29621-4 0  9993"
	issLine2 = "2 25544  51.6466 223.8666 0002416  90.3778  30.6140 15.48970462256430"

	nextLine1 = "1 25544U 98067A   20345.57381944  .00001182  00000-0  29580-4 0  9995"
	nextLine2 = "2 25544  51.6462 220.5752 0002383  93.4680 334.2493 15.48973009256530"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustEpoch(t *testing.T, line1 string) time.Time {
	t.Helper()
	epoch, err := tle.Epoch(line1)
	if err != nil {
		t.Fatalf("Epoch(%q): %v", line1, err)
	}
	return epoch
}

func TestEntriesFromTextFeed(t *testing.T) {
	payload := issName + "\n" + issLine1 + "\n" + issLine2 + "\n" +
		nextLine1 + "\n" + nextLine2 + "\n" +
		// Repeated pair must be skipped.
		issName + "\n" + issLine1 + "\n" + issLine2 + "\n"

	entries, err := entriesFromText(payload, "celestrak")
	if err != nil {
		t.Fatalf("entriesFromText: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Name != issName {
		t.Errorf("entries[0].Name = %q, want %q", entries[0].Name, issName)
	}
	if entries[0].NoradID != "25544" || entries[1].NoradID != "25544" {
		t.Errorf("norad ids = %q/%q, want 25544", entries[0].NoradID, entries[1].NoradID)
	}
	// The second pair has no preceding name line.
	if entries[1].Name != "" {
		t.Errorf("entries[1].Name = %q, want empty", entries[1].Name)
	}
	if !entries[1].Epoch.After(entries[0].Epoch) {
		t.Errorf("epoch ordering wrong: %v vs %v", entries[0].Epoch, entries[1].Epoch)
	}
}

func TestEntriesFromTextRejectsBadChecksum(t *testing.T) {
	corrupted := issLine1[:68] + "4"
	payload := corrupted + "\n" + issLine2 + "\n"

	if _, err := entriesFromText(payload, "celestrak"); !errors.Is(err, tle.ErrChecksumFailed) {
		t.Fatalf("err = %v, want ErrChecksumFailed", err)
	}
}

func TestIvanFeedParsesMemberArray(t *testing.T) {
	payload := `{
        "member": [
            {"satelliteId": 25544, "name": "ISS (ZARYA)",
             "line1": "` + issLine1 + `",
             "line2": "` + issLine2 + `",
             "date": "2020-12-09T22:00:45+00:00"}
        ]
    }`

	entries, err := IvanFeed{}.Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].NoradID != "25544" {
		t.Errorf("NoradID = %q, want 25544", entries[0].NoradID)
	}
	want := time.Date(2020, 12, 9, 22, 0, 45, 0, time.UTC)
	if !entries[0].Epoch.Equal(want) {
		t.Errorf("Epoch = %v, want %v", entries[0].Epoch, want)
	}
}

func TestIvanFeedAcceptsAlternateEpochKeys(t *testing.T) {
	want := time.Date(2020, 12, 9, 22, 0, 45, 0, time.UTC)
	for _, key := range []string{"timestamp", "epoch"} {
		payload := `{
            "member": [
                {"satelliteId": 25544,
                 "line1": "` + issLine1 + `",
                 "line2": "` + issLine2 + `",
                 "` + key + `": "2020-12-09T22:00:45+00:00"}
            ]
        }`
		entries, err := IvanFeed{}.Parse(payload)
		if err != nil {
			t.Fatalf("Parse with %q key: %v", key, err)
		}
		if len(entries) != 1 {
			t.Fatalf("len(entries) = %d with %q key, want 1", len(entries), key)
		}
		if !entries[0].Epoch.Equal(want) {
			t.Errorf("Epoch with %q key = %v, want %v", key, entries[0].Epoch, want)
		}
	}
}

func TestIvanFeedFallsBackToText(t *testing.T) {
	payload := issName + "\n" + issLine1 + "\n" + issLine2 + "\n"

	entries, err := IvanFeed{}.Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
}

func TestCelestrakGroupURL(t *testing.T) {
	got := CelestrakGroup{}.BuildURL(nil)
	want := "https://celestrak.org/NORAD/elements/gp.php?FORMAT=tle&GROUP=active"
	if got != want {
		t.Errorf("BuildURL = %q, want %q", got, want)
	}

	got = CelestrakGroup{Group: "stations"}.BuildURL(nil)
	want = "https://celestrak.org/NORAD/elements/gp.php?FORMAT=tle&GROUP=stations"
	if got != want {
		t.Errorf("BuildURL = %q, want %q", got, want)
	}
}

func TestPipelineRunAdvancesCursor(t *testing.T) {
	st := openTestStore(t)
	payload := issName + "\n" + issLine1 + "\n" + issLine2 + "\n"
	loads := 0
	loader := func(_ context.Context, _ string) (string, error) {
		loads++
		return payload, nil
	}
	p := NewPipeline(st, testLogger(), loader)

	result, err := p.Run(context.Background(), CelestrakGroup{}, nil, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.NewEntries) != 1 {
		t.Fatalf("new entries = %d, want 1", len(result.NewEntries))
	}
	if result.UsedCache {
		t.Error("UsedCache = true on a live run")
	}
	wantCursor := mustEpoch(t, issLine1)
	if result.Cursor == nil || !result.Cursor.Equal(wantCursor) {
		t.Errorf("cursor = %v, want %v", result.Cursor, wantCursor)
	}

	// A second run starts at the stored cursor, so nothing is new.
	result, err = p.Run(context.Background(), CelestrakGroup{}, nil, false)
	if err != nil {
		t.Fatalf("Run (2nd): %v", err)
	}
	if len(result.NewEntries) != 0 {
		t.Errorf("new entries on repeat = %d, want 0", len(result.NewEntries))
	}
	if result.EffectiveSince == nil || !result.EffectiveSince.Equal(wantCursor) {
		t.Errorf("effective since = %v, want %v", result.EffectiveSince, wantCursor)
	}
	if loads != 2 {
		t.Errorf("loader calls = %d, want 2", loads)
	}
}

func TestPipelineOfflineUsesCachedPayload(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.StoreCatalogPayload(ctx, "celestrak", nil, issName+"\n"+issLine1+"\n"+issLine2+"\n"); err != nil {
		t.Fatalf("StoreCatalogPayload: %v", err)
	}

	failing := func(_ context.Context, _ string) (string, error) {
		t.Fatal("offline run touched the network")
		return "", nil
	}
	p := NewPipeline(st, testLogger(), failing)

	result, err := p.Run(ctx, CelestrakGroup{}, nil, true)
	if err != nil {
		t.Fatalf("Run (offline): %v", err)
	}
	if !result.UsedCache {
		t.Error("UsedCache = false on offline run")
	}
	if len(result.NewEntries) != 1 {
		t.Errorf("new entries = %d, want 1", len(result.NewEntries))
	}
}

func TestPipelineOfflineMissFails(t *testing.T) {
	st := openTestStore(t)
	p := NewPipeline(st, testLogger(), nil)

	_, err := p.Run(context.Background(), CelestrakGroup{}, nil, true)
	if !errors.Is(err, ErrNoCachedFeed) {
		t.Fatalf("err = %v, want ErrNoCachedFeed", err)
	}
}

func TestSourceFor(t *testing.T) {
	src, err := SourceFor("celestrak", "stations")
	if err != nil {
		t.Fatalf("SourceFor: %v", err)
	}
	if group, ok := src.(CelestrakGroup); !ok || group.Group != "stations" {
		t.Errorf("src = %#v, want CelestrakGroup{stations}", src)
	}

	if _, err := SourceFor("ivan", ""); err != nil {
		t.Errorf("SourceFor(ivan): %v", err)
	}
	if _, err := SourceFor("norad-classified", ""); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestPipelineFeedErrorRecordsFailure(t *testing.T) {
	st := openTestStore(t)
	loader := func(_ context.Context, _ string) (string, error) {
		return "", errors.New("connection refused")
	}
	p := NewPipeline(st, testLogger(), loader)

	if _, err := p.Run(context.Background(), CelestrakGroup{}, nil, false); err == nil {
		t.Fatal("expected error from failing loader")
	}
	// The failed run must not leave a cursor behind.
	if _, ok, err := st.LatestCursor(context.Background(), "celestrak"); err != nil || ok {
		t.Errorf("LatestCursor after failure: ok=%v err=%v, want ok=false", ok, err)
	}
}
