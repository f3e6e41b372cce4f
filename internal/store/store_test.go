package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cywf/tle-fetcher/internal/fetch"
	"github.com/cywf/tle-fetcher/internal/tle"
)

const (
	issLine1 = "1 25544U 98067A   20344.91719907  .00001264  00000-0  29621-4 0  9993"
	issLine2 = "2 25544  51.6466 223.8666 0002416  90.3778  30.6140 15.48970462256430"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tle.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func issRecord() tle.Record {
	return tle.Record{
		ObjectID: "25544",
		Name:     "ISS (ZARYA)",
		Line1:    issLine1,
		Line2:    issLine2,
		Source:   "celestrak",
	}
}

func TestSatelliteUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.GetOrCreateSatellite(ctx, "25544", "ISS (ZARYA)")
	if err != nil {
		t.Fatalf("GetOrCreateSatellite: %v", err)
	}
	id2, err := s.GetOrCreateSatellite(ctx, "25544", "")
	if err != nil {
		t.Fatalf("GetOrCreateSatellite (repeat): %v", err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %d vs %d", id1, id2)
	}

	// An empty name must not clobber the stored one.
	name, err := s.SatelliteName(ctx, "25544")
	if err != nil {
		t.Fatalf("SatelliteName: %v", err)
	}
	if name != "ISS (ZARYA)" {
		t.Errorf("name = %q, want %q", name, "ISS (ZARYA)")
	}
}

func TestRecordAndLatestTLE(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.RecordTLE(ctx, issRecord(), now); err != nil {
		t.Fatalf("RecordTLE: %v", err)
	}
	// Duplicate (same epoch+source) must upsert, not error or multiply.
	if err := s.RecordTLE(ctx, issRecord(), now.Add(time.Minute)); err != nil {
		t.Fatalf("RecordTLE (dup): %v", err)
	}

	stored, err := s.LatestTLE(ctx, "25544")
	if err != nil {
		t.Fatalf("LatestTLE: %v", err)
	}
	if stored == nil {
		t.Fatal("LatestTLE = nil after RecordTLE")
	}
	if stored.Record.Line1 != issLine1 {
		t.Errorf("Line1 = %q, want %q", stored.Record.Line1, issLine1)
	}
	wantEpoch := time.Date(2020, 12, 9, 22, 0, 45, 999648000, time.UTC)
	if !stored.Epoch.Equal(wantEpoch) {
		t.Errorf("Epoch = %v, want %v", stored.Epoch, wantEpoch)
	}

	history, err := s.TLEHistory(ctx, "25544", 10)
	if err != nil {
		t.Fatalf("TLEHistory: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("len(history) = %d, want 1 (dedup)", len(history))
	}
}

func TestLatestTLEs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Two epochs for the ISS; only the newer one may surface.
	const (
		newerLine1 = "1 25544U 98067A   20345.57381944  .00001182  00000-0  29580-4 0  9995"
		newerLine2 = "2 25544  51.6462 220.5752 0002383  93.4680 334.2493 15.48973009256530"
	)
	if err := s.RecordTLE(ctx, issRecord(), now); err != nil {
		t.Fatalf("RecordTLE: %v", err)
	}
	newer := issRecord()
	newer.Line1, newer.Line2 = newerLine1, newerLine2
	if err := s.RecordTLE(ctx, newer, now); err != nil {
		t.Fatalf("RecordTLE (newer): %v", err)
	}

	starlink := tle.Record{
		ObjectID: "44713",
		Name:     "STARLINK-1007",
		Line1:    "1 44713U 19074B   20344.91719907  .00001264  00000-0  29621-4 0  9993",
		Line2:    "2 44713  53.0551 223.8666 0001416  90.3778  30.6140 15.06391562 56439",
		Source:   "celestrak",
	}
	if err := s.RecordTLE(ctx, starlink, now); err != nil {
		t.Fatalf("RecordTLE (starlink): %v", err)
	}

	latest, err := s.LatestTLEs(ctx)
	if err != nil {
		t.Fatalf("LatestTLEs: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("len(latest) = %d, want 2 (one per satellite)", len(latest))
	}
	if latest[0].Record.ObjectID != "25544" || latest[1].Record.ObjectID != "44713" {
		t.Errorf("order = %q/%q, want 25544/44713",
			latest[0].Record.ObjectID, latest[1].Record.ObjectID)
	}
	if latest[0].Record.Line1 != newerLine1 {
		t.Errorf("ISS Line1 = %q, want the newer epoch %q", latest[0].Record.Line1, newerLine1)
	}
}

func TestLatestTLEUnknownSatellite(t *testing.T) {
	s := openTestStore(t)

	stored, err := s.LatestTLE(context.Background(), "99999")
	if err != nil {
		t.Fatalf("LatestTLE: %v", err)
	}
	if stored != nil {
		t.Errorf("LatestTLE = %+v, want nil", stored)
	}
}

func TestTLERepositoryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	repo := NewTLERepository(s)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	entry, err := repo.Get(ctx, "25544")
	if err != nil {
		t.Fatalf("Get (empty): %v", err)
	}
	if entry != nil {
		t.Fatalf("Get (empty) = %+v, want nil", entry)
	}

	if err := repo.Save(ctx, fetch.Entry{Record: issRecord(), FetchedAt: now, Source: "celestrak"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entry, err = repo.Get(ctx, "25544")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry == nil {
		t.Fatal("Get = nil after Save")
	}
	if entry.Source != "celestrak" {
		t.Errorf("Source = %q, want %q", entry.Source, "celestrak")
	}
	if !entry.FetchedAt.Equal(now) {
		t.Errorf("FetchedAt = %v, want %v", entry.FetchedAt, now)
	}
}

func TestCatalogEntriesDedup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	epoch := time.Date(2020, 12, 9, 22, 0, 45, 999648000, time.UTC)

	entries := []CatalogEntry{{
		Source:  "celestrak",
		NoradID: "25544",
		Name:    "ISS (ZARYA)",
		Line1:   issLine1,
		Line2:   issLine2,
		Epoch:   epoch,
	}}

	fresh, err := s.StoreCatalogEntries(ctx, entries)
	if err != nil {
		t.Fatalf("StoreCatalogEntries: %v", err)
	}
	if len(fresh) != 1 {
		t.Fatalf("first insert: %d new entries, want 1", len(fresh))
	}

	fresh, err = s.StoreCatalogEntries(ctx, entries)
	if err != nil {
		t.Fatalf("StoreCatalogEntries (repeat): %v", err)
	}
	if len(fresh) != 0 {
		t.Errorf("repeat insert: %d new entries, want 0", len(fresh))
	}

	max, ok, err := s.MaxCatalogEpoch(ctx, "celestrak")
	if err != nil {
		t.Fatalf("MaxCatalogEpoch: %v", err)
	}
	if !ok {
		t.Fatal("MaxCatalogEpoch: no epoch after insert")
	}
	if !max.Equal(epoch) {
		t.Errorf("max epoch = %v, want %v", max, epoch)
	}
}

func TestDiscoveryRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.LatestCursor(ctx, "celestrak"); err != nil || ok {
		t.Fatalf("LatestCursor (empty) = ok=%v err=%v, want ok=false err=nil", ok, err)
	}

	runID, err := s.StartDiscoveryRun(ctx, "celestrak", nil, false)
	if err != nil {
		t.Fatalf("StartDiscoveryRun: %v", err)
	}
	cursor := time.Date(2020, 12, 10, 0, 0, 0, 0, time.UTC)
	if err := s.FinishDiscoveryRun(ctx, runID, &cursor, false, 3); err != nil {
		t.Fatalf("FinishDiscoveryRun: %v", err)
	}

	got, ok, err := s.LatestCursor(ctx, "celestrak")
	if err != nil {
		t.Fatalf("LatestCursor: %v", err)
	}
	if !ok {
		t.Fatal("LatestCursor: cursor missing after finish")
	}
	if !got.Equal(cursor) {
		t.Errorf("cursor = %v, want %v", got, cursor)
	}

	// A failed run must not advance the cursor.
	runID, err = s.StartDiscoveryRun(ctx, "celestrak", &cursor, true)
	if err != nil {
		t.Fatalf("StartDiscoveryRun (2nd): %v", err)
	}
	if err := s.FailDiscoveryRun(ctx, runID, "feed unavailable"); err != nil {
		t.Fatalf("FailDiscoveryRun: %v", err)
	}
	got, ok, err = s.LatestCursor(ctx, "celestrak")
	if err != nil || !ok {
		t.Fatalf("LatestCursor after failure: ok=%v err=%v", ok, err)
	}
	if !got.Equal(cursor) {
		t.Errorf("cursor moved after failed run: %v", got)
	}
}

func TestCatalogPayloadCache(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.LoadCatalogPayload(ctx, "celestrak", nil); err != nil || ok {
		t.Fatalf("LoadCatalogPayload (empty) = ok=%v err=%v", ok, err)
	}

	if err := s.StoreCatalogPayload(ctx, "celestrak", nil, "payload-1"); err != nil {
		t.Fatalf("StoreCatalogPayload: %v", err)
	}
	payload, ok, err := s.LoadCatalogPayload(ctx, "celestrak", nil)
	if err != nil || !ok {
		t.Fatalf("LoadCatalogPayload = ok=%v err=%v", ok, err)
	}
	if payload != "payload-1" {
		t.Errorf("payload = %q, want %q", payload, "payload-1")
	}

	// Replays replace the stored payload for the same key.
	if err := s.StoreCatalogPayload(ctx, "celestrak", nil, "payload-2"); err != nil {
		t.Fatalf("StoreCatalogPayload (replace): %v", err)
	}
	payload, _, _ = s.LoadCatalogPayload(ctx, "celestrak", nil)
	if payload != "payload-2" {
		t.Errorf("payload = %q, want %q", payload, "payload-2")
	}

	// Distinct since values are distinct cache keys.
	since := time.Date(2020, 12, 1, 0, 0, 0, 0, time.UTC)
	if _, ok, _ := s.LoadCatalogPayload(ctx, "celestrak", &since); ok {
		t.Error("payload leaked across since boundary")
	}
}

func TestPropagationRunAndPositions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "25544", "ECI", "sgp4")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	base := time.Date(2020, 12, 10, 0, 0, 0, 0, time.UTC)
	samples := []Position{
		{Timestamp: base, X: 1000, Y: 2000, Z: 3000, VX: 1, VY: 2, VZ: 3, Latitude: 51.6, Longitude: -0.1, AltitudeKm: 420},
		{Timestamp: base.Add(time.Minute), X: 1100, Y: 2100, Z: 3100, VX: 1.1, VY: 2.1, VZ: 3.1, Latitude: 52.0, Longitude: 0.4, AltitudeKm: 421},
	}
	if err := s.RecordPositions(ctx, runID, "25544", samples); err != nil {
		t.Fatalf("RecordPositions: %v", err)
	}
	if err := s.FinishRun(ctx, runID, len(samples)); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := s.PositionsForRun(ctx, runID)
	if err != nil {
		t.Fatalf("PositionsForRun: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(positions) = %d, want 2", len(got))
	}
	if !got[0].Timestamp.Equal(base) || got[0].AltitudeKm != 420 {
		t.Errorf("first sample = %+v", got[0])
	}
	if got[1].X != 1100 {
		t.Errorf("second sample X = %v, want 1100", got[1].X)
	}
}
