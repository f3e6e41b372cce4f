package tle

import (
	"errors"
	"testing"
	"time"
)

// epochLine builds a minimal line 1 carrying the given year digits and
// day-of-year field in the standard columns.
func epochLine(year2, day string) string {
	return "1 00005U 58002B   " + year2 + day
}

func TestEpochISSample(t *testing.T) {
	// 0.91719907 days is 79245.99964799837 s; the sub-second remainder
	// rounds to 999648 microseconds.
	got, err := Epoch(issLine1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2020, time.December, 9, 22, 0, 45, 999648000, time.UTC)
	if !got.Equal(want) {
		t.Errorf("epoch: got %v, want %v", got, want)
	}
}

// Day fraction .76031250 of a day lands a hair under a whole second;
// rounding yields exactly 1e6 microseconds and must carry into seconds.
func TestEpochMicrosecondCarry(t *testing.T) {
	got, err := Epoch(epochLine("20", "100.76031250"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2020, time.April, 9, 18, 14, 51, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("carry epoch: got %v, want %v", got, want)
	}
}

func TestEpochYearPivot(t *testing.T) {
	cases := []struct {
		year2 string
		want  int
	}{
		{"57", 1957},
		{"99", 1999},
		{"00", 2000},
		{"56", 2056},
	}
	for _, tc := range cases {
		got, err := Epoch(epochLine(tc.year2, "001.00000000"))
		if err != nil {
			t.Fatalf("year %s: unexpected error: %v", tc.year2, err)
		}
		want := time.Date(tc.want, time.January, 1, 0, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("year %s: got %v, want %v", tc.year2, got, want)
		}
	}
}

// Day 1 is January 1 itself; no day offset is applied.
func TestEpochDayOneIsBaseDate(t *testing.T) {
	got, err := Epoch(epochLine("20", "001.50000000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2020, time.January, 1, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEpochFailures(t *testing.T) {
	cases := []struct {
		name    string
		line1   string
		wantErr error
	}{
		{"too short", "1 25544U 98067A", ErrEpochTooShort},
		{"bad year", epochLine("XX", "344.91719907"), ErrInvalidEpochYear},
		{"bad day", epochLine("20", "abc.def00000"), ErrInvalidEpochDay},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Epoch(tc.line1)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}
