package tle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Epoch decodes the epoch field of line1 into an absolute UTC instant
// with microsecond resolution.
//
// Columns 19-20 hold a two-digit year (57-99 means 1900s, 00-56 means
// 2000s) and columns 21-32 a fractional day of year, day 1 being
// January 1. Sub-second rounding is carried explicitly so an epoch that
// rounds to exactly 1e6 microseconds lands on the next whole second.
func Epoch(line1 string) (time.Time, error) {
	if len(line1) < 32 {
		return time.Time{}, fmt.Errorf("%d characters: %w", len(line1), ErrEpochTooShort)
	}

	year2, err := strconv.Atoi(line1[18:20])
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", line1[18:20], ErrInvalidEpochYear)
	}
	dayOfYear, err := strconv.ParseFloat(strings.TrimSpace(line1[20:32]), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", line1[20:32], ErrInvalidEpochDay)
	}

	year := 2000 + year2
	if year2 >= 57 {
		year = 1900 + year2
	}

	day := math.Floor(dayOfYear)
	frac := dayOfYear - day
	totalSeconds := frac * 86400
	if totalSeconds < 0 {
		return time.Time{}, ErrNegativeEpochSeconds
	}

	secs := math.Floor(totalSeconds)
	micros := math.Round((totalSeconds - secs) * 1e6)
	if micros >= 1e6 {
		secs++
		micros -= 1e6
	}

	t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	t = t.AddDate(0, 0, int(day)-1)
	t = t.Add(time.Duration(secs)*time.Second + time.Duration(micros)*time.Microsecond)
	return t, nil
}
