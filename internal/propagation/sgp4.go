// Package propagation samples satellite positions from TLEs using SGP4.
package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go (no CGO), explicit TEME output, ships the geodetic conversion
// helpers (GSTimeFromDate, ECIToLLA) needed for ground-track output.
//
// Note: Propagate() takes Satellite by value so SGP4 error codes are not
// visible to the caller. Propagation failures are detected by checking
// output for NaN/Inf and unreasonable position magnitudes.

// Sample is the satellite state at one instant: TEME position/velocity
// plus the geodetic subpoint.
type Sample struct {
	Time       time.Time
	Position   [3]float64 // km, TEME
	Velocity   [3]float64 // km/s, TEME
	Latitude   float64    // degrees
	Longitude  float64    // degrees
	AltitudeKm float64
}

// Propagator wraps an initialized SGP4 model for a single satellite.
// Safe for concurrent use: the library takes the model by value.
type Propagator struct {
	sat     satellite.Satellite
	noradID string
}

// NewPropagator initializes the SGP4 model from a validated line pair.
//
// Pre-validates the TLE format before handing it to the library, because
// go-satellite calls log.Fatal on malformed input (which would kill the
// process).
func NewPropagator(line1, line2, noradID string) (*Propagator, error) {
	if err := validateTLELines(line1, line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for %s: %w", noradID, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for %s: code=%d %s", noradID, sat.Error, sat.ErrorStr)
	}
	return &Propagator{sat: sat, noradID: noradID}, nil
}

// validateTLELines performs basic format validation on TLE lines.
func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// At computes the satellite state at t.
func (p *Propagator) At(t time.Time) (Sample, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(
		p.sat,
		t.Year(), int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
	)

	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return Sample{}, fmt.Errorf("sgp4 propagation failed for %s: output is NaN/Inf", p.noradID)
	}

	// Sanity check: position magnitude should be between ~6200km and ~50000km.
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return Sample{}, fmt.Errorf("sgp4 propagation failed for %s: unreasonable position magnitude %.1f km", p.noradID, mag)
	}

	gmst := satellite.GSTimeFromDate(
		t.Year(), int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
	)
	altitude, _, latLong := satellite.ECIToLLA(pos, gmst)
	deg := satellite.LatLongDeg(latLong)

	return Sample{
		Time:       t,
		Position:   [3]float64{pos.X, pos.Y, pos.Z},
		Velocity:   [3]float64{vel.X, vel.Y, vel.Z},
		Latitude:   deg.Latitude,
		Longitude:  deg.Longitude,
		AltitudeKm: altitude,
	}, nil
}
