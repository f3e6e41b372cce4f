package source

import (
	"strings"
	"time"
)

// Definition describes a known TLE provider.
type Definition struct {
	Name        string
	URLTemplate string
	Attribution string
	RateLimit   time.Duration
	Timeout     time.Duration
	Headers     map[string]string
}

// DefaultOrder is the provider priority used when the caller does not
// configure one.
var DefaultOrder = []string{"celestrak", "ivan", "spacetrack", "n2yo"}

// Available lists every provider this build knows how to query.
var Available = map[string]Definition{
	"celestrak": {
		Name:        "celestrak",
		URLTemplate: "https://celestrak.org/NORAD/elements/gp.php?CATNR={id}&FORMAT=tle",
		Attribution: "celestrak.org",
		RateLimit:   time.Second,
	},
	"ivan": {
		Name:        "ivan",
		URLTemplate: "https://tle.ivanstanojevic.me/api/tle/{id}",
		Attribution: "tle.ivanstanojevic.me",
		RateLimit:   500 * time.Millisecond,
	},
	"spacetrack": {
		Name:        "spacetrack",
		URLTemplate: "https://www.space-track.org/basicspacedata/query/class/tle_latest/NORAD_CAT_ID/{id}/ORDINAL/1/format/tle",
		Attribution: "space-track.org",
		RateLimit:   2 * time.Second,
		Headers:     map[string]string{"Pragma": "no-cache"},
	},
	"n2yo": {
		Name:        "n2yo",
		URLTemplate: "https://api.n2yo.com/rest/v1/satellite/tle/{id}",
		Attribution: "n2yo.com",
		RateLimit:   time.Second,
	},
}

// BuildClients instantiates clients for the named providers, preserving
// order, skipping unknown names, and dropping duplicates.
func BuildClients(order []string) []*Client {
	seen := make(map[string]bool, len(order))
	var clients []*Client
	for _, name := range order {
		if seen[name] {
			continue
		}
		seen[name] = true
		def, ok := Available[name]
		if !ok {
			continue
		}
		clients = append(clients, NewClient(def))
	}
	return clients
}

// ParseOrder splits a comma-separated provider list, falling back to def
// when text is empty.
func ParseOrder(text string, def []string) []string {
	if text == "" {
		return append([]string(nil), def...)
	}
	var order []string
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			order = append(order, part)
		}
	}
	return order
}
