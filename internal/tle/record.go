// Package tle locates, validates, and decodes NORAD two-line element sets.
//
// The package is the parsing core of tle-fetcher: it accepts either a
// human-formatted report (optional name line followed by the two element
// lines) or a JSON payload carrying line1/line2 fields, verifies the
// modulo-10 checksums and catalog-number agreement, and can decode the
// compact epoch field into an absolute UTC instant. All operations are
// pure and safe for concurrent use.
package tle

import "strings"

// DefaultSource is recorded on a Record when the caller does not name a
// data provider.
const DefaultSource = "unknown"

// Record is a validated two-line element set.
//
// Name is empty when the input carried no name line. Source identifies
// the provider that produced the lines and is diagnostic only.
type Record struct {
	ObjectID string `json:"object_id"`
	Name     string `json:"name,omitempty"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2"`
	Source   string `json:"source"`
}

// Text renders the record in canonical TLE text form, optionally with
// the name line first.
func (r Record) Text(includeName bool) string {
	var b strings.Builder
	if includeName && r.Name != "" {
		b.WriteString(r.Name)
		b.WriteByte('\n')
	}
	b.WriteString(r.Line1)
	b.WriteByte('\n')
	b.WriteString(r.Line2)
	b.WriteByte('\n')
	return b.String()
}
