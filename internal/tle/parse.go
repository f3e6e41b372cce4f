package tle

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// jsonPayload is the structured fallback shape: at least line1 and line2,
// plus an optional (possibly null) name.
type jsonPayload struct {
	Line1 *string `json:"line1"`
	Line2 *string `json:"line2"`
	Name  *string `json:"name"`
}

// Parse extracts and validates a TLE from text.
//
// The plain-text scan looks for the first adjacent pair of lines starting
// with "1 " and "2 "; a directly preceding non-element line becomes the
// object name. When no pair is found the whole input is decoded as a JSON
// object with line1/line2 fields. Both lines must pass the modulo-10
// checksum and carry identical catalog-number fields.
//
// requestedID is optional. A purely numeric requestedID is cross-checked
// against the catalog field; non-numeric identifiers are accepted
// unchecked (some registries use alphanumeric designators). source tags
// the record's provider and defaults to "unknown" when empty.
func Parse(text, requestedID, source string) (Record, error) {
	var name, line1, line2 string

	lines := splitLines(text)
	for i := 0; i+1 < len(lines); i++ {
		if strings.HasPrefix(lines[i], "1 ") && strings.HasPrefix(lines[i+1], "2 ") {
			if i > 0 && !strings.HasPrefix(lines[i-1], "1 ") && !strings.HasPrefix(lines[i-1], "2 ") {
				name = lines[i-1]
			}
			line1, line2 = lines[i], lines[i+1]
			break
		}
	}

	if line1 == "" || line2 == "" {
		var payload jsonPayload
		if err := json.Unmarshal([]byte(text), &payload); err != nil || payload.Line1 == nil || payload.Line2 == nil {
			return Record{}, ErrLinePairNotFound
		}
		line1 = strings.TrimSpace(*payload.Line1)
		line2 = strings.TrimSpace(*payload.Line2)
		if payload.Name != nil {
			name = strings.TrimSpace(*payload.Name)
		}
		if line1 == "" || line2 == "" {
			return Record{}, ErrEmptyLine
		}
	}

	if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
		return Record{}, ErrBadLinePrefix
	}
	if !ChecksumOK(line1) || !ChecksumOK(line2) {
		return Record{}, ErrChecksumFailed
	}

	cat1 := catalogField(line1)
	cat2 := catalogField(line2)
	if cat1 != cat2 {
		return Record{}, ErrCatalogMismatch
	}
	if cat1 == "" {
		return Record{}, fmt.Errorf("blank catalog number field: %w", ErrCatalogMismatch)
	}

	if requestedID != "" && allDigits(requestedID) {
		field := stripSpaces(cat1)
		if allDigits(field) {
			req, errReq := strconv.ParseInt(requestedID, 10, 64)
			actual, errField := strconv.ParseInt(field, 10, 64)
			if errReq == nil && errField == nil && req != actual {
				return Record{}, fmt.Errorf("requested %s, lines carry %s: %w", requestedID, field, ErrRequestedIDMismatch)
			}
		}
	}

	objectID := cat1
	if requestedID != "" {
		objectID = requestedID
	}
	if source == "" {
		source = DefaultSource
	}

	return Record{
		ObjectID: objectID,
		Name:     name,
		Line1:    line1,
		Line2:    line2,
		Source:   source,
	}, nil
}

// splitLines returns the non-empty, whitespace-trimmed lines of text in
// their original order.
func splitLines(text string) []string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

// catalogField extracts the catalog-number field, columns 3-7 of a TLE
// line, trimmed. Lines shorter than 7 characters yield the empty string.
func catalogField(line string) string {
	if len(line) < 7 {
		return ""
	}
	return strings.TrimSpace(line[2:7])
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
}
