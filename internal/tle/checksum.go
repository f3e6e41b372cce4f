package tle

import "strings"

// ChecksumOK reports whether line satisfies the NORAD modulo-10 checksum.
//
// The last character of the (right-trimmed) line is the expected check
// digit. Every other character contributes its numeric value if it is a
// digit, 1 if it is a minus sign, and 0 otherwise. Lines that are empty
// or whose last character is not a digit are invalid.
func ChecksumOK(line string) bool {
	line = strings.TrimRight(line, " \t\r\n")
	if line == "" {
		return false
	}
	last := line[len(line)-1]
	if last < '0' || last > '9' {
		return false
	}
	sum := 0
	for i := 0; i < len(line)-1; i++ {
		switch c := line[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum%10 == int(last-'0')
}
