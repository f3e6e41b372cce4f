package tle

// SGP4 is a placeholder for element-level orbit propagation. The parsing
// core does not propagate; it always reports ErrNotImplemented so callers
// can probe for the capability. Use the propagation package for actual
// SGP4 sampling.
func SGP4(line1, line2 string) error {
	return ErrNotImplemented
}
