package tle

import "errors"

// Sentinel errors returned by Parse, Epoch, and SGP4. Callers match them
// with errors.Is; wrapped variants carry additional context.
var (
	ErrLinePairNotFound     = errors.New("could not locate TLE line pair")
	ErrEmptyLine            = errors.New("empty TLE line")
	ErrBadLinePrefix        = errors.New("bad TLE line prefixes")
	ErrChecksumFailed       = errors.New("checksum failed")
	ErrCatalogMismatch      = errors.New("catalog numbers differ between lines")
	ErrRequestedIDMismatch  = errors.New("catalog number does not match requested ID")
	ErrEpochTooShort        = errors.New("line 1 too short to contain epoch")
	ErrInvalidEpochYear     = errors.New("invalid epoch year")
	ErrInvalidEpochDay      = errors.New("invalid epoch day")
	ErrNegativeEpochSeconds = errors.New("epoch fraction produced negative seconds")
	ErrNotImplemented       = errors.New("sgp4 propagation not implemented")
)
