package checkpoint

import "errors"

// Sentinel kinds for checkpoint errors.
var (
	// ErrCorruptCheckpoint signals a gap, overlap or undecodable checkpoint.
	// It is fatal and never auto-repaired; the offending range is named in
	// the wrapping error so the operator can inspect the files.
	ErrCorruptCheckpoint = errors.New("corrupt checkpoint set")

	// ErrInvalidRange signals a save call whose range and item count disagree.
	ErrInvalidRange = errors.New("invalid checkpoint range")
)
