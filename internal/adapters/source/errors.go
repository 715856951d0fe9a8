package source

import "errors"

// Sentinel kinds for source errors.
var (
	// ErrSourceUnreadable is fatal at catalog construction: the pipeline
	// cannot run without the raw history.
	ErrSourceUnreadable = errors.New("raw source unreadable")
)
