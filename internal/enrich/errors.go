package enrich

import "errors"

// Sentinel kinds for executor errors.
var (
	// ErrNoWorkers means every worker's provider client failed to
	// initialize; the run cannot make progress.
	ErrNoWorkers = errors.New("no workers could be initialized")
)
