package enrich

import (
	"time"

	"github.com/okian/cadenza/pkg/logger"
)

// Option applies a configuration option to the Executor.
type Option func(*Executor)

// WithWorkerCount sets the number of parallel workers.
func WithWorkerCount(count int) Option {
	return func(e *Executor) {
		if count > 0 {
			e.workers = count
		}
	}
}

// WithBatchSize sets the number of items checkpointed together.
func WithBatchSize(size int) Option {
	return func(e *Executor) {
		if size > 0 {
			e.batchSize = size
		}
	}
}

// WithCallDelay sets the per-worker minimum inter-call delay. The aggregate
// call rate is roughly workerCount / delay.
func WithCallDelay(delay time.Duration) Option {
	return func(e *Executor) {
		if delay >= 0 {
			e.delay = delay
		}
	}
}

// WithSourcePriorities overrides the source trust ranking used when records
// are created (lower number = more trusted).
func WithSourcePriorities(priorities map[string]int) Option {
	return func(e *Executor) {
		if len(priorities) > 0 {
			e.priorities = priorities
		}
	}
}

// WithStopController sets a shared cooperative shutdown controller.
func WithStopController(c *StopController) Option {
	return func(e *Executor) {
		if c != nil {
			e.stopper = c
		}
	}
}

// WithLogger sets a custom logger for the executor.
func WithLogger(l logger.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}
