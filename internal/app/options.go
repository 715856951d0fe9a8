package app

import (
	"time"

	"github.com/okian/cadenza/internal/adapters/provider"
	"github.com/okian/cadenza/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScrobblesPath sets the raw listening-history CSV path.
func WithScrobblesPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.scrobblesPath = path
		}
	}
}

// WithCheckpointDir sets the checkpoint store directory.
func WithCheckpointDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.checkpointDir = dir
		}
	}
}

// WithDatasetPath sets the canonical enriched dataset path.
func WithDatasetPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.datasetPath = path
		}
	}
}

// WithUpdateCachePath sets where the monitor persists recent updates.
func WithUpdateCachePath(path string) Option {
	return func(s *Service) {
		s.updateCachePath = path
	}
}

// WithWorkerCount sets the number of enrichment workers.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithBatchSize sets the checkpoint batch size.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithCallDelay sets the per-worker pacing delay between provider calls.
func WithCallDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.callDelay = d
		}
	}
}

// WithMonitorInterval sets the delta monitor's periodic check interval.
func WithMonitorInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.monitorInterval = d
		}
	}
}

// WithProviderFactory sets the per-worker provider client factory.
func WithProviderFactory(f provider.Factory) Option {
	return func(s *Service) {
		if f != nil {
			s.factory = f
		}
	}
}
