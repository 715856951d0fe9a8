// Package app provides the core service that wires the enrichment pipeline:
// raw source -> work catalog -> batch executor -> checkpoints -> merger ->
// canonical dataset, plus the live delta monitor over the raw source.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/okian/cadenza/internal/adapters/checkpoint"
	"github.com/okian/cadenza/internal/adapters/dataset"
	"github.com/okian/cadenza/internal/adapters/provider"
	"github.com/okian/cadenza/internal/adapters/source"
	"github.com/okian/cadenza/internal/domain/catalog"
	"github.com/okian/cadenza/internal/domain/merge"
	"github.com/okian/cadenza/internal/domain/model"
	"github.com/okian/cadenza/internal/enrich"
	"github.com/okian/cadenza/internal/monitor"
	"github.com/okian/cadenza/pkg/logger"
	"github.com/okian/cadenza/pkg/metrics"
)

// Service owns the pipeline components for one process.
type Service struct {
	mu sync.RWMutex

	// Configuration
	scrobblesPath   string
	checkpointDir   string
	datasetPath     string
	updateCachePath string
	workerCount     int
	batchSize       int
	callDelay       time.Duration
	monitorInterval time.Duration
	factory         provider.Factory

	// Core components
	src      source.Source
	store    *checkpoint.FileStore
	executor *enrich.Executor
	merger   *merge.Merger
	writer   *dataset.Writer
	mon      *monitor.Monitor

	// State
	started     bool
	monitorStop context.CancelFunc
	monitorDone chan struct{}

	// Logging
	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		scrobblesPath:   "data/scrobbles.csv",
		checkpointDir:   "data/checkpoints",
		datasetPath:     "data/enriched.csv",
		updateCachePath: "data/updates.json",
		workerCount:     4,
		batchSize:       500,
		callDelay:       100 * time.Millisecond,
		monitorInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the pipeline components and launches the delta monitor.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("app")
	}

	s.logger.Info(ctx, "starting enrichment service...")

	s.src = source.NewCSVSource(s.scrobblesPath)

	store, err := checkpoint.NewFileStore(s.checkpointDir)
	if err != nil {
		return err
	}
	s.store = store

	if s.factory == nil {
		// Without real credentials the pipeline runs against the simulated
		// provider with its built-in latency range.
		s.factory = func(int) (provider.Client, error) {
			return provider.NewSimClient(), nil
		}
	}

	s.executor = enrich.New(s.factory, s.store,
		enrich.WithWorkerCount(s.workerCount),
		enrich.WithBatchSize(s.batchSize),
		enrich.WithCallDelay(s.callDelay),
	)
	s.merger = merge.New()
	s.writer = dataset.NewWriter(s.datasetPath)
	s.mon = monitor.New(s.src,
		monitor.WithInterval(s.monitorInterval),
		monitor.WithCachePath(s.updateCachePath),
	)
	s.mon.Register(func(u model.UpdateEvent) {
		if u.RefreshRecommended {
			s.logger.Info(context.Background(), "recommendation refresh suggested",
				logger.Int("new_events", u.NewEvents),
				logger.Int("new_artists", len(u.NewArtists)),
				logger.Float64("intensity", u.Intensity),
			)
		}
	})

	monCtx, cancel := context.WithCancel(context.Background())
	s.monitorStop = cancel
	s.monitorDone = make(chan struct{})
	go func() {
		defer close(s.monitorDone)
		if err := s.mon.Start(monCtx); err != nil {
			s.logger.Warn(monCtx, "delta monitor not running", logger.Error(err))
		}
	}()

	s.started = true
	s.logger.Info(ctx, "enrichment service started",
		logger.Int("workers", s.workerCount),
		logger.Int("batch_size", s.batchSize),
		logger.Duration("call_delay", s.callDelay),
	)
	return nil
}

// Stopper exposes the executor's cooperative shutdown controller.
func (s *Service) Stopper() *enrich.StopController {
	return s.executor.Stopper()
}

// RunEnrichment executes one full pipeline pass: load or build the work
// list, resume from the checkpoint store, enrich the remaining items, then
// merge all checkpointed records into the canonical dataset. A summary is
// returned even when the run is cooperatively stopped.
func (s *Service) RunEnrichment(ctx context.Context) (*enrich.RunSummary, error) {
	// Checkpoint ranges address positions in the work list, so the list is
	// pinned in the checkpoint directory before any work starts. A restart
	// resumes against the pinned list; only a fresh run (empty checkpoint
	// directory) rebuilds it from the source and drops identities already
	// in the canonical dataset.
	identities, pinned, err := s.store.LoadWorklist(ctx)
	if err != nil {
		return nil, err
	}
	if !pinned {
		identities, err = catalog.FromSource(ctx, s.src)
		if err != nil {
			return nil, err
		}
		enriched, err := dataset.EnrichedKeys(ctx, s.datasetPath)
		if err != nil {
			return nil, err
		}
		identities = catalog.ExcludeEnriched(identities, enriched)
		if err := s.store.SaveWorklist(ctx, identities); err != nil {
			return nil, err
		}
	}

	resume, err := s.store.ResumeIndex(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "work catalog built",
		logger.Int("targets", len(identities)),
		logger.Int("resume_index", resume),
	)

	summary, err := s.executor.Run(ctx, identities, resume)
	if err != nil {
		return summary, err
	}

	if err := s.MergeDataset(ctx); err != nil {
		return summary, err
	}
	return summary, nil
}

// MergeDataset compacts the checkpoint store, merges the checkpointed
// records, and rewrites the canonical dataset with rows from earlier runs
// carried forward. Full-replace must never lose prior work: identities
// absent from this run's checkpoints (excluded up front, or enriched by an
// earlier run over a different checkpoint directory) keep their existing
// rows. The merge is idempotent; rerunning it on the same checkpoints
// yields the same file.
func (s *Service) MergeDataset(ctx context.Context) error {
	outcomes, err := s.store.Compact(ctx)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		// Nothing checkpointed; leave any previously written dataset alone.
		s.logger.Info(ctx, "no checkpointed outcomes; dataset unchanged")
		return nil
	}

	records := make([]model.EnrichmentRecord, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			records = append(records, *o.Record)
		}
	}

	prior, err := dataset.Rows(ctx, s.datasetPath)
	if err != nil {
		return err
	}

	rows := merge.Combine(prior, s.merger.Merge(records))
	if err := s.writer.Replace(ctx, rows); err != nil {
		return err
	}

	metrics.UpdateMergedRows(len(rows))
	s.logger.Info(ctx, "canonical dataset written",
		logger.String("path", s.datasetPath),
		logger.Int("rows", len(rows)),
		logger.Int("records", len(records)),
	)
	return nil
}

// Progress reports the current run's counters for the ops API.
func (s *Service) Progress() enrich.Snapshot {
	return s.executor.Progress()
}

// RecentUpdates returns the delta monitor's bounded history for the ops API.
func (s *Service) RecentUpdates() []model.UpdateEvent {
	return s.mon.RecentUpdates()
}

// CheckForUpdates triggers an immediate delta monitor check.
func (s *Service) CheckForUpdates(ctx context.Context) (model.UpdateEvent, bool, error) {
	return s.mon.CheckNow(ctx)
}

// Stop shuts down the service: the monitor is canceled and the executor's
// stop is requested so any in-flight run winds down at the next item
// boundary.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping enrichment service...")

	if s.executor != nil {
		s.executor.Stopper().RequestStop()
	}
	if s.monitorStop != nil {
		s.monitorStop()
		<-s.monitorDone
	}

	s.started = false
	s.logger.Info(context.Background(), "enrichment service stopped")
}
