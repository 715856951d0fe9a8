package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/cadenza/internal/adapters/checkpoint"
	"github.com/okian/cadenza/internal/adapters/provider"
	"github.com/okian/cadenza/internal/domain/model"
	"github.com/okian/cadenza/pkg/logger"
	"github.com/okian/cadenza/pkg/metrics"
)

// Default executor configuration constants.
const (
	defaultWorkerCount = 4
	defaultBatchSize   = 500
	defaultCallDelay   = 100 * time.Millisecond
)

// defaultPriorities rank the known sources; unknown sources fall back to
// the lowest trust tier.
var defaultPriorities = map[string]int{
	"cyanite":        1,
	"acousticbrainz": 2,
}

const fallbackPriority = 3

// WorkerInfo identifies one worker's contribution for diagnostics.
type WorkerInfo struct {
	ID        string `json:"id"`
	Index     int    `json:"index"`
	Processed int    `json:"processed"`
	Err       string `json:"err,omitempty"`
}

// RunSummary is always produced, whether the run completed, was
// cooperatively stopped, or lost a worker.
type RunSummary struct {
	RunID      string                   `json:"run_id"`
	StartIndex int                      `json:"start_index"`
	Total      int                      `json:"total"`
	Processed  int                      `json:"processed"`
	Succeeded  int                      `json:"succeeded"`
	Failed     int                      `json:"failed"`
	Discarded  int                      `json:"discarded"`
	Providers  map[string]ProviderStats `json:"providers"`
	Elapsed    time.Duration            `json:"elapsed"`
	Stopped    bool                     `json:"stopped"`
	Workers    []WorkerInfo             `json:"workers"`
}

// Executor processes the remaining catalog to completion on a fixed pool of
// parallel workers, each pinned to its own provider client and pacing its
// calls with a minimum inter-call delay. Work is cut into contiguous
// batches; every fully processed batch is flushed to the checkpoint store
// before the next begins, so a crash or stop never loses committed work.
type Executor struct {
	factory    provider.Factory
	store      checkpoint.Store
	workers    int
	batchSize  int
	delay      time.Duration
	priorities map[string]int
	stopper    *StopController
	logger     logger.Logger

	mu    sync.RWMutex
	stats *Stats
}

// New constructs an Executor. The factory is invoked once per worker at run
// start; workers never share a client.
func New(factory provider.Factory, store checkpoint.Store, opts ...Option) *Executor {
	e := &Executor{
		factory:    factory,
		store:      store,
		workers:    defaultWorkerCount,
		batchSize:  defaultBatchSize,
		delay:      defaultCallDelay,
		priorities: defaultPriorities,
		stopper:    NewStopController(),
		logger:     logger.Named("executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stopper exposes the cooperative shutdown controller for signal wiring.
func (e *Executor) Stopper() *StopController {
	return e.stopper
}

// Progress returns a snapshot of the current (or last) run's counters.
func (e *Executor) Progress() Snapshot {
	e.mu.RLock()
	stats := e.stats
	e.mu.RUnlock()
	if stats == nil {
		return Snapshot{}
	}
	return stats.Snapshot()
}

// runWorker is one pinned worker for the duration of a run.
type runWorker struct {
	id        string
	index     int
	client    provider.Client
	processed int
	initErr   error
}

// Run processes identities[startIndex:] and blocks until every batch is
// checkpointed, a stop is requested, or a worker failure makes further
// contiguous progress impossible. It always returns a summary.
func (e *Executor) Run(ctx context.Context, identities []model.TrackIdentity, startIndex int) (*RunSummary, error) {
	runID := uuid.NewString()
	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex > len(identities) {
		startIndex = len(identities)
	}
	remaining := len(identities) - startIndex

	stats := NewStats(remaining)
	e.mu.Lock()
	e.stats = stats
	e.mu.Unlock()

	e.logger.Info(ctx, "enrichment run starting",
		logger.String("run_id", runID),
		logger.Int("catalog", len(identities)),
		logger.Int("resume_index", startIndex),
		logger.Int("remaining", remaining),
		logger.Int("workers", e.workers),
		logger.Duration("call_delay", e.delay),
	)
	metrics.UpdateWorkerCount(e.workers)

	workers := make([]*runWorker, e.workers)
	alive := 0
	for i := range workers {
		w := &runWorker{id: uuid.NewString(), index: i}
		if client, err := e.factory(i); err != nil {
			w.initErr = err
			e.logger.Error(ctx, "worker client init failed",
				logger.Int("worker", i), logger.Error(err))
		} else {
			w.client = provider.NewBreakerClient(provider.NewPacedClient(client, e.delay))
			alive++
		}
		workers[i] = w
	}

	summary := &RunSummary{
		RunID:      runID,
		StartIndex: startIndex,
		Total:      remaining,
	}
	if alive == 0 && remaining > 0 {
		e.finish(ctx, summary, stats, workers)
		return summary, ErrNoWorkers
	}

	discarded := 0
	for batchStart := startIndex; batchStart < len(identities); batchStart += e.batchSize {
		if e.stopper.ShouldStop() {
			break
		}
		batchEnd := batchStart + e.batchSize
		if batchEnd > len(identities) {
			batchEnd = len(identities)
		}

		outcomes := e.runBatch(ctx, identities[batchStart:batchEnd], batchStart, workers)

		// Commit the longest contiguous prefix. Outcomes past the first hole
		// (a stopped or failed worker's slice) cannot be checkpointed without
		// breaking range contiguity; they are discarded and reprocessed on
		// resume.
		prefix := 0
		for prefix < len(outcomes) && outcomes[prefix] != nil {
			prefix++
		}
		if prefix > 0 {
			items := make([]model.Outcome, prefix)
			for i := 0; i < prefix; i++ {
				items[i] = *outcomes[i]
			}
			if err := e.store.Save(ctx, batchStart, batchStart+prefix-1, items); err != nil {
				e.finish(ctx, summary, stats, workers)
				return summary, err
			}
		}
		for i := prefix; i < len(outcomes); i++ {
			if outcomes[i] != nil {
				discarded++
			}
		}

		if prefix < len(outcomes) {
			break
		}
		metrics.RecordBatchCompleted()
		if remaining > 0 {
			metrics.UpdateRunProgress(float64(batchEnd-startIndex) / float64(remaining))
		}
	}

	summary.Discarded = discarded
	if discarded > 0 {
		metrics.RecordOutcomesDiscarded(discarded)
		e.logger.Warn(ctx, "outcomes past stop boundary discarded; they will be reprocessed on resume",
			logger.Int("discarded", discarded))
	}

	e.finish(ctx, summary, stats, workers)
	return summary, nil
}

// runBatch processes one contiguous batch, split into near-equal contiguous
// per-worker slices (the last slice absorbs the remainder). Results are
// collected only after every worker has finished or stopped.
func (e *Executor) runBatch(ctx context.Context, batch []model.TrackIdentity, base int, workers []*runWorker) []*model.Outcome {
	outcomes := make([]*model.Outcome, len(batch))

	per := len(batch) / len(workers)
	var wg sync.WaitGroup
	for i, w := range workers {
		lo := i * per
		hi := lo + per
		if i == len(workers)-1 {
			hi = len(batch)
		}
		if lo >= hi || w.client == nil {
			continue
		}
		wg.Add(1)
		go func(w *runWorker, lo, hi int) {
			defer wg.Done()
			for j := lo; j < hi; j++ {
				if e.stopper.ShouldStop() {
					return
				}
				out := e.processItem(ctx, w, base+j, batch[j])
				outcomes[j] = &out
				w.processed++
			}
		}(w, lo, hi)
	}
	wg.Wait()
	return outcomes
}

// processItem calls the worker's provider exactly once and produces the
// single outcome for this index, success or typed failure. Item-level
// failures never escalate.
func (e *Executor) processItem(ctx context.Context, w *runWorker, index int, id model.TrackIdentity) model.Outcome {
	name := w.client.Name()
	start := time.Now()
	rec, err := w.client.Analyze(ctx, id.Artist, id.Track)
	metrics.RecordProviderLatency(name, float64(time.Since(start).Milliseconds()))

	if err != nil {
		kind := provider.Kind(err)
		e.stats.RecordFailure(name)
		metrics.RecordItemProcessed(name, kind)
		e.logger.Debug(ctx, "item failed",
			logger.Int("index", index),
			logger.String("track", id.String()),
			logger.String("kind", kind),
		)
		return model.Outcome{Index: index, Identity: id, Provider: name, Failure: kind}
	}

	e.stats.RecordSuccess(name)
	metrics.RecordItemProcessed(name, "success")
	enrichedAt := rec.AnalyzedAt
	if enrichedAt.IsZero() {
		enrichedAt = time.Now()
	}
	return model.Outcome{
		Index:    index,
		Identity: id,
		Provider: name,
		Record: &model.EnrichmentRecord{
			Identity:   id,
			Source:     name,
			Priority:   e.priorityFor(name),
			Fields:     rec.Fields,
			EnrichedAt: enrichedAt,
		},
	}
}

func (e *Executor) priorityFor(source string) int {
	if p, ok := e.priorities[source]; ok {
		return p
	}
	return fallbackPriority
}

// finish folds the shared counters into the summary and emits the run
// report that is logged regardless of how the run ended.
func (e *Executor) finish(ctx context.Context, summary *RunSummary, stats *Stats, workers []*runWorker) {
	snap := stats.Snapshot()
	summary.Processed = snap.Processed
	summary.Succeeded = snap.Succeeded
	summary.Failed = snap.Failed
	summary.Providers = snap.Providers
	summary.Elapsed = snap.Elapsed
	summary.Stopped = e.stopper.ShouldStop()
	e.stopper.MarkStopped()

	for _, w := range workers {
		info := WorkerInfo{ID: w.id, Index: w.index, Processed: w.processed}
		if w.initErr != nil {
			info.Err = w.initErr.Error()
		}
		summary.Workers = append(summary.Workers, info)
	}

	fields := []logger.Field{
		logger.String("run_id", summary.RunID),
		logger.Int("processed", summary.Processed),
		logger.Int("succeeded", summary.Succeeded),
		logger.Int("failed", summary.Failed),
		logger.Int("discarded", summary.Discarded),
		logger.Duration("elapsed", summary.Elapsed),
		logger.Float64("rate_per_hour", snap.RatePerHour),
		logger.Any("stopped", summary.Stopped),
	}
	for p, ps := range summary.Providers {
		fields = append(fields, logger.Any("provider_"+p, ps))
	}
	e.logger.Info(ctx, "enrichment run finished", fields...)
}
