package enrich_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/cadenza/internal/adapters/checkpoint"
	"github.com/okian/cadenza/internal/adapters/provider"
	"github.com/okian/cadenza/internal/domain/model"
	"github.com/okian/cadenza/internal/enrich"
	. "github.com/smartystreets/goconvey/convey"
)

func identities(n int) []model.TrackIdentity {
	ids := make([]model.TrackIdentity, n)
	for i := range ids {
		ids[i] = model.NewTrackIdentity(fmt.Sprintf("Artist %d", i), fmt.Sprintf("Track %d", i))
	}
	return ids
}

func simFactory(opts ...provider.SimOption) provider.Factory {
	base := []provider.SimOption{provider.WithSimLatencyRange(0, 0)}
	return func(int) (provider.Client, error) {
		return provider.NewSimClient(append(base, opts...)...), nil
	}
}

func newStore(t *testing.T) *checkpoint.FileStore {
	t.Helper()
	store, err := checkpoint.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return store
}

func TestExecutor_Run(t *testing.T) {
	Convey("Given an executor over 25 targets", t, func() {
		ctx := context.Background()
		store := newStore(t)
		exec := enrich.New(simFactory(), store,
			enrich.WithWorkerCount(3),
			enrich.WithBatchSize(10),
			enrich.WithCallDelay(0),
		)

		Convey("When running from the start", func() {
			summary, err := exec.Run(ctx, identities(25), 0)

			Convey("Then every target is processed exactly once", func() {
				So(err, ShouldBeNil)
				So(summary.Processed, ShouldEqual, 25)
				So(summary.Succeeded, ShouldEqual, 25)
				So(summary.Failed, ShouldEqual, 0)
				So(summary.Discarded, ShouldEqual, 0)
			})

			Convey("And the checkpoint store covers the whole range", func() {
				items, cerr := store.Compact(ctx)
				So(cerr, ShouldBeNil)
				So(len(items), ShouldEqual, 25)
				seen := make(map[int]int)
				for _, item := range items {
					seen[item.Index]++
				}
				for i := 0; i < 25; i++ {
					So(seen[i], ShouldEqual, 1)
				}
			})

			Convey("And the resume index points past the processed range", func() {
				resume, rerr := store.ResumeIndex(ctx)
				So(rerr, ShouldBeNil)
				So(resume, ShouldEqual, 25)
			})

			Convey("And the run finishes in the stopped state", func() {
				So(exec.Stopper().State(), ShouldEqual, enrich.Stopped)
			})
		})
	})
}

func TestExecutor_Resume(t *testing.T) {
	Convey("Given a store with committed work up to index 9", t, func() {
		ctx := context.Background()
		store := newStore(t)
		ids := identities(20)

		first := enrich.New(simFactory(), store,
			enrich.WithWorkerCount(2),
			enrich.WithBatchSize(10),
			enrich.WithCallDelay(0),
		)
		_, err := first.Run(ctx, ids[:10], 0)
		So(err, ShouldBeNil)

		Convey("When a second run resumes from the store's index", func() {
			resume, err := store.ResumeIndex(ctx)
			So(err, ShouldBeNil)
			So(resume, ShouldEqual, 10)

			second := enrich.New(simFactory(), store,
				enrich.WithWorkerCount(2),
				enrich.WithBatchSize(10),
				enrich.WithCallDelay(0),
			)
			summary, err := second.Run(ctx, ids, resume)

			Convey("Then only the remaining targets are processed", func() {
				So(err, ShouldBeNil)
				So(summary.StartIndex, ShouldEqual, 10)
				So(summary.Processed, ShouldEqual, 10)
			})

			Convey("And compaction sees one contiguous range", func() {
				items, cerr := store.Compact(ctx)
				So(cerr, ShouldBeNil)
				So(len(items), ShouldEqual, 20)
			})
		})
	})
}

func TestExecutor_ItemFailures(t *testing.T) {
	Convey("Given a provider that rejects one artist", t, func() {
		ctx := context.Background()
		store := newStore(t)
		ids := identities(10)

		exec := enrich.New(simFactory(provider.WithSimFailure("Artist 3", provider.ErrNotFound)), store,
			enrich.WithWorkerCount(1),
			enrich.WithBatchSize(10),
			enrich.WithCallDelay(0),
		)

		Convey("When running", func() {
			summary, err := exec.Run(ctx, ids, 0)

			Convey("Then the failure stays item-level", func() {
				So(err, ShouldBeNil)
				So(summary.Processed, ShouldEqual, 10)
				So(summary.Succeeded, ShouldEqual, 9)
				So(summary.Failed, ShouldEqual, 1)
			})

			Convey("And the failed outcome is checkpointed with its kind", func() {
				items, cerr := store.Compact(ctx)
				So(cerr, ShouldBeNil)
				So(len(items), ShouldEqual, 10)
				So(items[3].OK(), ShouldBeFalse)
				So(items[3].Failure, ShouldEqual, provider.KindNotFound)
				So(items[4].OK(), ShouldBeTrue)
			})
		})
	})
}

func TestExecutor_CooperativeStop(t *testing.T) {
	Convey("Given a run that is stopped mid-batch", t, func() {
		ctx := context.Background()
		store := newStore(t)
		ids := identities(40)

		// Stop after the 5th item; the worker must finish that item and exit
		// at the next boundary.
		stopper := enrich.NewStopController()
		client := &stoppingClient{stopAfter: 5, stopper: stopper}
		exec := enrich.New(func(int) (provider.Client, error) { return client, nil }, store,
			enrich.WithWorkerCount(1),
			enrich.WithBatchSize(20),
			enrich.WithCallDelay(0),
			enrich.WithStopController(stopper),
		)

		Convey("When running", func() {
			summary, err := exec.Run(ctx, ids, 0)

			Convey("Then the run ends early without error", func() {
				So(err, ShouldBeNil)
				So(summary.Stopped, ShouldBeTrue)
				So(summary.Processed, ShouldEqual, 5)
			})

			Convey("And only the contiguous prefix is checkpointed", func() {
				resume, rerr := store.ResumeIndex(ctx)
				So(rerr, ShouldBeNil)
				So(resume, ShouldEqual, 5)
			})

			Convey("And the state machine reaches stopped", func() {
				So(stopper.State(), ShouldEqual, enrich.Stopped)
			})
		})
	})

	Convey("Given a stop requested before the run starts", t, func() {
		ctx := context.Background()
		store := newStore(t)
		exec := enrich.New(simFactory(), store,
			enrich.WithWorkerCount(2),
			enrich.WithCallDelay(0),
		)
		exec.Stopper().RequestStop()

		Convey("Then the run processes nothing", func() {
			summary, err := exec.Run(ctx, identities(10), 0)
			So(err, ShouldBeNil)
			So(summary.Processed, ShouldEqual, 0)
			So(summary.Stopped, ShouldBeTrue)
		})
	})
}

func TestExecutor_WorkerInitFailure(t *testing.T) {
	Convey("Given a factory that cannot build any client", t, func() {
		ctx := context.Background()
		store := newStore(t)
		factory := func(int) (provider.Client, error) {
			return nil, errors.New("no credentials")
		}
		exec := enrich.New(factory, store, enrich.WithWorkerCount(2), enrich.WithCallDelay(0))

		Convey("When running", func() {
			summary, err := exec.Run(ctx, identities(5), 0)

			Convey("Then the run fails up front with a summary attached", func() {
				So(errors.Is(err, enrich.ErrNoWorkers), ShouldBeTrue)
				So(summary, ShouldNotBeNil)
				So(summary.Processed, ShouldEqual, 0)
				So(len(summary.Workers), ShouldEqual, 2)
				So(summary.Workers[0].Err, ShouldNotBeEmpty)
			})
		})
	})
}

func TestExecutor_Progress(t *testing.T) {
	Convey("Given an executor that has completed a run", t, func() {
		ctx := context.Background()
		store := newStore(t)
		exec := enrich.New(simFactory(), store,
			enrich.WithWorkerCount(2),
			enrich.WithBatchSize(5),
			enrich.WithCallDelay(0),
		)

		Convey("Before any run, progress is zero", func() {
			So(exec.Progress().Processed, ShouldEqual, 0)
		})

		Convey("After a run, progress reflects the final counters", func() {
			_, err := exec.Run(ctx, identities(8), 0)
			So(err, ShouldBeNil)
			snap := exec.Progress()
			So(snap.Total, ShouldEqual, 8)
			So(snap.Processed, ShouldEqual, 8)
		})
	})
}

// stoppingClient succeeds instantly and requests a stop after a fixed number
// of calls, simulating a signal arriving mid-batch.
type stoppingClient struct {
	stopAfter int
	calls     int
	stopper   *enrich.StopController
}

func (c *stoppingClient) Name() string { return "sim" }

func (c *stoppingClient) Analyze(_ context.Context, _, _ string) (*provider.Record, error) {
	c.calls++
	if c.calls >= c.stopAfter {
		c.stopper.RequestStop()
	}
	return &provider.Record{
		Fields:     map[string]string{"tempo": "120"},
		AnalyzedAt: time.Now(),
	}, nil
}
