package app_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/cadenza/internal/adapters/dataset"
	"github.com/okian/cadenza/internal/adapters/provider"
	app "github.com/okian/cadenza/internal/app"
	"github.com/okian/cadenza/internal/domain/model"
	"github.com/okian/cadenza/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func writeScrobbles(t *testing.T, dir string, n int) string {
	t.Helper()
	path := filepath.Join(dir, "scrobbles.csv")
	content := "timestamp,artist,track,album,mood\n"
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		content += fmt.Sprintf("%s,Artist %d,Track %d,,\n",
			base.Add(time.Duration(i)*time.Minute).Format(time.RFC3339), i%7, i)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write scrobbles: %v", err)
	}
	return path
}

func appendScrobbles(t *testing.T, dir string, start, n int) {
	t.Helper()
	path := filepath.Join(dir, "scrobbles.csv")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open scrobbles for append: %v", err)
	}
	defer f.Close()
	base := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)
	for i := start; i < start+n; i++ {
		line := fmt.Sprintf("%s,Artist %d,Track %d,,\n",
			base.Add(time.Duration(i)*time.Minute).Format(time.RFC3339), i%7, i)
		if _, err := f.WriteString(line); err != nil {
			t.Fatalf("append scrobbles: %v", err)
		}
	}
}

func fastSimFactory(int) (provider.Client, error) {
	return provider.NewSimClient(provider.WithSimLatencyRange(0, 0)), nil
}

func newService(t *testing.T, dir string) *app.Service {
	t.Helper()
	return app.New(
		app.WithScrobblesPath(filepath.Join(dir, "scrobbles.csv")),
		app.WithCheckpointDir(filepath.Join(dir, "checkpoints")),
		app.WithDatasetPath(filepath.Join(dir, "enriched.csv")),
		app.WithUpdateCachePath(filepath.Join(dir, "updates.json")),
		app.WithWorkerCount(2),
		app.WithBatchSize(5),
		app.WithCallDelay(0),
		app.WithMonitorInterval(time.Hour),
		app.WithProviderFactory(fastSimFactory),
	)
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := app.New()

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
		})
	})
}

func TestService_RunEnrichment(t *testing.T) {
	Convey("Given a started service over a small history", t, func() {
		dir := t.TempDir()
		writeScrobbles(t, dir, 20)
		svc := newService(t, dir)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When running the full pipeline", func() {
			summary, err := svc.RunEnrichment(ctx)

			Convey("Then every unique track is enriched", func() {
				So(err, ShouldBeNil)
				// 20 events across 7 artists yield 20 unique (artist, track) pairs.
				So(summary.Total, ShouldEqual, 20)
				So(summary.Processed, ShouldEqual, 20)
				So(summary.Succeeded, ShouldEqual, 20)
			})

			Convey("And the canonical dataset is written", func() {
				keys, kerr := dataset.EnrichedKeys(ctx, filepath.Join(dir, "enriched.csv"))
				So(kerr, ShouldBeNil)
				So(len(keys), ShouldEqual, 20)
			})

			Convey("And progress reflects the completed run", func() {
				snap := svc.Progress()
				So(snap.Processed, ShouldEqual, 20)
				So(snap.Succeeded, ShouldEqual, 20)
			})
		})
	})
}

func TestService_SkipsAlreadyEnriched(t *testing.T) {
	Convey("Given a service that has already completed one pipeline pass", t, func() {
		dir := t.TempDir()
		writeScrobbles(t, dir, 10)
		svc := newService(t, dir)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		_, err := svc.RunEnrichment(ctx)
		So(err, ShouldBeNil)
		svc.Stop()

		Convey("When a fresh service runs over the same data with a clean checkpoint dir", func() {
			second := app.New(
				app.WithScrobblesPath(filepath.Join(dir, "scrobbles.csv")),
				app.WithCheckpointDir(filepath.Join(dir, "checkpoints2")),
				app.WithDatasetPath(filepath.Join(dir, "enriched.csv")),
				app.WithUpdateCachePath(filepath.Join(dir, "updates.json")),
				app.WithWorkerCount(2),
				app.WithBatchSize(5),
				app.WithCallDelay(0),
				app.WithMonitorInterval(time.Hour),
				app.WithProviderFactory(fastSimFactory),
			)
			So(second.Start(ctx), ShouldBeNil)
			defer second.Stop()

			summary, err := second.RunEnrichment(ctx)

			Convey("Then the already-enriched tracks are excluded up front", func() {
				So(err, ShouldBeNil)
				So(summary.Total, ShouldEqual, 0)
				So(summary.Processed, ShouldEqual, 0)
			})
		})
	})
}

func TestService_PreservesPriorEnrichment(t *testing.T) {
	Convey("Given a completed pass over six tracks and two tracks added afterwards", t, func() {
		dir := t.TempDir()
		writeScrobbles(t, dir, 6)
		svc := newService(t, dir)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		_, err := svc.RunEnrichment(ctx)
		So(err, ShouldBeNil)
		svc.Stop()

		appendScrobbles(t, dir, 6, 2)

		Convey("When a fresh service with a clean checkpoint dir enriches the additions", func() {
			second := app.New(
				app.WithScrobblesPath(filepath.Join(dir, "scrobbles.csv")),
				app.WithCheckpointDir(filepath.Join(dir, "checkpoints2")),
				app.WithDatasetPath(filepath.Join(dir, "enriched.csv")),
				app.WithUpdateCachePath(filepath.Join(dir, "updates.json")),
				app.WithWorkerCount(2),
				app.WithBatchSize(5),
				app.WithCallDelay(0),
				app.WithMonitorInterval(time.Hour),
				app.WithProviderFactory(fastSimFactory),
			)
			So(second.Start(ctx), ShouldBeNil)
			defer second.Stop()

			summary, err := second.RunEnrichment(ctx)

			Convey("Then only the two new tracks are processed", func() {
				So(err, ShouldBeNil)
				So(summary.Total, ShouldEqual, 2)
				So(summary.Processed, ShouldEqual, 2)
			})

			Convey("And the rewritten dataset keeps the earlier rows", func() {
				keys, kerr := dataset.EnrichedKeys(ctx, filepath.Join(dir, "enriched.csv"))
				So(kerr, ShouldBeNil)
				So(len(keys), ShouldEqual, 8)
				_, ok := keys[model.NewTrackIdentity("Artist 0", "Track 0").Key()]
				So(ok, ShouldBeTrue)
				_, ok = keys[model.NewTrackIdentity("Artist 0", "Track 7").Key()]
				So(ok, ShouldBeTrue)
			})
		})
	})
}

func TestService_ResumesAgainstPinnedWorklist(t *testing.T) {
	Convey("Given a completed pass whose checkpoint dir is reused after the source grew", t, func() {
		dir := t.TempDir()
		writeScrobbles(t, dir, 10)
		svc := newService(t, dir)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		first, err := svc.RunEnrichment(ctx)
		So(err, ShouldBeNil)
		So(first.Total, ShouldEqual, 10)

		appendScrobbles(t, dir, 10, 5)

		Convey("When rerunning against the same checkpoint dir", func() {
			summary, err := svc.RunEnrichment(ctx)

			Convey("Then the pinned work list governs: checkpoint indices keep addressing the original identities", func() {
				So(err, ShouldBeNil)
				So(summary.Total, ShouldEqual, 0)
				So(summary.Processed, ShouldEqual, 0)
			})

			Convey("And the dataset still holds exactly the original pass", func() {
				keys, kerr := dataset.EnrichedKeys(ctx, filepath.Join(dir, "enriched.csv"))
				So(kerr, ShouldBeNil)
				So(len(keys), ShouldEqual, 10)
			})
		})
	})
}

func TestService_StopIsIdempotent(t *testing.T) {
	Convey("Given a started service", t, func() {
		dir := t.TempDir()
		writeScrobbles(t, dir, 3)
		svc := newService(t, dir)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When stopping twice", func() {
			svc.Stop()
			svc.Stop()

			Convey("Then the second stop is a no-op", func() {
				So(svc.Stopper().ShouldStop(), ShouldBeTrue)
			})
		})
	})
}
