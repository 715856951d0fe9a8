package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/okian/cadenza/internal/adapters/http/api"
	"github.com/okian/cadenza/internal/domain/model"
	"github.com/okian/cadenza/internal/enrich"
	"github.com/okian/cadenza/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeDeps satisfies the handler dependencies with canned data.
type fakeDeps struct {
	snapshot enrich.Snapshot
	updates  []model.UpdateEvent
}

func (f *fakeDeps) Progress() enrich.Snapshot          { return f.snapshot }
func (f *fakeDeps) RecentUpdates() []model.UpdateEvent { return f.updates }

func newMux(deps api.Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps).Register(context.Background(), mux)
	return mux
}

func TestHandleHealth(t *testing.T) {
	Convey("Given the ops API routes", t, func() {
		mux := newMux(&fakeDeps{})

		Convey("When GETting /healthz", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			Convey("Then it reports ok as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")

				var body map[string]string
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["status"], ShouldEqual, "ok")
			})
		})

		Convey("When POSTing /healthz", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

			Convey("Then the method is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestHandleProgress(t *testing.T) {
	Convey("Given a run in flight", t, func() {
		deps := &fakeDeps{
			snapshot: enrich.Snapshot{
				Total:     100,
				Processed: 40,
				Succeeded: 36,
				Failed:    4,
				Elapsed:   2 * time.Minute,
			},
		}
		mux := newMux(deps)

		Convey("When GETting /progress", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))

			Convey("Then the snapshot is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var snap enrich.Snapshot
				So(json.Unmarshal(rec.Body.Bytes(), &snap), ShouldBeNil)
				So(snap.Total, ShouldEqual, 100)
				So(snap.Processed, ShouldEqual, 40)
				So(snap.Failed, ShouldEqual, 4)
			})
		})
	})
}

func TestHandleUpdates(t *testing.T) {
	Convey("Given recent source updates", t, func() {
		deps := &fakeDeps{
			updates: []model.UpdateEvent{
				{NewEvents: 12, TotalEvents: 512, Intensity: 3.4, RefreshRecommended: true},
			},
		}
		mux := newMux(deps)

		Convey("When GETting /updates", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/updates", nil))

			Convey("Then the history is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var got []model.UpdateEvent
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				So(got[0].NewEvents, ShouldEqual, 12)
				So(got[0].RefreshRecommended, ShouldBeTrue)
			})
		})

		Convey("When no updates exist yet", func() {
			rec := httptest.NewRecorder()
			newMux(&fakeDeps{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/updates", nil))

			Convey("Then the body is an empty array, not null", func() {
				So(rec.Body.String(), ShouldStartWith, "[]")
			})
		})
	})
}

func TestMetricsEndpoint(t *testing.T) {
	Convey("Given the ops API routes", t, func() {
		mux := newMux(&fakeDeps{})

		Convey("When GETting /metrics", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then the Prometheus exposition is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.Len(), ShouldBeGreaterThan, 0)
			})
		})
	})
}
