package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/matchrank/internal/adapters/http/api"
	"github.com/okian/matchrank/internal/adapters/repository"
	"github.com/okian/matchrank/internal/domain/types"
	"github.com/okian/matchrank/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func num(v float64) *float64 { return &v }

func seededStore() *repository.MemoryStore {
	s := repository.NewMemoryStore()
	_ = s.Save(context.Background(), types.Report{
		Name:      "elo",
		Title:     "Elo",
		Algorithm: "elo",
		Latest:    time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC),
		Snapshots: []types.Snapshot{
			{
				Label:   "01.03.2020",
				Current: true,
				Entries: []types.Entry{
					{Position: 1, Key: "a", Name: "Ann", Rating: num(1530)},
					{Position: 2, Key: "b", Name: "Bob", Rating: num(1500)},
					{Position: 3, Key: "c", Name: "Cid"},
				},
			},
			{
				Label:   "2019",
				Entries: []types.Entry{{Position: 1, Key: "b", Name: "Bob", Rating: num(1516)}},
			},
		},
	})
	return s
}

type brokenStore struct{ repository.Store }

func (brokenStore) List(context.Context) ([]types.Summary, error) {
	return nil, errors.New("backend down")
}

type stats map[string]interface{}

func (s stats) GetStats() map[string]interface{} { return s }

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, http.NoBody))
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.NewDecoder(w.Body).Decode(v), ShouldBeNil)
}

func TestServerRoutes(t *testing.T) {
	Convey("Given an API server over a seeded store", t, func() {
		h := api.NewServer(seededStore(), 2, api.WithStats(stats{"reports": 1})).Routes()

		Convey("When checking health", func() {
			w := serve(h, http.MethodGet, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ok"`)
		})

		Convey("When scraping metrics", func() {
			metrics.RecordReplay("elo", 1, 1)
			w := serve(h, http.MethodGet, "/metrics")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "matchrank_reports_replays_total")
		})

		Convey("When reading stats", func() {
			w := serve(h, http.MethodGet, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"reports":1`)
		})

		Convey("When listing reports", func() {
			w := serve(h, http.MethodGet, "/reports")
			So(w.Code, ShouldEqual, http.StatusOK)
			var list []types.Summary
			decode(w, &list)
			So(len(list), ShouldEqual, 1)
			So(list[0].Name, ShouldEqual, "elo")
			So(list[0].Competitors, ShouldEqual, 2)
		})

		Convey("When reading a whole report", func() {
			w := serve(h, http.MethodGet, "/reports/elo")
			So(w.Code, ShouldEqual, http.StatusOK)
			var r types.Report
			decode(w, &r)
			So(len(r.Snapshots), ShouldEqual, 2)
			So(len(r.Snapshots[0].Entries), ShouldEqual, 3)
		})

		Convey("When selecting a snapshot with a limit", func() {
			w := serve(h, http.MethodGet, "/reports/elo?snapshot=0&limit=1")
			So(w.Code, ShouldEqual, http.StatusOK)
			var r types.Report
			decode(w, &r)
			So(len(r.Snapshots), ShouldEqual, 1)
			So(r.Snapshots[0].Label, ShouldEqual, "01.03.2020")
			So(len(r.Snapshots[0].Entries), ShouldEqual, 1)
		})

		Convey("When the snapshot index is out of range", func() {
			w := serve(h, http.MethodGet, "/reports/elo?snapshot=2")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the limit is invalid or too large", func() {
			So(serve(h, http.MethodGet, "/reports/elo?limit=0").Code, ShouldEqual, http.StatusBadRequest)
			w := serve(h, http.MethodGet, "/reports/elo/top?limit=3")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "limit_exceeded")
		})

		Convey("When reading the top rows", func() {
			w := serve(h, http.MethodGet, "/reports/elo/top?limit=2")
			So(w.Code, ShouldEqual, http.StatusOK)
			var top []types.Entry
			decode(w, &top)
			So(len(top), ShouldEqual, 2)
			So(top[0].Key, ShouldEqual, "a")
		})

		Convey("When the report is unknown", func() {
			w := serve(h, http.MethodGet, "/reports/nope")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(w.Body.String(), ShouldContainSubstring, "not_found")
		})

		Convey("When reading a competitor history", func() {
			w := serve(h, http.MethodGet, "/reports/elo/competitors/b")
			So(w.Code, ShouldEqual, http.StatusOK)
			var hist types.History
			decode(w, &hist)
			So(hist.Name, ShouldEqual, "Bob")
			So(len(hist.Points), ShouldEqual, 2)
			So(hist.Points[1].Label, ShouldEqual, "2019")
		})

		Convey("When the competitor is unknown", func() {
			So(serve(h, http.MethodGet, "/reports/elo/competitors/zed").Code, ShouldEqual, http.StatusNotFound)
			So(serve(h, http.MethodGet, "/reports/nope/competitors/a").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the route or method does not exist", func() {
			So(serve(h, http.MethodGet, "/unknown").Code, ShouldEqual, http.StatusNotFound)
			So(serve(h, http.MethodPost, "/reports").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})

	Convey("Given a failing store", t, func() {
		h := api.NewServer(brokenStore{}, 0).Routes()

		Convey("Then listing reports returns a server error", func() {
			w := serve(h, http.MethodGet, "/reports")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldContainSubstring, "backend down")
		})

		Convey("Then stats are not routed", func() {
			So(serve(h, http.MethodGet, "/stats").Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given extra routes", t, func() {
		h := api.NewServer(seededStore(), 0, api.WithRoutes(func(r chi.Router) {
			r.Get("/extra", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("mounted"))
			})
		})).Routes()

		Convey("Then they are served by the same router", func() {
			w := serve(h, http.MethodGet, "/extra")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "mounted")
		})
	})
}
