package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/matchrank/internal/adapters/repository"
	"github.com/okian/matchrank/internal/adapters/source"
	service "github.com/okian/matchrank/internal/app"
	"github.com/okian/matchrank/internal/config"
	"github.com/okian/matchrank/internal/fixtures"
	"github.com/okian/matchrank/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// testConfig points a default config at a freshly generated data set.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	fc := fixtures.DefaultConfig(filepath.Join(dir, "data"))
	fc.Tournaments = 4
	ds, err := fixtures.Generate(context.Background(), fc)
	if err != nil {
		t.Fatalf("generate fixtures: %v", err)
	}

	cfg := config.New()
	cfg.Data = config.DataConfig{Roster: ds.Roster, Factions: ds.Factions, Manifest: ds.Manifest}
	cfg.OutputDir = filepath.Join(dir, "reports")
	cfg.CurrentDate = "2020-12-31"
	cfg.Milestones = []config.Milestone{{Date: "2020-03-01", Label: "Spring"}}
	cfg.Calibration.Enabled = true
	return cfg
}

func TestRun(t *testing.T) {
	convey.Convey("Given a generated data set", t, func() {
		cfg := testConfig(t)

		convey.Convey("When running a one-shot build", func() {
			err := run(context.Background(), cfg)

			convey.Convey("Then every report and the calibration table are written", func() {
				convey.So(err, convey.ShouldBeNil)
				for _, name := range []string{"elo.md", "glicko.md", "calibration.md"} {
					_, statErr := os.Stat(filepath.Join(cfg.OutputDir, name))
					convey.So(statErr, convey.ShouldBeNil)
				}
			})
		})

		convey.Convey("When serving until cancelled", func() {
			cfg.Serve = true
			cfg.Addr = "127.0.0.1:0"
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			convey.Convey("Then it shuts down cleanly", func() {
				convey.So(run(ctx, cfg), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the roster is missing", func() {
			cfg.Data.Roster = filepath.Join(t.TempDir(), "missing.csv")

			convey.Convey("Then the run fails", func() {
				convey.So(run(context.Background(), cfg), convey.ShouldNotBeNil)
			})
		})
	})
}

func TestHTTPServer(t *testing.T) {
	convey.Convey("Given a built service", t, func() {
		cfg := testConfig(t)
		cfg.OutputDir = ""
		store, closeStore, err := openStore(context.Background(), cfg)
		convey.So(err, convey.ShouldBeNil)
		defer closeStore()
		convey.So(store, convey.ShouldHaveSameTypeAs, &repository.MemoryStore{})

		roster, err := source.LoadRoster(cfg.Data.Roster)
		convey.So(err, convey.ShouldBeNil)
		factions, err := source.LoadFactions(cfg.Data.Factions)
		convey.So(err, convey.ShouldBeNil)
		coll, err := source.LoadCollection(context.Background(), cfg.Data.Manifest, roster, factions)
		convey.So(err, convey.ShouldBeNil)

		svc := service.New(cfg, coll, service.WithStore(store))
		_, err = svc.Run(context.Background())
		convey.So(err, convey.ShouldBeNil)

		srv := newHTTPServer(cfg, store, svc)
		convey.So(srv.Addr, convey.ShouldEqual, cfg.Addr)
		convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)

		get := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
			return w
		}

		convey.Convey("Then reports are listed", func() {
			w := get("/reports")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			var list []map[string]interface{}
			convey.So(json.Unmarshal(w.Body.Bytes(), &list), convey.ShouldBeNil)
			convey.So(list, convey.ShouldHaveLength, 2)
		})

		convey.Convey("Then stats describe the run", func() {
			w := get("/stats")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "run_id")
		})

		convey.Convey("Then the API docs are mounted", func() {
			convey.So(get("/openapi.yaml").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/api-docs").Code, convey.ShouldEqual, http.StatusOK)
		})
	})
}
