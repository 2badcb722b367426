package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

// gathered returns the value of the first series of name whose labels
// include label, or -1 when absent.
func gathered(g prometheus.Gatherer, name, label string) float64 {
	families, err := g.Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			match := label == ""
			for _, l := range m.GetLabel() {
				if l.GetValue() == label {
					match = true
				}
			}
			if !match {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return -1
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then the default names are used", func() {
				So(manager, ShouldNotBeNil)
				manager.replays.WithLabelValues("elo").Inc()
				So(gathered(registry, "matchrank_reports_replays_total", "elo"), ShouldEqual, 1)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("ratings"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metrics carry the namespace and constant labels", func() {
				manager.storedReports.Set(3)
				So(gathered(registry, "test_ratings_stored", ""), ShouldEqual, 3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(families, ShouldNotBeEmpty)
				found := false
				for _, f := range families {
					if f.GetName() == "test_ratings_stored" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When ignoring empty options", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithCustomLabels(nil),
				WithPrometheusRegistry(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "matchrank")
				So(manager.subsystem, ShouldEqual, "reports")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording a replay", func() {
			before := gathered(customRegistry, "matchrank_reports_matches_rated_total", "")
			RecordReplay("glicko", 2, 10)

			Convey("Then events and matches accumulate", func() {
				after := gathered(customRegistry, "matchrank_reports_matches_rated_total", "")
				if before < 0 {
					before = 0
				}
				So(after-before, ShouldEqual, 10)
				So(gathered(customRegistry, "matchrank_reports_replays_total", "glicko"), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording report metrics", func() {
			RecordSnapshotsBuilt("global", 3)
			UpdateRankedCompetitors("global", 42)
			RecordReportError("broken")

			Convey("Then the labelled series are updated", func() {
				So(gathered(customRegistry, "matchrank_reports_ranked_competitors", "global"), ShouldEqual, 42)
				So(gathered(customRegistry, "matchrank_reports_build_errors_total", "broken"), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording the remaining series", func() {
			So(func() {
				RecordEventsLoaded("tournament", 5)
				RecordReportBuildLatency("elo", 12.5)
				UpdateLastBuild(1700000000)
				RecordPublishLatency("redis", 3)
				RecordPublishError("postgres")
				UpdateStoredReports(4)
				RecordPublished("memory")
				UpdatePublishQueueLength(2)
				RecordHTTPRequest("/reports", "GET", "200")
				RecordHTTPRequestDuration("/reports", "GET", "200", 1.5)
				RecordErrorByComponent("source", "malformed")
			}, ShouldNotPanic)
		})

		Convey("When the publish queue length changes", func() {
			UpdatePublishQueueLength(7)

			Convey("Then the gauge reports it", func() {
				So(gathered(customRegistry, "matchrank_reports_publish_queue_length", ""), ShouldEqual, 7)
			})
		})

		Convey("Then the custom registry is exposed", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
