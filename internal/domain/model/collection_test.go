package model_test

import (
	"errors"
	"testing"

	"github.com/okian/matchrank/internal/domain/model"
	"github.com/okian/matchrank/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

func testCollection() *model.Collection {
	f := model.NewFactions()
	f.Add("elves", "Elves")
	f.Add("nords", "Nords")
	c := model.NewCollection(testRoster(), model.WithFactionTable(f))

	entrants := map[string]string{"1": "alice", "2": "bob", "3": "dave", "4": model.ProxyName}
	late := model.NewTournament(model.Meta{Name: "Late"}, day(2020, 6, 1), entrants)
	early := model.NewTournament(model.Meta{Name: "Early"}, day(2020, 1, 1), entrants)
	same := model.NewTournament(model.Meta{Name: "Same"}, day(2020, 1, 1), entrants)
	for _, e := range []*model.Event{late, early, same} {
		if err := e.AddMatch("1", "2", model.FirstWins, model.WithFactions("elves", "nords")); err != nil {
			panic(err)
		}
		e.EndRound()
		if err := e.AddMatch("3", "2", model.Draw); err != nil {
			panic(err)
		}
	}
	if err := c.Add(late, early, same); err != nil {
		panic(err)
	}
	return c
}

func TestCollectionSorted(t *testing.T) {
	Convey("Given events added out of order", t, func() {
		c := testCollection()

		Convey("Sorted orders by date and keeps insertion order on ties", func() {
			names := []string{}
			for _, e := range c.Sorted() {
				names = append(names, e.Name)
			}
			So(names, ShouldResemble, []string{"Early", "Same", "Late"})
			So(c.Len(), ShouldEqual, 3)
		})
	})

	Convey("Given an event with an unknown competitor", t, func() {
		c := model.NewCollection(testRoster())
		e := model.NewTournament(model.Meta{Name: "X"}, day(2020, 1, 1), map[string]string{"1": "ghost"})

		Convey("Add fails with an invalid-input error", func() {
			err := c.Add(e)
			So(errors.Is(err, model.ErrUnknownCompetitor), ShouldBeTrue)
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			So(c.Len(), ShouldEqual, 0)
		})
	})
}

func TestCollectionReplay(t *testing.T) {
	Convey("Given a collection", t, func() {
		c := testCollection()

		Convey("Replaying twice yields identical ratings", func() {
			for _, alg := range []rating.Algorithm{rating.NewElo(32), rating.NewGlicko(rating.DefaultParams().Glicko), rating.WinRate{}} {
				first, err := c.Replay(alg)
				So(err, ShouldBeNil)
				second, err := c.Replay(alg)
				So(err, ShouldBeNil)
				So(first.Competitors, ShouldHaveLength, 3)
				for k, r := range first.Competitors {
					So(second.Competitors[k].Mu(), ShouldEqual, r.Mu())
					So(second.Competitors[k].Matches(), ShouldEqual, r.Matches())
				}
			}
		})

		Convey("The event filter skips events", func() {
			s, err := c.Replay(rating.NewElo(32), model.WithEventFilter(func(e *model.Event) bool { return e.Name == "Late" }))
			So(err, ShouldBeNil)
			a, _ := s.Rating("alice")
			So(a.Mu(), ShouldAlmostEqual, 1516, 1e-9)
			So(a.Matches(), ShouldEqual, 1)
		})

		Convey("Faction replay rates factions", func() {
			s, err := c.Replay(rating.NewTeamElo(32, 16), model.WithFactionRatings())
			So(err, ShouldBeNil)
			So(s.Factions["elves"].Matches(), ShouldEqual, 3)
			So(s.Factions["elves"].Mu()+s.Factions["nords"].Mu(), ShouldAlmostEqual, 3000, 1e-9)
		})

		Convey("Faction replay with a non-team algorithm fails", func() {
			_, err := c.Replay(rating.NewElo(32), model.WithFactionRatings())
			So(errors.Is(err, model.ErrTeamUnsupported), ShouldBeTrue)
		})
	})

	Convey("Given a collection without a faction table", t, func() {
		c := model.NewCollection(testRoster())

		Convey("Faction replay is a configuration inconsistency", func() {
			_, err := c.Replay(rating.NewTeamElo(32, 16), model.WithFactionRatings())
			So(errors.Is(err, model.ErrNoFactionRoster), ShouldBeTrue)
			So(errors.Is(err, model.ErrConfigInconsistency), ShouldBeTrue)
		})
	})
}

func TestCollectionCalibrate(t *testing.T) {
	Convey("Given a collection", t, func() {
		c := testCollection()

		Convey("Every match is observed once", func() {
			h, err := c.Calibrate(rating.NewElo(32), 25)
			So(err, ShouldBeNil)
			So(h.Total(), ShouldEqual, 6)
			sum := 0.0
			for _, b := range h.Buckets() {
				sum += b.Sum
			}
			// alice ends above bob, so three wins count 1 each; draws count 0.5
			So(sum, ShouldEqual, 4.5)
		})

		Convey("Pre-match gaps put the first match in the lowest bucket", func() {
			h, err := c.Calibrate(rating.NewElo(32), 10, model.WithPreMatchGaps())
			So(err, ShouldBeNil)
			So(h.Total(), ShouldEqual, 6)
			b := h.Buckets()
			So(b[0].Count, ShouldBeGreaterThanOrEqualTo, 1)
		})

		Convey("An invalid width fails", func() {
			_, err := c.Calibrate(rating.NewElo(32), 0)
			So(err, ShouldNotBeNil)
		})
	})
}
