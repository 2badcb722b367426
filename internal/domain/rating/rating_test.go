package rating_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/okian/matchrank/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

var day0 = time.Date(2019, 3, 2, 0, 0, 0, 0, time.UTC)

func TestParseKind(t *testing.T) {
	Convey("Given algorithm names from configuration", t, func() {
		Convey("Then known names are accepted case-insensitively", func() {
			k, err := rating.ParseKind(" Glicko ")
			So(err, ShouldBeNil)
			So(k, ShouldEqual, rating.KindGlicko)

			k, err = rating.ParseKind("team-elo")
			So(err, ShouldBeNil)
			So(k, ShouldEqual, rating.KindTeamElo)
		})

		Convey("Then an empty name defaults to elo", func() {
			k, err := rating.ParseKind("")
			So(err, ShouldBeNil)
			So(k, ShouldEqual, rating.KindElo)
		})

		Convey("Then unknown names fail", func() {
			_, err := rating.ParseKind("trueskill")
			So(errors.Is(err, rating.ErrUnknownKind), ShouldBeTrue)

			_, err = rating.New(rating.Kind("trueskill"))
			So(errors.Is(err, rating.ErrUnknownKind), ShouldBeTrue)
		})
	})
}

func TestElo(t *testing.T) {
	Convey("Given the default Elo algorithm", t, func() {
		alg, err := rating.New(rating.KindElo)
		So(err, ShouldBeNil)
		a, b := alg.Initial(), alg.Initial()

		Convey("When A beats B from 1500 each", func() {
			na, nb := alg.Rate1v1(a, b, false, day0)

			Convey("Then the winner gains K/2 and the loser drops K/2", func() {
				So(na.Mu(), ShouldAlmostEqual, 1516.0, 1e-9)
				So(nb.Mu(), ShouldAlmostEqual, 1484.0, 1e-9)
				So(na.Matches(), ShouldEqual, 1)
				So(nb.Matches(), ShouldEqual, 1)
				last, ok := na.LastActive()
				So(ok, ShouldBeTrue)
				So(last, ShouldEqual, day0)
			})

			Convey("Then the inputs are left untouched", func() {
				So(a.Mu(), ShouldEqual, 1500.0)
				So(a.Matches(), ShouldEqual, 0)
				_, ok := a.LastActive()
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When equal players draw", func() {
			na, nb := alg.Rate1v1(a, b, true, day0)

			Convey("Then nothing moves but the match is counted", func() {
				So(na.Mu(), ShouldAlmostEqual, 1500.0, 1e-9)
				So(nb.Mu(), ShouldAlmostEqual, 1500.0, 1e-9)
				So(na.Matches(), ShouldEqual, 1)
			})
		})

		Convey("When many random matches are rated", func() {
			rng := rand.New(rand.NewSource(7))

			Convey("Then every update is zero-sum and monotone", func() {
				for i := 0; i < 500; i++ {
					w := rating.NewEloRating(1000+rng.Float64()*1000, rng.Intn(20), day0)
					l := rating.NewEloRating(1000+rng.Float64()*1000, rng.Intn(20), day0)
					drawn := rng.Intn(5) == 0
					nw, nl := alg.Rate1v1(w, l, drawn, day0.AddDate(0, 0, 1))

					So(nw.Mu()+nl.Mu(), ShouldAlmostEqual, w.Mu()+l.Mu(), 1e-9)
					if !drawn {
						So(nw.Mu(), ShouldBeGreaterThanOrEqualTo, w.Mu())
						So(nl.Mu(), ShouldBeLessThanOrEqualTo, l.Mu())
					}
				}
			})
		})

		Convey("When K is configured", func() {
			alg, err := rating.New(rating.KindElo, rating.WithEloK(10))
			So(err, ShouldBeNil)
			na, _ := alg.Rate1v1(alg.Initial(), alg.Initial(), false, day0)

			Convey("Then the update scales with K", func() {
				So(na.Mu(), ShouldAlmostEqual, 1505.0, 1e-9)
			})
		})
	})
}

func TestTeamElo(t *testing.T) {
	Convey("Given the team Elo algorithm", t, func() {
		alg, err := rating.New(rating.KindTeamElo)
		So(err, ShouldBeNil)
		team, ok := alg.(rating.TeamAlgorithm)
		So(ok, ShouldBeTrue)
		So(alg.Kind(), ShouldEqual, rating.KindTeamElo)

		Convey("When a side wins a 2-vs-2 match between equal sides", func() {
			i := alg.Initial()
			w1, w2, l1, l2 := team.Rate2v2(i, i, i, i, false, day0)

			Convey("Then each member moves by TeamK/2", func() {
				So(w1.Mu(), ShouldAlmostEqual, 1508.0, 1e-9)
				So(w2.Mu(), ShouldAlmostEqual, 1508.0, 1e-9)
				So(l1.Mu(), ShouldAlmostEqual, 1492.0, 1e-9)
				So(l2.Mu(), ShouldAlmostEqual, 1492.0, 1e-9)
				So(l2.Matches(), ShouldEqual, 1)
			})
		})

		Convey("When sides are unequal", func() {
			w1 := rating.NewEloRating(1600, 3, day0)
			w2 := rating.NewEloRating(1450, 9, day0)
			l1 := rating.NewEloRating(1500, 1, day0)
			l2 := rating.NewEloRating(1520, 4, day0)
			nw1, nw2, nl1, nl2 := team.Rate2v2(w1, w2, l1, l2, false, day0)

			Convey("Then side members share one delta and the sum is conserved", func() {
				So(nw1.Mu()-w1.Mu(), ShouldAlmostEqual, nw2.Mu()-w2.Mu(), 1e-9)
				So(nl1.Mu()-l1.Mu(), ShouldAlmostEqual, nl2.Mu()-l2.Mu(), 1e-9)
				So(nw1.Mu()+nw2.Mu()+nl1.Mu()+nl2.Mu(), ShouldAlmostEqual, 6070.0, 1e-9)
			})
		})

		Convey("Then 1-vs-1 matches still use the individual K", func() {
			na, _ := alg.Rate1v1(alg.Initial(), alg.Initial(), false, day0)
			So(na.Mu(), ShouldAlmostEqual, 1516.0, 1e-9)
		})
	})
}

func TestGlicko(t *testing.T) {
	Convey("Given the default Glicko algorithm", t, func() {
		alg := rating.NewGlicko(rating.DefaultParams().Glicko)
		ceiling := 350.0 * 350.0
		perDay := ceiling * 0.9 / (365 * 1.5)

		Convey("When a fresh rating is inspected", func() {
			r := alg.Initial().(rating.Decaying)

			Convey("Then it sits at the ceiling", func() {
				So(r.Mu(), ShouldEqual, 1500.0)
				So(r.VarianceSq(), ShouldEqual, ceiling)
				So(r.EffectiveVarianceSq(day0), ShouldEqual, ceiling)
				So(r.MaxVarianceSq(), ShouldEqual, ceiling)
			})
		})

		Convey("When a rating has been inactive", func() {
			r := alg.NewRating(1700, 100*100, 12, day0)

			Convey("Then the variance grows linearly per day", func() {
				So(r.EffectiveVarianceSq(day0), ShouldEqual, 10000.0)
				So(r.EffectiveVarianceSq(day0.AddDate(0, 0, 400)), ShouldAlmostEqual, 10000+400*perDay, 1e-6)
			})

			Convey("Then long inactivity is capped exactly at the ceiling", func() {
				So(r.EffectiveVarianceSq(day0.AddDate(0, 0, 600)), ShouldEqual, ceiling)
				So(r.EffectiveVarianceSq(day0.AddDate(5, 0, 0)), ShouldEqual, ceiling)
			})

			Convey("Then a date before the last match leaves it unchanged", func() {
				So(r.EffectiveVarianceSq(day0.AddDate(0, 0, -30)), ShouldEqual, 10000.0)
			})
		})

		Convey("When two fresh players meet", func() {
			a, b := alg.Initial(), alg.Initial()
			na, nb := alg.Rate1v1(a, b, false, day0)
			da, db := na.(rating.Decaying), nb.(rating.Decaying)

			Convey("Then the winner rises, the loser falls symmetrically", func() {
				So(na.Mu(), ShouldBeGreaterThan, 1500.0)
				So(nb.Mu(), ShouldBeLessThan, 1500.0)
				So(na.Mu()+nb.Mu(), ShouldAlmostEqual, 3000.0, 1e-9)
				So(na.Mu(), ShouldAlmostEqual, 1662.2, 0.5)
			})

			Convey("Then both variances shrink below the ceiling", func() {
				So(da.VarianceSq(), ShouldBeLessThan, ceiling)
				So(da.VarianceSq(), ShouldAlmostEqual, db.VarianceSq(), 1e-9)
				So(na.Matches(), ShouldEqual, 1)
			})
		})

		Convey("When a favourite keeps winning", func() {
			var strong, weak rating.Rating = alg.Initial(), alg.Initial()

			Convey("Then every win is monotone", func() {
				for i := 0; i < 50; i++ {
					date := day0.AddDate(0, 0, i)
					ns, nw := alg.Rate1v1(strong, weak, false, date)
					So(ns.Mu(), ShouldBeGreaterThanOrEqualTo, strong.Mu())
					So(nw.Mu(), ShouldBeLessThanOrEqualTo, weak.Mu())
					strong, weak = ns, nw
				}
			})
		})

		Convey("When the variance floor is high", func() {
			floor := 40000.0
			alg := rating.NewGlicko(rating.GlickoParams{MinVarianceSq: floor})
			var a, b rating.Rating = alg.Initial(), alg.Initial()

			Convey("Then repeated updates never cross it", func() {
				for i := 0; i < 40; i++ {
					a, b = alg.Rate1v1(a, b, i%3 == 0, day0)
					So(a.(rating.Decaying).VarianceSq(), ShouldBeGreaterThanOrEqualTo, floor)
					So(b.(rating.Decaying).VarianceSq(), ShouldBeGreaterThanOrEqualTo, floor)
					So(math.IsNaN(a.Mu()), ShouldBeFalse)
				}
				So(a.(rating.Decaying).VarianceSq(), ShouldEqual, floor)
			})
		})

		Convey("When a huge rating gap saturates the expectation", func() {
			w := alg.NewRating(1e6, 1, 1, day0)
			l := alg.NewRating(0, 1, 1, day0)
			nw, nl := alg.Rate1v1(w, l, false, day0)

			Convey("Then the update stays finite", func() {
				So(math.IsNaN(nw.Mu()), ShouldBeFalse)
				So(math.IsInf(nl.Mu(), 0), ShouldBeFalse)
				So(nw.(rating.Decaying).VarianceSq(), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestWinRate(t *testing.T) {
	Convey("Given the win-rate algorithm", t, func() {
		alg, err := rating.New(rating.KindWinRate)
		So(err, ShouldBeNil)
		a, b := alg.Initial(), alg.Initial()
		So(a.Mu(), ShouldEqual, 0.0)

		Convey("When A beats B twice", func() {
			a, b = alg.Rate1v1(a, b, false, day0)
			a, b = alg.Rate1v1(a, b, false, day0.AddDate(0, 0, 1))

			Convey("Then A is at 1.0 and B at 0.0 after two matches", func() {
				So(a.Mu(), ShouldEqual, 1.0)
				So(a.Matches(), ShouldEqual, 2)
				So(b.Mu(), ShouldEqual, 0.0)
				So(b.Matches(), ShouldEqual, 2)
			})

			Convey("And then they draw", func() {
				a, b = alg.Rate1v1(a, b, true, day0.AddDate(0, 0, 2))

				Convey("Then neither side is credited", func() {
					So(a.Mu(), ShouldAlmostEqual, 2.0/3.0, 1e-12)
					So(b.Mu(), ShouldEqual, 0.0)
					So(a.Matches(), ShouldEqual, 3)
				})
			})
		})

		Convey("When B wins after losing once", func() {
			b2, a2 := alg.Rate1v1(b, a, false, day0)
			a3, b3 := alg.Rate1v1(a2, b2, false, day0)

			Convey("Then both sit at one half", func() {
				So(a3.Mu(), ShouldEqual, 0.5)
				So(b3.Mu(), ShouldEqual, 0.5)
			})
		})
	})
}
