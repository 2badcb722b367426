package rating

import (
	"math"
	"time"
)

// EloRating is the rating value produced by Elo and TeamElo.
type EloRating struct {
	base
}

// NewEloRating builds an Elo rating; used by tests and fixtures.
func NewEloRating(mu float64, matches int, last time.Time) EloRating {
	return EloRating{base{mu: mu, matches: matches, last: last}}
}

// Elo is the classic logistic Elo update with a fixed K-factor.
type Elo struct {
	K float64
}

// NewElo returns an Elo variant; non-positive k falls back to DefaultEloK.
func NewElo(k float64) Elo {
	if k <= 0 {
		k = DefaultEloK
	}
	return Elo{K: k}
}

// Kind implements Algorithm.
func (Elo) Kind() Kind { return KindElo }

// Initial implements Algorithm.
func (Elo) Initial() Rating { return EloRating{base{mu: DefaultMu}} }

// Rate1v1 implements Algorithm.
func (e Elo) Rate1v1(winner, loser Rating, drawn bool, date time.Time) (Rating, Rating) {
	s := score(drawn)
	ew := Expected(winner.Mu(), loser.Mu())
	el := Expected(loser.Mu(), winner.Mu())

	nw := baseOf(winner).next(winner.Mu()+e.K*(s-ew), date)
	nl := baseOf(loser).next(loser.Mu()+e.K*(1-s-el), date)
	return EloRating{nw}, EloRating{nl}
}

// TeamElo rates individual matches like Elo and 2-vs-2 matches on the sum
// of each side's ratings.
type TeamElo struct {
	Elo
	TeamK float64
}

// NewTeamElo returns a TeamElo variant.
func NewTeamElo(k, teamK float64) TeamElo {
	if teamK <= 0 {
		teamK = DefaultTeamEloK
	}
	return TeamElo{Elo: NewElo(k), TeamK: teamK}
}

// Kind implements Algorithm.
func (TeamElo) Kind() Kind { return KindTeamElo }

// Rate2v2 implements TeamAlgorithm. Both members of a side receive the same delta.
func (t TeamElo) Rate2v2(w1, w2, l1, l2 Rating, drawn bool, date time.Time) (Rating, Rating, Rating, Rating) {
	s := score(drawn)
	wSum := w1.Mu() + w2.Mu()
	lSum := l1.Mu() + l2.Mu()

	dw := t.TeamK * (s - Expected(wSum, lSum))
	dl := t.TeamK * (1 - s - Expected(lSum, wSum))

	return EloRating{baseOf(w1).next(w1.Mu()+dw, date)},
		EloRating{baseOf(w2).next(w2.Mu()+dw, date)},
		EloRating{baseOf(l1).next(l1.Mu()+dl, date)},
		EloRating{baseOf(l2).next(l2.Mu()+dl, date)}
}

// Expected is the Elo expected score of a against b.
func Expected(a, b float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (b-a)/400.0))
}

// baseOf extracts the shared bookkeeping from any Rating.
func baseOf(r Rating) base {
	last, _ := r.LastActive()
	return base{mu: r.Mu(), matches: r.Matches(), last: last}
}
