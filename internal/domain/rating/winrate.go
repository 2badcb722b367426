package rating

import "time"

// WinRateRating is a running win fraction.
type WinRateRating struct {
	base
}

// NewWinRateRating builds a win-rate rating.
func NewWinRateRating(mu float64, matches int, last time.Time) WinRateRating {
	return WinRateRating{base{mu: mu, matches: matches, last: last}}
}

// WinRate rates by plain win fraction. A draw credits neither side.
type WinRate struct{}

// Kind implements Algorithm.
func (WinRate) Kind() Kind { return KindWinRate }

// Initial implements Algorithm.
func (WinRate) Initial() Rating { return WinRateRating{} }

// Rate1v1 implements Algorithm.
func (WinRate) Rate1v1(winner, loser Rating, drawn bool, date time.Time) (Rating, Rating) {
	credit := 1.0
	if drawn {
		credit = 0
	}
	return WinRateRating{baseOf(winner).next(fraction(winner, credit), date)},
		WinRateRating{baseOf(loser).next(fraction(loser, 0), date)}
}

func fraction(r Rating, credit float64) float64 {
	n := float64(r.Matches())
	return (r.Mu()*n + credit) / (n + 1)
}
