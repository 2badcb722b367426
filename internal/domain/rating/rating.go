// Package rating defines the pairwise rating algorithms and their immutable
// rating values.
//
// Every update returns fresh Rating values; inputs are never mutated, so a
// Rating captured at an earlier date stays valid for that date.
package rating

import (
	"fmt"
	"strings"
	"time"
)

// Kind tags an algorithm variant.
type Kind string

// Supported algorithm variants.
const (
	KindElo     Kind = "elo"
	KindTeamElo Kind = "team-elo"
	KindGlicko  Kind = "glicko"
	KindWinRate Kind = "winrate"
)

// ParseKind maps a configuration string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindElo, KindTeamElo, KindGlicko, KindWinRate:
		return k, nil
	case "":
		return KindElo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Rating is the algorithm-independent view of a skill estimate.
type Rating interface {
	// Mu is the scalar skill estimate.
	Mu() float64
	// Matches is the number of matches folded into this rating.
	Matches() int
	// LastActive reports the date of the most recent contributing match.
	LastActive() (time.Time, bool)
}

// Decaying is implemented by ratings whose uncertainty grows with inactivity.
type Decaying interface {
	Rating
	// VarianceSq is the stored variance as of the last update.
	VarianceSq() float64
	// EffectiveVarianceSq is the variance inflated for inactivity up to asOf.
	EffectiveVarianceSq(asOf time.Time) float64
	// MaxVarianceSq is the ceiling the variance never exceeds.
	MaxVarianceSq() float64
}

// Algorithm is a stateless 1-vs-1 update rule.
type Algorithm interface {
	Kind() Kind
	// Initial returns the rating assigned to an entity before its first match.
	Initial() Rating
	// Rate1v1 rates a single match. The first argument is the winner slot;
	// when drawn is true neither side won outright.
	Rate1v1(winner, loser Rating, drawn bool, date time.Time) (Rating, Rating)
}

// TeamAlgorithm additionally rates 2-vs-2 matches.
type TeamAlgorithm interface {
	Algorithm
	// Rate2v2 rates the winner side (w1, w2) against the loser side (l1, l2).
	Rate2v2(w1, w2, l1, l2 Rating, drawn bool, date time.Time) (Rating, Rating, Rating, Rating)
}

// New builds the algorithm for kind configured by opts.
func New(kind Kind, opts ...Option) (Algorithm, error) {
	p := DefaultParams()
	for _, opt := range opts {
		opt(&p)
	}

	switch kind {
	case KindElo:
		return NewElo(p.EloK), nil
	case KindTeamElo:
		return NewTeamElo(p.EloK, p.TeamEloK), nil
	case KindGlicko:
		return NewGlicko(p.Glicko), nil
	case KindWinRate:
		return WinRate{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// base carries the fields shared by every variant.
type base struct {
	mu      float64
	matches int
	last    time.Time
}

func (b base) Mu() float64  { return b.mu }
func (b base) Matches() int { return b.matches }

func (b base) LastActive() (time.Time, bool) {
	return b.last, !b.last.IsZero()
}

// next returns the bookkeeping for a rating that just played on date.
func (b base) next(mu float64, date time.Time) base {
	return base{mu: mu, matches: b.matches + 1, last: date}
}

// score is the winner-slot result: 1 for a win, 0.5 for a draw.
func score(drawn bool) float64 {
	if drawn {
		return 0.5
	}
	return 1.0
}
