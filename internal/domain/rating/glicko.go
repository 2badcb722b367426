package rating

import (
	"math"
	"time"
)

// q is ln(10)/400, the Glicko scale factor.
const q = math.Ln10 / 400.0

const hoursPerDay = 24

// GlickoRating carries the variance in addition to the shared fields.
type GlickoRating struct {
	base
	varianceSq float64
	params     GlickoParams
}

// VarianceSq implements Decaying.
func (g GlickoRating) VarianceSq() float64 { return g.varianceSq }

// MaxVarianceSq implements Decaying.
func (g GlickoRating) MaxVarianceSq() float64 { return g.params.MaxRD * g.params.MaxRD }

// EffectiveVarianceSq implements Decaying. The stored variance grows by a
// fixed amount per whole day since the last match, capped at the ceiling.
// An entity that never played sits at the ceiling; a date before the last
// match leaves the variance unchanged.
func (g GlickoRating) EffectiveVarianceSq(asOf time.Time) float64 {
	if g.last.IsZero() {
		return g.MaxVarianceSq()
	}
	days := elapsedDays(g.last, asOf)
	if days < 0 {
		return g.varianceSq
	}
	return math.Min(g.varianceSq+float64(days)*g.params.perDay(), g.MaxVarianceSq())
}

// Deviation is the square root of the effective variance at asOf.
func (g GlickoRating) Deviation(asOf time.Time) float64 {
	return math.Sqrt(g.EffectiveVarianceSq(asOf))
}

// perDay is the variance regained per day of inactivity.
func (p GlickoParams) perDay() float64 {
	return p.MaxRD * p.MaxRD * p.DecayFraction / p.DecayDays
}

// Glicko is the single-match Glicko update with inactivity decay.
type Glicko struct {
	Params GlickoParams
}

// NewGlicko returns a Glicko variant, filling unset params with defaults.
func NewGlicko(p GlickoParams) Glicko {
	d := DefaultParams().Glicko
	if p.InitialMu == 0 {
		p.InitialMu = d.InitialMu
	}
	if p.MaxRD <= 0 {
		p.MaxRD = d.MaxRD
	}
	if p.DecayFraction <= 0 || p.DecayDays <= 0 {
		p.DecayFraction, p.DecayDays = d.DecayFraction, d.DecayDays
	}
	if p.MinVarianceSq <= 0 {
		p.MinVarianceSq = d.MinVarianceSq
	}
	return Glicko{Params: p}
}

// Kind implements Algorithm.
func (Glicko) Kind() Kind { return KindGlicko }

// Initial implements Algorithm.
func (g Glicko) Initial() Rating {
	return GlickoRating{
		base:       base{mu: g.Params.InitialMu},
		varianceSq: g.Params.MaxRD * g.Params.MaxRD,
		params:     g.Params,
	}
}

// NewRating builds a Glicko rating with explicit state.
func (g Glicko) NewRating(mu, varianceSq float64, matches int, last time.Time) GlickoRating {
	return GlickoRating{
		base:       base{mu: mu, matches: matches, last: last},
		varianceSq: varianceSq,
		params:     g.Params,
	}
}

// Rate1v1 implements Algorithm.
func (g Glicko) Rate1v1(winner, loser Rating, drawn bool, date time.Time) (Rating, Rating) {
	s := score(drawn)
	vw := g.varianceAt(winner, date)
	vl := g.varianceAt(loser, date)

	gw := damping(vl) // opponent's deviation damps the winner's update
	gl := damping(vw)
	ew := 1.0 / (1.0 + math.Pow(10, gw*(loser.Mu()-winner.Mu())/400.0))
	el := 1.0 / (1.0 + math.Pow(10, gl*(winner.Mu()-loser.Mu())/400.0))

	nvw := g.combine(vw, information(gw, ew))
	nvl := g.combine(vl, information(gl, el))

	nw := GlickoRating{
		base:       baseOf(winner).next(winner.Mu()+q*gw*(s-ew)*nvw, date),
		varianceSq: nvw,
		params:     g.Params,
	}
	nl := GlickoRating{
		base:       baseOf(loser).next(loser.Mu()+q*gl*(1-s-el)*nvl, date),
		varianceSq: nvl,
		params:     g.Params,
	}
	return nw, nl
}

// varianceAt evaluates r's variance at date, treating non-Glicko ratings
// as maximally uncertain.
func (g Glicko) varianceAt(r Rating, date time.Time) float64 {
	d, ok := r.(Decaying)
	if !ok {
		return g.Params.MaxRD * g.Params.MaxRD
	}
	return math.Max(d.EffectiveVarianceSq(date), g.Params.MinVarianceSq)
}

// combine is the harmonic combination of the prior variance and d².
func (g Glicko) combine(prior, dSq float64) float64 {
	v := 1.0 / (1.0/prior + 1.0/dSq)
	return math.Max(v, g.Params.MinVarianceSq)
}

// damping is g(RD) for an opponent variance.
func damping(varianceSq float64) float64 {
	return 1.0 / math.Sqrt(1+3*q*q*varianceSq/(math.Pi*math.Pi))
}

// information is d² for a damping factor and expected score. A saturated
// expectation yields +Inf, which leaves the prior variance untouched.
func information(g, e float64) float64 {
	return 1.0 / (q * q * g * g * e * (1 - e))
}

// elapsedDays counts whole days between two dates.
func elapsedDays(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / hoursPerDay))
}
