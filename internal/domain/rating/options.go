package rating

// Default constants. All of them can be overridden through Options.
const (
	DefaultEloK      = 32.0
	DefaultTeamEloK  = 16.0
	DefaultMu        = 1500.0
	DefaultMaxRD     = 350.0
	DefaultDecayFrac = 0.9
	DefaultDecayDays = 365 * 1.5
	// DefaultMinVarianceSq keeps Glicko variance strictly positive (RD >= 1).
	DefaultMinVarianceSq = 1.0
)

// GlickoParams configures the Glicko variant.
type GlickoParams struct {
	InitialMu     float64
	MaxRD         float64
	DecayFraction float64
	DecayDays     float64
	MinVarianceSq float64
}

// Params holds the tunables for every variant.
type Params struct {
	EloK     float64
	TeamEloK float64
	Glicko   GlickoParams
}

// DefaultParams returns the conventional constants.
func DefaultParams() Params {
	return Params{
		EloK:     DefaultEloK,
		TeamEloK: DefaultTeamEloK,
		Glicko: GlickoParams{
			InitialMu:     DefaultMu,
			MaxRD:         DefaultMaxRD,
			DecayFraction: DefaultDecayFrac,
			DecayDays:     DefaultDecayDays,
			MinVarianceSq: DefaultMinVarianceSq,
		},
	}
}

// Option applies a configuration option to Params.
type Option func(*Params)

// WithEloK sets the individual Elo K-factor.
func WithEloK(k float64) Option {
	return func(p *Params) {
		if k > 0 {
			p.EloK = k
		}
	}
}

// WithTeamEloK sets the K-factor used for 2-vs-2 updates.
func WithTeamEloK(k float64) Option {
	return func(p *Params) {
		if k > 0 {
			p.TeamEloK = k
		}
	}
}

// WithGlickoMaxRD sets the rating deviation ceiling.
func WithGlickoMaxRD(rd float64) Option {
	return func(p *Params) {
		if rd > 0 {
			p.Glicko.MaxRD = rd
		}
	}
}

// WithGlickoDecay sets the inactivity inflation: fraction of the ceiling
// variance regained over days of inactivity.
func WithGlickoDecay(fraction, days float64) Option {
	return func(p *Params) {
		if fraction > 0 && days > 0 {
			p.Glicko.DecayFraction = fraction
			p.Glicko.DecayDays = days
		}
	}
}

// WithGlickoMinVariance sets the variance floor.
func WithGlickoMinVariance(v float64) Option {
	return func(p *Params) {
		if v > 0 {
			p.Glicko.MinVarianceSq = v
		}
	}
}
