// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, .env, YAML and environment variables.
// - Errors wrap ErrInvalidConfig or ErrLoadConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/matchrank/internal/domain/rating"
)

// DateLayout is the layout of every date in configuration.
const DateLayout = time.DateOnly

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Serve keeps the process running and serves reports over HTTP.
	Serve bool `koanf:"serve"`

	// WorkerCount bounds concurrent report builds.
	WorkerCount int `koanf:"worker_count"`

	// MaxReportLimit caps GET /reports/{name}?limit.
	MaxReportLimit int `koanf:"max_report_limit"`

	// Data locates the input files.
	Data DataConfig `koanf:"data"`

	// OutputDir receives the markdown reports. Empty disables file output.
	OutputDir string `koanf:"output_dir"`

	// CurrentDate pins the final snapshot date (YYYY-MM-DD). Empty means today.
	CurrentDate string `koanf:"current_date"`

	// ReportLink is printed under every markdown report title when set.
	ReportLink string `koanf:"report_link"`

	Rating      RatingConfig      `koanf:"rating"`
	Milestones  []Milestone       `koanf:"milestones"`
	Reports     []Report          `koanf:"reports"`
	Calibration CalibrationConfig `koanf:"calibration"`
	Redis       RedisConfig       `koanf:"redis"`
	Postgres    PostgresConfig    `koanf:"postgres"`
}

// DataConfig names the input files.
type DataConfig struct {
	Roster   string `koanf:"roster"`
	Factions string `koanf:"factions"`
	Manifest string `koanf:"manifest"`
}

// RatingConfig holds the algorithm constants.
type RatingConfig struct {
	EloK     float64      `koanf:"elo_k"`
	TeamEloK float64      `koanf:"team_elo_k"`
	Glicko   GlickoConfig `koanf:"glicko"`
}

// GlickoConfig holds the Glicko constants.
type GlickoConfig struct {
	MaxRD         float64 `koanf:"max_rd"`
	DecayFraction float64 `koanf:"decay_fraction"`
	DecayDays     float64 `koanf:"decay_days"`
	MinVarianceSq float64 `koanf:"min_variance_sq"`
}

// Milestone is a dated intermediate snapshot.
type Milestone struct {
	Date  string `koanf:"date"`
	Label string `koanf:"label"`
}

// Report defines one leaderboard output.
type Report struct {
	Name              string  `koanf:"name"`
	Title             string  `koanf:"title"`
	Algorithm         string  `koanf:"algorithm"`
	Top               int     `koanf:"top"`
	Milestones        bool    `koanf:"milestones"`
	WithCity          bool    `koanf:"with_city"`
	City              string  `koanf:"city"`
	Organizer         string  `koanf:"organizer"`
	GlassOnly         bool    `koanf:"glass_only"`
	MinMatches        int     `koanf:"min_matches"`
	FilterDate        string  `koanf:"filter_date"`
	MaxDeviationRatio float64 `koanf:"max_deviation_ratio"`
	Factions          bool    `koanf:"factions"`
}

// CalibrationConfig controls the calibration table.
type CalibrationConfig struct {
	Enabled   bool    `koanf:"enabled"`
	Algorithm string  `koanf:"algorithm"`
	Width     float64 `koanf:"width"`
	PreMatch  bool    `koanf:"pre_match"`
	Output    string  `koanf:"output"`
}

// RedisConfig enables the redis report store.
type RedisConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Prefix   string        `koanf:"prefix"`
	TTL      time.Duration `koanf:"ttl"`
}

// PostgresConfig enables the postgres report archive.
type PostgresConfig struct {
	Enabled bool   `koanf:"enabled"`
	DSN     string `koanf:"dsn"`
	Migrate bool   `koanf:"migrate"`
}

// New creates a Config populated with defaults.
func New() *Config {
	d := rating.DefaultParams()
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":9080",
		WorkerCount:    runtime.NumCPU(),
		MaxReportLimit: 500,
		Data: DataConfig{
			Roster:   "data/players.csv",
			Factions: "",
			Manifest: "data/events.yaml",
		},
		OutputDir: "reports",
		Rating: RatingConfig{
			EloK:     d.EloK,
			TeamEloK: d.TeamEloK,
			Glicko: GlickoConfig{
				MaxRD:         d.Glicko.MaxRD,
				DecayFraction: d.Glicko.DecayFraction,
				DecayDays:     d.Glicko.DecayDays,
				MinVarianceSq: d.Glicko.MinVarianceSq,
			},
		},
		Reports: DefaultReports(),
		Calibration: CalibrationConfig{
			Algorithm: string(rating.KindElo),
			Width:     25,
			Output:    "calibration.md",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "matchrank",
		},
	}
}

// DefaultReports is used when no report is configured.
func DefaultReports() []Report {
	return []Report{
		{Name: "elo", Title: "Elo rating", Algorithm: string(rating.KindElo), Milestones: true, WithCity: true},
		{Name: "glicko", Title: "Glicko rating", Algorithm: string(rating.KindGlicko), Milestones: true, WithCity: true, MaxDeviationRatio: 0.5},
	}
}

// RatingOptions converts the constants into algorithm options.
func (c *Config) RatingOptions() []rating.Option {
	return []rating.Option{
		rating.WithEloK(c.Rating.EloK),
		rating.WithTeamEloK(c.Rating.TeamEloK),
		rating.WithGlickoMaxRD(c.Rating.Glicko.MaxRD),
		rating.WithGlickoDecay(c.Rating.Glicko.DecayFraction, c.Rating.Glicko.DecayDays),
		rating.WithGlickoMinVariance(c.Rating.Glicko.MinVarianceSq),
	}
}

// Now returns the configured current date, or today in UTC.
func (c *Config) Now() time.Time {
	if c.CurrentDate != "" {
		if t, err := time.Parse(DateLayout, c.CurrentDate); err == nil {
			return t
		}
	}
	y, m, d := time.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MilestoneDates returns the parsed milestone dates keyed by date.
func (c *Config) MilestoneDates() ([]time.Time, map[time.Time]string, error) {
	dates := make([]time.Time, 0, len(c.Milestones))
	labels := make(map[time.Time]string, len(c.Milestones))
	for _, m := range c.Milestones {
		t, err := time.Parse(DateLayout, m.Date)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: milestone %q: %v", ErrInvalidConfig, m.Date, err)
		}
		dates = append(dates, t)
		labels[t] = m.Label
	}
	return dates, labels, nil
}

// FilterCutoff returns the parsed filter date, zero when unset.
func (r Report) FilterCutoff() (time.Time, error) {
	if r.FilterDate == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, r.FilterDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: report %s: filter_date: %v", ErrInvalidConfig, r.Name, err)
	}
	return t, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Serve && c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty when serving", ErrInvalidConfig)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.CurrentDate != "" {
		if _, err := time.Parse(DateLayout, c.CurrentDate); err != nil {
			return fmt.Errorf("%w: current_date: %v", ErrInvalidConfig, err)
		}
	}
	if _, _, err := c.MilestoneDates(); err != nil {
		return err
	}
	if len(c.Reports) == 0 {
		return fmt.Errorf("%w: no reports configured", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Reports))
	for _, r := range c.Reports {
		if r.Name == "" {
			return fmt.Errorf("%w: report without a name", ErrInvalidConfig)
		}
		if seen[r.Name] {
			return fmt.Errorf("%w: duplicate report %q", ErrInvalidConfig, r.Name)
		}
		seen[r.Name] = true
		if _, err := rating.ParseKind(r.Algorithm); err != nil {
			return fmt.Errorf("%w: report %s: %v", ErrInvalidConfig, r.Name, err)
		}
		if _, err := r.FilterCutoff(); err != nil {
			return err
		}
		if r.Factions && c.Data.Factions == "" {
			return fmt.Errorf("%w: report %s wants factions but data.factions is empty", ErrInvalidConfig, r.Name)
		}
	}
	if c.Calibration.Enabled {
		if c.Calibration.Width <= 0 {
			return fmt.Errorf("%w: calibration width must be positive", ErrInvalidConfig)
		}
		if _, err := rating.ParseKind(c.Calibration.Algorithm); err != nil {
			return fmt.Errorf("%w: calibration: %v", ErrInvalidConfig, err)
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr must not be empty", ErrInvalidConfig)
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("%w: postgres.dsn must not be empty", ErrInvalidConfig)
	}
	return nil
}
