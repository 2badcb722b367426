// Package fixtures generates deterministic sample data sets: a roster, a
// faction table, tournament and league files and the manifest listing them.
package fixtures

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// ErrInvalidConfig is returned for a configuration that cannot produce a data set.
var ErrInvalidConfig = errors.New("invalid fixture config")

// Default generation parameters.
const (
	defaultPlayers       = 32
	defaultTournaments   = 12
	defaultRounds        = 5
	defaultLeagues       = 1
	defaultLeagueMatches = 40
	defaultSpacingDays   = 14
	defaultLeagueDays    = 90
)

// Config controls the generated data set.
type Config struct {
	Dir           string    // output directory, created when missing
	Seed          uint64    // same seed, same files
	Players       int       // roster size
	Cities        []string  // cycled over players and events
	Tournaments   int       // number of tournaments
	Rounds        int       // rounds per tournament
	Leagues       int       // number of leagues
	LeagueMatches int       // matches per league
	Start         time.Time // date of the first tournament
	SpacingDays   int       // days between tournaments
	Factions      bool      // write a faction table and faction columns
	Workers       int       // concurrent file writers
}

// DefaultConfig returns a small data set written to dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:           dir,
		Seed:          1,
		Players:       defaultPlayers,
		Cities:        []string{"Msk", "Spb", "Ekb"},
		Tournaments:   defaultTournaments,
		Rounds:        defaultRounds,
		Leagues:       defaultLeagues,
		LeagueMatches: defaultLeagueMatches,
		Start:         time.Date(2020, time.January, 11, 0, 0, 0, 0, time.UTC),
		SpacingDays:   defaultSpacingDays,
		Factions:      true,
		Workers:       runtime.NumCPU(),
	}
}

func (c Config) validate() error {
	switch {
	case c.Dir == "":
		return fmt.Errorf("%w: empty output directory", ErrInvalidConfig)
	case c.Players < 2:
		return fmt.Errorf("%w: need at least 2 players, got %d", ErrInvalidConfig, c.Players)
	case len(c.Cities) == 0:
		return fmt.Errorf("%w: no cities", ErrInvalidConfig)
	case c.Tournaments < 0 || c.Leagues < 0:
		return fmt.Errorf("%w: negative event count", ErrInvalidConfig)
	case c.Tournaments > 0 && c.Rounds < 1:
		return fmt.Errorf("%w: tournaments need at least one round", ErrInvalidConfig)
	case c.Leagues > 0 && c.LeagueMatches < 1:
		return fmt.Errorf("%w: leagues need at least one match", ErrInvalidConfig)
	case c.SpacingDays < 0:
		return fmt.Errorf("%w: negative spacing", ErrInvalidConfig)
	case c.Start.IsZero():
		return fmt.Errorf("%w: missing start date", ErrInvalidConfig)
	}
	return nil
}

// Dataset names the written files.
type Dataset struct {
	Roster   string
	Factions string // empty when factions are disabled
	Manifest string
	Events   int
	Matches  int
}
