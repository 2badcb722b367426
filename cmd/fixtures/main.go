package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/okian/matchrank/internal/fixtures"
	"github.com/okian/matchrank/pkg/logger"
)

func main() {
	def := fixtures.DefaultConfig("data")
	var (
		dir         = flag.String("dir", def.Dir, "Output directory")
		seed        = flag.Uint64("seed", def.Seed, "Random seed")
		players     = flag.Int("players", def.Players, "Number of players")
		cities      = flag.String("cities", strings.Join(def.Cities, ","), "Comma separated cities")
		tournaments = flag.Int("tournaments", def.Tournaments, "Number of tournaments")
		rounds      = flag.Int("rounds", def.Rounds, "Rounds per tournament")
		leagues     = flag.Int("leagues", def.Leagues, "Number of leagues")
		matches     = flag.Int("league-matches", def.LeagueMatches, "Matches per league")
		start       = flag.String("start", def.Start.Format(time.DateOnly), "Date of the first tournament")
		spacing     = flag.Int("spacing", def.SpacingDays, "Days between tournaments")
		noFactions  = flag.Bool("no-factions", false, "Skip the faction table")
		workers     = flag.Int("workers", def.Workers, "Concurrent file writers")
		format      = flag.String("log-format", "text", "Log format: text or json")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*format)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	startDate, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		os.Stderr.WriteString("invalid start date: " + err.Error() + "\n")
		os.Exit(1)
	}

	cfg := fixtures.Config{
		Dir:           *dir,
		Seed:          *seed,
		Players:       *players,
		Cities:        strings.Split(*cities, ","),
		Tournaments:   *tournaments,
		Rounds:        *rounds,
		Leagues:       *leagues,
		LeagueMatches: *matches,
		Start:         startDate,
		SpacingDays:   *spacing,
		Factions:      !*noFactions,
		Workers:       *workers,
	}

	if err := run(cfg); err != nil {
		os.Exit(1)
	}
}

func run(cfg fixtures.Config) error {
	log := logger.Get()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ds, err := fixtures.Generate(ctx, cfg)
	if err != nil {
		log.Error(ctx, "fixture generation failed", logger.Error(err))
		return err
	}
	log.Info(ctx, "fixtures ready",
		logger.String("roster", ds.Roster),
		logger.String("factions", ds.Factions),
		logger.String("manifest", ds.Manifest),
		logger.Int("events", ds.Events),
		logger.Int("matches", ds.Matches),
	)
	return nil
}
