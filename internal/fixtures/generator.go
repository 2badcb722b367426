package fixtures

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"golang.org/x/sync/errgroup"

	"github.com/okian/matchrank/pkg/logger"
)

const (
	proxyName   = "Proxy"
	filePerm    = 0o600
	dirPerm     = 0o750
	maxScore    = 20
	drawMargin  = 0.04
	skillMean   = 1500
	skillStdDev = 200
)

type faction struct {
	key, display string
	aliases      []string
}

var factionTable = []faction{
	{"empire", "Empire", []string{"emp"}},
	{"orcs", "Orcs & Goblins", []string{"og", "orc"}},
	{"elves", "High Elves", []string{"he"}},
	{"dwarfs", "Dwarfs", []string{"dw"}},
	{"undead", "Vampire Counts", []string{"vc"}},
	{"chaos", "Warriors of Chaos", []string{"woc"}},
}

var organizers = []string{"Club", "Guild", "Tavern"}

type player struct {
	key, city, display string
	skill              float64
}

type file struct {
	name string
	data []byte
}

type generator struct {
	cfg     Config
	rng     *rand.Rand
	players []player
	matches int
}

// Generate writes a data set to cfg.Dir. Every random choice is drawn from
// one seeded source in a fixed order, so file contents depend only on cfg.
func Generate(ctx context.Context, cfg Config) (Dataset, error) {
	if err := cfg.validate(); err != nil {
		return Dataset{}, err
	}
	log := logger.Get().Named("fixtures")
	log.Info(ctx, "generating data set",
		logger.String("dir", cfg.Dir),
		logger.Int("players", cfg.Players),
		logger.Int("tournaments", cfg.Tournaments),
		logger.Int("leagues", cfg.Leagues),
	)

	g := &generator{cfg: cfg, rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))}
	g.players = g.roster()

	files := []file{{name: "players.csv", data: g.rosterCSV()}}
	ds := Dataset{Roster: filepath.Join(cfg.Dir, "players.csv")}
	if cfg.Factions {
		files = append(files, file{name: "factions.csv", data: factionCSV()})
		ds.Factions = filepath.Join(cfg.Dir, "factions.csv")
	}

	var manifest []interface{}
	for i := 0; i < cfg.Tournaments; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		name := fmt.Sprintf("t%03d.csv", i+1)
		date := cfg.Start.AddDate(0, 0, i*cfg.SpacingDays)
		files = append(files, file{name: name, data: g.tournament()})
		manifest = append(manifest, map[string]interface{}{
			"file":      name,
			"kind":      "tournament",
			"name":      fmt.Sprintf("Tournament %d", i+1),
			"date":      date.Format(time.DateOnly),
			"organizer": organizers[i%len(organizers)],
			"city":      cfg.Cities[i%len(cfg.Cities)],
			"tier":      tier(i),
		})
	}
	for i := 0; i < cfg.Leagues; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		name := fmt.Sprintf("l%02d.csv", i+1)
		start := cfg.Start.AddDate(0, 0, i*defaultLeagueDays)
		files = append(files, file{name: name, data: g.league(start)})
		manifest = append(manifest, map[string]interface{}{
			"file":      name,
			"kind":      "league",
			"name":      fmt.Sprintf("League %d", i+1),
			"date":      start.Format(time.DateOnly),
			"organizer": organizers[i%len(organizers)],
			"city":      cfg.Cities[i%len(cfg.Cities)],
		})
	}

	doc, err := yaml.Parser().Marshal(map[string]interface{}{"events": manifest})
	if err != nil {
		return Dataset{}, fmt.Errorf("marshal manifest: %w", err)
	}
	files = append(files, file{name: "events.yaml", data: doc})
	ds.Manifest = filepath.Join(cfg.Dir, "events.yaml")
	ds.Events = cfg.Tournaments + cfg.Leagues
	ds.Matches = g.matches

	if err := write(ctx, cfg, files); err != nil {
		return Dataset{}, err
	}
	log.Info(ctx, "data set written", logger.Int("files", len(files)), logger.Int("matches", ds.Matches))
	return ds, nil
}

// write stores the files concurrently. Contents are already fixed.
func write(ctx context.Context, cfg Config, files []file) error {
	if err := os.MkdirAll(cfg.Dir, dirPerm); err != nil {
		return fmt.Errorf("create %s: %w", cfg.Dir, err)
	}
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(cfg.Dir, f.name), f.data, filePerm); err != nil {
				return fmt.Errorf("write %s: %w", f.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func tier(i int) string {
	switch {
	case (i+1)%10 == 0:
		return "GC"
	case (i+1)%4 == 0:
		return "GT"
	default:
		return "LT"
	}
}

func (g *generator) roster() []player {
	players := make([]player, g.cfg.Players)
	for i := range players {
		players[i] = player{
			key:     fmt.Sprintf("player%03d", i+1),
			city:    g.cfg.Cities[i%len(g.cfg.Cities)],
			display: fmt.Sprintf("Player %d", i+1),
			skill:   skillMean + g.rng.NormFloat64()*skillStdDev,
		}
	}
	return players
}

func (g *generator) rosterCSV() []byte {
	rows := make([][]string, 0, len(g.players))
	for _, p := range g.players {
		rows = append(rows, []string{p.key, p.city, p.display})
	}
	return encode(rows)
}

func factionCSV() []byte {
	var rows [][]string
	for _, f := range factionTable {
		rows = append(rows, []string{f.key, f.key, f.display})
		for _, a := range f.aliases {
			rows = append(rows, []string{a, f.key})
		}
	}
	return encode(rows)
}

// pickFaction returns a canonical key or one of its aliases.
func (g *generator) pickFaction() string {
	f := factionTable[g.rng.IntN(len(factionTable))]
	if n := g.rng.IntN(len(f.aliases) + 1); n > 0 {
		return f.aliases[n-1]
	}
	return f.key
}

// outcome draws the result of a match between two skills. The result is
// 1 for a win of a, 0 for a win of b and 0.5 for a draw.
func (g *generator) outcome(a, b float64) float64 {
	p := 1 / (1 + math.Pow(10, (b-a)/400))
	u := g.rng.Float64()
	switch {
	case math.Abs(u-p) < drawMargin:
		return 0.5
	case u < p:
		return 1
	default:
		return 0
	}
}

// attendance picks a random subset of at least two players.
func (g *generator) attendance() []int {
	perm := g.rng.Perm(len(g.players))
	n := len(g.players)/2 + g.rng.IntN(len(g.players)/2+1)
	if n < 2 {
		n = 2
	}
	return perm[:n]
}

// tournament renders a table with a table, score and optional faction
// column per round plus a trailing total. An odd field gets a proxy.
func (g *generator) tournament() []byte {
	seats := g.attendance()
	entrants := len(seats)
	if entrants%2 == 1 {
		entrants++
	}
	proxy := len(seats)

	header := []string{"N", "Player"}
	for r := 0; r < g.cfg.Rounds; r++ {
		header = append(header, "T", "V")
		if g.cfg.Factions {
			header = append(header, "F")
		}
	}
	header = append(header, "V")

	armies := make([]string, entrants)
	if g.cfg.Factions {
		for i := range armies {
			armies[i] = g.pickFaction()
		}
	}

	tables := make([][]int, entrants)
	scores := make([][]int, entrants)
	for i := range tables {
		tables[i] = make([]int, g.cfg.Rounds)
		scores[i] = make([]int, g.cfg.Rounds)
	}
	for r := 0; r < g.cfg.Rounds; r++ {
		order := g.rng.Perm(entrants)
		for t := 0; t+1 < len(order); t += 2 {
			a, b := order[t], order[t+1]
			tables[a][r], tables[b][r] = t/2+1, t/2+1
			var sa int
			switch {
			case a == proxy:
				sa = 0
			case b == proxy:
				sa = maxScore
			default:
				g.matches++
				switch g.outcome(g.players[seats[a]].skill, g.players[seats[b]].skill) {
				case 1:
					sa = maxScore/2 + 1 + g.rng.IntN(maxScore/2)
				case 0:
					sa = g.rng.IntN(maxScore / 2)
				default:
					sa = maxScore / 2
				}
			}
			scores[a][r], scores[b][r] = sa, maxScore-sa
		}
	}

	rows := [][]string{header}
	for i := 0; i < entrants; i++ {
		name := proxyName
		if i < len(seats) {
			name = g.players[seats[i]].key
		}
		row := []string{strconv.Itoa(i + 1), name}
		total := 0
		for r := 0; r < g.cfg.Rounds; r++ {
			row = append(row, strconv.Itoa(tables[i][r]), strconv.Itoa(scores[i][r]))
			if g.cfg.Factions {
				row = append(row, armies[i])
			}
			total += scores[i][r]
		}
		rows = append(rows, append(row, strconv.Itoa(total)))
	}
	return encode(rows)
}

// league renders the entrant count, the entrants, then dated results with
// the winner first. Leagues record no draws.
func (g *generator) league(start time.Time) []byte {
	seats := g.attendance()
	rows := [][]string{{strconv.Itoa(len(seats))}}
	for i, s := range seats {
		rows = append(rows, []string{strconv.Itoa(i + 1), g.players[s].key})
	}

	offsets := make([]int, g.cfg.LeagueMatches)
	for i := range offsets {
		offsets[i] = g.rng.IntN(defaultLeagueDays)
	}
	sort.Ints(offsets)

	for _, off := range offsets {
		a := g.rng.IntN(len(seats))
		b := g.rng.IntN(len(seats) - 1)
		if b >= a {
			b++
		}
		if g.outcome(g.players[seats[a]].skill, g.players[seats[b]].skill) < 0.5 {
			a, b = b, a
		}
		d := start.AddDate(0, 0, off)
		row := []string{
			strconv.Itoa(a + 1), strconv.Itoa(b + 1),
			strconv.Itoa(d.Year()), strconv.Itoa(int(d.Month())), strconv.Itoa(d.Day()),
		}
		if g.cfg.Factions {
			row = append(row, g.pickFaction(), g.pickFaction())
		}
		rows = append(rows, row)
		g.matches++
	}
	return encode(rows)
}

func encode(rows [][]string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.WriteAll(rows)
	return buf.Bytes()
}
