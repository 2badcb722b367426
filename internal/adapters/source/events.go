package source

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/okian/matchrank/internal/domain/model"
)

// Header tags of the tournament CSV.
var (
	tableTags   = map[string]bool{"t": true, "T": true, "TB": true, "Tb": true, "tb": true}
	scoreTags   = map[string]bool{"v": true, "V": true, "VP": true, "Vp": true, "vp": true}
	factionTags = map[string]bool{"f": true, "F": true, "FA": true, "Fa": true, "fa": true}
)

type seat struct {
	id      string
	table   int
	score   float64
	faction string
}

// ReadTournament parses a tournament table: one row per player, the player
// name in the second column, then a table, score and optional faction
// column per round. Players sharing a table in a round played each other.
// The extra trailing score column, when present, is the total and ignored.
func ReadTournament(r io.Reader, meta model.Meta, date time.Time, roster model.Roster, factions *model.Factions) (*model.Event, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s: empty tournament", ErrMalformed, meta.Name)
	}

	var tbCols, vpCols, faCols []int
	for i := range records[0] {
		switch h := field(records[0], i); {
		case tableTags[h]:
			tbCols = append(tbCols, i)
		case scoreTags[h]:
			vpCols = append(vpCols, i)
		case factionTags[h]:
			faCols = append(faCols, i)
		}
	}
	rounds := len(tbCols)
	if rounds == 0 || len(vpCols) < rounds || len(vpCols) > rounds+1 {
		return nil, fmt.Errorf("%w: %s: wrong tournament header %v", ErrMalformed, meta.Name, records[0])
	}
	if len(faCols) != 0 && len(faCols) != rounds {
		return nil, fmt.Errorf("%w: %s: %d faction columns for %d rounds", ErrMalformed, meta.Name, len(faCols), rounds)
	}

	entrants := make(map[string]string, len(records)-1)
	seats := make([][]seat, rounds)
	tables := map[int]bool{}
	var missing []string

	for line, rec := range records[1:] {
		id := strconv.Itoa(line + 1)
		name := field(rec, 1)
		if name == "" {
			return nil, fmt.Errorf("%w: %s: line %d: empty player name", ErrMalformed, meta.Name, line+2)
		}
		if _, ok := roster[name]; !ok && name != model.ProxyName {
			missing = append(missing, name)
		}
		entrants[id] = name

		for round := 0; round < rounds; round++ {
			table, err := strconv.Atoi(field(rec, tbCols[round]))
			if err != nil {
				return nil, fmt.Errorf("%w: %s: line %d: table: %v", ErrMalformed, meta.Name, line+2, err)
			}
			score, err := strconv.ParseFloat(field(rec, vpCols[round]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: line %d: score: %v", ErrMalformed, meta.Name, line+2, err)
			}
			s := seat{id: id, table: table, score: score}
			if len(faCols) > 0 && factions != nil {
				if s.faction, err = factions.Resolve(field(rec, faCols[round])); err != nil {
					return nil, fmt.Errorf("%s: line %d: %w", meta.Name, line+2, err)
				}
			}
			tables[table] = true
			if name != model.ProxyName {
				seats[round] = append(seats[round], s)
			}
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: %w", meta.Name, missingError(missing))
	}

	order := make([]int, 0, len(tables))
	for t := range tables {
		order = append(order, t)
	}
	sort.Ints(order)

	e := model.NewTournament(meta, date, entrants)
	for round := 0; round < rounds; round++ {
		if round > 0 {
			e.EndRound()
		}
		for _, t := range order {
			var at []seat
			for _, s := range seats[round] {
				if s.table == t {
					at = append(at, s)
				}
			}
			if len(at) < 2 {
				continue
			}
			if len(at) > 2 {
				return nil, fmt.Errorf("%w: %s: round %d, table %d", ErrTableConflict, meta.Name, round+1, t)
			}
			res := model.Draw
			switch {
			case at[0].score > at[1].score:
				res = model.FirstWins
			case at[0].score < at[1].score:
				res = model.SecondWins
			}
			if err := e.AddMatch(at[0].id, at[1].id, res, model.WithFactions(at[0].faction, at[1].faction)); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

// ReadLeague parses a league: a row holding the player count N, N rows of
// "id,name", then "winner,loser,year,month,day[,winnerFaction,loserFaction]".
func ReadLeague(r io.Reader, meta model.Meta, start time.Time, roster model.Roster, factions *model.Factions) (*model.Event, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s: empty league", ErrMalformed, meta.Name)
	}
	n, err := strconv.Atoi(field(records[0], 0))
	if err != nil || n < 0 || n > len(records)-1 {
		return nil, fmt.Errorf("%w: %s: bad player count %q", ErrMalformed, meta.Name, field(records[0], 0))
	}

	entrants := make(map[string]string, n)
	var missing []string
	for i, rec := range records[1 : n+1] {
		id, name := field(rec, 0), field(rec, 1)
		if id == "" || name == "" {
			return nil, fmt.Errorf("%w: %s: line %d: want id,name", ErrMalformed, meta.Name, i+2)
		}
		if _, ok := roster[name]; !ok && name != model.ProxyName {
			missing = append(missing, name)
		}
		entrants[id] = name
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: %w", meta.Name, missingError(missing))
	}

	e := model.NewLeague(meta, start, entrants)
	for i, rec := range records[n+1:] {
		line := n + i + 2
		if len(rec) < 5 {
			return nil, fmt.Errorf("%w: %s: line %d: want p1,p2,year,month,day", ErrMalformed, meta.Name, line)
		}
		var ymd [3]int
		for j := range ymd {
			if ymd[j], err = strconv.Atoi(field(rec, 2+j)); err != nil {
				return nil, fmt.Errorf("%w: %s: line %d: date: %v", ErrMalformed, meta.Name, line, err)
			}
		}
		date := time.Date(ymd[0], time.Month(ymd[1]), ymd[2], 0, 0, 0, 0, time.UTC)

		opts := []model.MatchOption{model.WithDate(date)}
		if factions != nil && len(rec) >= 7 {
			f1, err := factions.Resolve(field(rec, 5))
			if err != nil {
				return nil, fmt.Errorf("%s: line %d: %w", meta.Name, line, err)
			}
			f2, err := factions.Resolve(field(rec, 6))
			if err != nil {
				return nil, fmt.Errorf("%s: line %d: %w", meta.Name, line, err)
			}
			opts = append(opts, model.WithFactions(f1, f2))
		}
		if err := e.AddMatch(field(rec, 0), field(rec, 1), model.FirstWins, opts...); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return e, nil
}
