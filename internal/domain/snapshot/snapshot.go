// Package snapshot slices a replay into dated, dense-ranked leaderboards
// annotated with changes since the previous leaderboard.
package snapshot

import (
	"math"
	"sort"
	"time"

	"github.com/okian/matchrank/internal/domain/model"
	"github.com/okian/matchrank/internal/domain/rating"
)

// Entry is one leaderboard row. Mu is nil when the rating is not yet
// trustworthy; such rows sort last and share one position.
type Entry struct {
	Position      int
	Key           string
	Name          string
	City          string
	Mu            *float64
	Spread        float64
	Matches       int
	PositionDelta *int
	RatingDelta   *float64
}

// Rated reports whether the entry carries a rating.
func (e Entry) Rated() bool { return e.Mu != nil }

// Snapshot is the leaderboard as of one date.
type Snapshot struct {
	AsOf     time.Time
	Current  bool
	Entries  []Entry
	Factions []Entry
}

// Result is the sequence of snapshots, oldest first, plus the date of the
// latest replayed event relevant to the competitor filter.
type Result struct {
	Snapshots []Snapshot
	Latest    time.Time
}

// NewestFirst returns the snapshots with the current one first.
func (r Result) NewestFirst() []Snapshot {
	out := make([]Snapshot, len(r.Snapshots))
	for i, s := range r.Snapshots {
		out[len(out)-1-i] = s
	}
	return out
}

// Current returns the final snapshot.
func (r Result) Current() Snapshot {
	if len(r.Snapshots) == 0 {
		return Snapshot{}
	}
	return r.Snapshots[len(r.Snapshots)-1]
}

// Build replays coll through alg, pausing at every milestone and at the
// current date to take a snapshot.
func Build(coll *model.Collection, alg rating.Algorithm, opts ...Option) (Result, error) {
	b := newBuilder(opts)
	if b.factions && coll.Factions() == nil {
		return Result{}, model.ErrNoFactionRoster
	}

	state := model.NewState(b.factions)
	var snapshots []Snapshot
	players := &tracker{}
	factions := &tracker{}
	milestones := b.milestones
	var latest time.Time

	take := func(asOf time.Time, current bool) {
		s := Snapshot{AsOf: asOf, Current: current}
		s.Entries = players.next(b.competitorRows(coll.Roster(), state, asOf))
		if b.factions {
			s.Factions = factions.next(b.factionRows(coll.Factions(), state, asOf))
		}
		snapshots = append(snapshots, s)
	}

	for _, e := range coll.Sorted() {
		if b.keepEvent != nil && !b.keepEvent(e) {
			continue
		}
		for len(milestones) > 0 && !e.Date().Before(milestones[0]) {
			take(milestones[0], false)
			milestones = milestones[1:]
		}
		if err := e.UpdateRatings(state, alg); err != nil {
			return Result{}, err
		}
		if e.Date().After(latest) && e.CheckEligibility(coll.Roster(), b.keepCompetitor) {
			latest = e.Date()
		}
	}
	for _, m := range milestones {
		take(m, false)
	}
	take(b.current, true)

	if latest.IsZero() {
		latest = b.current
	}
	return Result{Snapshots: snapshots, Latest: latest}, nil
}

func (b *builder) competitorRows(roster model.Roster, state *model.State, asOf time.Time) []Entry {
	rows := make([]Entry, 0, len(state.Competitors))
	for key, r := range state.Competitors {
		c, ok := roster[key]
		if !ok || c.Hidden {
			continue
		}
		if b.keepCompetitor != nil && !b.keepCompetitor(c) {
			continue
		}
		rows = append(rows, b.row(key, c.Name(), c.City, r, asOf))
	}
	return rows
}

func (b *builder) factionRows(f *model.Factions, state *model.State, asOf time.Time) []Entry {
	rows := make([]Entry, 0, len(state.Factions))
	for key, r := range state.Factions {
		rows = append(rows, b.row(key, f.Display(key), "", r, asOf))
	}
	return rows
}

func (b *builder) row(key, name, city string, r rating.Rating, asOf time.Time) Entry {
	e := Entry{Key: key, Name: name, City: city, Matches: r.Matches()}
	if d, ok := r.(rating.Decaying); ok {
		e.Spread = math.Sqrt(d.EffectiveVarianceSq(asOf))
	}
	if b.eligible(r, asOf) {
		mu := r.Mu()
		e.Mu = &mu
	}
	return e
}

func (b *builder) eligible(r rating.Rating, asOf time.Time) bool {
	if d, ok := r.(rating.Decaying); ok {
		if b.maxDeviationRatio <= 0 {
			return true
		}
		return math.Sqrt(d.EffectiveVarianceSq(asOf)) < b.maxDeviationRatio*math.Sqrt(d.MaxVarianceSq())
	}
	if r.Matches() >= b.minMatches {
		return true
	}
	return !b.filterDate.IsZero() && asOf.After(b.filterDate)
}

// tracker ranks rows and diffs them against the rows it ranked last time.
type tracker struct {
	prev map[string]Entry
}

func (t *tracker) next(rows []Entry) []Entry {
	sort.Slice(rows, func(i, j int) bool { return less(rows[i], rows[j]) })

	pos := 0
	for i := range rows {
		if i == 0 || !sameMu(rows[i-1].Mu, rows[i].Mu) {
			pos++
		}
		rows[i].Position = pos
	}

	seen := make(map[string]Entry, len(rows))
	for i := range rows {
		if p, ok := t.prev[rows[i].Key]; ok {
			d := p.Position - rows[i].Position
			rows[i].PositionDelta = &d
			if p.Mu != nil && rows[i].Mu != nil {
				rd := *rows[i].Mu - *p.Mu
				rows[i].RatingDelta = &rd
			}
		}
		seen[rows[i].Key] = rows[i]
	}
	t.prev = seen
	return rows
}

func less(a, b Entry) bool {
	switch {
	case a.Mu != nil && b.Mu == nil:
		return true
	case a.Mu == nil && b.Mu != nil:
		return false
	case a.Mu != nil && *a.Mu != *b.Mu:
		return *a.Mu > *b.Mu
	case a.Name != b.Name:
		return a.Name < b.Name
	default:
		return a.Key < b.Key
	}
}

func sameMu(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
