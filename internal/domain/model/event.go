package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/matchrank/internal/domain/rating"
)

// Tier classifies an event. Higher tiers award physical prizes.
type Tier int

// Known tiers.
const (
	TierLeague      Tier = 0 // LG
	TierLocal       Tier = 1 // LT
	TierGlass       Tier = 2 // GT, TC
	TierGrandClash  Tier = 3 // GC
	TierGrandMaster Tier = 4 // GM
)

var tierCodes = map[string]Tier{
	"LG": TierLeague,
	"LT": TierLocal,
	"GT": TierGlass,
	"TC": TierGlass,
	"GC": TierGrandClash,
	"GM": TierGrandMaster,
}

// ParseTier maps a tier code such as "GT" to a Tier.
func ParseTier(code string) (Tier, error) {
	t, ok := tierCodes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, code)
	}
	return t, nil
}

// Kind distinguishes tournaments from leagues.
type Kind int

const (
	KindTournament Kind = iota
	KindLeague
)

func (k Kind) String() string {
	if k == KindLeague {
		return "league"
	}
	return "tournament"
}

// Result is the outcome of a match from the first player's point of view.
type Result int

const (
	FirstWins Result = iota
	SecondWins
	Draw
)

// Match is a normalized result: Winner never lost outright. On a draw the
// slot order is the order the match was reported in.
type Match struct {
	Winner        string // per-event entrant id
	Loser         string // per-event entrant id
	Drawn         bool
	Date          time.Time
	WinnerFaction string
	LoserFaction  string
}

// Meta describes an event.
type Meta struct {
	Name      string
	Organizer string
	City      string
	Tier      Tier
}

// Event is a tournament or league: a roster of entrants and ordered rounds
// of matches.
type Event struct {
	Meta
	kind   Kind
	start  time.Time
	date   time.Time
	roster map[string]string // entrant id -> competitor key
	rounds [][]Match
}

// NewTournament creates a tournament held on date. Every match is rated at
// that date.
func NewTournament(meta Meta, date time.Time, roster map[string]string) *Event {
	return newEvent(KindTournament, meta, date, roster)
}

// NewLeague creates a league starting on start. Its date advances to the
// latest match date as matches are added.
func NewLeague(meta Meta, start time.Time, roster map[string]string) *Event {
	meta.Tier = TierLeague
	return newEvent(KindLeague, meta, start, roster)
}

func newEvent(kind Kind, meta Meta, date time.Time, roster map[string]string) *Event {
	r := make(map[string]string, len(roster))
	for id, key := range roster {
		r[id] = key
	}
	return &Event{
		Meta:   meta,
		kind:   kind,
		start:  date,
		date:   date,
		roster: r,
		rounds: [][]Match{{}},
	}
}

// Kind reports whether this is a tournament or a league.
func (e *Event) Kind() Kind { return e.kind }

// Date is the representative date used to order events.
func (e *Event) Date() time.Time { return e.date }

// Start is the creation date; equal to Date for tournaments.
func (e *Event) Start() time.Time { return e.start }

// WithGlass reports whether the event is glass tier or above.
func (e *Event) WithGlass() bool { return e.Tier >= TierGlass }

// IsGrandClash reports whether the event is grand clash tier or above.
func (e *Event) IsGrandClash() bool { return e.Tier >= TierGrandClash }

// Roster returns a copy of the entrant id -> competitor key mapping.
func (e *Event) Roster() map[string]string {
	r := make(map[string]string, len(e.roster))
	for id, key := range e.roster {
		r[id] = key
	}
	return r
}

// Rounds returns the rounds in order. The returned slices must not be modified.
func (e *Event) Rounds() [][]Match { return e.rounds }

// MatchCount returns the number of matches across all rounds.
func (e *Event) MatchCount() int {
	n := 0
	for _, r := range e.rounds {
		n += len(r)
	}
	return n
}

// MatchOption customizes a single AddMatch call.
type MatchOption func(*matchOptions)

type matchOptions struct {
	date   time.Time
	dated  bool
	f1, f2 string
}

// WithDate sets the match date. Only leagues accept it.
func WithDate(d time.Time) MatchOption {
	return func(o *matchOptions) {
		o.date = d
		o.dated = true
	}
}

// WithFactions sets the canonical factions played by the first and second player.
func WithFactions(first, second string) MatchOption {
	return func(o *matchOptions) {
		o.f1, o.f2 = first, second
	}
}

// AddMatch appends a match to the current round.
func (e *Event) AddMatch(p1, p2 string, res Result, opts ...MatchOption) error {
	var o matchOptions
	for _, opt := range opts {
		opt(&o)
	}

	for _, id := range []string{p1, p2} {
		key, ok := e.roster[id]
		if !ok {
			return fmt.Errorf("%s: %w: %q", e.Name, ErrUnknownEntrant, id)
		}
		if key == ProxyName {
			return fmt.Errorf("%s: %w: %q", e.Name, ErrProxyMatch, id)
		}
	}

	date := e.date
	if o.dated {
		if e.kind != KindLeague {
			return fmt.Errorf("%s: %w", e.Name, ErrDatedTournamentMatch)
		}
		date = o.date
	}
	if e.kind == KindLeague && date.Before(e.start) {
		return fmt.Errorf("%s: %w: %s < %s", e.Name, ErrBeforeLeagueStart,
			date.Format(time.DateOnly), e.start.Format(time.DateOnly))
	}

	m := Match{Date: date}
	switch res {
	case FirstWins, Draw:
		m.Winner, m.Loser, m.WinnerFaction, m.LoserFaction = p1, p2, o.f1, o.f2
		m.Drawn = res == Draw
	case SecondWins:
		m.Winner, m.Loser, m.WinnerFaction, m.LoserFaction = p2, p1, o.f2, o.f1
	default:
		return fmt.Errorf("%s: %w: %d", e.Name, ErrInvalidResult, res)
	}

	last := len(e.rounds) - 1
	e.rounds[last] = append(e.rounds[last], m)
	if date.After(e.date) {
		e.date = date
	}
	return nil
}

// EndRound closes the current round and opens a new one.
func (e *Event) EndRound() {
	e.rounds = append(e.rounds, []Match{})
}

// CheckEligibility reports whether any non-proxy entrant satisfies pred.
// Unknown competitor keys never satisfy it.
func (e *Event) CheckEligibility(roster Roster, pred func(Competitor) bool) bool {
	for _, key := range e.roster {
		if key == ProxyName {
			continue
		}
		c, ok := roster[key]
		if !ok {
			continue
		}
		if pred == nil || pred(c) {
			return true
		}
	}
	return false
}

// UpdateRatings folds every match, round by round, into state. Tournament
// matches are rated at the event date, league matches at their own date.
func (e *Event) UpdateRatings(state *State, alg rating.Algorithm) error {
	return e.fold(state, alg, nil)
}

// fold rates every match in order. observe, when set, sees each match with
// the ratings both sides carried into it.
func (e *Event) fold(state *State, alg rating.Algorithm, observe func(m Match, w, l rating.Rating)) error {
	team, isTeam := alg.(rating.TeamAlgorithm)
	if state.TracksFactions() && !isTeam {
		return fmt.Errorf("%w: %s", ErrTeamUnsupported, alg.Kind())
	}

	for _, round := range e.rounds {
		for _, m := range round {
			wKey, lKey, err := e.resolve(m)
			if err != nil {
				return err
			}
			w, l := state.competitor(wKey, alg), state.competitor(lKey, alg)
			if observe != nil {
				observe(m, w, l)
			}
			date := e.date
			if e.kind == KindLeague {
				date = m.Date
			}

			if state.TracksFactions() && m.WinnerFaction != "" && m.LoserFaction != "" && m.WinnerFaction != m.LoserFaction {
				nw, nwf, nl, nlf := team.Rate2v2(
					w, state.faction(m.WinnerFaction, alg),
					l, state.faction(m.LoserFaction, alg),
					m.Drawn, date)
				state.Competitors[wKey], state.Factions[m.WinnerFaction] = nw, nwf
				state.Competitors[lKey], state.Factions[m.LoserFaction] = nl, nlf
				continue
			}

			state.Competitors[wKey], state.Competitors[lKey] = alg.Rate1v1(w, l, m.Drawn, date)
		}
	}
	return nil
}

func (e *Event) resolve(m Match) (string, string, error) {
	w, ok := e.roster[m.Winner]
	if !ok {
		return "", "", fmt.Errorf("%s: %w: %q", e.Name, ErrUnknownEntrant, m.Winner)
	}
	l, ok := e.roster[m.Loser]
	if !ok {
		return "", "", fmt.Errorf("%s: %w: %q", e.Name, ErrUnknownEntrant, m.Loser)
	}
	return w, l, nil
}
