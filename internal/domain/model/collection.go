package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/matchrank/internal/domain/calibration"
	"github.com/okian/matchrank/internal/domain/rating"
)

// Collection owns the roster, the optional faction table and every event.
type Collection struct {
	roster   Roster
	factions *Factions
	events   []*Event
}

// CollectionOption configures a Collection.
type CollectionOption func(*Collection)

// WithFactionTable attaches faction reference data, enabling faction replays.
func WithFactionTable(f *Factions) CollectionOption {
	return func(c *Collection) {
		c.factions = f
	}
}

// NewCollection returns an empty collection over roster.
func NewCollection(roster Roster, opts ...CollectionOption) *Collection {
	c := &Collection{roster: roster}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Roster returns the competitor roster.
func (c *Collection) Roster() Roster { return c.roster }

// Factions returns the faction table, or nil.
func (c *Collection) Factions() *Factions { return c.factions }

// Add appends events after checking that every roster entry is known.
func (c *Collection) Add(events ...*Event) error {
	for _, e := range events {
		for id, key := range e.roster {
			if key == ProxyName {
				continue
			}
			if _, ok := c.roster[key]; !ok {
				return fmt.Errorf("%s: entrant %q: %w: %q", e.Name, id, ErrUnknownCompetitor, key)
			}
		}
		c.events = append(c.events, e)
	}
	return nil
}

// Len returns the number of events.
func (c *Collection) Len() int { return len(c.events) }

// Sorted returns the events ordered by date. Events on the same date keep
// their insertion order.
func (c *Collection) Sorted() []*Event {
	out := make([]*Event, len(c.events))
	copy(out, c.events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date().Before(out[j].Date())
	})
	return out
}

// ReplayOption configures Replay and Calibrate.
type ReplayOption func(*replayOptions)

type replayOptions struct {
	filter      func(*Event) bool
	factions    bool
	atMatchDate bool
}

// WithEventFilter skips events for which keep returns false.
func WithEventFilter(keep func(*Event) bool) ReplayOption {
	return func(o *replayOptions) {
		o.filter = keep
	}
}

// WithFactionRatings also rates factions, using team updates where both
// sides carry distinct factions.
func WithFactionRatings() ReplayOption {
	return func(o *replayOptions) {
		o.factions = true
	}
}

// WithPreMatchGaps makes Calibrate measure each gap with the ratings both
// sides carried into the match instead of the final ratings.
func WithPreMatchGaps() ReplayOption {
	return func(o *replayOptions) {
		o.atMatchDate = true
	}
}

func (c *Collection) replayOptions(opts []ReplayOption) (replayOptions, error) {
	var o replayOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.factions && c.factions == nil {
		return o, ErrNoFactionRoster
	}
	return o, nil
}

// keep reports whether e passes the event filter.
func (o replayOptions) keep(e *Event) bool {
	return o.filter == nil || o.filter(e)
}

// Replay folds every kept event, in date order, into a fresh state.
func (c *Collection) Replay(alg rating.Algorithm, opts ...ReplayOption) (*State, error) {
	o, err := c.replayOptions(opts)
	if err != nil {
		return nil, err
	}
	state := NewState(o.factions)
	for _, e := range c.Sorted() {
		if !o.keep(e) {
			continue
		}
		if err := e.UpdateRatings(state, alg); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// Calibrate replays the collection and buckets every match by the absolute
// gap between both sides' mu. The higher rated side scores 1 for a win, 0
// for a loss and 0.5 for a draw.
func (c *Collection) Calibrate(alg rating.Algorithm, width float64, opts ...ReplayOption) (*calibration.Histogram, error) {
	h, err := calibration.New(width)
	if err != nil {
		return nil, err
	}
	o, err := c.replayOptions(opts)
	if err != nil {
		return nil, err
	}

	observe := func(m Match, w, l rating.Rating) {
		h.Observe(math.Abs(w.Mu()-l.Mu()), indicator(m.Drawn, w, l))
	}

	if o.atMatchDate {
		state := NewState(o.factions)
		for _, e := range c.Sorted() {
			if !o.keep(e) {
				continue
			}
			if err := e.fold(state, alg, observe); err != nil {
				return nil, err
			}
		}
		return h, nil
	}

	state, err := c.Replay(alg, opts...)
	if err != nil {
		return nil, err
	}
	for _, e := range c.Sorted() {
		if !o.keep(e) {
			continue
		}
		for _, round := range e.rounds {
			for _, m := range round {
				wKey, lKey, err := e.resolve(m)
				if err != nil {
					return nil, err
				}
				observe(m, state.competitor(wKey, alg), state.competitor(lKey, alg))
			}
		}
	}
	return h, nil
}

func indicator(drawn bool, w, l rating.Rating) float64 {
	switch {
	case drawn:
		return 0.5
	case w.Mu() >= l.Mu():
		return 1
	default:
		return 0
	}
}
