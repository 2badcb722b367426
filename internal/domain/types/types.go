// Package types contains the report types shared by the writers, stores and
// the HTTP API.
package types

import (
	"time"

	"github.com/okian/matchrank/internal/domain/calibration"
	"github.com/okian/matchrank/internal/domain/snapshot"
)

// Entry represents a leaderboard row.
type Entry struct {
	Position      int      `json:"position"`
	Key           string   `json:"key"`
	Name          string   `json:"name"`
	City          string   `json:"city,omitempty"`
	Rating        *float64 `json:"rating"`
	Spread        float64  `json:"spread,omitempty"`
	Matches       int      `json:"matches"`
	PositionDelta *int     `json:"position_delta,omitempty"`
	RatingDelta   *float64 `json:"rating_delta,omitempty"`
}

// Snapshot is one labelled leaderboard.
type Snapshot struct {
	Label    string    `json:"label"`
	AsOf     time.Time `json:"as_of"`
	Current  bool      `json:"current"`
	Entries  []Entry   `json:"entries"`
	Factions []Entry   `json:"factions,omitempty"`
}

// Report is a built leaderboard report. Snapshots are newest first.
type Report struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Title       string     `json:"title"`
	Algorithm   string     `json:"algorithm"`
	GeneratedAt time.Time  `json:"generated_at"`
	Latest      time.Time  `json:"latest"`
	WithCity    bool       `json:"with_city"`
	WithSpread  bool       `json:"with_spread"`
	MinMatches  int        `json:"min_matches,omitempty"`
	MaxSpread   float64    `json:"max_spread,omitempty"`
	Snapshots   []Snapshot `json:"snapshots"`
}

// Summary is the listing view of a report.
type Summary struct {
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Algorithm   string    `json:"algorithm"`
	Latest      time.Time `json:"latest"`
	GeneratedAt time.Time `json:"generated_at"`
	Snapshots   int       `json:"snapshots"`
	Competitors int       `json:"competitors"`
}

// HistoryPoint is a competitor's standing in one snapshot.
type HistoryPoint struct {
	Label    string    `json:"label"`
	AsOf     time.Time `json:"as_of"`
	Position int       `json:"position"`
	Rating   *float64  `json:"rating"`
	Spread   float64   `json:"spread,omitempty"`
}

// History is a competitor's standing across every snapshot of a report.
type History struct {
	Key    string         `json:"key"`
	Name   string         `json:"name"`
	City   string         `json:"city,omitempty"`
	Points []HistoryPoint `json:"points"`
}

// Bucket is one calibration row.
type Bucket struct {
	UpperBound float64 `json:"upper_bound"`
	Matches    int     `json:"matches"`
	Rate       float64 `json:"rate"`
}

// Calibration is a rendered calibration histogram.
type Calibration struct {
	Algorithm string   `json:"algorithm"`
	Width     float64  `json:"width"`
	Buckets   []Bucket `json:"buckets"`
}

// NewEntries converts snapshot rows, keeping at most top rows when top > 0.
func NewEntries(rows []snapshot.Entry, top int) []Entry {
	n := len(rows)
	if top > 0 && top < n {
		n = top
	}
	out := make([]Entry, n)
	for i, r := range rows[:n] {
		out[i] = Entry{
			Position:      r.Position,
			Key:           r.Key,
			Name:          r.Name,
			City:          r.City,
			Rating:        r.Mu,
			Spread:        r.Spread,
			Matches:       r.Matches,
			PositionDelta: r.PositionDelta,
			RatingDelta:   r.RatingDelta,
		}
	}
	return out
}

// NewCalibration converts a histogram. Empty buckets report a zero rate.
func NewCalibration(algorithm string, h *calibration.Histogram) Calibration {
	c := Calibration{Algorithm: algorithm, Width: h.Width()}
	for _, b := range h.Buckets() {
		row := Bucket{UpperBound: b.UpperBound, Matches: b.Count}
		if b.Count > 0 {
			row.Rate = b.Rate()
		}
		c.Buckets = append(c.Buckets, row)
	}
	return c
}

// Current returns the newest snapshot.
func (r Report) Current() (Snapshot, bool) {
	if len(r.Snapshots) == 0 {
		return Snapshot{}, false
	}
	return r.Snapshots[0], true
}

// Summary returns the listing view.
func (r Report) Summary() Summary {
	s := Summary{
		Name:        r.Name,
		Title:       r.Title,
		Algorithm:   r.Algorithm,
		Latest:      r.Latest,
		GeneratedAt: r.GeneratedAt,
		Snapshots:   len(r.Snapshots),
	}
	if cur, ok := r.Current(); ok {
		for _, e := range cur.Entries {
			if e.Rating != nil {
				s.Competitors++
			}
		}
	}
	return s
}

// History collects key's rows from every snapshot, newest first.
func (r Report) History(key string) (History, bool) {
	h := History{Key: key}
	for _, s := range r.Snapshots {
		for _, e := range s.Entries {
			if e.Key != key {
				continue
			}
			h.Name, h.City = e.Name, e.City
			h.Points = append(h.Points, HistoryPoint{
				Label:    s.Label,
				AsOf:     s.AsOf,
				Position: e.Position,
				Rating:   e.Rating,
				Spread:   e.Spread,
			})
			break
		}
	}
	return h, len(h.Points) > 0
}
