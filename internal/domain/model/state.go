package model

import "github.com/okian/matchrank/internal/domain/rating"

// State is the rating state owned by one replay: competitor key -> rating
// and, when faction tracking is on, faction key -> rating.
type State struct {
	Competitors map[string]rating.Rating
	Factions    map[string]rating.Rating
}

// NewState returns an empty state. Faction ratings are tracked only when
// withFactions is true.
func NewState(withFactions bool) *State {
	s := &State{Competitors: map[string]rating.Rating{}}
	if withFactions {
		s.Factions = map[string]rating.Rating{}
	}
	return s
}

// TracksFactions reports whether faction ratings are maintained.
func (s *State) TracksFactions() bool { return s.Factions != nil }

// Rating returns the competitor's current rating.
func (s *State) Rating(key string) (rating.Rating, bool) {
	r, ok := s.Competitors[key]
	return r, ok
}

func (s *State) competitor(key string, alg rating.Algorithm) rating.Rating {
	if r, ok := s.Competitors[key]; ok {
		return r
	}
	return alg.Initial()
}

func (s *State) faction(key string, alg rating.Algorithm) rating.Rating {
	if r, ok := s.Factions[key]; ok {
		return r
	}
	return alg.Initial()
}
