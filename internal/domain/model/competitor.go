// Package model contains the competitors, events and event collection that
// rating replays fold over.
package model

import (
	"fmt"
	"sort"
)

// ProxyName marks a placeholder entrant that fills a bye and never plays a
// rated match.
const ProxyName = "Proxy"

// Competitor is an immutable roster record.
type Competitor struct {
	Key     string // stable identity
	City    string // locale tag
	Display string // display name, defaults to Key
	Hidden  bool   // excluded from leaderboards, still rated
}

// Name returns the display name, falling back to the key.
func (c Competitor) Name() string {
	if c.Display == "" {
		return c.Key
	}
	return c.Display
}

// Roster maps competitor keys to records.
type Roster map[string]Competitor

// NewRoster builds a roster, rejecting duplicate keys.
func NewRoster(competitors ...Competitor) (Roster, error) {
	r := make(Roster, len(competitors))
	for _, c := range competitors {
		if c.Key == "" {
			return nil, fmt.Errorf("%w: empty key", ErrInvalidInput)
		}
		if _, ok := r[c.Key]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateCompetitor, c.Key)
		}
		r[c.Key] = c
	}
	return r, nil
}

// Lookup returns the competitor for key.
func (r Roster) Lookup(key string) (Competitor, error) {
	c, ok := r[key]
	if !ok {
		return Competitor{}, fmt.Errorf("%w: %q", ErrUnknownCompetitor, key)
	}
	return c, nil
}

// Keys returns the roster keys in ascending order.
func (r Roster) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Factions resolves raw faction names and aliases to canonical keys.
type Factions struct {
	aliases map[string]string
	display map[string]string
}

// NewFactions returns an empty faction table.
func NewFactions() *Factions {
	return &Factions{aliases: map[string]string{}, display: map[string]string{}}
}

// Add registers canonical under its own name plus any aliases.
func (f *Factions) Add(canonical, display string, aliases ...string) {
	f.aliases[canonical] = canonical
	for _, a := range aliases {
		if a != "" {
			f.aliases[a] = canonical
		}
	}
	if display != "" {
		f.display[canonical] = display
	} else if _, ok := f.display[canonical]; !ok {
		f.display[canonical] = canonical
	}
}

// Resolve maps a raw name to its canonical key. Empty input resolves to an
// empty key: the match simply carries no faction.
func (f *Factions) Resolve(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	c, ok := f.aliases[raw]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFaction, raw)
	}
	return c, nil
}

// Display returns the display name of a canonical faction key.
func (f *Factions) Display(key string) string {
	if d, ok := f.display[key]; ok {
		return d
	}
	return key
}

// Len returns the number of canonical factions.
func (f *Factions) Len() int {
	return len(f.display)
}
