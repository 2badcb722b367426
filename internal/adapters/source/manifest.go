package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/matchrank/internal/domain/dedupe"
	"github.com/okian/matchrank/internal/domain/model"
)

// Event kinds accepted in a manifest.
const (
	KindTournament = "tournament"
	KindLeague     = "league"
)

// Entry describes one event file in a manifest.
type Entry struct {
	File      string `koanf:"file"`
	Kind      string `koanf:"kind"`
	Name      string `koanf:"name"`
	Date      string `koanf:"date"`
	Organizer string `koanf:"organizer"`
	City      string `koanf:"city"`
	Tier      string `koanf:"tier"`
}

// Meta converts the descriptive fields. Tournaments default to local tier.
func (e Entry) Meta() (model.Meta, error) {
	m := model.Meta{Name: e.Name, Organizer: e.Organizer, City: e.City, Tier: model.TierLocal}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(e.File), filepath.Ext(e.File))
	}
	if e.Tier != "" {
		t, err := model.ParseTier(e.Tier)
		if err != nil {
			return model.Meta{}, fmt.Errorf("%s: %w", m.Name, err)
		}
		m.Tier = t
	}
	return m, nil
}

// ParseDate parses the event (or league start) date.
func (e Entry) ParseDate() (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(e.Date))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: date: %v", ErrMalformed, e.File, err)
	}
	return t, nil
}

// LoadManifest reads the "events" list of a YAML manifest. Relative file
// paths are resolved against the manifest directory.
func LoadManifest(path string) ([]Entry, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	var entries []Entry
	if err := k.UnmarshalWithConf("events", &entries, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	dir := filepath.Dir(path)
	for i := range entries {
		if entries[i].File == "" {
			return nil, fmt.Errorf("%w: %s: event %d has no file", ErrMalformed, path, i+1)
		}
		if !filepath.IsAbs(entries[i].File) {
			entries[i].File = filepath.Join(dir, entries[i].File)
		}
	}
	return entries, nil
}

// ReadEvent parses one manifest entry from r.
func ReadEvent(r io.Reader, e Entry, roster model.Roster, factions *model.Factions) (*model.Event, error) {
	meta, err := e.Meta()
	if err != nil {
		return nil, err
	}
	date, err := e.ParseDate()
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(e.Kind) {
	case "", KindTournament:
		return ReadTournament(r, meta, date, roster, factions)
	case KindLeague:
		return ReadLeague(r, meta, date, roster, factions)
	default:
		return nil, fmt.Errorf("%w: %s: %q", ErrUnknownKind, e.File, e.Kind)
	}
}

// LoadCollection reads every manifest event into a collection over roster.
// It stops at the first failing event. A file whose content matches an
// earlier event is rejected so no match is rated twice.
func LoadCollection(ctx context.Context, manifest string, roster model.Roster, factions *model.Factions) (*model.Collection, error) {
	entries, err := LoadManifest(manifest)
	if err != nil {
		return nil, err
	}
	var opts []model.CollectionOption
	if factions != nil {
		opts = append(opts, model.WithFactionTable(factions))
	}
	coll := model.NewCollection(roster, opts...)
	seen := dedupe.NewInMemoryDeduper()
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(entry.File)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.File, err)
		}
		sum := sha256.Sum256(data)
		if seen.SeenAndRecord(ctx, hex.EncodeToString(sum[:])) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEvent, entry.File)
		}
		ev, err := ReadEvent(bytes.NewReader(data), entry, roster, factions)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.File, err)
		}
		if err := coll.Add(ev); err != nil {
			return nil, err
		}
	}
	return coll, nil
}
