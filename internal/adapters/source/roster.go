// Package source reads rosters, faction tables and events from CSV files
// listed in a YAML manifest.
package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/okian/matchrank/internal/domain/model"
)

// newReader returns a CSV reader tolerant of ragged rows.
func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	return cr
}

// readAll reads every non-empty record.
func readAll(r io.Reader) ([][]string, error) {
	records, err := newReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out := records[:0]
	for _, rec := range records {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// ReadRoster parses "key,city,display[,hidden]" rows.
func ReadRoster(r io.Reader) (model.Roster, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	competitors := make([]model.Competitor, 0, len(records))
	for i, rec := range records {
		if len(rec) < 2 {
			return nil, fmt.Errorf("%w: roster line %d: want key,city[,display[,hidden]]", ErrMalformed, i+1)
		}
		competitors = append(competitors, model.Competitor{
			Key:     field(rec, 0),
			City:    field(rec, 1),
			Display: field(rec, 2),
			Hidden:  parseFlag(field(rec, 3)),
		})
	}
	return model.NewRoster(competitors...)
}

// ReadFactions parses "alias,canonical[,display]" rows.
func ReadFactions(r io.Reader) (*model.Factions, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	f := model.NewFactions()
	for i, rec := range records {
		alias, canonical := field(rec, 0), field(rec, 1)
		if alias == "" {
			return nil, fmt.Errorf("%w: faction line %d: empty alias", ErrMalformed, i+1)
		}
		if canonical == "" {
			canonical = alias
		}
		f.Add(canonical, field(rec, 2), alias)
	}
	return f, nil
}

// LoadRoster reads a roster file.
func LoadRoster(path string) (model.Roster, error) {
	var roster model.Roster
	err := withFile(path, func(r io.Reader) (err error) {
		roster, err = ReadRoster(r)
		return err
	})
	return roster, err
}

// LoadFactions reads a faction file. An empty path yields a nil table.
func LoadFactions(path string) (*model.Factions, error) {
	if path == "" {
		return nil, nil
	}
	var f *model.Factions
	err := withFile(path, func(r io.Reader) (err error) {
		f, err = ReadFactions(r)
		return err
	})
	return f, err
}

func withFile(path string, fn func(io.Reader) error) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	err = fn(fh)
	if cerr := fh.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func parseFlag(s string) bool {
	switch strings.ToLower(s) {
	case "1", "y", "yes", "true", "hidden":
		return true
	default:
		return false
	}
}

// missingError lists every unknown name at once.
func missingError(names []string) error {
	return fmt.Errorf("%w: missing players: %s", model.ErrUnknownCompetitor, strings.Join(names, ", "))
}
