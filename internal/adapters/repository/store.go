// Package repository stores built reports for the HTTP API and archives them
// to external sinks.
package repository

import (
	"context"

	"github.com/okian/matchrank/internal/domain/types"
)

// Store provides read/write access to the latest build of each report.
type Store interface {
	// Save replaces the stored report with the same name.
	Save(ctx context.Context, r types.Report) error

	// Get returns the report by name.
	// Returns ErrNotFound if the report is unknown.
	Get(ctx context.Context, name string) (types.Report, error)

	// List returns summaries ordered by report name.
	List(ctx context.Context) ([]types.Summary, error)

	// Top returns the first n rated rows of the report's current snapshot.
	Top(ctx context.Context, name string, n int) ([]types.Entry, error)
}

// Publisher archives every build of a report.
type Publisher interface {
	Publish(ctx context.Context, r types.Report) error
}

// topRated returns the first n rated rows of the newest snapshot.
func topRated(r types.Report, n int) []types.Entry {
	cur, ok := r.Current()
	if !ok {
		return nil
	}
	out := make([]types.Entry, 0, n)
	for _, e := range cur.Entries {
		if len(out) == n {
			break
		}
		if e.Rating != nil {
			out = append(out, e)
		}
	}
	return out
}
