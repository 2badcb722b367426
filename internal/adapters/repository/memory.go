package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/matchrank/internal/domain/types"
	"github.com/okian/matchrank/pkg/metrics"
)

// MemoryStore keeps reports in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]types.Report
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: map[string]types.Report{}}
}

func (s *MemoryStore) Save(_ context.Context, r types.Report) error {
	if r.Name == "" {
		return ErrEmptyName
	}
	s.mu.Lock()
	s.reports[r.Name] = r
	n := len(s.reports)
	s.mu.Unlock()
	metrics.UpdateStoredReports(n)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, name string) (types.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[name]
	if !ok {
		return types.Report{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) List(_ context.Context) ([]types.Summary, error) {
	s.mu.RLock()
	out := make([]types.Summary, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r.Summary())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Top(ctx context.Context, name string, n int) ([]types.Entry, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	r, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return topRated(r, n), nil
}
