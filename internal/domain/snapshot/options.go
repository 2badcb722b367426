package snapshot

import (
	"sort"
	"time"

	"github.com/okian/matchrank/internal/domain/model"
)

// Option configures Build.
type Option func(*builder)

// WithMilestones adds as-of dates at which intermediate snapshots are taken.
func WithMilestones(dates ...time.Time) Option {
	return func(b *builder) {
		b.milestones = append(b.milestones, dates...)
	}
}

// WithCurrentDate sets the date of the final snapshot. Defaults to now.
func WithCurrentDate(d time.Time) Option {
	return func(b *builder) {
		b.current = d
	}
}

// WithCompetitorFilter keeps only competitors for which keep returns true.
// It also decides which events can move the watermark.
func WithCompetitorFilter(keep func(model.Competitor) bool) Option {
	return func(b *builder) {
		b.keepCompetitor = keep
	}
}

// WithEventFilter replays only events for which keep returns true.
func WithEventFilter(keep func(*model.Event) bool) Option {
	return func(b *builder) {
		b.keepEvent = keep
	}
}

// WithMinMatches hides the rating of non-decaying competitors with fewer
// matches, unless the as-of date is after the filter date.
func WithMinMatches(n int) Option {
	return func(b *builder) {
		b.minMatches = n
	}
}

// WithFilterDate sets the cutoff used with WithMinMatches.
func WithFilterDate(d time.Time) Option {
	return func(b *builder) {
		b.filterDate = d
	}
}

// WithMaxDeviationRatio hides the rating of decaying competitors whose
// effective deviation is not below ratio times the ceiling deviation.
func WithMaxDeviationRatio(ratio float64) Option {
	return func(b *builder) {
		b.maxDeviationRatio = ratio
	}
}

// WithFactions adds faction leaderboards to every snapshot.
func WithFactions() Option {
	return func(b *builder) {
		b.factions = true
	}
}

type builder struct {
	milestones        []time.Time
	current           time.Time
	keepCompetitor    func(model.Competitor) bool
	keepEvent         func(*model.Event) bool
	minMatches        int
	filterDate        time.Time
	maxDeviationRatio float64
	factions          bool
	now               func() time.Time
}

func newBuilder(opts []Option) *builder {
	b := &builder{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	if b.current.IsZero() {
		b.current = b.now().UTC()
	}
	ms := make([]time.Time, len(b.milestones))
	copy(ms, b.milestones)
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Before(ms[j]) })
	b.milestones = ms
	return b
}
