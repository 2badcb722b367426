// Package service builds every configured report from the loaded events and
// hands the results to the serving store and the publish sinks.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/matchrank/internal/adapters/mq/queue"
	"github.com/okian/matchrank/internal/adapters/mq/worker"
	"github.com/okian/matchrank/internal/adapters/report"
	"github.com/okian/matchrank/internal/adapters/repository"
	"github.com/okian/matchrank/internal/config"
	"github.com/okian/matchrank/internal/domain/model"
	"github.com/okian/matchrank/internal/domain/rating"
	"github.com/okian/matchrank/internal/domain/snapshot"
	"github.com/okian/matchrank/internal/domain/types"
	"github.com/okian/matchrank/pkg/logger"
	"github.com/okian/matchrank/pkg/metrics"
)

// LabelLayout formats the watermark date heading the current snapshot.
const LabelLayout = "02.01.2006"

const publishTimeout = time.Minute

// ErrQueueFull is returned when a built report cannot be queued for publishing.
var ErrQueueFull = errors.New("publish queue full")

// Service builds reports over one event collection.
type Service struct {
	cfg  *config.Config
	coll *model.Collection

	store          repository.Store
	markdown       *report.Writer
	sinks          []worker.Sink
	workerCount    int
	publishWorkers int

	logger logger.Logger

	mu   sync.RWMutex
	last *runStats
}

type runStats struct {
	runID      string
	reports    int
	published  int64
	failed     int64
	finishedAt time.Time
	err        string
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount bounds the number of reports built concurrently.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithPublishWorkers sets the number of goroutines draining the publish queue.
func WithPublishWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.publishWorkers = count
		}
	}
}

// WithStore sets the store that serves the latest build. Defaults to memory.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithMarkdown writes every report, and the calibration table, as markdown.
func WithMarkdown(w *report.Writer) Option {
	return func(s *Service) {
		if w != nil {
			s.markdown = w
			s.sinks = append(s.sinks, worker.Sink{Name: "markdown", Publisher: w})
		}
	}
}

// WithSink adds a publish sink that receives every built report.
func WithSink(name string, p repository.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.sinks = append(s.sinks, worker.Sink{Name: name, Publisher: p})
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service.
func New(cfg *config.Config, coll *model.Collection, opts ...Option) *Service {
	s := &Service{
		cfg:            cfg,
		coll:           coll,
		workerCount:    runtime.NumCPU(),
		publishWorkers: 2,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Store returns the serving store.
func (s *Service) Store() repository.Store { return s.store }

// RunResult summarizes one build run.
type RunResult struct {
	RunID       string
	Reports     []types.Report
	Calibration *types.Calibration
	Published   int64
	Failed      int64
}

// GetStats returns statistics of the most recent run.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"configured_reports": len(s.cfg.Reports),
		"events":             s.coll.Len(),
		"sinks":              len(s.sinks),
	}
	if s.last == nil {
		return stats
	}
	stats["run_id"] = s.last.runID
	stats["reports"] = s.last.reports
	stats["published"] = s.last.published
	stats["publish_failures"] = s.last.failed
	stats["finished_at"] = s.last.finishedAt.UTC().Format(time.RFC3339)
	if s.last.err != "" {
		stats["error"] = s.last.err
	}
	return stats
}

// Run builds every configured report, saves each to the store and publishes
// it to every sink. Any build error aborts the run; sink errors are counted.
func (s *Service) Run(ctx context.Context) (RunResult, error) {
	res, err := s.run(ctx)
	st := &runStats{
		runID:      res.RunID,
		reports:    len(res.Reports),
		published:  res.Published,
		failed:     res.Failed,
		finishedAt: time.Now(),
	}
	if err != nil {
		st.err = err.Error()
	}
	s.mu.Lock()
	s.last = st
	s.mu.Unlock()
	return res, err
}

func (s *Service) run(ctx context.Context) (RunResult, error) {
	res := RunResult{RunID: uuid.NewString()}
	ctx = logger.WithRunID(ctx, res.RunID)
	start := time.Now()

	s.logger.Info(ctx, "build run started",
		logger.Int("reports", len(s.cfg.Reports)),
		logger.Int("events", s.coll.Len()),
		logger.Int("workers", s.workerCount),
	)

	q := queue.NewInMemoryQueue(queue.WithCapacity(len(s.cfg.Reports) + 1))
	pool := worker.NewPool(s.publishWorkers, q, s.sinks)
	pool.Start(ctx)
	drain := func() error {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		return pool.Drain(dctx)
	}

	reports, err := s.buildAll(ctx)
	if err != nil {
		_ = drain()
		return res, err
	}
	res.Reports = reports

	for _, r := range reports {
		if err := s.store.Save(ctx, r); err != nil {
			metrics.RecordErrorByComponent("store", "save")
			_ = drain()
			return res, fmt.Errorf("store report %s: %w", r.Name, err)
		}
		if !q.Enqueue(ctx, queue.Job{RunID: res.RunID, Report: r}) {
			_ = drain()
			return res, fmt.Errorf("%w: report %s", ErrQueueFull, r.Name)
		}
	}

	if s.cfg.Calibration.Enabled {
		c, err := s.Calibrate(ctx)
		if err != nil {
			_ = drain()
			return res, err
		}
		res.Calibration = &c
	}

	if err := drain(); err != nil {
		return res, err
	}
	res.Published, res.Failed = pool.Stats()
	metrics.UpdateLastBuild(time.Now().Unix())

	s.logger.Info(ctx, "build run finished",
		logger.Int("reports", len(reports)),
		logger.Int("published", int(res.Published)),
		logger.Int("publish_failures", int(res.Failed)),
		logger.Duration("took", time.Since(start)),
	)
	return res, nil
}

// buildAll builds the reports concurrently, keeping configuration order.
func (s *Service) buildAll(ctx context.Context) ([]types.Report, error) {
	reports := make([]types.Report, len(s.cfg.Reports))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerCount)
	for i, def := range s.cfg.Reports {
		g.Go(func() error {
			r, err := s.BuildReport(gctx, def)
			if err != nil {
				metrics.RecordReportError(def.Name)
				s.logger.Error(gctx, "report build failed", logger.String("report", def.Name), logger.Error(err))
				return fmt.Errorf("report %s: %w", def.Name, err)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// BuildReport replays the collection for one report definition.
func (s *Service) BuildReport(ctx context.Context, def config.Report) (types.Report, error) {
	if err := ctx.Err(); err != nil {
		return types.Report{}, err
	}
	start := time.Now()

	alg, err := s.algorithm(def.Algorithm)
	if err != nil {
		return types.Report{}, err
	}
	cutoff, err := def.FilterCutoff()
	if err != nil {
		return types.Report{}, err
	}
	now := s.cfg.Now()
	keepEvent := eventFilter(def, now)

	opts := []snapshot.Option{
		snapshot.WithCurrentDate(now),
		snapshot.WithEventFilter(keepEvent),
		snapshot.WithMinMatches(def.MinMatches),
		snapshot.WithFilterDate(cutoff),
		snapshot.WithMaxDeviationRatio(def.MaxDeviationRatio),
	}
	if def.City != "" {
		city := def.City
		opts = append(opts, snapshot.WithCompetitorFilter(func(c model.Competitor) bool { return c.City == city }))
	}
	var labels map[time.Time]string
	if def.Milestones {
		dates, l, err := s.cfg.MilestoneDates()
		if err != nil {
			return types.Report{}, err
		}
		opts = append(opts, snapshot.WithMilestones(dates...))
		labels = l
	}
	if def.Factions {
		opts = append(opts, snapshot.WithFactions())
	}

	built, err := snapshot.Build(s.coll, alg, opts...)
	if err != nil {
		return types.Report{}, err
	}
	events, matches := s.replayed(keepEvent)
	metrics.RecordReplay(string(alg.Kind()), events, matches)

	title := def.Title
	if title == "" {
		title = def.Name
	}
	r := types.Report{
		ID:          uuid.NewString(),
		Name:        def.Name,
		Title:       title,
		Algorithm:   string(alg.Kind()),
		GeneratedAt: time.Now().UTC(),
		Latest:      built.Latest,
		WithCity:    def.WithCity,
		MinMatches:  def.MinMatches,
	}
	if d, ok := alg.Initial().(rating.Decaying); ok {
		r.WithSpread = true
		if def.MaxDeviationRatio > 0 {
			r.MaxSpread = def.MaxDeviationRatio * math.Sqrt(d.MaxVarianceSq())
		}
	}
	for _, snap := range built.NewestFirst() {
		label := labels[snap.AsOf]
		if snap.Current {
			label = built.Latest.Format(LabelLayout)
		}
		r.Snapshots = append(r.Snapshots, types.Snapshot{
			Label:    label,
			AsOf:     snap.AsOf,
			Current:  snap.Current,
			Entries:  types.NewEntries(snap.Entries, def.Top),
			Factions: types.NewEntries(snap.Factions, 0),
		})
	}

	took := time.Since(start)
	metrics.RecordSnapshotsBuilt(def.Name, len(r.Snapshots))
	metrics.RecordReportBuildLatency(r.Algorithm, float64(took.Milliseconds()))
	metrics.UpdateRankedCompetitors(def.Name, r.Summary().Competitors)
	s.logger.Info(ctx, "report built",
		logger.String("report", def.Name),
		logger.String("algorithm", r.Algorithm),
		logger.Int("snapshots", len(r.Snapshots)),
		logger.Time("latest", r.Latest),
		logger.Duration("took", took),
	)
	return r, nil
}

// Calibrate replays the whole collection up to the current date and writes
// the calibration table when markdown output is configured.
func (s *Service) Calibrate(ctx context.Context) (types.Calibration, error) {
	c := s.cfg.Calibration
	alg, err := s.algorithm(c.Algorithm)
	if err != nil {
		return types.Calibration{}, err
	}
	now := s.cfg.Now()
	opts := []model.ReplayOption{
		model.WithEventFilter(func(e *model.Event) bool { return !e.Date().After(now) }),
	}
	if c.PreMatch {
		opts = append(opts, model.WithPreMatchGaps())
	}
	h, err := s.coll.Calibrate(alg, c.Width, opts...)
	if err != nil {
		return types.Calibration{}, fmt.Errorf("calibrate: %w", err)
	}
	out := types.NewCalibration(string(alg.Kind()), h)

	if s.markdown != nil {
		path, err := s.markdown.WriteCalibrationFile(c.Output, out)
		if err != nil {
			return types.Calibration{}, err
		}
		s.logger.Info(ctx, "calibration written",
			logger.String("path", path),
			logger.Int("matches", h.Total()),
		)
	}
	return out, nil
}

func (s *Service) algorithm(name string) (rating.Algorithm, error) {
	kind, err := rating.ParseKind(name)
	if err != nil {
		return nil, err
	}
	return rating.New(kind, s.cfg.RatingOptions()...)
}

func (s *Service) replayed(keep func(*model.Event) bool) (events, matches int) {
	for _, e := range s.coll.Sorted() {
		if keep(e) {
			events++
			matches += e.MatchCount()
		}
	}
	return events, matches
}

// eventFilter keeps events dated up to now that pass the report's filters.
func eventFilter(def config.Report, now time.Time) func(*model.Event) bool {
	return func(e *model.Event) bool {
		if e.Date().After(now) {
			return false
		}
		if def.GlassOnly && !e.WithGlass() {
			return false
		}
		return def.Organizer == "" || e.Organizer == def.Organizer
	}
}
