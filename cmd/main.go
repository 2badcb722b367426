package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/matchrank/internal/adapters/http/api"
	"github.com/okian/matchrank/internal/adapters/http/swagger"
	"github.com/okian/matchrank/internal/adapters/report"
	"github.com/okian/matchrank/internal/adapters/repository"
	"github.com/okian/matchrank/internal/adapters/source"
	service "github.com/okian/matchrank/internal/app"
	"github.com/okian/matchrank/internal/config"
	"github.com/okian/matchrank/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Reports are served from a custom registry; drop the default collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.Load(ctx)
	if err != nil {
		stop()
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		stop()
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	err = run(ctx, cfg)
	stop()
	if err != nil {
		logger.Get().Error(context.Background(), "matchrank failed", logger.Error(err))
		os.Exit(1)
	}
}

// run loads the data, builds every report and, when configured, serves the
// results until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	roster, err := source.LoadRoster(cfg.Data.Roster)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	factions, err := source.LoadFactions(cfg.Data.Factions)
	if err != nil {
		return fmt.Errorf("load factions: %w", err)
	}
	coll, err := source.LoadCollection(ctx, cfg.Data.Manifest, roster, factions)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	log.Info(ctx, "data loaded",
		logger.Int("competitors", len(roster)),
		logger.Int("events", coll.Len()),
	)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []service.Option{
		service.WithStore(store),
		service.WithWorkerCount(cfg.WorkerCount),
	}
	if cfg.OutputDir != "" {
		opts = append(opts, service.WithMarkdown(report.NewWriter(
			report.WithDir(cfg.OutputDir),
			report.WithLink(cfg.ReportLink, ""),
		)))
	}
	if cfg.Postgres.Enabled {
		var popts []repository.PostgresOption
		if cfg.Postgres.Migrate {
			popts = append(popts, repository.WithSchemaMigration())
		}
		archive, err := repository.OpenPostgres(ctx, cfg.Postgres.DSN, popts...)
		if err != nil {
			return err
		}
		defer archive.Close()
		opts = append(opts, service.WithSink("postgres", archive))
	}

	svc := service.New(cfg, coll, opts...)
	res, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	log.Info(ctx, "reports built",
		logger.String("run_id", res.RunID),
		logger.Int("reports", len(res.Reports)),
		logger.Int("publish_failures", int(res.Failed)),
	)

	if !cfg.Serve {
		return nil
	}
	return serve(ctx, newHTTPServer(cfg, store, svc))
}

// openStore picks the serving store: redis when enabled, memory otherwise.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	if !cfg.Redis.Enabled {
		return repository.NewMemoryStore(), func() {}, nil
	}
	var opts []repository.RedisOption
	if cfg.Redis.Prefix != "" {
		opts = append(opts, repository.WithPrefix(cfg.Redis.Prefix))
	}
	if cfg.Redis.TTL > 0 {
		opts = append(opts, repository.WithTTL(cfg.Redis.TTL))
	}
	store, err := repository.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func newHTTPServer(cfg *config.Config, store repository.Store, stats api.StatsProvider) *http.Server {
	router := api.NewServer(store, cfg.MaxReportLimit,
		api.WithStats(stats),
		api.WithRoutes(swagger.Register),
	).Routes()

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	log := logger.Get()
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(ctx, "shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}
