package repository

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/matchrank/internal/domain/types"
)

//go:embed schema.sql
var schema string

const (
	insertBuild = `
		INSERT INTO report_builds (id, name, title, algorithm, generated_at, latest)
		VALUES ($1, $2, $3, $4, $5, $6)`
	insertEntry = `
		INSERT INTO report_entries
		(build_id, snapshot, label, as_of, faction, position, competitor, name, city,
		 rating, spread, matches, position_delta, rating_delta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
)

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresPublisher archives every report build as rows.
type PostgresPublisher struct {
	pool    pgxPool
	migrate bool
}

// OpenPostgres connects to dsn, verifies the connection and optionally
// applies the archive schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresPublisher, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	p := &PostgresPublisher{pool: pool}
	for _, opt := range opts {
		opt(p)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if p.migrate {
		if err := p.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return p, nil
}

// Migrate creates the archive tables when missing.
func (p *PostgresPublisher) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate archive schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *PostgresPublisher) Close() { p.pool.Close() }

// Publish inserts the build and all of its rows in one transaction. Reports
// without an id get a fresh one.
func (p *PostgresPublisher) Publish(ctx context.Context, r types.Report) (err error) {
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	buildID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("report %s: invalid id %q: %w", r.Name, id, err)
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, insertBuild, buildID, r.Name, r.Title, r.Algorithm, r.GeneratedAt, r.Latest); err != nil {
		return fmt.Errorf("insert build %s: %w", r.Name, err)
	}

	rows := archiveRows(r)
	if len(rows) > 0 {
		batch := &pgx.Batch{}
		for _, row := range rows {
			batch.Queue(insertEntry, buildID, row.snapshot, row.label, row.asOf, row.faction,
				row.Position, row.Key, row.Name, row.City, row.Rating, row.Spread, row.Matches,
				row.PositionDelta, row.RatingDelta)
		}
		br := tx.SendBatch(ctx, batch)
		for range rows {
			if _, err = br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert entry: %w", err)
			}
		}
		if err = br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

type archiveRow struct {
	types.Entry
	snapshot int
	label    string
	asOf     time.Time
	faction  bool
}

// archiveRows flattens every snapshot, newest first, competitor rows before
// faction rows.
func archiveRows(r types.Report) []archiveRow {
	var out []archiveRow
	for i, s := range r.Snapshots {
		for _, e := range s.Entries {
			out = append(out, archiveRow{Entry: e, snapshot: i, label: s.Label, asOf: s.AsOf})
		}
		for _, e := range s.Factions {
			out = append(out, archiveRow{Entry: e, snapshot: i, label: s.Label, asOf: s.AsOf, faction: true})
		}
	}
	return out
}
