// Package postgres holds the PostgreSQL-backed stores for vault state.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pooled-vault/internal/observability"
)

// Pool wraps pgxpool.Pool so queries can be intercepted for metrics.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects to PostgreSQL and verifies the connection.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close releases all pooled connections.
func (p *Pool) Close() {
	p.Pool.Close()
}

// Exec runs a statement through the pool, recording query metrics.
func (p *Pool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	start := time.Now()
	tag, err := p.Pool.Exec(ctx, sql, args...)
	observability.RecordDBQuery("postgres", "exec", time.Since(start).Seconds(), err)
	return tag, err
}

// Query runs a multi-row query through the pool, recording query metrics.
func (p *Pool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	start := time.Now()
	rows, err := p.Pool.Query(ctx, sql, args...)
	observability.RecordDBQuery("postgres", "query", time.Since(start).Seconds(), err)
	return rows, err
}

// QueryRow runs a single-row query through the pool. pgx defers
// execution until Scan, so the metric is recorded there.
func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return timedRow{Row: p.Pool.QueryRow(ctx, sql, args...), start: time.Now()}
}

type timedRow struct {
	pgx.Row
	start time.Time
}

// Scan records the query metric once the row is consumed. ErrNoRows is
// a normal outcome for absent-reads-as-zero lookups, not a query error.
func (r timedRow) Scan(dest ...any) error {
	err := r.Row.Scan(dest...)
	metricErr := err
	if errors.Is(err, pgx.ErrNoRows) {
		metricErr = nil
	}
	observability.RecordDBQuery("postgres", "query_row", time.Since(r.start).Seconds(), metricErr)
	return err
}

// unique_violation, Appendix A of the PostgreSQL manual.
const uniqueViolationCode = "23505"

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// isNoRows reports whether err means the query matched nothing.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// parseNumeric converts a NUMERIC column read back as text into an Int.
// Share and asset amounts are stored as NUMERIC(78, 0), wide enough for
// any 256-bit value, and travel to and from the database as strings.
func parseNumeric(s string) (math.Int, error) {
	v, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("malformed numeric %q", s)
	}
	return v, nil
}
