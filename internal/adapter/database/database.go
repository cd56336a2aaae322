// Package database implements the database-system adapter for real mode:
// db_query actions and db_state verifications run SQL against the terminal's
// Postgres instance through a pgx connection pool.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gantrylabs/gantry/internal/adapter"
	"github.com/gantrylabs/gantry/internal/flow"
)

const defaultTimeout = 10 * time.Second

// Adapter runs flow SQL against Postgres. SQL-level failures (constraint
// violations, bad references) are expected business failures; connection
// faults are errors.
type Adapter struct {
	dsn     string
	timeout time.Duration
	pool    *pgxpool.Pool
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithTimeout overrides the per-query timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// New creates a database adapter for the given DSN. The pool is opened in
// Initialize, not here.
func New(dsn string, opts ...Option) *Adapter {
	a := &Adapter{dsn: dsn, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) System() flow.System { return flow.SystemDatabase }

// Initialize opens the connection pool and verifies connectivity.
func (a *Adapter) Initialize(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, a.dsn)
	if err != nil {
		return fmt.Errorf("database: opening pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return fmt.Errorf("database: ping failed: %w", err)
	}

	a.pool = pool
	return nil
}

// ExecuteAction runs one db_query action. Single-row results are captured as
// a flat map so verifications can address columns directly ("row.status");
// multi-row results are captured as a slice of maps.
func (a *Adapter) ExecuteAction(ctx context.Context, action flow.Action, _ *adapter.RunContext) (adapter.ActionResult, error) {
	if a.pool == nil {
		return adapter.ActionResult{}, errors.New("database: pool not initialized")
	}

	started := time.Now()
	queryCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	rows, err := a.query(queryCtx, action.Query, action.Args)
	result := adapter.ActionResult{
		Name:     action.Name,
		Success:  err == nil,
		Duration: time.Since(started),
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// The database rejected the statement; that's a business
			// failure the flow may be probing for.
			result.Error = fmt.Sprintf("query failed (%s): %s", pgErr.Code, pgErr.Message)
			return result, nil
		}
		return adapter.ActionResult{}, fmt.Errorf("database: action %q: %w", action.Name, err)
	}

	if action.Capture != "" {
		var value any
		switch len(rows) {
		case 0:
			value = nil
		case 1:
			value = rows[0]
		default:
			value = rows
		}
		result.Captured = map[string]any{action.Capture: value}
	}
	return result, nil
}

// Verify runs a db_state verification's query and applies the operator. For
// count operators the observed value is the full row set; otherwise it is
// the first column of the first row.
func (a *Adapter) Verify(ctx context.Context, v flow.Verification, rctx *adapter.RunContext) adapter.VerificationResult {
	if v.Type == flow.VerifyResponse {
		return adapter.EvaluateCaptured(v, rctx)
	}
	if v.Type != flow.VerifyDBState {
		return adapter.VerificationResult{
			Description:   v.Description,
			FailureReason: fmt.Sprintf("database adapter cannot evaluate %q verifications", v.Type),
		}
	}
	if a.pool == nil {
		return adapter.VerificationResult{
			Description:   v.Description,
			FailureReason: "pool not initialized",
		}
	}

	queryCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	rows, err := a.query(queryCtx, v.Query, v.Args)
	if err != nil {
		return adapter.VerificationResult{
			Description:   v.Description,
			FailureReason: fmt.Sprintf("query failed: %v", err),
		}
	}

	observed, present := observedValue(v.Operator, rows)
	return adapter.EvaluateOperator(v, observed, present)
}

// Cleanup closes the pool. Safe to call when Initialize failed.
func (a *Adapter) Cleanup(_ context.Context) error {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return nil
}

// query runs sql and collects every row into a column-name-keyed map.
func (a *Adapter) query(ctx context.Context, sql string, args []any) ([]map[string]any, error) {
	rows, err := a.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, pgx.RowToMap)
}

// observedValue picks what the operator compares against: the row set for
// count operators, the first column of the first row otherwise.
func observedValue(op flow.Operator, rows []map[string]any) (any, bool) {
	switch op {
	case flow.OpCountEquals, flow.OpCountGreater, flow.OpCountLess:
		return rows, true
	}
	if len(rows) == 0 {
		return nil, false
	}
	first := rows[0]
	if len(first) == 1 {
		for _, v := range first {
			return v, true
		}
	}
	return first, true
}
