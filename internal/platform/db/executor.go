package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Conn is the part of a leased connection the executor relies on.
type Conn interface {
	TxBeginner
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Leaser hands out connections. The release func must be called exactly once.
type Leaser interface {
	Lease(ctx context.Context) (Conn, func(), error)
}

type poolLeaser struct {
	pool *pgxpool.Pool
}

func (l poolLeaser) Lease(ctx context.Context) (Conn, func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return conn, conn.Release, nil
}

// Result describes the outcome of a statement run through Exec.
type Result struct {
	RowsAffected int64
	// LastInsertID is the first column of the last row returned by the
	// statement (typically "RETURNING id"); zero when nothing was returned.
	LastInsertID int64
}

// Executor runs parameterised statements on connections leased from a pool.
// Named parameters use pgx's @name syntax.
type Executor struct {
	leaser Leaser
}

// NewExecutor wires an executor on top of a pgx pool.
func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{leaser: poolLeaser{pool: pool}}
}

// Query runs a row-returning statement and returns the rows, in the order the
// database produced them, as column name to value maps.
func (e *Executor) Query(ctx context.Context, sql string, args pgx.NamedArgs) ([]map[string]any, error) {
	conn, release, err := e.leaser.Lease(ctx)
	if err != nil {
		return nil, fmt.Errorf("platform/db: acquire: %w", err)
	}
	defer release()

	rows, err := conn.Query(ctx, sql, namedArgs(args)...)
	if err != nil {
		return nil, fmt.Errorf("platform/db: query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("platform/db: read row: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, field := range fields {
			if i < len(values) {
				row[field.Name] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("platform/db: query: %w", err)
	}
	return out, nil
}

// Exec runs a write statement. With zero or one argument map the statement
// is autocommitted on its own; with several maps it is applied once per map
// inside a single transaction.
func (e *Executor) Exec(ctx context.Context, sql string, args ...pgx.NamedArgs) (Result, error) {
	conn, release, err := e.leaser.Lease(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("platform/db: acquire: %w", err)
	}
	defer release()

	if len(args) <= 1 {
		var single pgx.NamedArgs
		if len(args) == 1 {
			single = args[0]
		}
		res, err := runStatement(ctx, conn, sql, single)
		if err != nil {
			return Result{}, fmt.Errorf("platform/db: exec: %w", err)
		}
		return res, nil
	}

	var total Result
	err = WithTx(ctx, conn, func(tx pgx.Tx) error {
		for i, a := range args {
			res, err := runStatement(ctx, tx, sql, a)
			if err != nil {
				return fmt.Errorf("platform/db: exec batch item %d: %w", i, err)
			}
			total.RowsAffected += res.RowsAffected
			if res.LastInsertID != 0 {
				total.LastInsertID = res.LastInsertID
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return total, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func runStatement(ctx context.Context, q querier, sql string, args pgx.NamedArgs) (Result, error) {
	rows, err := q.Query(ctx, sql, namedArgs(args)...)
	if err != nil {
		return Result{}, err
	}
	var res Result
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			rows.Close()
			return Result{}, err
		}
		if len(values) > 0 {
			if id, ok := asInt64(values[0]); ok {
				res.LastInsertID = id
			}
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	res.RowsAffected = rows.CommandTag().RowsAffected()
	return res, nil
}

func namedArgs(args pgx.NamedArgs) []any {
	if len(args) == 0 {
		return nil
	}
	return []any{args}
}

func asInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int32:
		return int64(val), true
	case int16:
		return int64(val), true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}
