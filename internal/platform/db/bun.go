// Package db wires the relational store: a bun.DB over the pgx stdlib
// driver, schema migrations, and the per-request persistence session.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/extra/bundebug"
)

// Open connects to PostgreSQL and returns a bun.DB handle.
func Open(ctx context.Context, dsn string, debug bool) (*bun.DB, error) {
	sqldb, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: open: %w", err)
	}

	bdb := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		bdb.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if err := bdb.PingContext(ctx); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("platform/db: ping: %w", err)
	}

	return bdb, nil
}
