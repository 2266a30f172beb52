// Package sqlstore implements depgraph.Store over database/sql, sharing a
// single dialect-parameterized schema and query set across a sqlite
// backend (modernc.org/sqlite, one store file per layer) and a postgres
// backend (jackc/pgx/v5/stdlib, many layers' graphs in one shared
// database). Only autoincrement syntax, insert-returning-id technique and
// insert-or-ignore syntax differ between the two; every query is written
// once, in store.go, with
// "?" placeholders rewritten to "$N" for postgres at call time.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// dialect captures the handful of ways sqlite and postgres differ for this
// store's purposes.
type dialect struct {
	name string

	// integerPK is the column definition for an autoincrementing integer
	// primary key.
	integerPK string

	// supportsLastInsertID is true when sql.Result.LastInsertId() returns
	// the inserted row's id (sqlite); when false, inserts use a RETURNING
	// id clause instead (postgres).
	supportsLastInsertID bool
}

var sqliteDialect = dialect{
	name:                 "sqlite",
	integerPK:            "INTEGER PRIMARY KEY AUTOINCREMENT",
	supportsLastInsertID: true,
}

var postgresDialect = dialect{
	name:                 "postgres",
	integerPK:            "BIGSERIAL PRIMARY KEY",
	supportsLastInsertID: false,
}

// rewrite converts a query written with "?" placeholders into the
// dialect's native placeholder syntax.
func (d dialect) rewrite(query string) string {
	if d.supportsLastInsertID {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// insertReturningID executes an INSERT statement (without a trailing
// RETURNING/semicolon) and returns the inserted row's id, using whichever
// technique the dialect supports.
func (d dialect) insertReturningID(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	if d.supportsLastInsertID {
		res, err := tx.ExecContext(ctx, d.rewrite(query), args...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
	var id int64
	row := tx.QueryRowContext(ctx, d.rewrite(query)+" RETURNING id", args...)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// insertOrIgnore builds an insert that silently does nothing if a row
// with the same conflictCols already exists.
func (d dialect) insertOrIgnore(table, columns, values, conflictCols string) string {
	if d.supportsLastInsertID {
		return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", table, columns, values)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING", table, columns, values, conflictCols)
}

// boolParam converts a Go bool into the integer 0/1 this store persists
// booleans as, kept uniform across dialects rather than relying on each
// driver's own bool<->column conversion.
func boolParam(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
