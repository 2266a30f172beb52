package sqlstore

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenPostgres opens a postgres-backed store sharing one database across
// many layers' depgraphs, for build farms that prefer centralized storage
// over one sqlite file per layer. connString is a standard libpq
// connection string, typically sourced from the environment variable named
// by a buildconfig.StoreConfig's ConnectionEnv.
func OpenPostgres(connString string) (*Store, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	return &Store{db: db, dialect: postgresDialect}, nil
}
