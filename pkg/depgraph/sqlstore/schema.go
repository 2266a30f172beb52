package sqlstore

import "context"

// schema returns the CREATE TABLE statements for this store, parameterized
// only by the autoincrementing primary key syntax.
func (d dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS feature (
			id ` + d.integerPK + `,
			value TEXT NOT NULL,
			pending INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS item (
			id ` + d.integerPK + `,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			fact_kind TEXT NOT NULL,
			fact_key TEXT NOT NULL,
			path TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS provides (
			feature INTEGER NOT NULL,
			item INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS requires (
			id ` + d.integerPK + `,
			feature INTEGER NOT NULL,
			item_key TEXT NOT NULL,
			fact_kind TEXT NOT NULL,
			fact_key TEXT NOT NULL,
			ordered INTEGER NOT NULL,
			validator TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS facts (
			kind TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (kind, key)
		)`,
		`CREATE INDEX IF NOT EXISTS item_key_idx ON item(key)`,
		`CREATE INDEX IF NOT EXISTS item_path_idx ON item(path)`,
		`CREATE INDEX IF NOT EXISTS requires_feature_idx ON requires(feature)`,
		`CREATE INDEX IF NOT EXISTS requires_item_key_idx ON requires(item_key)`,
	}
}

func (s *Store) createSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
