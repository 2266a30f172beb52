package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stratum/pkg/depgraph"
	"stratum/pkg/fact"
	"stratum/pkg/feature"
	"stratum/pkg/item"
)

// Store implements depgraph.Store over a *sql.DB, sharing this file's
// query set across the sqlite and postgres backends via the dialect they
// each supply.
type Store struct {
	db      *sql.DB
	dialect dialect
}

var _ depgraph.Store = (*Store)(nil)

// ambientItems are always present in a freshly initialized store: the
// properties of the operating system every layer builds on top of.
func ambientItems() []item.Item {
	return []item.Item{
		item.PathEntry("/", item.FileTypeDirectory, 0o755),
		item.User("root"),
		item.Group("root"),
	}
}

func pathOf(key item.ItemKey) sql.NullString {
	if key.Kind != item.KeyKindPath {
		return sql.NullString{}
	}
	return sql.NullString{String: key.Path, Valid: true}
}

func factKeyOf(key item.ItemKey) (kind, fkey string) {
	if key.Kind == item.KeyKindPath {
		return string(fact.KindDirEntry), key.Path
	}
	return "", ""
}

// Init creates the schema if absent, retires features from a previous
// build, drops items whose backing fact has since disappeared, and seeds
// the ambient items.
func (s *Store) Init(ctx context.Context) error {
	if err := s.createSchema(ctx); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.dialect.rewrite(`UPDATE feature SET pending = 0`)); err != nil {
		return fmt.Errorf("retire pending features: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.dialect.rewrite(`
		DELETE FROM item WHERE id IN (
			SELECT item.id FROM item
			LEFT JOIN facts ON facts.kind = item.fact_kind AND facts.key = item.fact_key
			WHERE item.fact_kind != '' AND facts.key IS NULL
		)
	`)); err != nil {
		return fmt.Errorf("delete orphaned items: %w", err)
	}

	for id, it := range ambientItems() {
		key := it.Key()
		val, err := it.Marshal()
		if err != nil {
			return err
		}
		fkind, fkey := factKeyOf(key)
		stmt := s.dialect.insertOrIgnore(
			"item", "id, key, value, fact_kind, fact_key, path", "?, ?, ?, ?, ?, ?", "id",
		)
		if _, err := tx.ExecContext(ctx, s.dialect.rewrite(stmt), id+1, key.Marshal(), val, fkind, fkey, pathOf(key)); err != nil {
			return fmt.Errorf("insert ambient item: %w", err)
		}
	}
	return tx.Commit()
}

// AddFeature persists f's provides/requires edges as pending.
func (s *Store) AddFeature(ctx context.Context, af feature.AnalyzedFeature) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	val, err := af.Feature.Marshal()
	if err != nil {
		return 0, err
	}
	featureID, err := s.dialect.insertReturningID(ctx, tx,
		`INSERT INTO feature (value, pending) VALUES (?, ?)`, val, boolParam(true))
	if err != nil {
		return 0, fmt.Errorf("insert feature: %w", err)
	}

	for _, it := range af.Provides {
		key := it.Key()
		itemVal, err := it.Marshal()
		if err != nil {
			return 0, err
		}
		fkind, fkey := factKeyOf(key)
		itemID, err := s.dialect.insertReturningID(ctx, tx,
			`INSERT INTO item (key, value, fact_kind, fact_key, path) VALUES (?, ?, ?, ?, ?)`,
			key.Marshal(), itemVal, fkind, fkey, pathOf(key))
		if err != nil {
			return 0, fmt.Errorf("insert provides item: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.dialect.rewrite(
			`INSERT INTO provides (feature, item) VALUES (?, ?)`), featureID, itemID); err != nil {
			return 0, fmt.Errorf("insert provides edge: %w", err)
		}
	}

	for _, req := range af.Requires {
		validatorVal, err := req.Validator.Marshal()
		if err != nil {
			return 0, err
		}
		fkind, fkey := factKeyOf(req.Key)
		if _, err := tx.ExecContext(ctx, s.dialect.rewrite(
			`INSERT INTO requires (feature, item_key, fact_kind, fact_key, ordered, validator) VALUES (?, ?, ?, ?, ?, ?)`),
			featureID, req.Key.Marshal(), fkind, fkey, boolParam(req.Ordered), validatorVal); err != nil {
			return 0, fmt.Errorf("insert requires edge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return featureID, nil
}

// ItemByKey returns the most recently stored item for key.
func (s *Store) ItemByKey(ctx context.Context, key item.ItemKey) (item.Item, bool, error) {
	var val string
	err := s.db.QueryRowContext(ctx, s.dialect.rewrite(
		`SELECT value FROM item WHERE key = ? ORDER BY id DESC LIMIT 1`), key.Marshal()).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return item.Item{}, false, nil
	}
	if err != nil {
		return item.Item{}, false, err
	}
	it, err := item.UnmarshalItem(val)
	return it, true, err
}

// FactDirEntry looks up a parent-layer dir_entry fact by path.
func (s *Store) FactDirEntry(ctx context.Context, path string) (fact.Fact, bool, error) {
	var val string
	err := s.db.QueryRowContext(ctx, s.dialect.rewrite(
		`SELECT value FROM facts WHERE kind = ? AND key = ?`), string(fact.KindDirEntry), path).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return fact.Fact{}, false, nil
	}
	if err != nil {
		return fact.Fact{}, false, err
	}
	f, err := fact.Unmarshal(val)
	return f, true, err
}

// SeedFact inserts a fact observed from the parent layer's materialized
// tree, for use by build-config loaders that populate a fresh store before
// features are added.
func (s *Store) SeedFact(ctx context.Context, f fact.Fact) error {
	val, err := f.Marshal()
	if err != nil {
		return err
	}
	stmt := s.dialect.insertOrIgnore("facts", "kind, key, value", "?, ?, ?", "kind, key")
	_, err = s.db.ExecContext(ctx, s.dialect.rewrite(stmt), string(f.Kind), f.Key, val)
	return err
}

// PendingSymlinkRequires returns pending requirements whose key is a path
// tracked via a dir_entry fact, the set symlink fixup inspects.
func (s *Store) PendingSymlinkRequires(ctx context.Context) ([]depgraph.PendingRequirement, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rewrite(`
		SELECT requires.feature, requires.item_key, requires.validator, requires.ordered, feature.value
		FROM requires
		INNER JOIN feature ON feature.id = requires.feature
		WHERE feature.pending = 1 AND requires.fact_kind = ?
	`), string(fact.KindDirEntry))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPendingRequirements(rows)
}

func scanPendingRequirements(rows *sql.Rows) ([]depgraph.PendingRequirement, error) {
	var out []depgraph.PendingRequirement
	for rows.Next() {
		var featureID int64
		var keyStr, validatorStr, featureStr string
		var ordered int64
		if err := rows.Scan(&featureID, &keyStr, &validatorStr, &ordered, &featureStr); err != nil {
			return nil, err
		}
		key, err := item.UnmarshalKey(keyStr)
		if err != nil {
			return nil, err
		}
		validator, err := item.UnmarshalValidator(validatorStr)
		if err != nil {
			return nil, err
		}
		f, err := feature.Unmarshal(featureStr)
		if err != nil {
			return nil, err
		}
		out = append(out, depgraph.PendingRequirement{
			FeatureID: featureID,
			Feature:   f,
			Key:       key,
			Validator: validator,
			Ordered:   ordered != 0,
		})
	}
	return out, rows.Err()
}

// RepointRequirement retargets every requires row for (featureID, oldKey)
// at newKey.
func (s *Store) RepointRequirement(ctx context.Context, featureID int64, oldKey, newKey item.ItemKey) error {
	fkind, fkey := factKeyOf(newKey)
	_, err := s.db.ExecContext(ctx, s.dialect.rewrite(
		`UPDATE requires SET item_key = ?, fact_kind = ?, fact_key = ? WHERE feature = ? AND item_key = ?`),
		newKey.Marshal(), fkind, fkey, featureID, oldKey.Marshal())
	return err
}

// AddSymlinkTargetRequirement inserts an additional requirement row
// against a symlink's resolved target.
func (s *Store) AddSymlinkTargetRequirement(ctx context.Context, featureID int64, newKey item.ItemKey, validator item.Validator, ordered bool) error {
	validatorVal, err := validator.Marshal()
	if err != nil {
		return err
	}
	fkind, fkey := factKeyOf(newKey)
	_, err = s.db.ExecContext(ctx, s.dialect.rewrite(
		`INSERT INTO requires (feature, item_key, fact_kind, fact_key, ordered, validator) VALUES (?, ?, ?, ?, ?, ?)`),
		featureID, newKey.Marshal(), fkind, fkey, boolParam(ordered), validatorVal)
	return err
}

// RelaxToExists replaces the validator on (featureID, key) with a bare
// existence check.
func (s *Store) RelaxToExists(ctx context.Context, featureID int64, key item.ItemKey) error {
	val, err := item.Exists().Marshal()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.dialect.rewrite(
		`UPDATE requires SET validator = ? WHERE feature = ? AND item_key = ?`), val, featureID, key.Marshal())
	return err
}

// FirstMissingDependency returns the first pending requirement satisfied
// by neither a stored item nor a fact.
func (s *Store) FirstMissingDependency(ctx context.Context) (depgraph.PendingRequirement, bool, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rewrite(`
		SELECT requires.feature, requires.item_key, requires.validator, requires.ordered, feature.value
		FROM feature
		INNER JOIN requires ON feature.id = requires.feature
		LEFT JOIN item ON item.key = requires.item_key
		LEFT JOIN facts ON facts.kind = requires.fact_kind AND facts.key = requires.fact_key
		WHERE feature.pending = 1 AND item.id IS NULL AND facts.key IS NULL
		LIMIT 1
	`))
	if err != nil {
		return depgraph.PendingRequirement{}, false, err
	}
	defer rows.Close()
	reqs, err := scanPendingRequirements(rows)
	if err != nil {
		return depgraph.PendingRequirement{}, false, err
	}
	if len(reqs) == 0 {
		return depgraph.PendingRequirement{}, false, nil
	}
	return reqs[0], true, nil
}

// InvalidDependencies evaluates every pending requirement whose key
// matches a stored item (fact-backed requirements are trusted without
// re-validation, matching the reference implementation) against its
// validator.
func (s *Store) InvalidDependencies(ctx context.Context, layers item.LayerLookup) ([]depgraph.InvalidDep, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rewrite(`
		SELECT item.value, requires.validator, feature.value
		FROM feature
		INNER JOIN requires ON feature.id = requires.feature
		INNER JOIN item ON requires.item_key = item.key
		WHERE feature.pending = 1
	`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []depgraph.InvalidDep
	for rows.Next() {
		var itemStr, validatorStr, featureStr string
		if err := rows.Scan(&itemStr, &validatorStr, &featureStr); err != nil {
			return nil, err
		}
		it, err := item.UnmarshalItem(itemStr)
		if err != nil {
			return nil, err
		}
		v, err := item.UnmarshalValidator(validatorStr)
		if err != nil {
			return nil, err
		}
		f, err := feature.Unmarshal(featureStr)
		if err != nil {
			return nil, err
		}
		ok, err := v.Satisfies(it, true, layers)
		if err != nil {
			return nil, err
		}
		if !ok {
			out = append(out, depgraph.InvalidDep{Item: it, Validator: v, RequiredBy: f})
		}
	}
	return out, rows.Err()
}

// Conflicts returns one ConflictGroup per key provided by more than one
// item row.
func (s *Store) Conflicts(ctx context.Context) ([]depgraph.ConflictGroup, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rewrite(`
		SELECT item.key, item.value, feature.value
		FROM item
		INNER JOIN provides ON provides.item = item.id
		INNER JOIN feature ON feature.id = provides.feature
		WHERE item.key IN (SELECT key FROM item GROUP BY key HAVING COUNT(*) > 1)
		ORDER BY item.key
	`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type accum struct {
		key      item.ItemKey
		items    map[string]item.Item
		features map[string]feature.Feature
	}
	order := []string{}
	byKey := map[string]*accum{}

	for rows.Next() {
		var keyStr, itemStr, featureStr string
		if err := rows.Scan(&keyStr, &itemStr, &featureStr); err != nil {
			return nil, err
		}
		key, err := item.UnmarshalKey(keyStr)
		if err != nil {
			return nil, err
		}
		it, err := item.UnmarshalItem(itemStr)
		if err != nil {
			return nil, err
		}
		f, err := feature.Unmarshal(featureStr)
		if err != nil {
			return nil, err
		}
		a, ok := byKey[keyStr]
		if !ok {
			a = &accum{key: key, items: map[string]item.Item{}, features: map[string]feature.Feature{}}
			byKey[keyStr] = a
			order = append(order, keyStr)
		}
		a.items[itemStr] = it
		a.features[featureStr] = f
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]depgraph.ConflictGroup, 0, len(order))
	for _, k := range order {
		a := byKey[k]
		g := depgraph.ConflictGroup{Key: a.key}
		for _, it := range a.items {
			g.Items = append(g.Items, it)
		}
		for _, f := range a.features {
			g.Features = append(g.Features, f)
		}
		out = append(out, g)
	}
	return out, nil
}

// PendingFeatureGraph returns every pending feature's provides/requires
// edges for the topological sort.
func (s *Store) PendingFeatureGraph(ctx context.Context) ([]depgraph.PendingFeatureEdges, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rewrite(
		`SELECT id, value FROM feature WHERE pending = 1`))
	if err != nil {
		return nil, err
	}
	var edges []depgraph.PendingFeatureEdges
	for rows.Next() {
		var id int64
		var val string
		if err := rows.Scan(&id, &val); err != nil {
			rows.Close()
			return nil, err
		}
		f, err := feature.Unmarshal(val)
		if err != nil {
			rows.Close()
			return nil, err
		}
		edges = append(edges, depgraph.PendingFeatureEdges{FeatureID: id, Feature: f})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range edges {
		provides, err := s.providedKeys(ctx, edges[i].FeatureID)
		if err != nil {
			return nil, err
		}
		edges[i].Provides = provides

		requires, err := s.requireEdges(ctx, edges[i].FeatureID)
		if err != nil {
			return nil, err
		}
		edges[i].Requires = requires
	}
	return edges, nil
}

func (s *Store) providedKeys(ctx context.Context, featureID int64) ([]item.ItemKey, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rewrite(
		`SELECT item.key FROM provides INNER JOIN item ON item.id = provides.item WHERE provides.feature = ?`), featureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []item.ItemKey
	for rows.Next() {
		var keyStr string
		if err := rows.Scan(&keyStr); err != nil {
			return nil, err
		}
		key, err := item.UnmarshalKey(keyStr)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *Store) requireEdges(ctx context.Context, featureID int64) ([]depgraph.RequireEdge, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rewrite(
		`SELECT item_key, ordered FROM requires WHERE feature = ?`), featureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []depgraph.RequireEdge
	for rows.Next() {
		var keyStr string
		var ordered int64
		if err := rows.Scan(&keyStr, &ordered); err != nil {
			return nil, err
		}
		key, err := item.UnmarshalKey(keyStr)
		if err != nil {
			return nil, err
		}
		out = append(out, depgraph.RequireEdge{Key: key, Ordered: ordered != 0})
	}
	return out, rows.Err()
}

// ItemsUnderPath returns every stored item at or under pathPrefix, keyed
// by its path relative to pathPrefix.
func (s *Store) ItemsUnderPath(ctx context.Context, pathPrefix string) (map[string]item.Item, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rewrite(
		`SELECT path, value FROM item WHERE path = ? OR path LIKE ?`), pathPrefix, pathPrefix+"/%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]item.Item{}
	for rows.Next() {
		var p, val string
		if err := rows.Scan(&p, &val); err != nil {
			return nil, err
		}
		rel, ok := depgraph.UnderPath(pathPrefix, p)
		if !ok {
			continue
		}
		it, err := item.UnmarshalItem(val)
		if err != nil {
			return nil, err
		}
		out[rel] = it
	}
	return out, rows.Err()
}

// AllItems returns the most recently stored item for every distinct key.
func (s *Store) AllItems(ctx context.Context) (map[item.ItemKey]item.Item, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rewrite(
		`SELECT key, value FROM item i WHERE id = (SELECT MAX(id) FROM item WHERE key = i.key)`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[item.ItemKey]item.Item{}
	for rows.Next() {
		var keyStr, val string
		if err := rows.Scan(&keyStr, &val); err != nil {
			return nil, err
		}
		key, err := item.UnmarshalKey(keyStr)
		if err != nil {
			return nil, err
		}
		it, err := item.UnmarshalItem(val)
		if err != nil {
			return nil, err
		}
		out[key] = it
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
