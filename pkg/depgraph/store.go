package depgraph

import (
	"context"

	"stratum/pkg/fact"
	"stratum/pkg/feature"
	"stratum/pkg/item"
)

// PendingRequirement is one row of the requires table joined back to its
// owning feature, as returned by the queries that drive symlink fixup and
// verification.
type PendingRequirement struct {
	FeatureID int64
	Feature   feature.Feature
	Key       item.ItemKey
	Validator item.Validator
	Ordered   bool
}

// InvalidDep pairs an item that exists with the validator, and requiring
// feature, that it failed to satisfy.
type InvalidDep struct {
	Item       item.Item
	Validator  item.Validator
	RequiredBy feature.Feature
}

// ConflictGroup collects every distinct item value stored for a single key
// that is provided by more than one item row, and the distinct features
// responsible for them. Items/Features are deduplicated by value (two
// equivalent items, or two features with identical label/kind/data,
// collapse to one entry); the caller decides whether the remaining
// distinctness is tolerable.
type ConflictGroup struct {
	Key      item.ItemKey
	Items    []item.Item
	Features []feature.Feature
}

// PendingFeatureEdges is enough information about one pending feature to
// run the deterministic topological sort: its own identity, the item keys
// it provides, and the (key, ordered) pairs it requires.
type PendingFeatureEdges struct {
	FeatureID int64
	Feature   feature.Feature
	Provides  []item.ItemKey
	Requires  []RequireEdge
}

// RequireEdge is one edge out of a pending feature toward a key it
// requires, with whether that edge imposes an execution-order constraint.
type RequireEdge struct {
	Key     item.ItemKey
	Ordered bool
}

// Store is the persistence interface a GraphBuilder and Graph need: an
// indexed key/value item table, a requires edge table keyed by feature,
// and a facts table holding the parent layer's scanned filesystem tree.
// Any backend offering transactions, indexed lookup by key, and simple
// counting aggregates can implement it; pkg/depgraph/sqlstore provides the
// sqlite and postgres backends this module ships.
type Store interface {
	// Init prepares a fresh or reopened store for a new build: creates the
	// schema if absent, marks all previously-pending features as no longer
	// pending (they belong to a completed parent build), deletes items
	// whose backing fact has since been removed, and inserts the ambient
	// items (root path, root user, root group) if not already present.
	Init(ctx context.Context) error

	// AddFeature records a feature along with its provides and requires
	// edges, all pending (i.e. part of the build currently in progress).
	AddFeature(ctx context.Context, af feature.AnalyzedFeature) (featureID int64, err error)

	// ItemByKey looks up the most recently stored item for a key,
	// regardless of pending state.
	ItemByKey(ctx context.Context, key item.ItemKey) (item.Item, bool, error)

	// FactDirEntry looks up a parent-layer directory entry fact by path.
	FactDirEntry(ctx context.Context, path string) (fact.Fact, bool, error)

	// PendingSymlinkRequires returns every requirement of a pending feature
	// whose key is a path, for the symlink fixup pass.
	PendingSymlinkRequires(ctx context.Context) ([]PendingRequirement, error)

	// RepointRequirement updates every requires row matching (featureID,
	// oldKey) to point at newKey instead, used when a symlink's target
	// resolves directly (no intervening symlink item to preserve).
	RepointRequirement(ctx context.Context, featureID int64, oldKey, newKey item.ItemKey) error

	// AddSymlinkTargetRequirement inserts an additional requirement row
	// against a symlink's resolved target, used when the original
	// requirement pointed directly at a symlink item that must itself be
	// preserved.
	AddSymlinkTargetRequirement(ctx context.Context, featureID int64, newKey item.ItemKey, validator item.Validator, ordered bool) error

	// RelaxToExists replaces a requirement's validator with a bare
	// existence check, used on the original symlink requirement once its
	// target has its own requirement row.
	RelaxToExists(ctx context.Context, featureID int64, key item.ItemKey) error

	// FirstMissingDependency returns the first pending requirement whose
	// key matches neither a stored item nor a parent-layer fact, or ok=false
	// if every pending requirement is satisfiable.
	FirstMissingDependency(ctx context.Context) (req PendingRequirement, ok bool, err error)

	// InvalidDependencies returns every pending requirement whose item
	// exists but fails the requirement's validator, evaluated with layers
	// as the cross-layer resolver for item_in_layer validators.
	InvalidDependencies(ctx context.Context, layers item.LayerLookup) ([]InvalidDep, error)

	// Conflicts returns one ConflictGroup for every key with more than one
	// item row providing it (whether or not those rows are equivalent;
	// the caller applies the directory/identical-feature tolerances).
	Conflicts(ctx context.Context) ([]ConflictGroup, error)

	// PendingFeatureGraph returns every pending feature along with its
	// provides/requires edges, for the topological sort.
	PendingFeatureGraph(ctx context.Context) ([]PendingFeatureEdges, error)

	// ItemsUnderPath returns every stored item whose path equals pathPrefix
	// or is nested under it, keyed by the path relative to pathPrefix
	// (empty string for pathPrefix itself).
	ItemsUnderPath(ctx context.Context, pathPrefix string) (map[string]item.Item, error)

	// AllItems returns the most recently stored item for every key present
	// in the store, for Graph's items() query surface.
	AllItems(ctx context.Context) (map[item.ItemKey]item.Item, error)

	// Close releases any resources (connections, file handles) held by the
	// store.
	Close() error
}
