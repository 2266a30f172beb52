package depgraph

import (
	"context"
	"fmt"

	"stratum/pkg/feature"
	"stratum/pkg/item"
)

// BuilderState tracks a GraphBuilder's position in its Open -> Building ->
// Built lifecycle. Open accepts AddFeature calls; Building is entered for
// the duration of Build's internal phases; Built (or an error) ends the
// builder's usable lifetime.
type BuilderState int

const (
	StateOpen BuilderState = iota
	StateBuilding
	StateBuilt
)

func (s BuilderState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateBuilding:
		return "building"
	case StateBuilt:
		return "built"
	default:
		return "unknown"
	}
}

// GraphBuilder accumulates features into a Store and, on Build, runs
// symlink fixup, three-phase verification and topological sort before
// handing back a read-only Graph.
type GraphBuilder struct {
	store   Store
	layers  LayerOpener
	state   BuilderState
}

// NewBuilder opens (or reopens) store for a new round of feature
// additions. layers resolves other layers' labels for Clone/Extract and
// item_in_layer validators; it may be nil if this layer's features never
// reference another layer.
func NewBuilder(ctx context.Context, store Store, layers LayerOpener) (*GraphBuilder, error) {
	if err := store.Init(ctx); err != nil {
		return nil, &StorageError{Err: fmt.Errorf("init: %w", err)}
	}
	return &GraphBuilder{store: store, layers: layers, state: StateOpen}, nil
}

// AddFeature analyzes f (consulting layers for Clone) and persists
// its provides/requires edges as pending. It may only be called while the
// builder is Open.
func (b *GraphBuilder) AddFeature(ctx context.Context, f feature.Feature) (*GraphBuilder, error) {
	if b.state != StateOpen {
		return b, fmt.Errorf("depgraph: AddFeature called in state %s, want %s", b.state, StateOpen)
	}
	var resolver feature.LayerResolver
	if b.layers != nil {
		resolver = layerResolverFunc(func(label, srcPath string) (map[string]item.Item, error) {
			g, err := b.layers.Open(label)
			if err != nil {
				return nil, err
			}
			return g.ItemsUnderPath(ctx, srcPath)
		})
	}
	af, err := feature.Analyze(f, resolver)
	if err != nil {
		return b, err
	}
	if _, err := b.store.AddFeature(ctx, af); err != nil {
		return b, &StorageError{Err: fmt.Errorf("add feature %q: %w", f.Label, err)}
	}
	return b, nil
}

type layerResolverFunc func(label, srcPath string) (map[string]item.Item, error)

func (f layerResolverFunc) ItemsUnderPath(label, srcPath string) (map[string]item.Item, error) {
	return f(label, srcPath)
}

// layerLookup adapts a LayerOpener to item.LayerLookup for validator
// evaluation during verification.
type layerLookup struct {
	ctx    context.Context
	opener LayerOpener
}

func (l layerLookup) ItemInLayer(layerLabel string, key item.ItemKey) (item.Item, bool, error) {
	if l.opener == nil {
		return item.Item{}, false, fmt.Errorf("item_in_layer validator requires a layer resolver")
	}
	g, err := l.opener.Open(layerLabel)
	if err != nil {
		return item.Item{}, false, err
	}
	return g.ItemByKey(l.ctx, key)
}

// Build runs symlink fixup, verification and the topological sort,
// returning the ordered read-only Graph or the first error encountered.
// It consumes the builder: Build may only be called once, while Open.
func (b *GraphBuilder) Build(ctx context.Context) (*Graph, error) {
	if b.state != StateOpen {
		return nil, fmt.Errorf("depgraph: Build called in state %s, want %s", b.state, StateOpen)
	}
	b.state = StateBuilding

	if err := b.fixupSymlinks(ctx); err != nil {
		return nil, err
	}
	if err := b.verifyNoMissingDeps(ctx); err != nil {
		return nil, err
	}
	if err := b.verifyNoInvalidDeps(ctx); err != nil {
		return nil, err
	}
	if err := b.verifyNoConflicts(ctx); err != nil {
		return nil, err
	}
	edges, err := b.store.PendingFeatureGraph(ctx)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	ordered, err := toposort(edges)
	if err != nil {
		return nil, err
	}

	b.state = StateBuilt
	return &Graph{store: b.store, layers: b.layers, order: ordered}, nil
}

func (b *GraphBuilder) fixupSymlinks(ctx context.Context) error {
	reqs, err := b.store.PendingSymlinkRequires(ctx)
	if err != nil {
		return &StorageError{Err: err}
	}
	for _, req := range reqs {
		canonical, ok, err := resolve(ctx, b.store, req.Key.Path)
		if err != nil {
			return &StorageError{Err: err}
		}
		if !ok {
			// Resolution failed (cycle or excessive depth): leave the
			// original requirement untouched, as the caller has no better
			// option than the path as originally declared.
			continue
		}
		canonicalKey := item.PathKey(canonical)
		if canonicalKey == req.Key {
			continue
		}

		bareItem, found, err := b.store.ItemByKey(ctx, req.Key)
		if err != nil {
			return &StorageError{Err: err}
		}
		if found && bareItem.Kind == item.KindPathSymlink {
			if err := b.store.AddSymlinkTargetRequirement(ctx, req.FeatureID, canonicalKey, req.Validator, req.Ordered); err != nil {
				return &StorageError{Err: err}
			}
			if err := b.store.RelaxToExists(ctx, req.FeatureID, req.Key); err != nil {
				return &StorageError{Err: err}
			}
		} else {
			if err := b.store.RepointRequirement(ctx, req.FeatureID, req.Key, canonicalKey); err != nil {
				return &StorageError{Err: err}
			}
		}
	}
	return nil
}

func (b *GraphBuilder) verifyNoMissingDeps(ctx context.Context) error {
	req, found, err := b.store.FirstMissingDependency(ctx)
	if err != nil {
		return &StorageError{Err: err}
	}
	if found {
		return &MissingItemError{Key: req.Key, RequiredBy: req.Feature}
	}
	return nil
}

func (b *GraphBuilder) verifyNoInvalidDeps(ctx context.Context) error {
	lookup := layerLookup{ctx: ctx, opener: b.layers}
	invalid, err := b.store.InvalidDependencies(ctx, lookup)
	if err != nil {
		return &StorageError{Err: err}
	}
	if len(invalid) > 0 {
		first := invalid[0]
		return &UnsatisfiedError{Item: first.Item, Validator: first.Validator, RequiredBy: first.RequiredBy}
	}
	return nil
}

func (b *GraphBuilder) verifyNoConflicts(ctx context.Context) error {
	groups, err := b.store.Conflicts(ctx)
	if err != nil {
		return &StorageError{Err: err}
	}
	for _, g := range groups {
		if tolerateDirectoryConflict(g) || tolerateIdenticalFeatureData(g) {
			continue
		}
		return &ConflictError{Key: g.Key, Items: g.Items, Features: g.Features}
	}
	return nil
}

// tolerateDirectoryConflict allows two or more distinct features to
// provide the same directory even when their item values differ, as long
// as every one of them is a directory entry: mode (and any other
// metadata) is allowed to differ between them, since re-declaring a
// directory with a different mode is not the kind of authoring mistake
// conflict detection exists to catch.
func tolerateDirectoryConflict(g ConflictGroup) bool {
	if len(g.Items) == 0 {
		return false
	}
	for _, it := range g.Items {
		if it.Kind != item.KindPathEntry || it.Entry.FileType != item.FileTypeDirectory {
			return false
		}
	}
	return true
}

// tolerateIdenticalFeatureData allows features with byte-identical data
// payloads to "conflict" over the same item, since they do the exact same
// thing and are not worth flagging as an authoring mistake.
func tolerateIdenticalFeatureData(g ConflictGroup) bool {
	if len(g.Features) == 0 {
		return false
	}
	first := g.Features[0]
	for _, f := range g.Features[1:] {
		if !feature.DataEqual(first, f) {
			return false
		}
	}
	return true
}
