package depgraph

import (
	"context"
	"errors"

	"stratum/pkg/feature"
	"stratum/pkg/item"
)

// LayerOpener resolves a build-system label to the already-built Graph for
// that layer, the only way a feature in one layer may consult another
// layer's contents (via Clone/Extract's src_layer, or an item_in_layer
// validator).
type LayerOpener interface {
	Open(label string) (*Graph, error)
}

// Graph is a built, read-only depgraph: every feature has been verified to
// have its requirements satisfied and the whole set is free of conflicts
// and cycles.
type Graph struct {
	store  Store
	layers LayerOpener
	order  []feature.Feature
}

// PendingFeatures returns every feature that was added to this build, in
// the deterministic topological order computed by Build: dependencies
// before the features that require them, ties broken by feature label.
func (g *Graph) PendingFeatures() []feature.Feature {
	return append([]feature.Feature(nil), g.order...)
}

// ItemByKey looks up a stored item by key; the builder's item_in_layer
// lookup calls it on the opened layer's Graph.
func (g *Graph) ItemByKey(ctx context.Context, key item.ItemKey) (item.Item, bool, error) {
	return g.store.ItemByKey(ctx, key)
}

// GetItem is an alias for ItemByKey matching the query surface's naming.
func (g *Graph) GetItem(ctx context.Context, key item.ItemKey) (item.Item, bool, error) {
	return g.store.ItemByKey(ctx, key)
}

// Items returns every item in the built graph, keyed by ItemKey.
func (g *Graph) Items(ctx context.Context) (map[item.ItemKey]item.Item, error) {
	return g.store.AllItems(ctx)
}

// ItemInLayer implements item.LayerLookup by opening the named layer (via
// this graph's LayerOpener) and looking up key in it.
func (g *Graph) ItemInLayer(layerLabel string, key item.ItemKey) (item.Item, bool, error) {
	if g.layers == nil {
		return item.Item{}, false, errNoLayerOpener
	}
	other, err := g.layers.Open(layerLabel)
	if err != nil {
		return item.Item{}, false, err
	}
	return other.store.ItemByKey(context.Background(), key)
}

// ItemsUnderPath returns every item in this already-built layer at or
// under srcPath, keyed by its path relative to srcPath. The builder wraps
// it to serve as a feature.LayerResolver.
func (g *Graph) ItemsUnderPath(ctx context.Context, srcPath string) (map[string]item.Item, error) {
	return g.store.ItemsUnderPath(ctx, srcPath)
}

// Close releases the underlying store's resources.
func (g *Graph) Close() error {
	return g.store.Close()
}

var errNoLayerOpener = errors.New("graph has no layer opener configured")
