package feature

import "stratum/pkg/item"

// LayerResolver gives a feature's provides() function read access to
// another, already-built layer's depgraph — the only external state the
// provides/requires contract allows a feature to consult. The depgraph
// builder supplies it by adapting a LayerOpener and Graph.ItemsUnderPath.
type LayerResolver interface {
	// ItemsUnderPath returns every item in the named layer whose path is
	// src_path itself or nested under it, keyed by their path relative to
	// src_path (empty string for src_path itself).
	ItemsUnderPath(layerLabel, srcPath string) (map[string]item.Item, error)
}
