package depgraph

import (
	"sort"

	"stratum/pkg/feature"
	"stratum/pkg/item"
)

// toposort orders pending features so that every ordered-requirement edge
// points from a dependency to its dependent, breaking ties
// lexicographically by feature label so that the same set of features
// always produces the same order.
func toposort(edges []PendingFeatureEdges) ([]feature.Feature, error) {
	providerOf := make(map[item.ItemKey]int64, len(edges))
	byID := make(map[int64]PendingFeatureEdges, len(edges))
	for _, e := range edges {
		byID[e.FeatureID] = e
		for _, key := range e.Provides {
			providerOf[key] = e.FeatureID
		}
	}

	// indegree[id] counts ordered-requirement edges into feature id from
	// other pending features; outgoing[id] lists the features that depend
	// on id.
	indegree := make(map[int64]int, len(edges))
	outgoing := make(map[int64][]int64, len(edges))
	for _, e := range edges {
		indegree[e.FeatureID] = 0
	}
	for _, e := range edges {
		for _, req := range e.Requires {
			if !req.Ordered {
				continue
			}
			providerID, ok := providerOf[req.Key]
			if !ok || providerID == e.FeatureID {
				continue
			}
			outgoing[providerID] = append(outgoing[providerID], e.FeatureID)
			indegree[e.FeatureID]++
		}
	}

	ordered := make([]feature.Feature, 0, len(edges))
	remaining := len(edges)
	for remaining > 0 {
		var ready []int64
		for id, deg := range indegree {
			if deg == 0 {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			labels := make([]string, 0, len(indegree))
			for id := range indegree {
				labels = append(labels, byID[id].Feature.Label)
			}
			sort.Strings(labels)
			return nil, &CycleError{Labels: labels}
		}
		sort.Slice(ready, func(i, j int) bool {
			return byID[ready[i]].Feature.Label < byID[ready[j]].Feature.Label
		})
		next := ready[0]
		ordered = append(ordered, byID[next].Feature)
		delete(indegree, next)
		remaining--
		for _, dependent := range outgoing[next] {
			indegree[dependent]--
		}
	}
	return ordered, nil
}
