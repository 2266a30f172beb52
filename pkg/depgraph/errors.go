package depgraph

import (
	"fmt"

	"stratum/pkg/feature"
	"stratum/pkg/item"
)

// MissingItemError reports that a pending feature requires an item that is
// provided nowhere in the layer and has no matching fact from a parent
// layer.
type MissingItemError struct {
	Key        item.ItemKey
	RequiredBy feature.Feature
}

func (e *MissingItemError) Error() string {
	return fmt.Sprintf("feature %q requires %s, which is not provided by any feature", e.RequiredBy.Label, e.Key)
}

// UnsatisfiedError reports that an item was found for a requirement's key,
// but it does not satisfy the requirement's validator.
type UnsatisfiedError struct {
	Item       item.Item
	Validator  item.Validator
	RequiredBy feature.Feature
}

func (e *UnsatisfiedError) Error() string {
	return fmt.Sprintf("feature %q requires %s to satisfy %s validator, but it does not", e.RequiredBy.Label, e.Item.Key(), e.Validator.Kind)
}

// ConflictError reports that more than one distinct item was provided for
// the same key by features that are not mere duplicates of each other.
type ConflictError struct {
	Key      item.ItemKey
	Items    []item.Item
	Features []feature.Feature
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d distinct features conflict over %s: %d different item values provided", len(e.Features), e.Key, len(e.Items))
}

// CycleError reports that the pending features cannot be ordered
// topologically because their ordered-requirement edges form a cycle.
type CycleError struct {
	Labels []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle among features: %v", e.Labels)
}

// GraphSerdeError wraps a JSON marshal/unmarshal failure encountered while
// persisting or reading graph state. This should only ever happen if the
// stored data was corrupted outside of this package.
type GraphSerdeError struct {
	Err error
}

func (e *GraphSerdeError) Error() string { return fmt.Sprintf("graph serialization: %v", e.Err) }
func (e *GraphSerdeError) Unwrap() error { return e.Err }

// StorageError wraps a failure from the underlying Store (SQL driver
// errors, connectivity issues, schema mismatches).
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("depgraph storage: %v", e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }
