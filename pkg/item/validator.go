package item

import (
	"encoding/json"
	"fmt"
)

// ValidatorKind discriminates the variants of Validator.
type ValidatorKind string

const (
	ValidatorExists       ValidatorKind = "exists"
	ValidatorFileType     ValidatorKind = "file_type"
	ValidatorExecutable   ValidatorKind = "executable"
	ValidatorItemInLayer  ValidatorKind = "item_in_layer"
	ValidatorDoesNotExist ValidatorKind = "does_not_exist"
	ValidatorAll          ValidatorKind = "all"
	ValidatorAny          ValidatorKind = "any"
)

// ItemInLayerValidator recursively validates an item found under a key in
// another, already-built layer.
type ItemInLayerValidator struct {
	Key       ItemKey    `json:"key"`
	Validator *Validator `json:"validator"`
}

// Validator is a predicate a requirement places on the value of the item
// that satisfies it.
type Validator struct {
	Kind ValidatorKind `json:"kind"`

	FileType    FileType              `json:"file_type,omitempty"`
	ItemInLayer *ItemInLayerValidator `json:"item_in_layer,omitempty"`
	Combinators []Validator           `json:"validators,omitempty"`
}

// Exists is the validator satisfied by the mere presence of an item.
func Exists() Validator { return Validator{Kind: ValidatorExists} }

// HasFileType is satisfied when a path item has the given file type.
func HasFileType(ft FileType) Validator {
	return Validator{Kind: ValidatorFileType, FileType: ft}
}

// Executable is satisfied when a path item is a file with any executable
// mode bit set.
func Executable() Validator { return Validator{Kind: ValidatorExecutable} }

// InLayer is satisfied when the named key, looked up in the referenced
// layer's built depgraph, satisfies the nested validator.
func InLayer(key ItemKey, v Validator) Validator {
	return Validator{Kind: ValidatorItemInLayer, ItemInLayer: &ItemInLayerValidator{Key: key, Validator: &v}}
}

// DoesNotExist is satisfied only by the absence of a matching item/fact.
func DoesNotExist() Validator { return Validator{Kind: ValidatorDoesNotExist} }

// All is satisfied when every one of vs is satisfied.
func All(vs ...Validator) Validator { return Validator{Kind: ValidatorAll, Combinators: vs} }

// Any is satisfied when at least one of vs is satisfied.
func Any(vs ...Validator) Validator { return Validator{Kind: ValidatorAny, Combinators: vs} }

// LayerLookup resolves a key to an item inside another, already-built
// layer's depgraph. Implemented by depgraph.Graph; declared here to avoid an
// import cycle between item and depgraph.
type LayerLookup interface {
	ItemInLayer(layerLabel string, key ItemKey) (Item, bool, error)
}

// Satisfies evaluates whether item (if present) satisfies v. present=false
// means no item or fact was found for the requirement's key.
func (v Validator) Satisfies(it Item, present bool, layers LayerLookup) (bool, error) {
	switch v.Kind {
	case ValidatorExists:
		return present, nil
	case ValidatorDoesNotExist:
		return !present, nil
	case ValidatorFileType:
		if !present {
			return false, nil
		}
		return entryFileType(it) == v.FileType, nil
	case ValidatorExecutable:
		if !present {
			return false, nil
		}
		if entryFileType(it) != FileTypeFile {
			return false, nil
		}
		return entryMode(it)&0o111 != 0, nil
	case ValidatorItemInLayer:
		if v.ItemInLayer == nil {
			return false, fmt.Errorf("item_in_layer validator missing payload")
		}
		if layers == nil {
			return false, fmt.Errorf("item_in_layer validator requires a layer resolver")
		}
		nested, ok, err := layers.ItemInLayer(it.Layer, v.ItemInLayer.Key)
		if err != nil {
			return false, err
		}
		return v.ItemInLayer.Validator.Satisfies(nested, ok, layers)
	case ValidatorAll:
		for _, sub := range v.Combinators {
			ok, err := sub.Satisfies(it, present, layers)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case ValidatorAny:
		for _, sub := range v.Combinators {
			ok, err := sub.Satisfies(it, present, layers)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown validator kind %q", v.Kind)
	}
}

func entryFileType(it Item) FileType {
	if it.Kind == KindPathEntry && it.Entry != nil {
		return it.Entry.FileType
	}
	if it.Kind == KindPathSymlink {
		return FileTypeSymlink
	}
	return ""
}

func entryMode(it Item) Mode {
	if it.Kind == KindPathEntry && it.Entry != nil {
		return it.Entry.Mode
	}
	return 0
}

// Marshal produces the canonical encoding used as the `requires.validator`
// column value.
func (v Validator) Marshal() (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal validator: %w", err)
	}
	return string(b), nil
}

// UnmarshalValidator parses the canonical encoding produced by Marshal.
func UnmarshalValidator(s string) (Validator, error) {
	var v Validator
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return Validator{}, fmt.Errorf("unmarshal validator: %w", err)
	}
	return v, nil
}
