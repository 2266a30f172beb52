// Package feature models the declarative actions ("features") an image
// layer is built from and derives, for each one, the items it provides to
// and requires from the layer's dependency graph.
package feature

import (
	"encoding/json"
	"fmt"

	"stratum/pkg/item"
)

// Kind discriminates the closed set of feature variants this core
// understands. Every kind enumerated here has a matching case in
// Feature.Provides and Feature.Requires.
type Kind string

const (
	KindEnsureDirExists   Kind = "ensure_dir_exists"
	KindInstall           Kind = "install"
	KindClone             Kind = "clone"
	KindExtract           Kind = "extract"
	KindMount             Kind = "mount"
	KindRemove            Kind = "remove"
	KindSymlink           Kind = "symlink"
	KindRequires          Kind = "requires"
	KindUser              Kind = "user"
	KindGroup             Kind = "group"
	KindUserMod           Kind = "user_mod"
	KindRpm               Kind = "rpm"
	KindTarball           Kind = "tarball"
	KindGenrule           Kind = "genrule"
	KindReceiveSendstream Kind = "receive_sendstream"
)

// Data is the tagged union of per-kind feature payloads. Exactly one field
// is populated, selected by the enclosing Feature's Kind. Like item.Item,
// this is marshaled with fixed field order so that two features with
// structurally identical payloads serialize identically — the property the
// depgraph's conflict tie-break relies on.
type Data struct {
	EnsureDirExists   *EnsureDirExists   `json:"ensure_dir_exists,omitempty"`
	Install           *Install           `json:"install,omitempty"`
	Clone             *Clone             `json:"clone,omitempty"`
	Extract           *Extract           `json:"extract,omitempty"`
	Mount             *Mount             `json:"mount,omitempty"`
	Remove            *Remove            `json:"remove,omitempty"`
	Symlink           *Symlink           `json:"symlink,omitempty"`
	Requires          *RequiresAssertion `json:"requires,omitempty"`
	User              *User              `json:"user,omitempty"`
	Group             *Group             `json:"group,omitempty"`
	UserMod           *UserMod           `json:"user_mod,omitempty"`
	Rpm               *Rpm               `json:"rpm,omitempty"`
	Tarball           *Tarball           `json:"tarball,omitempty"`
	Genrule           *Genrule           `json:"genrule,omitempty"`
	ReceiveSendstream *ReceiveSendstream `json:"receive_sendstream,omitempty"`
}

// Feature is a single declarative build step: a build-system label
// identifying it, and the typed data describing what it does.
type Feature struct {
	Label string `json:"label"`
	Kind  Kind   `json:"kind"`
	Data  Data   `json:"data"`
}

// AnalyzedFeature bundles a Feature with the provides/requires lists
// derived from it, the unit the depgraph builder consumes via AddFeature.
type AnalyzedFeature struct {
	Feature  Feature
	Provides []item.Item
	Requires []item.Requirement
}

// Analyze runs the feature's provides/requires rules and bundles the
// results. layers is consulted only by Clone, which reads another layer's
// items; it may be nil for every other kind.
func Analyze(f Feature, layers LayerResolver) (AnalyzedFeature, error) {
	provides, err := f.Provides(layers)
	if err != nil {
		return AnalyzedFeature{}, fmt.Errorf("feature %q: provides: %w", f.Label, err)
	}
	return AnalyzedFeature{
		Feature:  f,
		Provides: provides,
		Requires: f.Requires(),
	}, nil
}

// Marshal produces the canonical encoding of the feature, used as the
// `feature.value` column and as the conflict-tolerance tie-break key.
func (f Feature) Marshal() (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("marshal feature: %w", err)
	}
	return string(b), nil
}

// Unmarshal parses the canonical encoding produced by Marshal.
func Unmarshal(s string) (Feature, error) {
	var f Feature
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		return Feature{}, fmt.Errorf("unmarshal feature: %w", err)
	}
	return f, nil
}

// DataEqual reports whether two features carry byte-identical data
// payloads, the rule the depgraph's conflict detector uses to tolerate
// duplicate features that would do the exact same thing.
func DataEqual(a, b Feature) bool {
	ab, errA := json.Marshal(a.Data)
	bb, errB := json.Marshal(b.Data)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}
