package feature

import (
	"fmt"

	"stratum/pkg/item"
)

// Provides computes the items this feature contributes to its layer.
// layers is only consulted by Clone, which reads another, already-built
// layer's depgraph; it is nil-safe for every other kind.
func (f Feature) Provides(layers LayerResolver) ([]item.Item, error) {
	switch f.Kind {
	case KindEnsureDirExists:
		return f.Data.EnsureDirExists.provides()
	case KindInstall:
		return f.Data.Install.provides()
	case KindClone:
		return f.Data.Clone.provides(layers)
	case KindExtract:
		return f.Data.Extract.provides()
	case KindMount:
		return f.Data.Mount.provides()
	case KindRemove:
		return f.Data.Remove.provides()
	case KindSymlink:
		return f.Data.Symlink.provides()
	case KindRequires:
		return f.Data.Requires.provides()
	case KindUser:
		return f.Data.User.provides()
	case KindGroup:
		return f.Data.Group.provides()
	case KindUserMod:
		return f.Data.UserMod.provides()
	case KindRpm:
		return f.Data.Rpm.provides()
	case KindTarball:
		return f.Data.Tarball.provides()
	case KindGenrule:
		return f.Data.Genrule.provides()
	case KindReceiveSendstream:
		return f.Data.ReceiveSendstream.provides()
	default:
		return nil, fmt.Errorf("feature %q: unknown kind %q", f.Label, f.Kind)
	}
}

// Requires computes the items this feature depends on in its layer, each
// tagged with whether it imposes an execution-order edge on its provider.
func (f Feature) Requires() []item.Requirement {
	switch f.Kind {
	case KindEnsureDirExists:
		return f.Data.EnsureDirExists.requires()
	case KindInstall:
		return f.Data.Install.requires()
	case KindClone:
		return f.Data.Clone.requires()
	case KindExtract:
		return f.Data.Extract.requires()
	case KindMount:
		return f.Data.Mount.requires()
	case KindRemove:
		return f.Data.Remove.requires()
	case KindSymlink:
		return f.Data.Symlink.requires()
	case KindRequires:
		return f.Data.Requires.requires()
	case KindUser:
		return f.Data.User.requires()
	case KindGroup:
		return f.Data.Group.requires()
	case KindUserMod:
		return f.Data.UserMod.requires()
	case KindRpm:
		return f.Data.Rpm.requires()
	case KindTarball:
		return f.Data.Tarball.requires()
	case KindGenrule:
		return f.Data.Genrule.requires()
	case KindReceiveSendstream:
		return f.Data.ReceiveSendstream.requires()
	default:
		return nil
	}
}
