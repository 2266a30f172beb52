package feature

import (
	"fmt"
	"path"
	"strings"

	"stratum/pkg/item"
)

// parent returns the parent directory of p, and whether p has one (the
// root "/" does not).
func parent(p string) (string, bool) {
	if p == "/" || p == "" {
		return "", false
	}
	d := path.Dir(p)
	return d, true
}

// EnsureDirExists ensures a directory exists with the given mode and
// ownership, creating any single missing leaf directory.
type EnsureDirExists struct {
	Dir   string    `json:"dir"`
	Mode  item.Mode `json:"mode"`
	User  string    `json:"user"`
	Group string    `json:"group"`
}

func (f EnsureDirExists) provides() ([]item.Item, error) {
	return []item.Item{item.PathEntry(f.Dir, item.FileTypeDirectory, f.Mode)}, nil
}

func (f EnsureDirExists) requires() []item.Requirement {
	reqs := []item.Requirement{
		item.Ordered(item.UserKey(f.User), item.Exists()),
		item.Ordered(item.GroupKey(f.Group), item.Exists()),
	}
	if p, ok := parent(f.Dir); ok {
		reqs = append(reqs, item.Ordered(item.PathKey(p), item.HasFileType(item.FileTypeDirectory)))
	}
	return reqs
}

// Install copies a single file, or recursively copies a source tree into a
// destination directory (when Dst ends in "/").
type Install struct {
	Src   string    `json:"src"`
	Dst   string    `json:"dst"`
	Mode  item.Mode `json:"mode"`
	User  string    `json:"user"`
	Group string    `json:"group"`
	// Walk is the precomputed listing of the source tree, relative paths to
	// (file type, mode), populated by the external analyzer when Dst is a
	// directory install. Empty for single-file installs.
	Walk map[string]WalkedEntry `json:"walk,omitempty"`
}

// WalkedEntry describes one entry discovered underneath an Install or Clone
// source tree.
type WalkedEntry struct {
	FileType item.FileType `json:"file_type"`
	Mode     item.Mode     `json:"mode"`
}

func (f Install) provides() ([]item.Item, error) {
	if strings.HasSuffix(f.Dst, "/") {
		dst := strings.TrimSuffix(f.Dst, "/")
		items := []item.Item{item.PathEntry(dst, item.FileTypeDirectory, 0o755)}
		for rel, entry := range f.Walk {
			p := path.Join(dst, rel)
			switch entry.FileType {
			case item.FileTypeDirectory:
				items = append(items, item.PathEntry(p, item.FileTypeDirectory, 0o755))
			case item.FileTypeSymlink:
				items = append(items, item.PathEntry(p, item.FileTypeSymlink, entry.Mode))
			default:
				items = append(items, item.PathEntry(p, item.FileTypeFile, 0o444))
			}
		}
		return items, nil
	}
	return []item.Item{item.PathEntry(f.Dst, item.FileTypeFile, f.Mode)}, nil
}

func (f Install) requires() []item.Requirement {
	dst := strings.TrimSuffix(f.Dst, "/")
	reqs := []item.Requirement{
		item.Ordered(item.UserKey(f.User), item.Exists()),
		item.Ordered(item.GroupKey(f.Group), item.Exists()),
	}
	if p, ok := parent(dst); ok {
		reqs = append(reqs, item.Ordered(item.PathKey(p), item.HasFileType(item.FileTypeDirectory)))
	}
	return reqs
}

// Symlink declares a symlink at Link pointing at Target, which may be
// relative to Link's parent directory.
type Symlink struct {
	Link        string `json:"link"`
	Target      string `json:"target"`
	IsDirectory bool   `json:"is_directory"`
}

func (f Symlink) provides() ([]item.Item, error) {
	return []item.Item{item.PathSymlink(f.Link, f.Target)}, nil
}

func (f Symlink) requires() []item.Requirement {
	reqs := []item.Requirement{}
	if p, ok := parent(f.Link); ok {
		reqs = append(reqs, item.Ordered(item.PathKey(p), item.HasFileType(item.FileTypeDirectory)))
	}
	ft := item.FileTypeFile
	if f.IsDirectory {
		ft = item.FileTypeDirectory
	}
	reqs = append(reqs, item.Ordered(item.PathKey(f.resolvedTarget()), item.HasFileType(ft)))
	return reqs
}

// resolvedTarget resolves Target against Link's parent directory if it is
// relative.
func (f Symlink) resolvedTarget() string {
	if path.IsAbs(f.Target) {
		return path.Clean(f.Target)
	}
	dir, _ := parent(f.Link)
	return path.Clean(path.Join(dir, f.Target))
}

// Remove asserts that Path must not exist after this feature runs.
type Remove struct {
	Path      string `json:"path"`
	MustExist bool   `json:"must_exist"`
}

func (f Remove) provides() ([]item.Item, error) {
	return []item.Item{item.PathRemoved(f.Path)}, nil
}

func (f Remove) requires() []item.Requirement {
	if f.MustExist {
		return []item.Requirement{item.Ordered(item.PathKey(f.Path), item.Exists())}
	}
	return nil
}

// OwnerRef is a (uid, gid) pair observed on a file in a Clone source tree.
type OwnerRef struct {
	UID uint32 `json:"uid"`
	GID uint32 `json:"gid"`
}

// Clone copies a path from another, already-built layer into this one.
type Clone struct {
	SrcLayer        string `json:"src_layer"`
	SrcPath         string `json:"src_path"`
	DstPath         string `json:"dst_path"`
	PreExistingDest bool   `json:"pre_existing_dest"`
	OmitOuterDir    bool   `json:"omit_outer_dir"`

	// SourceOwners, SourceUserNames and SourceGroupNames are precomputed by
	// the external analyzer from the materialized source tree: the set of
	// (uid, gid) pairs observed under SrcPath, and the /etc/passwd,
	// /etc/group name lookups for the source layer. The depgraph's own
	// item model carries no ownership information, so this is the input
	// that lets Clone emit concrete User/Group requirements without this
	// pure function touching a filesystem itself.
	SourceOwners    []OwnerRef        `json:"source_owners,omitempty"`
	SourceUserNames map[uint32]string `json:"source_user_names,omitempty"`
	SourceGroupNames map[uint32]string `json:"source_group_names,omitempty"`
}

func (f Clone) provides(layers LayerResolver) ([]item.Item, error) {
	if layers == nil {
		return nil, fmt.Errorf("clone %s: no layer resolver available to read %s", f.SrcLayer, f.SrcPath)
	}
	nested, err := layers.ItemsUnderPath(f.SrcLayer, f.SrcPath)
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", f.SrcLayer, err)
	}

	dst := strings.TrimSuffix(f.DstPath, "/")
	prefix := ""
	if f.PreExistingDest && !f.OmitOuterDir {
		prefix = path.Base(strings.TrimSuffix(f.SrcPath, "/"))
	}

	items := make([]item.Item, 0, len(nested))
	for rel, it := range nested {
		dstRel := rel
		if prefix != "" {
			dstRel = path.Join(prefix, rel)
		}
		p := dst
		if dstRel != "" {
			p = path.Join(dst, dstRel)
		}
		switch it.Kind {
		case item.KindPathEntry:
			items = append(items, item.PathEntry(p, it.Entry.FileType, it.Entry.Mode))
		case item.KindPathSymlink:
			items = append(items, item.PathSymlink(p, it.Symlink.Target))
		}
	}
	return items, nil
}

func (f Clone) requires() []item.Requirement {
	srcValidator := item.Exists()
	if f.OmitOuterDir {
		srcValidator = item.HasFileType(item.FileTypeDirectory)
	}
	reqs := []item.Requirement{
		item.Ordered(
			item.LayerKey(f.SrcLayer),
			item.InLayer(item.PathKey(f.SrcPath), srcValidator),
		),
	}
	dst := strings.TrimSuffix(f.DstPath, "/")
	if f.PreExistingDest {
		reqs = append(reqs, item.Ordered(item.PathKey(dst), item.HasFileType(item.FileTypeDirectory)))
	} else if p, ok := parent(dst); ok {
		reqs = append(reqs, item.Ordered(item.PathKey(p), item.HasFileType(item.FileTypeDirectory)))
	}

	seenUID := map[uint32]bool{}
	seenGID := map[uint32]bool{}
	for _, owner := range f.SourceOwners {
		if !seenUID[owner.UID] {
			seenUID[owner.UID] = true
			if name, ok := f.SourceUserNames[owner.UID]; ok {
				reqs = append(reqs, item.Unordered(item.UserKey(name), item.Exists()))
			}
		}
		if !seenGID[owner.GID] {
			seenGID[owner.GID] = true
			if name, ok := f.SourceGroupNames[owner.GID]; ok {
				reqs = append(reqs, item.Unordered(item.GroupKey(name), item.Exists()))
			}
		}
	}
	return reqs
}

// Extract installs one or more executables, extracted from a binary target
// or a buck-built artifact, at mode 0555.
type Extract struct {
	SrcLayer    string   `json:"src_layer"`
	Executables []string `json:"executables"`
	Dst         string   `json:"dst"`
}

func (f Extract) provides() ([]item.Item, error) {
	items := make([]item.Item, 0, len(f.Executables))
	for _, exe := range f.Executables {
		items = append(items, item.PathEntry(path.Join(f.Dst, path.Base(exe)), item.FileTypeFile, 0o555))
	}
	return items, nil
}

func (f Extract) requires() []item.Requirement {
	reqs := []item.Requirement{
		item.Ordered(item.PathKey(f.Dst), item.HasFileType(item.FileTypeDirectory)),
	}
	for _, exe := range f.Executables {
		reqs = append(reqs, item.Ordered(
			item.LayerKey(f.SrcLayer),
			item.InLayer(item.PathKey(exe), item.Executable()),
		))
	}
	return reqs
}

// Mount attaches another filesystem (or bind mount) at Mountpoint.
type Mount struct {
	Mountpoint  string `json:"mountpoint"`
	IsDirectory bool   `json:"is_directory"`
}

func (f Mount) provides() ([]item.Item, error) {
	ft := item.FileTypeFile
	mode := item.Mode(0o444)
	if f.IsDirectory {
		ft = item.FileTypeDirectory
		mode = 0o755
	}
	return []item.Item{item.PathEntry(f.Mountpoint, ft, mode)}, nil
}

func (f Mount) requires() []item.Requirement {
	if p, ok := parent(f.Mountpoint); ok {
		return []item.Requirement{item.Ordered(item.PathKey(p), item.HasFileType(item.FileTypeDirectory))}
	}
	return nil
}

// Tarball extracts an archive's contents under Dst. Like Rpm, the exact
// set of extracted paths is not known until execution, so only the
// top-level directory is declared as provided; see the open question in
// DESIGN.md about dynamically-provided items.
type Tarball struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

func (f Tarball) provides() ([]item.Item, error) {
	dst := strings.TrimSuffix(f.Dst, "/")
	return []item.Item{item.PathEntry(dst, item.FileTypeDirectory, 0o755)}, nil
}

func (f Tarball) requires() []item.Requirement {
	dst := strings.TrimSuffix(f.Dst, "/")
	if p, ok := parent(dst); ok {
		return []item.Requirement{item.Ordered(item.PathKey(p), item.HasFileType(item.FileTypeDirectory))}
	}
	return nil
}

// Genrule runs an arbitrary command during the build. Its effects on the
// filesystem are opaque to the depgraph, so it provides and requires
// nothing — matching the reference implementation, which treats genrule
// identically.
type Genrule struct {
	Cmd []string `json:"cmd"`
}

func (f Genrule) provides() ([]item.Item, error) { return nil, nil }
func (f Genrule) requires() []item.Requirement    { return nil }

// RequiresAssertion is a bare requirement with no accompanying provides,
// used to assert a dependency on an item declared elsewhere without
// otherwise contributing to the layer.
type RequiresAssertion struct {
	Key       item.ItemKey    `json:"key"`
	Validator item.Validator  `json:"validator"`
	Ordered   bool            `json:"ordered"`
}

func (f RequiresAssertion) provides() ([]item.Item, error) { return nil, nil }

func (f RequiresAssertion) requires() []item.Requirement {
	return []item.Requirement{{Key: f.Key, Validator: f.Validator, Ordered: f.Ordered}}
}

// ReceiveSendstream applies a previously produced btrfs sendstream
// (parsed and validated by pkg/sendstream) into this layer, surfacing the
// result as a Layer item under its own label.
type ReceiveSendstream struct {
	Label string `json:"label"`
}

func (f ReceiveSendstream) provides() ([]item.Item, error) {
	return []item.Item{item.Layer(f.Label)}, nil
}

func (f ReceiveSendstream) requires() []item.Requirement { return nil }
