// Package item defines the items a feature can provide or require: concrete
// filesystem entries, symlinks, removed paths, users, groups and layer
// handles, along with the key that identifies them across features.
package item

import (
	"encoding/json"
	"fmt"
)

// FileType enumerates the kinds of filesystem entries a Path item can be.
type FileType string

const (
	FileTypeFile        FileType = "file"
	FileTypeDirectory   FileType = "directory"
	FileTypeSymlink     FileType = "symlink"
	FileTypeBlockDevice FileType = "block_device"
	FileTypeCharDevice  FileType = "char_device"
	FileTypeFifo        FileType = "fifo"
	FileTypeSocket      FileType = "socket"
)

// Mode is a POSIX file mode. Only the low 12 bits (permissions + setuid/
// setgid/sticky) are significant.
type Mode uint32

const modeMask Mode = 0o7777

// Perm masks Mode down to the bits the graph cares about.
func (m Mode) Perm() Mode { return m & modeMask }

// Kind discriminates the variants of Item.
type Kind string

const (
	KindPathEntry   Kind = "path_entry"
	KindPathSymlink Kind = "path_symlink"
	KindPathRemoved Kind = "path_removed"
	KindUser        Kind = "user"
	KindGroup       Kind = "group"
	KindLayer       Kind = "layer"
)

// FsEntry is a concrete filesystem entry: a file, directory, device node,
// fifo or socket at a path, with a type and mode.
type FsEntry struct {
	Path     string   `json:"path"`
	FileType FileType `json:"file_type"`
	Mode     Mode     `json:"mode"`
}

// Symlink is a symlink declaration: a link path pointing at a target, which
// may be relative to the link's parent directory.
type Symlink struct {
	Link   string `json:"link"`
	Target string `json:"target"`
}

// Item is what a feature contributes to, or requires from, an image. It is
// a closed set of variants discriminated by Kind; exactly one of the
// Kind-specific fields is populated for any given value. Marshaling to JSON
// is used both for persistence (the `item.value` column) and as the
// equality check in conflict detection, so field order here is load-bearing
// for byte-stable serialization.
type Item struct {
	Kind Kind `json:"kind"`

	Entry       *FsEntry `json:"entry,omitempty"`
	Symlink     *Symlink `json:"symlink,omitempty"`
	RemovedPath string   `json:"removed_path,omitempty"`
	UserName    string   `json:"user_name,omitempty"`
	GroupName   string   `json:"group_name,omitempty"`
	Layer       string   `json:"layer,omitempty"`
}

// PathEntry builds a concrete filesystem entry item.
func PathEntry(path string, ft FileType, mode Mode) Item {
	return Item{Kind: KindPathEntry, Entry: &FsEntry{Path: path, FileType: ft, Mode: mode.Perm()}}
}

// PathSymlink builds a symlink declaration item.
func PathSymlink(link, target string) Item {
	return Item{Kind: KindPathSymlink, Symlink: &Symlink{Link: link, Target: target}}
}

// PathRemoved builds an item asserting that a path must not exist.
func PathRemoved(path string) Item {
	return Item{Kind: KindPathRemoved, RemovedPath: path}
}

// User builds a named-user item.
func User(name string) Item {
	return Item{Kind: KindUser, UserName: name}
}

// Group builds a named-group item.
func Group(name string) Item {
	return Item{Kind: KindGroup, GroupName: name}
}

// Layer builds a handle-to-another-layer item.
func Layer(label string) Item {
	return Item{Kind: KindLayer, Layer: label}
}

// Path returns the item's path, if it is a path-kind item (entry, symlink or
// removed), and whether it is one.
func (it Item) Path() (string, bool) {
	switch it.Kind {
	case KindPathEntry:
		return it.Entry.Path, true
	case KindPathSymlink:
		return it.Symlink.Link, true
	case KindPathRemoved:
		return it.RemovedPath, true
	default:
		return "", false
	}
}

// Key returns the identity-defining projection of this item: the canonical
// path for path items, the name for users/groups, the label for layers.
func (it Item) Key() ItemKey {
	switch it.Kind {
	case KindPathEntry, KindPathSymlink, KindPathRemoved:
		p, _ := it.Path()
		return PathKey(p)
	case KindUser:
		return UserKey(it.UserName)
	case KindGroup:
		return GroupKey(it.GroupName)
	case KindLayer:
		return LayerKey(it.Layer)
	default:
		panic(fmt.Sprintf("item: unknown kind %q", it.Kind))
	}
}

// Equivalent reports whether two items have the same variant and fields,
// i.e. would be considered duplicates rather than a conflict by the
// conflict detector (ignoring file mode for directories, per the depgraph's
// directory-conflict tolerance rule, which is applied by the caller instead
// of here).
func (it Item) Equivalent(other Item) bool {
	a, _ := json.Marshal(it)
	b, _ := json.Marshal(other)
	return string(a) == string(b)
}

// KeyKind discriminates the variants of ItemKey.
type KeyKind string

const (
	KeyKindPath  KeyKind = "path"
	KeyKindUser  KeyKind = "user"
	KeyKindGroup KeyKind = "group"
	KeyKindLayer KeyKind = "layer"
)

// ItemKey is the identity-defining projection of an Item. Two items are
// "the same item" iff their keys are equal.
type ItemKey struct {
	Kind KeyKind `json:"kind"`
	Path string  `json:"path,omitempty"`
	Name string  `json:"name,omitempty"`
}

// PathKey builds a path item key.
func PathKey(path string) ItemKey { return ItemKey{Kind: KeyKindPath, Path: path} }

// UserKey builds a user item key.
func UserKey(name string) ItemKey { return ItemKey{Kind: KeyKindUser, Name: name} }

// GroupKey builds a group item key.
func GroupKey(name string) ItemKey { return ItemKey{Kind: KeyKindGroup, Name: name} }

// LayerKey builds a layer item key.
func LayerKey(label string) ItemKey { return ItemKey{Kind: KeyKindLayer, Name: label} }

// WithPath returns a copy of the key with its path replaced, leaving the
// rest of the key untouched. Only valid for path keys.
func (k ItemKey) WithPath(path string) ItemKey {
	k.Path = path
	return k
}

// Marshal produces the canonical, byte-stable encoding of the key used as
// the `item.key` / `requires.item_key` column value.
func (k ItemKey) Marshal() string {
	b, err := json.Marshal(k)
	if err != nil {
		// ItemKey has no types that can fail to marshal.
		panic(err)
	}
	return string(b)
}

// String implements fmt.Stringer for diagnostics.
func (k ItemKey) String() string {
	switch k.Kind {
	case KeyKindPath:
		return k.Path
	default:
		return fmt.Sprintf("%s(%s)", k.Kind, k.Name)
	}
}

// UnmarshalKey parses the canonical encoding produced by Marshal.
func UnmarshalKey(s string) (ItemKey, error) {
	var k ItemKey
	if err := json.Unmarshal([]byte(s), &k); err != nil {
		return ItemKey{}, fmt.Errorf("unmarshal item key: %w", err)
	}
	return k, nil
}

// Marshal produces the canonical, byte-stable encoding of the item used as
// the `item.value` column value.
func (it Item) Marshal() (string, error) {
	b, err := json.Marshal(it)
	if err != nil {
		return "", fmt.Errorf("marshal item: %w", err)
	}
	return string(b), nil
}

// UnmarshalItem parses the canonical encoding produced by Item.Marshal.
func UnmarshalItem(s string) (Item, error) {
	var it Item
	if err := json.Unmarshal([]byte(s), &it); err != nil {
		return Item{}, fmt.Errorf("unmarshal item: %w", err)
	}
	return it, nil
}
