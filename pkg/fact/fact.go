// Package fact describes filesystem metadata observed by scanning a parent
// layer's materialized tree, as distinct from the declared items of
// features that are no longer in memory once a layer has been built.
package fact

import (
	"encoding/json"
	"fmt"

	"stratum/pkg/item"
)

// Kind discriminates the variants of Fact. Only DirEntry is defined by this
// core; additional kinds are left to the executor that scans a filesystem.
type Kind string

// KindDirEntry is the fact kind observed for every path in a scanned tree.
const KindDirEntry Kind = "dir_entry"

// DirEntry is filesystem metadata observed for a single path: its file
// type, mode and, for symlinks, the link target.
type DirEntry struct {
	Path     string        `json:"path"`
	FileType item.FileType `json:"file_type"`
	Mode     item.Mode     `json:"mode"`
	Target   string        `json:"target,omitempty"`
}

// Fact is a (kind, key) pair plus its observed value. Facts are stored
// alongside, but distinct from, declared items: a parent layer's millions
// of filesystem entries need not be re-materialized as item rows in every
// child build.
type Fact struct {
	Kind     Kind     `json:"kind"`
	Key      string   `json:"key"`
	DirEntry DirEntry `json:"dir_entry"`
}

// ForPath builds the DirEntry fact for a scanned path.
func ForPath(path string, ft item.FileType, mode item.Mode, target string) Fact {
	return Fact{
		Kind: KindDirEntry,
		Key:  path,
		DirEntry: DirEntry{
			Path:     path,
			FileType: ft,
			Mode:     mode.Perm(),
			Target:   target,
		},
	}
}

// ToItem converts a DirEntry fact into the Item it corresponds to: a
// symlink item for symlinks, a path entry otherwise.
func (f Fact) ToItem() item.Item {
	if f.DirEntry.FileType == item.FileTypeSymlink {
		return item.PathSymlink(f.DirEntry.Path, f.DirEntry.Target)
	}
	return item.PathEntry(f.DirEntry.Path, f.DirEntry.FileType, f.DirEntry.Mode)
}

// Marshal produces the canonical encoding of the fact's value, used as the
// `facts.value` column.
func (f Fact) Marshal() (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("marshal fact: %w", err)
	}
	return string(b), nil
}

// Unmarshal parses the canonical encoding produced by Marshal.
func Unmarshal(s string) (Fact, error) {
	var f Fact
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		return Fact{}, fmt.Errorf("unmarshal fact: %w", err)
	}
	return f, nil
}
