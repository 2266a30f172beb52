package depgraph

import (
	"context"
	"path"
	"strings"

	"stratum/pkg/item"
)

// maxSymlinkHops bounds how many symlink substitutions resolve will follow
// before giving up, guarding against cycles in declared items or facts.
const maxSymlinkHops = 40

// resolve walks p component by component, left to right, against the
// combined view of declared items and facts: for every prefix formed so
// far plus the next component, it checks whether that prefix itself names
// a symlink (not just whether the whole path does), substituting the
// symlink's target and re-walking from there before continuing on to the
// remaining components. This is what makes `requires /usr/bin/foo is
// executable` enforce against the real file even when only `/usr/bin`
// (not `/usr/bin/foo` itself) is a symlink to `/bin`. ok is false if
// resolution could not complete within maxSymlinkHops substitutions (a
// cycle or pathologically deep chain) or if comparing against the store
// failed.
func resolve(ctx context.Context, store Store, p string) (canonical string, ok bool, err error) {
	clean := path.Clean(p)
	if clean == "/" {
		return "/", true, nil
	}

	remaining := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	resolved := "/"
	hops := 0

	for len(remaining) > 0 {
		component, rest := remaining[0], remaining[1:]
		candidate := path.Join(resolved, component)

		target, isSymlink, err := symlinkTarget(ctx, store, candidate)
		if err != nil {
			return "", false, err
		}
		if !isSymlink {
			resolved = candidate
			remaining = rest
			continue
		}

		hops++
		if hops > maxSymlinkHops {
			return "", false, nil
		}

		resolvedTarget := target
		if !path.IsAbs(target) {
			resolvedTarget = path.Join(resolved, target)
		}
		resolvedTarget = path.Clean(resolvedTarget)

		var targetComponents []string
		if resolvedTarget != "/" {
			targetComponents = strings.Split(strings.TrimPrefix(resolvedTarget, "/"), "/")
		}
		// Restart the walk from the root for the substituted target: any
		// of its own components may themselves be symlinks that still
		// need resolving before rejoining the untouched suffix.
		remaining = append(targetComponents, rest...)
		resolved = "/"
	}
	return resolved, true, nil
}

// symlinkTarget reports whether the path currently resolves (via a
// declared item or, failing that, a parent-layer fact) to a symlink, and
// if so, its target.
func symlinkTarget(ctx context.Context, store Store, p string) (target string, isSymlink bool, err error) {
	it, found, err := store.ItemByKey(ctx, item.PathKey(p))
	if err != nil {
		return "", false, err
	}
	if found {
		if it.Kind == item.KindPathSymlink {
			return it.Symlink.Target, true, nil
		}
		return "", false, nil
	}

	f, found, err := store.FactDirEntry(ctx, p)
	if err != nil {
		return "", false, err
	}
	if found && f.DirEntry.FileType == item.FileTypeSymlink {
		return f.DirEntry.Target, true, nil
	}
	return "", false, nil
}

// UnderPath reports whether candidate is prefix itself or nested under it,
// and if so, candidate's path relative to prefix. Store implementations use
// this to turn a path-prefix query into the relative-path-keyed map
// feature.LayerResolver.ItemsUnderPath promises.
func UnderPath(prefix, candidate string) (rel string, ok bool) {
	prefix = path.Clean(prefix)
	candidate = path.Clean(candidate)
	if candidate == prefix {
		return "", true
	}
	withSlash := prefix
	if !strings.HasSuffix(withSlash, "/") {
		withSlash += "/"
	}
	if strings.HasPrefix(candidate, withSlash) {
		return strings.TrimPrefix(candidate, withSlash), true
	}
	return "", false
}
