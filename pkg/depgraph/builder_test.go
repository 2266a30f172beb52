package depgraph_test

import (
	"context"
	"errors"
	"testing"

	"stratum/pkg/depgraph"
	"stratum/pkg/depgraph/sqlstore"
	"stratum/pkg/feature"
	"stratum/pkg/item"
)

func newBuilder(t *testing.T) *depgraph.GraphBuilder {
	t.Helper()
	store, err := sqlstore.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	b, err := depgraph.NewBuilder(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	return b
}

func dirFeature(label, dir string) feature.Feature {
	return dirFeatureWithMode(label, dir, 0o755)
}

func dirFeatureWithMode(label, dir string, mode item.Mode) feature.Feature {
	return feature.Feature{
		Label: label,
		Kind:  feature.KindEnsureDirExists,
		Data: feature.Data{EnsureDirExists: &feature.EnsureDirExists{
			Dir: dir, Mode: mode, User: "root", Group: "root",
		}},
	}
}

func TestBuild_HappyPath(t *testing.T) {
	ctx := context.Background()
	b := newBuilder(t)

	if _, err := b.AddFeature(ctx, dirFeature("//x:a", "/a")); err != nil {
		t.Fatalf("AddFeature(a) error = %v", err)
	}
	if _, err := b.AddFeature(ctx, dirFeature("//x:b", "/a/b")); err != nil {
		t.Fatalf("AddFeature(b) error = %v", err)
	}

	g, err := b.Build(ctx)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	pending := g.PendingFeatures()
	if len(pending) != 2 {
		t.Fatalf("PendingFeatures() = %d features, want 2", len(pending))
	}
	if pending[0].Label != "//x:a" || pending[1].Label != "//x:b" {
		t.Errorf("PendingFeatures() order = [%s, %s], want [//x:a, //x:b]", pending[0].Label, pending[1].Label)
	}
}

func TestBuild_MissingItem(t *testing.T) {
	ctx := context.Background()
	b := newBuilder(t)

	// /a/b's parent /a is never declared.
	if _, err := b.AddFeature(ctx, dirFeature("//x:b", "/a/b")); err != nil {
		t.Fatalf("AddFeature() error = %v", err)
	}

	_, err := b.Build(ctx)
	var missing *depgraph.MissingItemError
	if !errors.As(err, &missing) {
		t.Fatalf("Build() error = %v, want *MissingItemError", err)
	}
}

func TestBuild_ConflictingFiles(t *testing.T) {
	ctx := context.Background()
	b := newBuilder(t)

	install := func(label string, mode item.Mode) feature.Feature {
		return feature.Feature{
			Label: label,
			Kind:  feature.KindInstall,
			Data: feature.Data{Install: &feature.Install{
				Src: "/src", Dst: "/a", Mode: mode, User: "root", Group: "root",
			}},
		}
	}
	if _, err := b.AddFeature(ctx, dirFeature("//x:root", "/")); err != nil {
		t.Fatalf("AddFeature(root) error = %v", err)
	}
	if _, err := b.AddFeature(ctx, install("//x:a1", 0o644)); err != nil {
		t.Fatalf("AddFeature(a1) error = %v", err)
	}
	if _, err := b.AddFeature(ctx, install("//x:a2", 0o755)); err != nil {
		t.Fatalf("AddFeature(a2) error = %v", err)
	}

	_, err := b.Build(ctx)
	var conflict *depgraph.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Build() error = %v, want *ConflictError", err)
	}
}

func TestBuild_TolerantDuplicateDirectories(t *testing.T) {
	ctx := context.Background()
	b := newBuilder(t)

	if _, err := b.AddFeature(ctx, dirFeature("//x:a1", "/a")); err != nil {
		t.Fatalf("AddFeature(a1) error = %v", err)
	}
	if _, err := b.AddFeature(ctx, dirFeature("//x:a2", "/a")); err != nil {
		t.Fatalf("AddFeature(a2) error = %v", err)
	}

	if _, err := b.Build(ctx); err != nil {
		t.Fatalf("Build() error = %v, want nil (identical directories should not conflict)", err)
	}
}

// TestBuild_TolerantDuplicateDirectories_DifferingMode covers two
// features declaring the same directory with different modes: they
// produce non-equivalent item values (so the conflict group has more
// than one distinct item), but both are still directory entries, which
// the directory-conflict tolerance rule must accept regardless of mode.
func TestBuild_TolerantDuplicateDirectories_DifferingMode(t *testing.T) {
	ctx := context.Background()
	b := newBuilder(t)

	if _, err := b.AddFeature(ctx, dirFeatureWithMode("//x:a1", "/a", 0o755)); err != nil {
		t.Fatalf("AddFeature(a1) error = %v", err)
	}
	if _, err := b.AddFeature(ctx, dirFeatureWithMode("//x:a2", "/a", 0o700)); err != nil {
		t.Fatalf("AddFeature(a2) error = %v", err)
	}

	if _, err := b.Build(ctx); err != nil {
		t.Fatalf("Build() error = %v, want nil (directories with differing mode should still not conflict)", err)
	}
}

func TestBuild_SymlinkFixup(t *testing.T) {
	ctx := context.Background()
	b := newBuilder(t)

	link := feature.Feature{
		Label: "//x:link",
		Kind:  feature.KindSymlink,
		Data: feature.Data{Symlink: &feature.Symlink{
			Link: "/bin", Target: "/usr/bin", IsDirectory: true,
		}},
	}
	target := feature.Feature{
		Label: "//x:usrbin",
		Kind:  feature.KindEnsureDirExists,
		Data: feature.Data{EnsureDirExists: &feature.EnsureDirExists{
			Dir: "/usr/bin", Mode: 0o755, User: "root", Group: "root",
		}},
	}
	usr := dirFeature("//x:usr", "/usr")
	sh := feature.Feature{
		Label: "//x:sh",
		Kind:  feature.KindInstall,
		Data: feature.Data{Install: &feature.Install{
			Src: "/src/sh", Dst: "/bin/sh", Mode: 0o755, User: "root", Group: "root",
		}},
	}

	for _, f := range []feature.Feature{usr, target, link, sh} {
		if _, err := b.AddFeature(ctx, f); err != nil {
			t.Fatalf("AddFeature(%s) error = %v", f.Label, err)
		}
	}

	g, err := b.Build(ctx)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(g.PendingFeatures()) != 4 {
		t.Errorf("PendingFeatures() = %d, want 4", len(g.PendingFeatures()))
	}
}

// TestBuild_SymlinkFixup_DescendantPath covers a requirement on a path
// nested *under* a symlinked directory, not on the symlinked directory
// itself: requires(/usr/bin/foo is executable) must canonicalize to
// /bin/foo when /usr/bin is a symlink to /bin, even though no item or
// fact is ever declared at the literal key /usr/bin/foo.
func TestBuild_SymlinkFixup_DescendantPath(t *testing.T) {
	ctx := context.Background()
	b := newBuilder(t)

	usr := dirFeature("//x:usr", "/usr")
	link := feature.Feature{
		Label: "//x:usrbin-link",
		Kind:  feature.KindSymlink,
		Data: feature.Data{Symlink: &feature.Symlink{
			Link: "/usr/bin", Target: "/bin", IsDirectory: true,
		}},
	}
	bin := dirFeature("//x:bin", "/bin")
	foo := feature.Feature{
		Label: "//x:foo",
		Kind:  feature.KindInstall,
		Data: feature.Data{Install: &feature.Install{
			Src: "/src/foo", Dst: "/bin/foo", Mode: 0o555, User: "root", Group: "root",
		}},
	}
	requireFoo := feature.Feature{
		Label: "//x:requires-foo",
		Kind:  feature.KindRequires,
		Data: feature.Data{Requires: &feature.RequiresAssertion{
			Key:       item.PathKey("/usr/bin/foo"),
			Validator: item.Executable(),
			Ordered:   true,
		}},
	}

	for _, f := range []feature.Feature{usr, bin, link, foo, requireFoo} {
		if _, err := b.AddFeature(ctx, f); err != nil {
			t.Fatalf("AddFeature(%s) error = %v", f.Label, err)
		}
	}

	g, err := b.Build(ctx)
	if err != nil {
		t.Fatalf("Build() error = %v, want symlink fixup to canonicalize /usr/bin/foo to /bin/foo", err)
	}
	if len(g.PendingFeatures()) != 5 {
		t.Errorf("PendingFeatures() = %d, want 5", len(g.PendingFeatures()))
	}
}
