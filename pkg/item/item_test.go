package item

import "testing"

func TestItem_Key(t *testing.T) {
	cases := []struct {
		name string
		it   Item
		want ItemKey
	}{
		{"path entry", PathEntry("/a/b", FileTypeFile, 0o644), PathKey("/a/b")},
		{"path symlink", PathSymlink("/a/link", "/a/target"), PathKey("/a/link")},
		{"path removed", PathRemoved("/a/gone"), PathKey("/a/gone")},
		{"user", User("alice"), UserKey("alice")},
		{"group", Group("wheel"), GroupKey("wheel")},
		{"layer", Layer("//foo:bar"), LayerKey("//foo:bar")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.it.Key(); got != tc.want {
				t.Errorf("Key() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestItem_Path(t *testing.T) {
	if p, ok := PathEntry("/a", FileTypeFile, 0).Path(); !ok || p != "/a" {
		t.Errorf("Path() = (%q, %v), want (\"/a\", true)", p, ok)
	}
	if _, ok := User("alice").Path(); ok {
		t.Error("Path() on a user item returned ok=true, want false")
	}
}

func TestMode_Perm(t *testing.T) {
	m := Mode(0o104755)
	if got := m.Perm(); got != 0o4755 {
		t.Errorf("Perm() = %o, want %o", got, 0o4755)
	}
}

func TestItem_Equivalent(t *testing.T) {
	a := PathEntry("/a", FileTypeFile, 0o644)
	b := PathEntry("/a", FileTypeFile, 0o644)
	c := PathEntry("/a", FileTypeFile, 0o755)

	if !a.Equivalent(b) {
		t.Error("identical items not reported equivalent")
	}
	if a.Equivalent(c) {
		t.Error("items differing in mode reported equivalent")
	}
}

func TestItemKey_MarshalRoundTrip(t *testing.T) {
	keys := []ItemKey{
		PathKey("/a/b"),
		UserKey("alice"),
		GroupKey("wheel"),
		LayerKey("//foo:bar"),
	}
	for _, k := range keys {
		s := k.Marshal()
		got, err := UnmarshalKey(s)
		if err != nil {
			t.Fatalf("UnmarshalKey(%q) error = %v", s, err)
		}
		if got != k {
			t.Errorf("round trip = %+v, want %+v", got, k)
		}
	}
}

func TestItemKey_WithPath(t *testing.T) {
	k := PathKey("/a/link").WithPath("/a/real")
	if k.Path != "/a/real" {
		t.Errorf("WithPath: Path = %q, want %q", k.Path, "/a/real")
	}
	if k.Kind != KeyKindPath {
		t.Errorf("WithPath: Kind = %q, want %q", k.Kind, KeyKindPath)
	}
}

func TestItem_MarshalRoundTrip(t *testing.T) {
	it := PathEntry("/a/b", FileTypeDirectory, 0o755)
	s, err := it.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := UnmarshalItem(s)
	if err != nil {
		t.Fatalf("UnmarshalItem() error = %v", err)
	}
	if !got.Equivalent(it) {
		t.Errorf("round trip = %+v, want %+v", got, it)
	}
}
