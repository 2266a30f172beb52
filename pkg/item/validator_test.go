package item

import "testing"

type fakeLayers map[ItemKey]Item

func (f fakeLayers) ItemInLayer(layer string, key ItemKey) (Item, bool, error) {
	it, ok := f[key]
	return it, ok, nil
}

func TestValidator_Exists(t *testing.T) {
	ok, err := Exists().Satisfies(Item{}, true, nil)
	if err != nil || !ok {
		t.Errorf("Satisfies() = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = Exists().Satisfies(Item{}, false, nil)
	if err != nil || ok {
		t.Errorf("Satisfies() = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestValidator_DoesNotExist(t *testing.T) {
	ok, _ := DoesNotExist().Satisfies(Item{}, false, nil)
	if !ok {
		t.Error("DoesNotExist should be satisfied by absence")
	}
	ok, _ = DoesNotExist().Satisfies(Item{}, true, nil)
	if ok {
		t.Error("DoesNotExist should not be satisfied by presence")
	}
}

func TestValidator_HasFileType(t *testing.T) {
	dir := PathEntry("/a", FileTypeDirectory, 0o755)
	ok, err := HasFileType(FileTypeDirectory).Satisfies(dir, true, nil)
	if err != nil || !ok {
		t.Errorf("Satisfies() = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = HasFileType(FileTypeFile).Satisfies(dir, true, nil)
	if err != nil || ok {
		t.Errorf("Satisfies() = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestValidator_Executable(t *testing.T) {
	exe := PathEntry("/bin/x", FileTypeFile, 0o755)
	notExe := PathEntry("/etc/x", FileTypeFile, 0o644)
	dir := PathEntry("/a", FileTypeDirectory, 0o755)

	if ok, _ := Executable().Satisfies(exe, true, nil); !ok {
		t.Error("Executable() should be satisfied by a mode-0755 file")
	}
	if ok, _ := Executable().Satisfies(notExe, true, nil); ok {
		t.Error("Executable() should not be satisfied by a mode-0644 file")
	}
	if ok, _ := Executable().Satisfies(dir, true, nil); ok {
		t.Error("Executable() should not be satisfied by a directory")
	}
}

func TestValidator_AllAny(t *testing.T) {
	dir := PathEntry("/a", FileTypeDirectory, 0o755)

	all := All(Exists(), HasFileType(FileTypeDirectory))
	if ok, _ := all.Satisfies(dir, true, nil); !ok {
		t.Error("All() of satisfied validators should be satisfied")
	}

	allFails := All(Exists(), HasFileType(FileTypeFile))
	if ok, _ := allFails.Satisfies(dir, true, nil); ok {
		t.Error("All() should fail if any sub-validator fails")
	}

	any := Any(HasFileType(FileTypeFile), HasFileType(FileTypeDirectory))
	if ok, _ := any.Satisfies(dir, true, nil); !ok {
		t.Error("Any() should succeed if one sub-validator succeeds")
	}
}

func TestValidator_ItemInLayer(t *testing.T) {
	key := PathKey("/usr/bin/x")
	layers := fakeLayers{key: PathEntry("/usr/bin/x", FileTypeFile, 0o755)}

	v := InLayer(key, Executable())
	ok, err := v.Satisfies(Layer("//some:layer"), true, layers)
	if err != nil || !ok {
		t.Errorf("Satisfies() = (%v, %v), want (true, nil)", ok, err)
	}

	missing := InLayer(PathKey("/nope"), Exists())
	ok, err = missing.Satisfies(Layer("//some:layer"), true, layers)
	if err != nil || ok {
		t.Errorf("Satisfies() for missing key = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestValidator_ItemInLayer_NoResolver(t *testing.T) {
	v := InLayer(PathKey("/x"), Exists())
	if _, err := v.Satisfies(Layer("//x"), true, nil); err == nil {
		t.Error("Satisfies() with nil layer resolver should error, got nil")
	}
}

func TestValidator_MarshalRoundTrip(t *testing.T) {
	v := All(Exists(), Any(HasFileType(FileTypeFile), Executable()))
	s, err := v.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := UnmarshalValidator(s)
	if err != nil {
		t.Fatalf("UnmarshalValidator() error = %v", err)
	}
	if got.Kind != v.Kind || len(got.Combinators) != len(v.Combinators) {
		t.Errorf("round trip = %+v, want %+v", got, v)
	}
}
