package template

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/your-org/attend/internal/feature"
)

func TestLoadMissingFile(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load of missing file should return an empty store, got %v", err)
	}
	if !store.Empty() {
		t.Error("store should be empty")
	}
	if store.SchemaVersion != feature.SchemaVersion {
		t.Errorf("SchemaVersion = %d; want %d", store.SchemaVersion, feature.SchemaVersion)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "templates.json")

	store := New()
	store.Append("7", feature.Vector{1, 0, 0})
	store.Append("9", feature.Vector{0, 1, 0})
	store.Append("7", feature.Vector{0, 0, 1})

	if err := store.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := loaded.Identities(); len(got) != 2 || got[0] != "7" || got[1] != "9" {
		t.Errorf("Identities = %v; want [7 9] in insertion order", got)
	}
	if loaded.Size() != 3 {
		t.Errorf("Size = %d; want 3", loaded.Size())
	}
	if samples := loaded.Samples("7"); len(samples) != 2 {
		t.Errorf("Samples(7) = %d vectors; want 2", len(samples))
	}
}

func TestLoadSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	blob := `{"schema_version": 99, "ids": ["7"], "templates": {"7": [[1, 0]]}}`
	if err := os.WriteFile(path, []byte(blob), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("Load = %v; want ErrSchemaMismatch", err)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load of corrupt file should fail")
	}
}

func TestSaveReplacesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")

	first := New()
	first.Append("7", feature.Vector{1})
	if err := first.Save(path); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	second := New()
	second.Append("9", feature.Vector{2})
	if err := second.Save(path); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ids := loaded.Identities(); len(ids) != 1 || ids[0] != "9" {
		t.Errorf("Identities = %v; want [9]", ids)
	}

	// No temp file left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries; want only the blob", len(entries))
	}
}

func TestResetIdentity(t *testing.T) {
	store := New()
	store.Append("7", feature.Vector{1})
	store.Append("9", feature.Vector{2})

	store.ResetIdentity("7")

	if samples := store.Samples("7"); samples != nil {
		t.Errorf("Samples(7) = %v; want nil after reset", samples)
	}
	if ids := store.Identities(); len(ids) != 1 || ids[0] != "9" {
		t.Errorf("Identities = %v; want [9]", ids)
	}
}

func TestFlattenInsertionOrder(t *testing.T) {
	store := New()
	store.Append("9", feature.Vector{1})
	store.Append("7", feature.Vector{2})
	store.Append("9", feature.Vector{3})

	entries := store.Flatten()
	if len(entries) != 3 {
		t.Fatalf("Flatten returned %d entries; want 3", len(entries))
	}
	// All of "9"'s samples come before "7"'s: identity insertion order,
	// then sample order.
	want := []string{"9", "9", "7"}
	for i, entry := range entries {
		if entry.ID != want[i] {
			t.Errorf("entries[%d].ID = %s; want %s", i, entry.ID, want[i])
		}
	}
}
