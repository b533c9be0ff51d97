package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kalambet/partsbin/internal/catalog"
)

func openTestSettings(t *testing.T) *SettingsStore {
	t.Helper()
	s, err := OpenSettings(":memory:")
	if err != nil {
		t.Fatalf("OpenSettings(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func openTestInventory(t *testing.T) *InventoryStore {
	t.Helper()
	s, err := OpenInventory(":memory:")
	if err != nil {
		t.Fatalf("OpenInventory(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent opens the same files twice and verifies that no
// migration is applied a second time.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := OpenSettings(dir)
	if err != nil {
		t.Fatalf("first OpenSettings failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := OpenSettings(dir)
	if err != nil {
		t.Fatalf("second OpenSettings failed: %v", err)
	}
	defer s2.Close()
	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) || len(v1) == 0 {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestOpenInventory_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bench.db")

	s, err := OpenInventory(path)
	if err != nil {
		t.Fatalf("OpenInventory: %v", err)
	}
	defer s.Close()

	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Errorf("versions = %v, want [1 ...]", versions)
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("001_init.sql")
	if err != nil || v != 1 {
		t.Errorf("parseMigrationVersion = %d, %v; want 1, nil", v, err)
	}
	if _, err := parseMigrationVersion("init.sql"); err == nil {
		t.Error("expected error for unnumbered migration")
	}
}

func TestSettings_GetSet(t *testing.T) {
	s := openTestSettings(t)
	ctx := context.Background()

	if _, err := s.GetSetting(ctx, "theme"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSetting(missing) err = %v, want ErrNotFound", err)
	}

	if err := s.SetSetting(ctx, "theme", "dark"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := s.SetSetting(ctx, "theme", "light"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}

	got, err := s.GetSetting(ctx, "theme")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if got != "light" {
		t.Errorf("theme = %q, want %q", got, "light")
	}

	all, err := s.AllSettings(ctx)
	if err != nil {
		t.Fatalf("AllSettings: %v", err)
	}
	if len(all) != 1 || all["theme"] != "light" {
		t.Errorf("AllSettings = %v", all)
	}

	if err := s.DeleteSetting(ctx, "theme"); err != nil {
		t.Fatalf("DeleteSetting: %v", err)
	}
	if _, err := s.GetSetting(ctx, "theme"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
}

func TestSettings_Inventories(t *testing.T) {
	s := openTestSettings(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	inv := Inventory{ID: "i1", Name: "Bench", Path: "bench.db", CreatedAt: now}
	if err := s.CreateInventory(ctx, inv); err != nil {
		t.Fatalf("CreateInventory: %v", err)
	}

	dup := Inventory{ID: "i2", Name: "bench", Path: "bench2.db", CreatedAt: now}
	if err := s.CreateInventory(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate name err = %v, want ErrDuplicate", err)
	}

	got, err := s.GetInventory(ctx, "i1")
	if err != nil {
		t.Fatalf("GetInventory: %v", err)
	}
	if got.Name != "Bench" || got.Path != "bench.db" || !got.CreatedAt.Equal(now) {
		t.Errorf("GetInventory = %+v", got)
	}

	list, err := s.ListInventories(ctx)
	if err != nil {
		t.Fatalf("ListInventories: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListInventories len = %d, want 1", len(list))
	}

	if err := s.DeleteInventory(ctx, "i1"); err != nil {
		t.Fatalf("DeleteInventory: %v", err)
	}
	if err := s.DeleteInventory(ctx, "i1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetInventory(ctx, "i1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetInventory after delete err = %v, want ErrNotFound", err)
	}
}

func TestSettings_Categories(t *testing.T) {
	s := openTestSettings(t)
	ctx := context.Background()

	c := catalog.Category{ID: "op_amp", Name: "Op Amp", Attributes: []string{"Channels", "Slew Rate"}}
	if err := s.SaveCategory(ctx, c); err != nil {
		t.Fatalf("SaveCategory: %v", err)
	}
	if err := s.SaveCategory(ctx, c); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second SaveCategory err = %v, want ErrDuplicate", err)
	}

	cats, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 1 {
		t.Fatalf("ListCategories len = %d, want 1", len(cats))
	}
	if cats[0].Name != "Op Amp" || len(cats[0].Attributes) != 2 || cats[0].Attributes[1] != "Slew Rate" {
		t.Errorf("category = %+v", cats[0])
	}

	if err := s.DeleteCategory(ctx, "op_amp"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if err := s.DeleteCategory(ctx, "op_amp"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteCategory err = %v, want ErrNotFound", err)
	}
}

// The settings store is the registry's persistence layer.
var _ catalog.CategoryStore = (*SettingsStore)(nil)
