package resource

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func openTestBundle(t *testing.T) *Bundle {
	t.Helper()
	b, err := OpenBundle(filepath.Join(t.TempDir(), "patch.db"))
	if err != nil {
		t.Fatalf("OpenBundle failed: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBundlePutLoad(t *testing.T) {
	b := openTestBundle(t)

	v, err := b.Put("Lua/Game.lua", []byte("return {}"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if v != 1 {
		t.Errorf("expected version 1, got %d", v)
	}

	v, err = b.Put("/Lua/Game.lua", []byte("return { Start = nil }"))
	if err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	if v != 2 {
		t.Errorf("expected version 2, got %d", v)
	}

	data, err := b.SyncLoad("Lua/Game.lua")
	if err != nil {
		t.Fatalf("SyncLoad failed: %v", err)
	}
	if string(data) != "return { Start = nil }" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestBundleMissing(t *testing.T) {
	b := openTestBundle(t)

	if _, err := b.SyncLoad("Lua/Missing.lua"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := b.Put("../escape.lua", []byte("x")); err == nil {
		t.Error("expected invalid path error")
	}
}

func TestBundleListRemove(t *testing.T) {
	b := openTestBundle(t)

	b.Put("Lua/b.lua", []byte("bb"))
	b.Put("Lua/a.lua", []byte("a"))

	entries, err := b.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Path != "Lua/a.lua" || entries[0].Size != 1 {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Path != "Lua/b.lua" || entries[1].Size != 2 {
		t.Errorf("unexpected second entry %+v", entries[1])
	}

	if err := b.Remove("Lua/a.lua"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := b.SyncLoad("Lua/a.lua"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestBundlePack(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "ui"), 0755)
	os.WriteFile(filepath.Join(dir, "Game.lua"), []byte("return {}"), 0644)
	os.WriteFile(filepath.Join(dir, "ui", "Panel.lua"), []byte("return 2"), 0644)

	b := openTestBundle(t)
	n, err := b.Pack(dir, "Lua")
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 files packed, got %d", n)
	}

	data, err := b.SyncLoad("Lua/ui/Panel.lua")
	if err != nil || string(data) != "return 2" {
		t.Errorf("expected packed content, got %q, %v", data, err)
	}
}

func TestBundlePersists(t *testing.T) {
	file := filepath.Join(t.TempDir(), "patch.db")

	b, err := OpenBundle(file)
	if err != nil {
		t.Fatal(err)
	}
	b.Put("Lua/Game.lua", []byte("return {}"))
	b.Close()

	b, err = OpenBundle(file)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if _, err := b.SyncLoad("Lua/Game.lua"); err != nil {
		t.Errorf("expected content after reopen, got %v", err)
	}
}
