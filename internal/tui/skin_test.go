package tui

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitializeSkinDefault(t *testing.T) {
	if err := InitializeSkin("default", t.TempDir()); err != nil {
		t.Fatalf("default skin: %v", err)
	}
	if err := InitializeSkin("", t.TempDir()); err != nil {
		t.Fatalf("empty skin name: %v", err)
	}
}

func TestInitializeSkinFromFile(t *testing.T) {
	dir := t.TempDir()
	skinDir := filepath.Join(dir, "skins")
	if err := os.MkdirAll(skinDir, 0o755); err != nil {
		t.Fatal(err)
	}
	skinYAML := []byte("title: \"99\"\nstatus-failed: \"90\"\nseverity:\n  ERROR: \"91\"\n")
	if err := os.WriteFile(filepath.Join(skinDir, "dark.yml"), skinYAML, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := InitializeSkin("dark", dir); err != nil {
		t.Fatalf("load skin: %v", err)
	}
	t.Cleanup(func() { applySkin(DefaultSkin()) })

	if _, ok := severityStyles["ERROR"]; !ok {
		t.Fatal("severity styles not rebuilt")
	}
}

func TestInitializeSkinMissingFile(t *testing.T) {
	if err := InitializeSkin("nope", t.TempDir()); err == nil {
		t.Fatal("expected an error for a missing skin file")
	}
}

func TestInitializeSkinMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	skinDir := filepath.Join(dir, "skins")
	if err := os.MkdirAll(skinDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(skinDir, "bad.yml"), []byte("title: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := InitializeSkin("bad", dir); err == nil {
		t.Fatal("expected an error for malformed yaml")
	}
}
