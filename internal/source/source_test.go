package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-vhdeps/vhdeps/internal/cache"
	"github.com/go-vhdeps/vhdeps/internal/vherr"
)

func TestParseSpecPathOnly(t *testing.T) {
	s := ParseSpec("foo.vhd")
	if s.Library != "work" || s.Path != "foo.vhd" || s.Version != nil {
		t.Fatalf("unexpected spec: %+v", s)
	}
}

func TestParseSpecLibAndPath(t *testing.T) {
	s := ParseSpec("mylib:foo.vhd")
	if s.Library != "mylib" || s.Path != "foo.vhd" || s.Version != nil {
		t.Fatalf("unexpected spec: %+v", s)
	}
}

func TestParseSpecVersionLibPath(t *testing.T) {
	s := ParseSpec("93:mylib:foo.vhd")
	if s.Library != "mylib" || s.Path != "foo.vhd" {
		t.Fatalf("unexpected spec: %+v", s)
	}
	if s.Version == nil || *s.Version != 1993 {
		t.Fatalf("expected version 1993, got %v", s.Version)
	}
}

func TestScanDirectoryRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(dir, "foo.vhd"), "entity foo is\nend entity;\n")
	mustWrite(t, filepath.Join(sub, "bar.vhdl"), "entity bar is\nend entity;\n")
	mustWrite(t, filepath.Join(dir, "notes.txt"), "not vhdl")

	files, err := Scan(Spec{Library: "work", Path: dir}, Options{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
}

func TestScanGlobPath(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "foo.vhd"), "entity foo is\nend entity;\n")
	mustWrite(t, filepath.Join(dir, "bar.vhd"), "entity bar is\nend entity;\n")
	mustWrite(t, filepath.Join(dir, "notes.txt"), "not vhdl")
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(sub, "baz.vhd"), "entity baz is\nend entity;\n")

	files, err := Scan(Spec{Library: "work", Path: filepath.Join(dir, "*.vhd")}, Options{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected the non-recursive glob to match 2 files, got %d: %+v", len(files), files)
	}
}

func TestScanCachedFileRechecksStyleOnStrictHit(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "wrongname.vhd")
	mustWrite(t, p, "entity foo is\nend entity;\n")

	c := cache.New(filepath.Join(dir, ".cache"))
	nonStrict := Options{Cache: c}
	if _, err := Scan(Spec{Library: "work", Path: p}, nonStrict); err != nil {
		t.Fatalf("non-strict Scan: %v", err)
	}

	strict := Options{Cache: c, Strict: true}
	_, err := Scan(Spec{Library: "work", Path: p}, strict)
	if err == nil {
		t.Fatal("expected a style error on a strict re-scan of a cached file")
	}
	if kind, ok := vherr.KindOf(err); !ok || kind != vherr.KindStyle {
		t.Fatalf("expected KindStyle, got %v", err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
