package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-vhdeps/vhdeps/internal/registry"
	"github.com/go-vhdeps/vhdeps/internal/unit"
	"github.com/go-vhdeps/vhdeps/internal/vherr"
)

func mkFile(t *testing.T, dir, name, content string, opts unit.Options) *unit.File {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := unit.New(p, opts)
	if err != nil {
		t.Fatalf("unit.New(%s): %v", name, err)
	}
	return f
}

func TestResolveStrongEdgeFromEntityUse(t *testing.T) {
	dir := t.TempDir()
	bar := mkFile(t, dir, "bar.vhd", "entity bar is\nend entity;\n", unit.Options{Library: "work"})
	top := mkFile(t, dir, "top.vhd", `
entity top is
end entity;
architecture rtl of top is
begin
  u1: entity work.bar port map (x => x);
end architecture;
`, unit.Options{Library: "work"})

	reg := registry.New([]*unit.File{bar, top}, registry.ModeSim, nil, 0)
	if err := Resolve(top, reg); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(top.StrongPreds) != 1 || top.StrongPreds[0] != bar {
		t.Fatalf("expected strong pred bar, got %v", top.StrongPreds)
	}
	if len(top.WeakPreds) != 0 {
		t.Fatalf("expected no weak preds, got %v", top.WeakPreds)
	}
}

func TestResolveWeakEdgeFromComponentUse(t *testing.T) {
	dir := t.TempDir()
	bar := mkFile(t, dir, "bar.vhd", "entity bar is\nend entity;\n", unit.Options{Library: "work"})
	top := mkFile(t, dir, "top.vhd", `
entity top is
end entity;
architecture rtl of top is
  component bar is
  end component;
begin
  u1: bar port map (x => x);
end architecture;
`, unit.Options{Library: "work"})

	reg := registry.New([]*unit.File{bar, top}, registry.ModeSim, nil, 0)
	if err := Resolve(top, reg); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(top.WeakPreds) != 1 || top.WeakPreds[0] != bar {
		t.Fatalf("expected weak pred bar, got %v", top.WeakPreds)
	}
	if len(top.StrongPreds) != 0 {
		t.Fatalf("expected no strong preds, got %v", top.StrongPreds)
	}
}

func TestResolveNoSelfDependency(t *testing.T) {
	dir := t.TempDir()
	f := mkFile(t, dir, "top.vhd", `
package util_pkg is
end package util_pkg;

entity top is
end entity;
architecture rtl of top is
begin
  u1: entity work.top port map (x => x);
end architecture;
`, unit.Options{Library: "work"})
	reg := registry.New([]*unit.File{f}, registry.ModeSim, nil, 0)
	if err := Resolve(f, reg); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, dep := range append(append([]*unit.File{}, f.StrongPreds...), f.WeakPreds...) {
		if dep == f {
			t.Fatalf("file must not depend on itself")
		}
	}
}

func TestResolveBlackBoxDisallowed(t *testing.T) {
	dir := t.TempDir()
	top := mkFile(t, dir, "top.vhd", `
entity top is
end entity;
architecture rtl of top is
  component missing_entity is
  end component;
begin
  u1: missing_entity port map (x => x);
end architecture;
`, unit.Options{Library: "work", AllowBlackBox: false})
	reg := registry.New([]*unit.File{top}, registry.ModeSim, nil, 0)
	err := Resolve(top, reg)
	if err == nil {
		t.Fatalf("expected black-box error")
	}
	if kind, ok := vherr.KindOf(err); !ok || kind != vherr.KindBlackBox {
		t.Fatalf("expected BlackBox kind, got %v", err)
	}
}

func TestResolveBlackBoxAllowed(t *testing.T) {
	dir := t.TempDir()
	top := mkFile(t, dir, "top.vhd", `
entity top is
end entity;
architecture rtl of top is
  component missing_entity is
  end component;
begin
  u1: missing_entity port map (x => x);
end architecture;
`, unit.Options{Library: "work", AllowBlackBox: true})
	reg := registry.New([]*unit.File{top}, registry.ModeSim, nil, 0)
	if err := Resolve(top, reg); err != nil {
		t.Fatalf("expected no error with allow_bb, got %v", err)
	}
	if len(top.WeakPreds) != 0 {
		t.Fatalf("expected no weak preds for tolerated black box")
	}
}

func TestResolveIdempotent(t *testing.T) {
	dir := t.TempDir()
	bar := mkFile(t, dir, "bar.vhd", "entity bar is\nend entity;\n", unit.Options{Library: "work"})
	top := mkFile(t, dir, "top.vhd", `
entity top is
end entity;
architecture rtl of top is
begin
  u1: entity work.bar port map (x => x);
end architecture;
`, unit.Options{Library: "work"})
	reg := registry.New([]*unit.File{bar, top}, registry.ModeSim, nil, 0)
	if err := Resolve(top, reg); err != nil {
		t.Fatal(err)
	}
	first := top.StrongPreds
	if err := Resolve(top, reg); err != nil {
		t.Fatal(err)
	}
	if len(top.StrongPreds) != len(first) {
		t.Fatalf("expected idempotent resolve, got %v vs %v", top.StrongPreds, first)
	}
}

func TestResolveIgnoresStandardLibraries(t *testing.T) {
	dir := t.TempDir()
	top := mkFile(t, dir, "top.vhd", `
use ieee.std_logic_1164.all;
use std.textio.all;
entity top is
end entity;
`, unit.Options{Library: "work"})
	reg := registry.New([]*unit.File{top}, registry.ModeSim, nil, 0)
	if err := Resolve(top, reg); err != nil {
		t.Fatalf("expected no error for ieee/std uses, got %v", err)
	}
	if len(top.StrongPreds) != 0 {
		t.Fatalf("expected no strong preds, got %v", top.StrongPreds)
	}
}
