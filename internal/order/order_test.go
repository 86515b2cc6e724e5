package order

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

func indexOf(files []*unit.File, f *unit.File) int {
	for i, g := range files {
		if g == f {
			return i
		}
	}
	return -1
}

// Scenario 1 (§8): three self-contained files, dump sorted by path, baz
// (no _tc suffix, nothing depends on it) is top-level alongside the two
// _tc entities.
func TestScenarioDefaultMultipleTestCases(t *testing.T) {
	dir := t.TempDir()
	bar := mkFile(t, dir, "bar_tc.vhd", "entity bar_tc is\nend entity;\n", unit.Options{Library: "work"})
	baz := mkFile(t, dir, "baz.vhd", "entity baz is\nend entity;\n", unit.Options{Library: "work"})
	foo := mkFile(t, dir, "foo_tc.vhd", "entity foo_tc is\nend entity;\n", unit.Options{Library: "work"})

	reg := registry.New([]*unit.File{bar, baz, foo}, registry.ModeSim, nil, 0)
	order, warnings, err := Build(reg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(order) != 3 {
		t.Fatalf("expected 3 files in order, got %d", len(order))
	}

	tops := TopLevels(order)
	if len(tops) != 3 {
		t.Fatalf("expected all 3 files to be top-level (no cross-deps), got %d", len(tops))
	}
}

// Scenario 5 (§8): component-reference cycle is tolerated (weak edges);
// direct entity-instantiation cycle is a Resolution.Cycle error.
func TestScenarioComponentCycleToleratedEntityCycleRejected(t *testing.T) {
	t.Run("component cycle ok", func(t *testing.T) {
		dir := t.TempDir()
		a := mkFile(t, dir, "a.vhd", `
entity a is
end entity;
architecture rtl of a is
  component b is
  end component;
begin
  u: b port map (x => x);
end architecture;
`, unit.Options{Library: "work"})
		b := mkFile(t, dir, "b.vhd", `
entity b is
end entity;
architecture rtl of b is
  component a is
  end component;
begin
  u: a port map (x => x);
end architecture;
`, unit.Options{Library: "work"})

		reg := registry.New([]*unit.File{a, b}, registry.ModeSim, nil, 0)
		order, _, err := Build(reg, nil)
		if err != nil {
			t.Fatalf("expected component cycle to be tolerated, got %v", err)
		}
		if len(order) != 2 {
			t.Fatalf("expected 2 files in order, got %d", len(order))
		}
	})

	t.Run("entity cycle rejected", func(t *testing.T) {
		dir := t.TempDir()
		a := mkFile(t, dir, "a.vhd", `
entity a is
end entity;
architecture rtl of a is
begin
  u: entity work.b port map (x => x);
end architecture;
`, unit.Options{Library: "work"})
		b := mkFile(t, dir, "b.vhd", `
entity b is
end entity;
architecture rtl of b is
begin
  u: entity work.a port map (x => x);
end architecture;
`, unit.Options{Library: "work"})

		reg := registry.New([]*unit.File{a, b}, registry.ModeSim, nil, 0)
		_, _, err := Build(reg, nil)
		if err == nil {
			t.Fatalf("expected cycle error")
		}
		if kind, ok := vherr.KindOf(err); !ok || kind != vherr.KindCycle {
			t.Fatalf("expected Cycle kind, got %v", err)
		}
	})
}

func TestOrderingLawStrongEdge(t *testing.T) {
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
	order, _, err := Build(reg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if indexOf(order, bar) >= indexOf(order, top) {
		t.Fatalf("expected bar before top in compile order, got %v", pathsOf(order))
	}

	tops := TopLevels(order)
	if len(tops) != 1 || tops[0] != top {
		t.Fatalf("expected only top to be top-level, got %v", pathsOf(tops))
	}
}

func pathsOf(files []*unit.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

// Scenario 6 (§8): root glob selection.
func TestRootGlobExpansion(t *testing.T) {
	dir := t.TempDir()
	fooTc := mkFile(t, dir, "foo_tc.vhd", "entity foo_tc is\nend entity;\n", unit.Options{Library: "work"})
	barTc := mkFile(t, dir, "bar_tc.vhd", "entity bar_tc is\nend entity;\n", unit.Options{Library: "work"})
	baz := mkFile(t, dir, "baz.vhd", "entity baz is\nend entity;\n", unit.Options{Library: "work"})

	reg := registry.New([]*unit.File{fooTc, barTc, baz}, registry.ModeSim, nil, 0)
	order, warnings, err := Build(reg, []Root{"bar_tc"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(order) != 1 || order[0] != barTc {
		t.Fatalf("expected only bar_tc in order, got %v", pathsOf(order))
	}
}

func TestRootGlobNoMatchWarns(t *testing.T) {
	dir := t.TempDir()
	baz := mkFile(t, dir, "baz.vhd", "entity baz is\nend entity;\n", unit.Options{Library: "work"})
	reg := registry.New([]*unit.File{baz}, registry.ModeSim, nil, 0)
	order, warnings, err := Build(reg, []Root{"nope*"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(order) != 0 {
		t.Fatalf("expected empty order, got %v", pathsOf(order))
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
}
