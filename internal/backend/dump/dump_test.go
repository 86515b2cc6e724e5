package dump

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-vhdeps/vhdeps/internal/registry"
	"github.com/go-vhdeps/vhdeps/internal/order"
	"github.com/go-vhdeps/vhdeps/internal/unit"
)

func mkFile(t *testing.T, dir, name, content string) *unit.File {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := unit.New(p, unit.Options{Library: "work"})
	if err != nil {
		t.Fatalf("unit.New(%s): %v", name, err)
	}
	return f
}

// Scenario 1 (§8): three self-contained files dump as three "top work
// 2008 <path>" lines, sorted by path.
func TestWriteScenarioOne(t *testing.T) {
	dir := t.TempDir()
	bar := mkFile(t, dir, "bar_tc.vhd", "entity bar_tc is\nend entity;\n")
	baz := mkFile(t, dir, "baz.vhd", "entity baz is\nend entity;\n")
	foo := mkFile(t, dir, "foo_tc.vhd", "entity foo_tc is\nend entity;\n")

	reg := registry.New([]*unit.File{bar, baz, foo}, registry.ModeSim, nil, 0)
	compileOrder, _, err := order.Build(reg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, compileOrder, reg.DesiredVersion); err != nil {
		t.Fatalf("Write: %v", err)
	}

	lines := splitLines(buf.String())
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	for _, l := range lines {
		if l[:14] != "top work 2008 " {
			t.Fatalf("expected every line to start %q, got %q", "top work 2008 ", l)
		}
	}
	for i := 1; i < len(lines); i++ {
		if lines[i-1] > lines[i] {
			t.Fatalf("expected lines sorted by path, got %v", lines)
		}
	}
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
