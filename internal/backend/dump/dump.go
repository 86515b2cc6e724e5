// Package dump implements the dump output format of §6: one line per
// file in the compile order, "{role} {library} {version4} {path}",
// where role is "top" or "dep". This has no equivalent in the original
// tool (whose targets all drive a simulator or emit a simulator script);
// it is the literal §6/§8 contract made runnable, grounded on the shape
// §8's scenarios already specify rather than on any one source file.
package dump

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-vhdeps/vhdeps/internal/order"
	"github.com/go-vhdeps/vhdeps/internal/unit"
)

// Write emits the compile order to w, one line per file, sorted by path
// (§8 scenario 1: "dump emits ... lines ... sorted by path").
func Write(w io.Writer, compileOrder []*unit.File, desiredVersion int) error {
	tops := map[*unit.File]bool{}
	for _, f := range order.TopLevels(compileOrder) {
		tops[f] = true
	}

	sorted := append([]*unit.File{}, compileOrder...)
	sortByPath(sorted)

	for _, f := range sorted {
		role := "dep"
		if tops[f] {
			role = "top"
		}
		if _, err := fmt.Fprintf(w, "%s %s %d %s\n", role, f.Library, f.EffectiveVersion(desiredVersion), f.Path); err != nil {
			return err
		}
	}
	return nil
}

func sortByPath(files []*unit.File) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}
