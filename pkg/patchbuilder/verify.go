package patchbuilder

import (
	"sort"

	"github.com/subsecond-dev/subsecond/pkg/objmodel"
	"github.com/subsecond-dev/subsecond/pkg/subserr"
	"github.com/subsecond-dev/subsecond/pkg/utils"
)

// verifyExports re-opens the linked artifact through the object model
// and checks its exported symbol set matches want exactly: every
// requested symbol survived dead-stripping, and the linker didn't drag
// in something extra that the dispatcher would then have no indirection
// slot for.
func verifyExports(path string, want []string) error {
	artifact, err := objmodel.Load(path)
	if err != nil {
		return subserr.Wrap(subserr.ErrBuilderVerificationFailed, "reopening linked artifact: %v", err)
	}

	got := artifact.ExportedNames()
	wantSorted := append([]string(nil), want...)
	sort.Strings(wantSorted)

	missing, extra := diffStringSets(wantSorted, got)
	if len(missing) > 0 || len(extra) > 0 {
		return subserr.Wrap(subserr.ErrBuilderVerificationFailed,
			"exported set mismatch: missing %v, extra %v", missing, extra)
	}
	return nil
}

// diffStringSets reports elements of want absent from got, and elements
// of got absent from want. Both slices must already be sorted.
func diffStringSets(want, got []string) (missing, extra []string) {
	wantSet := utils.GenMap(want, func(w string) string { return w })
	gotSet := utils.GenMap(got, func(g string) string { return g })
	for _, w := range want {
		if _, ok := gotSet[w]; !ok {
			missing = append(missing, w)
		}
	}
	for _, g := range got {
		if _, ok := wantSet[g]; !ok {
			extra = append(extra, g)
		}
	}
	return missing, extra
}
