package grouping

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"imagededup/matcher"
	"imagededup/types"
)

// SummarizeReason explains a group from its edges. Algorithms passing on
// at least half of the perceptual edges are listed, most frequent first.
func SummarizeReason(edges []types.Edge, refScale float64) string {
	exact := 0
	perceptual := 0
	counts := make(map[types.Algorithm]int)
	angles := make(map[int]bool)
	scales := make(map[float64]bool)

	for _, e := range edges {
		if e.Exact {
			exact++
			continue
		}
		perceptual++
		for _, alg := range e.Passed {
			counts[alg]++
		}
		if e.Angle != 0 {
			angles[e.Angle] = true
		}
		if e.Scale != 0 && e.Scale != refScale {
			scales[e.Scale] = true
		}
	}

	var parts []string
	if exact > 0 {
		parts = append(parts, matcher.ReasonIdentical)
	}

	if perceptual > 0 {
		algs := make([]types.Algorithm, 0, len(counts))
		for alg := range counts {
			algs = append(algs, alg)
		}
		sort.Slice(algs, func(i, j int) bool {
			if counts[algs[i]] != counts[algs[j]] {
				return counts[algs[i]] > counts[algs[j]]
			}
			return slices.Index(types.AllAlgorithms, algs[i]) < slices.Index(types.AllAlgorithms, algs[j])
		})

		var names []string
		for k, alg := range algs {
			if k == 0 || counts[alg]*2 >= perceptual {
				names = append(names, alg.DisplayName())
			}
		}

		desc := strings.Join(names, "+") + " similar"
		var notes []string
		if len(angles) > 0 {
			notes = append(notes, "rotated "+joinSorted(angles, func(a int) string { return fmt.Sprintf("%d°", a) }))
		}
		if len(scales) > 0 {
			notes = append(notes, "scaled "+joinSorted(scales, func(s float64) string { return fmt.Sprintf("%gx", s) }))
		}
		if len(notes) > 0 {
			desc += " (" + strings.Join(notes, "; ") + ")"
		}
		parts = append(parts, desc)
	}

	return strings.Join(parts, "; ")
}

func joinSorted[T int | float64](set map[T]bool, format func(T) string) string {
	keys := make([]T, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = format(k)
	}
	return strings.Join(out, ", ")
}
