package matcher

import (
	"fmt"
	"slices"
	"strings"

	"imagededup/config"
	"imagededup/imageprocessor"
	"imagededup/types"
)

// ReasonIdentical tags matches found by the exact-content shortcut
const ReasonIdentical = "identical file"

// Matcher decides whether two image records are duplicates. It only reads
// the bundles it is given and is safe for concurrent use.
type Matcher struct {
	params     config.AnalysisParams
	angles     []int
	refScale   float64
	refSize    int
	thresholds map[types.Algorithm]int
}

// New builds a matcher from validated parameters
func New(params config.AnalysisParams) *Matcher {
	m := &Matcher{
		params:     params,
		angles:     params.SignatureAngles(),
		refScale:   params.ReferenceScale(),
		refSize:    params.ReferenceHashSize(),
		thresholds: make(map[types.Algorithm]int),
	}
	for _, alg := range params.Algorithms {
		m.thresholds[alg] = params.Threshold(alg)
	}
	return m
}

// candidate is one (angle, scale) alignment of B relative to A
type candidate struct {
	angle     int
	scale     float64
	distances map[types.Algorithm]int
	sum       int
	passes    bool
}

// Match compares a and b. A pair matches when any enabled algorithm is
// within its threshold at any configured angle. Errors are confined to this
// comparison.
func (m *Matcher) Match(a, b *types.ImageRecord) (types.MatchResult, error) {
	if a.Failed() || b.Failed() {
		return types.MatchResult{}, nil
	}

	if a.ContentHash != "" && a.ContentHash == b.ContentHash {
		return types.MatchResult{
			IsMatch: true,
			Exact:   true,
			Scale:   m.refScale,
			Reason:  ReasonIdentical,
		}, nil
	}

	if m.params.DetectPureColor && (a.Uniform() || b.Uniform()) {
		return types.MatchResult{}, nil
	}

	scales := []float64{m.refScale}
	if m.params.CrossScale {
		scales = m.params.Scales
	}

	var candidates []candidate
	for _, angle := range m.angles {
		for _, scale := range scales {
			c := candidate{angle: angle, scale: scale, distances: make(map[types.Algorithm]int)}
			for _, alg := range m.params.Algorithms {
				d, ok, err := m.alignedDistance(a, b, alg, angle, scale)
				if err != nil {
					return types.MatchResult{}, fmt.Errorf("comparing %s with %s: %w", a.Path, b.Path, err)
				}
				if !ok {
					continue
				}
				c.distances[alg] = d
				c.sum += d
				if d <= m.thresholds[alg] {
					c.passes = true
				}
			}
			if len(c.distances) > 0 {
				candidates = append(candidates, c)
			}
		}
	}

	if len(candidates) == 0 {
		return types.MatchResult{}, nil
	}
	return m.summarize(candidates), nil
}

// alignedDistance is the smaller of A(0,ref) vs B(angle,scale) and
// A(angle,scale) vs B(0,ref), which keeps Match symmetric
func (m *Matcher) alignedDistance(a, b *types.ImageRecord, alg types.Algorithm, angle int, scale float64) (int, bool, error) {
	ref := types.SignatureKey{Algorithm: alg, Angle: 0, Scale: m.refScale, HashSize: m.refSize}
	aligned := types.SignatureKey{Algorithm: alg, Angle: angle, Scale: scale, HashSize: m.refSize}

	best, found := 0, false
	for _, pair := range [2][2]*types.ImageRecord{{a, b}, {b, a}} {
		x, okX := pair[0].Bundle.Lookup(ref)
		y, okY := pair[1].Bundle.Lookup(aligned)
		if !okX || !okY {
			continue
		}
		d, err := imageprocessor.Distance(x, y)
		if err != nil {
			return 0, false, err
		}
		if !found || d < best {
			best, found = d, true
		}
		if ref == aligned {
			break
		}
	}
	return best, found, nil
}

// summarize picks the reported alignment: the lowest distance sum among
// passing candidates, or among all when none pass. Ties go to the smaller
// folded angle, then to the reference scale.
func (m *Matcher) summarize(candidates []candidate) types.MatchResult {
	anyPass := slices.ContainsFunc(candidates, func(c candidate) bool { return c.passes })

	var best *candidate
	for i := range candidates {
		c := &candidates[i]
		if anyPass && !c.passes {
			continue
		}
		if best == nil || m.better(c, best) {
			best = c
		}
	}

	result := types.MatchResult{
		IsMatch: anyPass,
		Angle:   imageprocessor.FoldAngle(best.angle),
		Scale:   best.scale,
	}

	for _, alg := range m.params.Algorithms {
		minDist, minAngle, seen := 0, 0, false
		for _, c := range candidates {
			d, ok := c.distances[alg]
			if !ok {
				continue
			}
			if !seen || d < minDist {
				minDist, minAngle, seen = d, c.angle, true
			}
		}
		if !seen {
			continue
		}
		passed := minDist <= m.thresholds[alg]
		result.Distances = append(result.Distances, types.AlgorithmDistance{
			Algorithm: alg,
			Distance:  minDist,
			Threshold: m.thresholds[alg],
			Passed:    passed,
			Angle:     imageprocessor.FoldAngle(minAngle),
		})
		if passed {
			result.Passed = append(result.Passed, alg)
		}
	}

	if result.IsMatch {
		result.Reason = DescribeMatch(result)
	}
	return result
}

func (m *Matcher) better(c, best *candidate) bool {
	if c.sum != best.sum {
		return c.sum < best.sum
	}
	ca, ba := imageprocessor.FoldAngle(c.angle), imageprocessor.FoldAngle(best.angle)
	if ca != ba {
		return ca < ba
	}
	return c.scale == m.refScale && best.scale != m.refScale
}

// DescribeMatch renders a one-line explanation such as
// "dHash+pHash similar (rotated 90°)"
func DescribeMatch(r types.MatchResult) string {
	if r.Exact {
		return ReasonIdentical
	}
	names := make([]string, 0, len(r.Passed))
	for _, alg := range r.Passed {
		names = append(names, alg.DisplayName())
	}
	reason := strings.Join(names, "+") + " similar"
	if r.Angle != 0 {
		reason += fmt.Sprintf(" (rotated %d°)", r.Angle)
	}
	return reason
}
