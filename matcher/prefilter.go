package matcher

import "imagededup/types"

// Prefilter is the cheap first tier: one algorithm at the reference scale
// and size, compared over the configured angles against a looser
// threshold. Pairs that fail it never reach Match. Exact duplicates and
// failed records pass through so that Match decides them.
func (m *Matcher) Prefilter(a, b *types.ImageRecord) (bool, error) {
	if !m.params.Prefilter.Enabled {
		return true, nil
	}
	if a.Failed() || b.Failed() {
		return true, nil
	}
	if a.ContentHash != "" && a.ContentHash == b.ContentHash {
		return true, nil
	}
	if m.params.DetectPureColor && (a.Uniform() || b.Uniform()) {
		return false, nil
	}

	alg := m.params.Prefilter.Algorithm
	evaluated := false
	for _, angle := range m.angles {
		d, ok, err := m.alignedDistance(a, b, alg, angle, m.refScale)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		evaluated = true
		if d <= m.params.Prefilter.Threshold {
			return true, nil
		}
	}
	// Without the prefilter hash there is nothing cheap to reject on
	return !evaluated, nil
}
