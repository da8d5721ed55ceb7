package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"slices"
	"strings"

	apperrors "imagededup/errors"
	"imagededup/types"

	"gopkg.in/yaml.v3"
)

const (
	// MaxHashSize bounds hash sizes for every algorithm. pHash works on a
	// 4*size square, so 32 keeps its DCT at 128x128.
	MaxHashSize    = 32
	MinWorkingSize = 32
	MaxScale       = 4.0
)

// Provider modes
const (
	ProviderAuto   = "auto"
	ProviderNative = "native"
	ProviderPure   = "pure"
)

// PrefilterParams configures the cheap first matching tier
type PrefilterParams struct {
	Enabled   bool            `yaml:"enabled" json:"enabled"`
	Algorithm types.Algorithm `yaml:"algorithm" json:"algorithm"`
	Threshold int             `yaml:"threshold" json:"threshold"`
}

// AnalysisParams is the immutable configuration of one analysis run
type AnalysisParams struct {
	DHashThreshold        int               `yaml:"dhash_threshold" json:"dhash_threshold"`
	PHashThreshold        int               `yaml:"phash_threshold" json:"phash_threshold"`
	AHashThreshold        int               `yaml:"ahash_threshold" json:"ahash_threshold"`
	DetectPureColor       bool              `yaml:"detect_pure_color" json:"detect_pure_color"`
	PureColorStdThreshold float64           `yaml:"pure_color_std_threshold" json:"pure_color_std_threshold"`
	DetectRotation        bool              `yaml:"detect_rotation" json:"detect_rotation"`
	RecursiveScan         bool              `yaml:"recursive_scan" json:"recursive_scan"`
	Angles                []int             `yaml:"angles" json:"angles"`
	Scales                []float64         `yaml:"scales" json:"scales"`
	HashSizes             []int             `yaml:"hash_sizes" json:"hash_sizes"`
	Algorithms            []types.Algorithm `yaml:"algorithms" json:"algorithms"`
	Prefilter             PrefilterParams   `yaml:"prefilter" json:"prefilter"`
	CrossScale            bool              `yaml:"cross_scale" json:"cross_scale"`
	WorkingSize           int               `yaml:"working_size" json:"working_size"`
	Workers               int               `yaml:"workers" json:"workers"`
	Provider              string            `yaml:"provider" json:"provider"`
}

// DefaultParams returns the default configuration: 4 angles x 3 scales x
// 1 hash size x 3 algorithms = 36 signature entries per image.
func DefaultParams() AnalysisParams {
	return AnalysisParams{
		DHashThreshold:        8,
		PHashThreshold:        2,
		AHashThreshold:        2,
		DetectPureColor:       true,
		PureColorStdThreshold: 3.0,
		DetectRotation:        true,
		RecursiveScan:         true,
		Angles:                []int{0, 90, 180, 270},
		Scales:                []float64{0.75, 1.0, 1.25},
		HashSizes:             []int{8},
		Algorithms:            []types.Algorithm{types.DHash, types.PHash, types.AHash},
		Prefilter: PrefilterParams{
			Enabled:   true,
			Algorithm: types.DHash,
			Threshold: 16,
		},
		WorkingSize: 512,
		Provider:    ProviderAuto,
	}
}

// LoadFile reads a YAML parameter file over the defaults
func LoadFile(path string) (AnalysisParams, error) {
	params := DefaultParams()

	data, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return params, apperrors.NewInvalidParameterError("malformed config file", err).WithPath(path)
	}
	return params, nil
}

// Threshold returns the configured distance threshold for an algorithm
func (p AnalysisParams) Threshold(alg types.Algorithm) int {
	switch alg {
	case types.DHash:
		return p.DHashThreshold
	case types.PHash:
		return p.PHashThreshold
	case types.AHash:
		return p.AHashThreshold
	}
	return 0
}

// ReferenceScale is 1.0 when configured, otherwise the first scale
func (p AnalysisParams) ReferenceScale() float64 {
	if slices.Contains(p.Scales, 1.0) {
		return 1.0
	}
	if len(p.Scales) > 0 {
		return p.Scales[0]
	}
	return 1.0
}

// ReferenceHashSize is the first configured hash size
func (p AnalysisParams) ReferenceHashSize() int {
	if len(p.HashSizes) > 0 {
		return p.HashSizes[0]
	}
	return 8
}

// SignatureAngles returns the angles the generator renders. With rotation
// detection off only the upright orientation is hashed.
func (p AnalysisParams) SignatureAngles() []int {
	if !p.DetectRotation {
		return []int{0}
	}
	return p.Angles
}

// Combinations is the number of signature entries produced per image
func (p AnalysisParams) Combinations() int {
	return len(p.SignatureAngles()) * len(p.Scales) * len(p.HashSizes) * len(p.Algorithms)
}

// Clone returns a copy that shares no slices with p
func (p AnalysisParams) Clone() AnalysisParams {
	c := p
	c.Angles = slices.Clone(p.Angles)
	c.Scales = slices.Clone(p.Scales)
	c.HashSizes = slices.Clone(p.HashSizes)
	c.Algorithms = slices.Clone(p.Algorithms)
	return c
}

// Fingerprint digests every option that shapes a signature bundle, plus the
// name of the provider that computed it. Cached bundles are only reused
// under an identical fingerprint.
func (p AnalysisParams) Fingerprint(provider string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "angles=%v;scales=%v;sizes=%v;algs=%v;", p.SignatureAngles(), p.Scales, p.HashSizes, p.Algorithms)
	fmt.Fprintf(&b, "working=%d;pure=%v/%g;provider=%s", p.WorkingSize, p.DetectPureColor, p.PureColorStdThreshold, provider)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// Validate checks the parameters before any batch work starts
func (p AnalysisParams) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return apperrors.NewInvalidParameterError(fmt.Sprintf(format, args...), nil)
	}

	for _, t := range []struct {
		name  string
		value int
	}{
		{"dhash_threshold", p.DHashThreshold},
		{"phash_threshold", p.PHashThreshold},
		{"ahash_threshold", p.AHashThreshold},
	} {
		if t.value < 0 {
			return invalid("%s must be >= 0, got %d", t.name, t.value)
		}
	}

	if p.PureColorStdThreshold < 0 {
		return invalid("pure_color_std_threshold must be >= 0, got %g", p.PureColorStdThreshold)
	}

	if len(p.Algorithms) == 0 {
		return invalid("at least one algorithm must be enabled")
	}
	seenAlg := make(map[types.Algorithm]bool)
	for _, alg := range p.Algorithms {
		if !alg.Valid() {
			return invalid("unknown algorithm %q", alg)
		}
		if seenAlg[alg] {
			return invalid("duplicate algorithm %q", alg)
		}
		seenAlg[alg] = true
	}

	if len(p.Angles) == 0 {
		return invalid("angles must not be empty")
	}
	seenAngle := make(map[int]bool)
	for _, a := range p.Angles {
		if a < 0 || a >= 360 {
			return invalid("angle %d out of range [0,360)", a)
		}
		if seenAngle[a] {
			return invalid("duplicate angle %d", a)
		}
		seenAngle[a] = true
	}
	if !seenAngle[0] {
		return invalid("angles must include 0")
	}

	if len(p.Scales) == 0 {
		return invalid("scales must not be empty")
	}
	seenScale := make(map[float64]bool)
	for _, s := range p.Scales {
		if s <= 0 || s > MaxScale {
			return invalid("scale %g out of range (0,%g]", s, MaxScale)
		}
		if seenScale[s] {
			return invalid("duplicate scale %g", s)
		}
		seenScale[s] = true
	}

	if len(p.HashSizes) == 0 {
		return invalid("hash_sizes must not be empty")
	}
	seenSize := make(map[int]bool)
	for _, s := range p.HashSizes {
		if s <= 0 || s > MaxHashSize {
			return invalid("hash size %d out of range [1,%d]", s, MaxHashSize)
		}
		if seenSize[s] {
			return invalid("duplicate hash size %d", s)
		}
		seenSize[s] = true
	}

	if p.Prefilter.Enabled {
		if !seenAlg[p.Prefilter.Algorithm] {
			return invalid("prefilter algorithm %q is not enabled", p.Prefilter.Algorithm)
		}
		if p.Prefilter.Threshold < p.Threshold(p.Prefilter.Algorithm) {
			return invalid("prefilter threshold %d is stricter than the %s threshold %d",
				p.Prefilter.Threshold, p.Prefilter.Algorithm, p.Threshold(p.Prefilter.Algorithm))
		}
	}

	if p.WorkingSize < MinWorkingSize {
		return invalid("working_size must be >= %d, got %d", MinWorkingSize, p.WorkingSize)
	}
	if p.Workers < 0 {
		return invalid("workers must be >= 0, got %d", p.Workers)
	}

	switch p.Provider {
	case ProviderAuto, ProviderNative, ProviderPure:
	default:
		return invalid("unknown provider mode %q", p.Provider)
	}

	return nil
}
