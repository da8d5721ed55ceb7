package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	apperrors "imagededup/errors"
	"imagededup/types"
)

func TestDefaultParamsAreValid(t *testing.T) {
	p := DefaultParams()
	if err := p.Validate(); err != nil {
		t.Fatalf("defaults failed validation: %v", err)
	}
	if got := p.Combinations(); got != 36 {
		t.Errorf("Combinations() = %d, want 36", got)
	}
	if p.ReferenceScale() != 1.0 || p.ReferenceHashSize() != 8 {
		t.Errorf("unexpected reference scale/size %g/%d", p.ReferenceScale(), p.ReferenceHashSize())
	}
}

func TestValidateRejectsBadParameters(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *AnalysisParams)
	}{
		{"negative threshold", func(p *AnalysisParams) { p.PHashThreshold = -1 }},
		{"zero hash size", func(p *AnalysisParams) { p.HashSizes = []int{0} }},
		{"oversized hash", func(p *AnalysisParams) { p.HashSizes = []int{MaxHashSize + 1} }},
		{"duplicate size", func(p *AnalysisParams) { p.HashSizes = []int{8, 8} }},
		{"angle out of range", func(p *AnalysisParams) { p.Angles = []int{0, 360} }},
		{"missing upright angle", func(p *AnalysisParams) { p.Angles = []int{90, 180} }},
		{"negative scale", func(p *AnalysisParams) { p.Scales = []float64{-0.5} }},
		{"empty scales", func(p *AnalysisParams) { p.Scales = nil }},
		{"unknown algorithm", func(p *AnalysisParams) { p.Algorithms = []types.Algorithm{"whash"} }},
		{"no algorithms", func(p *AnalysisParams) { p.Algorithms = nil }},
		{"strict prefilter", func(p *AnalysisParams) { p.Prefilter.Threshold = 2 }},
		{"prefilter algorithm disabled", func(p *AnalysisParams) {
			p.Algorithms = []types.Algorithm{types.PHash}
		}},
		{"tiny working size", func(p *AnalysisParams) { p.WorkingSize = 8 }},
		{"provider", func(p *AnalysisParams) { p.Provider = "gpu" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !apperrors.IsType(err, apperrors.ErrorTypeInvalidParameter) {
				t.Errorf("expected invalid_parameter, got %v", err)
			}
		})
	}
}

func TestSignatureAnglesWithoutRotation(t *testing.T) {
	p := DefaultParams()
	p.DetectRotation = false
	if got := p.SignatureAngles(); len(got) != 1 || got[0] != 0 {
		t.Errorf("SignatureAngles() = %v, want [0]", got)
	}
	if got := p.Combinations(); got != 9 {
		t.Errorf("Combinations() = %d, want 9", got)
	}
}

func TestFingerprintTracksSignatureShape(t *testing.T) {
	a := DefaultParams()
	b := DefaultParams()
	b.DHashThreshold = 20
	if a.Fingerprint(ProviderPure) != b.Fingerprint(ProviderPure) {
		t.Errorf("thresholds must not change the fingerprint")
	}
	if a.Fingerprint(ProviderPure) == a.Fingerprint(ProviderNative) {
		t.Errorf("the provider must change the fingerprint")
	}
	b.HashSizes = []int{16}
	if a.Fingerprint(ProviderPure) == b.Fingerprint(ProviderPure) {
		t.Errorf("hash sizes must change the fingerprint")
	}
}

func TestCloneSharesNoSlices(t *testing.T) {
	defaults := DefaultParams()
	c := defaults.Clone()
	c.Angles[1] = 45
	c.Scales[0] = 2.0
	c.HashSizes[0] = 16
	c.Algorithms[0] = types.AHash

	want := DefaultParams()
	if !slices.Equal(defaults.Angles, want.Angles) || !slices.Equal(defaults.Scales, want.Scales) ||
		!slices.Equal(defaults.HashSizes, want.HashSizes) || !slices.Equal(defaults.Algorithms, want.Algorithms) {
		t.Errorf("mutating a clone changed the original: %+v", defaults)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	content := `
dhash_threshold: 10
angles: [0, 180]
scales: [1.0]
algorithms: [dhash, ahash]
prefilter:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if p.DHashThreshold != 10 || p.PHashThreshold != 2 {
		t.Errorf("thresholds = %d/%d", p.DHashThreshold, p.PHashThreshold)
	}
	if len(p.Angles) != 2 || p.Angles[1] != 180 {
		t.Errorf("angles = %v", p.Angles)
	}
	if len(p.Algorithms) != 2 || p.Algorithms[1] != types.AHash {
		t.Errorf("algorithms = %v", p.Algorithms)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("loaded params invalid: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("IMAGEDEDUP_DHASH_THRESHOLD", "12")
	t.Setenv("IMAGEDEDUP_SCALES", "1.0, 0.5")
	t.Setenv("IMAGEDEDUP_DETECT_ROTATION", "false")

	p := DefaultParams()
	if err := ApplyEnv(&p); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if p.DHashThreshold != 12 {
		t.Errorf("DHashThreshold = %d", p.DHashThreshold)
	}
	if len(p.Scales) != 2 || p.Scales[1] != 0.5 {
		t.Errorf("Scales = %v", p.Scales)
	}
	if p.DetectRotation {
		t.Errorf("DetectRotation should be false")
	}

	t.Setenv("IMAGEDEDUP_ANGLES", "0,ninety")
	if err := ApplyEnv(&p); !apperrors.IsType(err, apperrors.ErrorTypeInvalidParameter) {
		t.Errorf("expected invalid_parameter for malformed angles, got %v", err)
	}
}
