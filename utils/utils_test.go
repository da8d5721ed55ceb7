package utils

import (
	"slices"
	"testing"

	"imagededup/config"
	apperrors "imagededup/errors"
	"imagededup/types"
)

func TestParseArguments(t *testing.T) {
	argv := []string{"imagededup", "--debug", "analyze", "--folder=/photos", "--format", "json", "--no-cache"}
	args := ParseArguments(argv)

	want := map[string]string{
		"command":  "analyze",
		"debug":    "true",
		"folder":   "/photos",
		"format":   "json",
		"no-cache": "true",
	}
	for k, v := range want {
		if args[k] != v {
			t.Errorf("args[%q] = %q, want %q", k, args[k], v)
		}
	}
}

func TestApplyArguments(t *testing.T) {
	params := config.DefaultParams()
	args := map[string]string{
		"dhash-threshold": "5",
		"angles":          "0,180",
		"scales":          "1",
		"algorithms":      "phash,dhash",
		"no-rotation":     "true",
		"cross-scale":     "true",
	}
	if err := ApplyArguments(&params, args); err != nil {
		t.Fatal(err)
	}
	if params.DHashThreshold != 5 || params.DetectRotation || !params.CrossScale {
		t.Errorf("flags not applied: %+v", params)
	}
	if !slices.Equal(params.Angles, []int{0, 180}) || !slices.Equal(params.Scales, []float64{1}) {
		t.Errorf("lists not applied: %v %v", params.Angles, params.Scales)
	}
	if !slices.Equal(params.Algorithms, []types.Algorithm{types.PHash, types.DHash}) {
		t.Errorf("Algorithms = %v", params.Algorithms)
	}
}

func TestApplyArgumentsRejectsBadValues(t *testing.T) {
	params := config.DefaultParams()
	err := ApplyArguments(&params, map[string]string{"workers": "many"})
	if !apperrors.IsType(err, apperrors.ErrorTypeInvalidParameter) {
		t.Errorf("expected invalid parameter error, got %v", err)
	}
}
