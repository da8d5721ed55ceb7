package matcher

import (
	"image"
	"image/color"
	"testing"

	"imagededup/config"
	apperrors "imagededup/errors"
	"imagededup/imageprocessor"
	"imagededup/signature"
	"imagededup/testutil"
	"imagededup/types"
)

func defaultParams(t *testing.T, mutate func(p *config.AnalysisParams)) config.AnalysisParams {
	t.Helper()
	p := config.DefaultParams()
	if mutate != nil {
		mutate(&p)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("invalid params: %v", err)
	}
	return p
}

func record(t *testing.T, params config.AnalysisParams, path string, img image.Image) *types.ImageRecord {
	t.Helper()
	g := signature.NewGenerator(imageprocessor.NewPureProvider(), params)
	return &types.ImageRecord{
		Path:        path,
		ContentHash: path,
		Bundle:      g.BuildBundle(img),
	}
}

func TestRotatedImageMatches(t *testing.T) {
	params := defaultParams(t, nil)
	photo := testutil.BlockImage(1, 96, 64)
	a := record(t, params, "a.png", photo)
	b := record(t, params, "b.png", imageprocessor.Rotate(photo, 90))

	res, err := New(params).Match(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsMatch {
		t.Fatalf("rotated copy should match: %+v", res)
	}
	if res.Angle != 90 {
		t.Errorf("Angle = %d, want 90", res.Angle)
	}
	if len(res.Passed) != 3 {
		t.Errorf("all algorithms should pass, got %v", res.Passed)
	}
	for _, d := range res.Distances {
		if d.Distance != 0 {
			t.Errorf("%s distance = %d, want 0", d.Algorithm, d.Distance)
		}
	}
	if res.Reason != "dHash+pHash+aHash similar (rotated 90°)" {
		t.Errorf("Reason = %q", res.Reason)
	}
}

func TestMatchIsSymmetric(t *testing.T) {
	params := defaultParams(t, nil)
	a := record(t, params, "a.png", testutil.BlockImage(2, 80, 80))
	b := record(t, params, "b.png", imageprocessor.Rotate(testutil.BlockImage(2, 80, 80), 270))
	c := record(t, params, "c.png", testutil.BlockImage(3, 80, 80))

	m := New(params)
	for _, pair := range [][2]*types.ImageRecord{{a, b}, {a, c}, {b, c}} {
		ab, err1 := m.Match(pair[0], pair[1])
		ba, err2 := m.Match(pair[1], pair[0])
		if err1 != nil || err2 != nil {
			t.Fatal(err1, err2)
		}
		if ab.IsMatch != ba.IsMatch || ab.Angle != ba.Angle || len(ab.Distances) != len(ba.Distances) {
			t.Fatalf("asymmetric result %+v vs %+v", ab, ba)
		}
		for i := range ab.Distances {
			if ab.Distances[i].Distance != ba.Distances[i].Distance {
				t.Errorf("%s: %d vs %d", ab.Distances[i].Algorithm, ab.Distances[i].Distance, ba.Distances[i].Distance)
			}
		}
	}
}

func TestUnrelatedImagesDoNotMatch(t *testing.T) {
	params := defaultParams(t, nil)
	a := record(t, params, "a.png", testutil.BlockImage(4, 96, 64))
	c := record(t, params, "c.png", testutil.BlockImage(5, 96, 64))

	res, err := New(params).Match(a, c)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsMatch {
		t.Errorf("unrelated images matched: %+v", res)
	}
	if len(res.Distances) != 3 {
		t.Errorf("distances should still be reported, got %v", res.Distances)
	}
}

func TestRotationDetectionDisabled(t *testing.T) {
	params := defaultParams(t, func(p *config.AnalysisParams) { p.DetectRotation = false })
	photo := testutil.BlockImage(6, 96, 64)
	a := record(t, params, "a.png", photo)
	b := record(t, params, "b.png", imageprocessor.Rotate(photo, 90))

	res, err := New(params).Match(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsMatch {
		t.Errorf("rotated copy must not match without rotation detection: %+v", res)
	}
}

func TestExactShortcutIgnoresThresholds(t *testing.T) {
	params := defaultParams(t, func(p *config.AnalysisParams) {
		p.DHashThreshold, p.PHashThreshold, p.AHashThreshold = 0, 0, 0
		p.Prefilter.Enabled = false
	})
	a := record(t, params, "a.png", testutil.BlockImage(7, 64, 64))
	b := record(t, params, "b.png", testutil.BlockImage(8, 64, 64))
	a.ContentHash, b.ContentHash = "same", "same"

	res, err := New(params).Match(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsMatch || !res.Exact || res.Reason != ReasonIdentical {
		t.Errorf("expected exact match, got %+v", res)
	}
}

func TestUniformImagesNeverMatch(t *testing.T) {
	small := testutil.SolidImage(40, 30, color.White)
	large := testutil.SolidImage(400, 300, color.White)

	params := defaultParams(t, nil)
	a := record(t, params, "white-small.png", small)
	b := record(t, params, "white-large.png", large)
	if !a.Uniform() || !b.Uniform() {
		t.Fatalf("solid images should be flagged uniform")
	}
	m := New(params)
	res, err := m.Match(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsMatch {
		t.Errorf("uniform images matched: %+v", res)
	}
	if ok, _ := m.Prefilter(a, b); ok {
		t.Errorf("prefilter should reject uniform images")
	}

	off := defaultParams(t, func(p *config.AnalysisParams) { p.DetectPureColor = false })
	a = record(t, off, "white-small.png", small)
	b = record(t, off, "white-large.png", large)
	res, err = New(off).Match(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsMatch {
		t.Errorf("with detection off, solid images hash alike and should match")
	}
}

func TestFailedRecordNeverMatches(t *testing.T) {
	params := defaultParams(t, nil)
	a := record(t, params, "a.png", testutil.BlockImage(9, 64, 64))
	b := &types.ImageRecord{Path: "b.png", ContentHash: "a.png", Err: apperrors.NewDecodeError("corrupt", nil)}

	res, err := New(params).Match(a, b)
	if err != nil || res.IsMatch {
		t.Errorf("failed record must not match: %+v, %v", res, err)
	}
}

func TestLengthMismatchFailsLoudly(t *testing.T) {
	params := defaultParams(t, nil)
	img := testutil.BlockImage(10, 64, 64)
	a := record(t, params, "a.png", img)
	b := record(t, params, "b.png", img)
	b.ContentHash = "other"

	wide, err := imageprocessor.NewPureProvider().DifferenceHash(img, 16)
	if err != nil {
		t.Fatal(err)
	}
	b.Bundle.Hashes[types.SignatureKey{Algorithm: types.DHash, Angle: 0, Scale: 1.0, HashSize: 8}] = wide

	_, err = New(params).Match(a, b)
	if !apperrors.IsType(err, apperrors.ErrorTypeLengthMismatch) {
		t.Errorf("expected length_mismatch, got %v", err)
	}
}

func TestPrefilter(t *testing.T) {
	params := defaultParams(t, nil)
	photo := testutil.BlockImage(11, 96, 64)
	a := record(t, params, "a.png", photo)
	b := record(t, params, "b.png", imageprocessor.Rotate(photo, 180))
	c := record(t, params, "c.png", testutil.BlockImage(12, 96, 64))

	m := New(params)
	if ok, err := m.Prefilter(a, b); err != nil || !ok {
		t.Errorf("rotated copy should pass the prefilter: %v, %v", ok, err)
	}
	if ok, err := m.Prefilter(a, c); err != nil || ok {
		t.Errorf("unrelated image should fail the prefilter: %v, %v", ok, err)
	}

	disabled := defaultParams(t, func(p *config.AnalysisParams) { p.Prefilter.Enabled = false })
	if ok, _ := New(disabled).Prefilter(a, c); !ok {
		t.Errorf("a disabled prefilter passes everything")
	}
}

func TestCrossScale(t *testing.T) {
	params := defaultParams(t, func(p *config.AnalysisParams) { p.CrossScale = true })
	photo := testutil.BlockImage(13, 96, 96)
	a := record(t, params, "a.png", photo)
	b := record(t, params, "b.png", photo)
	b.ContentHash = "different"

	res, err := New(params).Match(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsMatch || res.Scale != 1.0 || res.Angle != 0 {
		t.Errorf("identical pixels should match at the reference alignment, got %+v", res)
	}
}
