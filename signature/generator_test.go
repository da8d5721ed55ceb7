package signature

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"imagededup/config"
	apperrors "imagededup/errors"
	"imagededup/imageprocessor"
	"imagededup/testutil"
	"imagededup/types"
)

func newTestGenerator(t *testing.T, mutate func(p *config.AnalysisParams)) *Generator {
	t.Helper()
	params := config.DefaultParams()
	if mutate != nil {
		mutate(&params)
	}
	if err := params.Validate(); err != nil {
		t.Fatalf("invalid params: %v", err)
	}
	return NewGenerator(imageprocessor.NewPureProvider(), params)
}

func TestBundleEntryCount(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *config.AnalysisParams)
		want   int
	}{
		{"defaults", nil, 4 * 3 * 1 * 3},
		{"two sizes", func(p *config.AnalysisParams) { p.HashSizes = []int{8, 16} }, 4 * 3 * 2 * 3},
		{"no rotation", func(p *config.AnalysisParams) { p.DetectRotation = false }, 1 * 3 * 1 * 3},
		{"odd angle", func(p *config.AnalysisParams) {
			p.Angles = []int{0, 45}
			p.Scales = []float64{1.0}
			p.Algorithms = []types.Algorithm{types.DHash}
			p.Prefilter.Enabled = true
		}, 2},
	}

	img := testutil.BlockImage(1, 120, 80)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(t, tt.mutate)
			bundle := g.BuildBundle(img)
			if bundle.Entries() != tt.want {
				t.Errorf("Entries() = %d, want %d", bundle.Entries(), tt.want)
			}
			if len(bundle.Failures) != 0 {
				t.Errorf("unexpected failures: %v", bundle.Failures)
			}
			for _, key := range g.Keys() {
				if _, ok := bundle.Lookup(key); !ok {
					t.Errorf("missing key %s", key)
				}
			}
			if len(g.Keys()) != tt.want {
				t.Errorf("Keys() = %d, want %d", len(g.Keys()), tt.want)
			}
		})
	}
}

func TestBundleMatchesDirectPrimitive(t *testing.T) {
	g := newTestGenerator(t, nil)
	img := testutil.BlockImage(2, 96, 96)
	bundle := g.BuildBundle(img)

	want, err := imageprocessor.NewPureProvider().DifferenceHash(imageprocessor.Rotate(img, 90), 8)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := bundle.Lookup(types.SignatureKey{Algorithm: types.DHash, Angle: 90, Scale: 1.0, HashSize: 8})
	if !ok {
		t.Fatal("missing dhash at 90 degrees")
	}
	if imageprocessor.HexString(got) != imageprocessor.HexString(want) {
		t.Errorf("bundle hash %s differs from direct primitive %s",
			imageprocessor.HexString(got), imageprocessor.HexString(want))
	}
}

func TestProcessUniformImage(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WritePNG(t, dir, "white.png", testutil.SolidImage(64, 64, color.White))

	g := newTestGenerator(t, nil)
	rec := &types.ImageRecord{Path: path}
	g.Process(rec)

	if rec.Err != nil {
		t.Fatalf("unexpected error %v", rec.Err)
	}
	if !rec.Uniform() {
		t.Errorf("solid white image should be flagged uniform")
	}
	if rec.Bundle.Entries() != 36 {
		t.Errorf("uniform images still get full signatures, got %d", rec.Bundle.Entries())
	}
	if rec.ContentHash == "" || rec.Width != 64 || rec.Format != "png" {
		t.Errorf("record not populated: %+v", rec)
	}
}

func TestProcessUniformDetectionDisabled(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WritePNG(t, dir, "gray.png", testutil.SolidImage(32, 32, color.Gray{Y: 90}))

	g := newTestGenerator(t, func(p *config.AnalysisParams) { p.DetectPureColor = false })
	rec := &types.ImageRecord{Path: path}
	g.Process(rec)
	if rec.Uniform() {
		t.Errorf("uniform flag must stay false when detection is disabled")
	}
}

func TestProcessCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.jpg")
	if err := os.WriteFile(path, []byte{0xff, 0xd8, 0xff, 0x00, 0x01}, 0644); err != nil {
		t.Fatal(err)
	}

	g := newTestGenerator(t, nil)
	rec := &types.ImageRecord{Path: path}
	g.Process(rec)

	if !apperrors.IsType(rec.Err, apperrors.ErrorTypeDecodeFailure) {
		t.Fatalf("expected decode_failure, got %v", rec.Err)
	}
	if !rec.Failed() || !rec.Bundle.Failed {
		t.Errorf("bundle should be marked failed")
	}
	if len(rec.Bundle.Failures) != len(g.Keys()) {
		t.Errorf("every key must record the failure, got %d of %d", len(rec.Bundle.Failures), len(g.Keys()))
	}
}

func TestGenerateBatch(t *testing.T) {
	dir := t.TempDir()
	var records []*types.ImageRecord
	for i := 0; i < 5; i++ {
		path := testutil.WritePNG(t, dir, filepath.Base(t.Name())+string(rune('a'+i))+".png", testutil.BlockImage(uint64(i+10), 64, 48))
		records = append(records, &types.ImageRecord{Path: path})
	}

	g := newTestGenerator(t, nil)
	events := make(chan types.ProgressEvent, len(records))
	n, err := g.GenerateBatch(context.Background(), records, 3, events)
	if err != nil {
		t.Fatalf("GenerateBatch() error = %v", err)
	}
	if n != len(records) {
		t.Errorf("processed %d, want %d", n, len(records))
	}
	close(events)

	seen := 0
	for ev := range events {
		seen++
		if ev.Stage != types.StageSignature || ev.Total != len(records) || ev.Combinations != 36 {
			t.Errorf("unexpected event %+v", ev)
		}
	}
	if seen != len(records) {
		t.Errorf("received %d events, want %d", seen, len(records))
	}
	for _, rec := range records {
		if rec.Failed() {
			t.Errorf("%s failed: %v", rec.Path, rec.Err)
		}
	}
}

func TestGenerateBatchCancelled(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WritePNG(t, dir, "a.png", testutil.BlockImage(3, 32, 32))
	records := []*types.ImageRecord{{Path: path}, {Path: path}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := newTestGenerator(t, nil)
	n, err := g.GenerateBatch(ctx, records, 2, nil)
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if n != 0 {
		t.Errorf("no record should be processed after cancellation, got %d", n)
	}
	for _, rec := range records {
		if rec.Bundle != nil {
			t.Errorf("unstarted records must keep a nil bundle")
		}
	}
}

func TestContentHash(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WritePNG(t, dir, "a.png", testutil.BlockImage(4, 64, 64))
	b := testutil.CopyFile(t, a, filepath.Join(dir, "b.png"))
	c := testutil.WritePNG(t, dir, "c.png", testutil.BlockImage(5, 64, 64))

	ha, err := ContentHash(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, _ := ContentHash(b)
	hc, _ := ContentHash(c)
	if ha != hb {
		t.Errorf("identical files must share a content hash")
	}
	if ha == hc {
		t.Errorf("different files must not share a content hash")
	}

	big := make([]byte, 4*sampleChunk)
	for i := range big {
		big[i] = byte(i % 251)
	}
	bigPath := filepath.Join(dir, "big.bin")
	if err := os.WriteFile(bigPath, big, 0644); err != nil {
		t.Fatal(err)
	}
	h1, _ := ContentHash(bigPath)
	big[len(big)-1] ^= 0xff
	if err := os.WriteFile(bigPath, big, 0644); err != nil {
		t.Fatal(err)
	}
	h2, _ := ContentHash(bigPath)
	if h1 == h2 {
		t.Errorf("a change in the tail sample must change the hash")
	}
}
