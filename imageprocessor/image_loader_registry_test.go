package imageprocessor

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	apperrors "imagededup/errors"

	"golang.org/x/image/tiff"
)

func TestRegistryLoadsEveryFormatFamily(t *testing.T) {
	dir := t.TempDir()
	img := blockImage(3, 40, 24)

	write := func(name string, encode func(f *os.File) error) string {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if err := encode(f); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name   string
		path   string
		format string
	}{
		{"png", write("a.png", func(f *os.File) error { return png.Encode(f, img) }), "png"},
		{"tiff", write("b.tiff", func(f *os.File) error { return tiff.Encode(f, img, nil) }), "tiff"},
		{"png named tif", write("c.tif", func(f *os.File) error { return png.Encode(f, img) }), "png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, format, err := DecodeImage(tt.path)
			if err != nil {
				t.Fatalf("DecodeImage() error = %v", err)
			}
			if format != tt.format {
				t.Errorf("format = %q, want %q", format, tt.format)
			}
			if got.Bounds().Dx() != 40 || got.Bounds().Dy() != 24 {
				t.Errorf("bounds = %v", got.Bounds())
			}
		})
	}
}

func TestRegistryRejectsUnknownExtension(t *testing.T) {
	r := NewImageLoaderRegistry()
	if r.CanLoadFile("notes.txt") {
		t.Error("text files should not be loadable")
	}
	_, _, err := r.LoadImage("notes.txt")
	if !apperrors.IsType(err, apperrors.ErrorTypeDecodeFailure) {
		t.Errorf("expected decode_failure, got %v", err)
	}

	loader, ok := r.GetLoader("photo.TIFF")
	if !ok || loader.Formats()[0] != FormatTIFF {
		t.Errorf("TIFF loader not registered")
	}
}
