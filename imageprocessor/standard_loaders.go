package imageprocessor

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	apperrors "imagededup/errors"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// BaseImageLoader carries the formats a loader handles
type BaseImageLoader struct {
	SupportedFormats []FormatType
}

// Formats returns the formats handled by the loader
func (l *BaseImageLoader) Formats() []FormatType {
	return l.SupportedFormats
}

// StandardImageLoader handles common image formats like JPEG, PNG, etc.
type StandardImageLoader struct {
	BaseImageLoader
}

// NewStandardImageLoader creates a new loader for standard image formats
func NewStandardImageLoader() *StandardImageLoader {
	return &StandardImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatGIF,
				FormatBMP,
				FormatWEBP,
			},
		},
	}
}

// LoadImage decodes by content sniffing, so a misnamed file still loads
func (l *StandardImageLoader) LoadImage(path string) (image.Image, string, error) {
	return loadWith(path, func(r io.Reader) (image.Image, string, error) {
		return image.Decode(r)
	})
}

// TiffImageLoader specializes in TIFF format loading
type TiffImageLoader struct {
	BaseImageLoader
}

// NewTiffImageLoader creates a new TIFF image loader
func NewTiffImageLoader() *TiffImageLoader {
	return &TiffImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{FormatTIFF},
		},
	}
}

// LoadImage tries the TIFF decoder first and falls back to content
// sniffing for files that carry a .tif extension but another encoding
func (l *TiffImageLoader) LoadImage(path string) (image.Image, string, error) {
	img, format, err := loadWith(path, func(r io.Reader) (image.Image, string, error) {
		img, err := tiff.Decode(r)
		return img, string(FormatTIFF), err
	})
	if err == nil {
		return img, format, nil
	}

	if img, format, fallbackErr := (&StandardImageLoader{}).LoadImage(path); fallbackErr == nil {
		return img, format, nil
	}
	return nil, "", err
}

func loadWith(path string, decode func(io.Reader) (image.Image, string, error)) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", apperrors.NewDecodeError("cannot open image", err).WithPath(path)
	}
	defer f.Close()

	img, format, err := decode(bufio.NewReader(f))
	if err != nil {
		return nil, "", apperrors.NewDecodeError("cannot decode image", err).WithPath(path)
	}

	if img.Bounds().Empty() {
		return nil, format, apperrors.NewDecodeError(
			fmt.Sprintf("image has empty bounds %v", img.Bounds()), nil).WithPath(path)
	}
	return img, format, nil
}
