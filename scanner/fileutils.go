package scanner

import (
	"path/filepath"
	"strings"

	"imagededup/imageprocessor"
)

// IsImageFile checks if a file extension belongs to a decodable image file
func IsImageFile(path string) bool {
	return imageprocessor.IsImageFile(path)
}

// IsTiffFormat checks if a file is in TIF format
func IsTiffFormat(path string) bool {
	return imageprocessor.GetFormatType(path) == imageprocessor.FormatTIFF
}

// GetFileFormat returns the lowercase file extension without the dot
func GetFileFormat(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
