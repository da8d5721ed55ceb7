package imageprocessor

import (
	"image"
	"path/filepath"
	"strings"
	"sync"

	apperrors "imagededup/errors"
)

// ImageLoader decodes one family of image files into memory
type ImageLoader interface {
	LoadImage(path string) (image.Image, string, error)
	Formats() []FormatType
}

// ImageLoaderRegistry maintains a registry of image loaders keyed by extension
type ImageLoaderRegistry struct {
	loaders map[string]ImageLoader
	mutex   sync.RWMutex
}

var defaultRegistry = NewImageLoaderRegistry()

// NewImageLoaderRegistry creates a registry with a loader for every
// supported extension
func NewImageLoaderRegistry() *ImageLoaderRegistry {
	registry := &ImageLoaderRegistry{
		loaders: make(map[string]ImageLoader),
	}

	standardLoader := NewStandardImageLoader()
	tiffLoader := NewTiffImageLoader()
	for ext, format := range formatExtensions {
		if format == FormatTIFF {
			registry.RegisterLoader(ext, tiffLoader)
		} else {
			registry.RegisterLoader(ext, standardLoader)
		}
	}

	return registry
}

// RegisterLoader registers a new loader for a specific file extension
func (r *ImageLoaderRegistry) RegisterLoader(ext string, loader ImageLoader) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.loaders[strings.ToLower(ext)] = loader
}

// GetLoader returns the loader registered for the path's extension
func (r *ImageLoaderRegistry) GetLoader(path string) (ImageLoader, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	loader, ok := r.loaders[strings.ToLower(filepath.Ext(path))]
	return loader, ok
}

// CanLoadFile checks if any registered loader can handle the given file
func (r *ImageLoaderRegistry) CanLoadFile(path string) bool {
	_, ok := r.GetLoader(path)
	return ok
}

// LoadImage decodes path with its registered loader
func (r *ImageLoaderRegistry) LoadImage(path string) (image.Image, string, error) {
	loader, ok := r.GetLoader(path)
	if !ok {
		return nil, "", apperrors.NewDecodeError("no loader for file extension", nil).WithPath(path)
	}
	return loader.LoadImage(path)
}

// DecodeImage reads and decodes an image file with the default registry.
// Any failure is reported as a decode failure bound to the path.
func DecodeImage(path string) (image.Image, string, error) {
	return defaultRegistry.LoadImage(path)
}
