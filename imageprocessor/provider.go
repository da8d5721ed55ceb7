package imageprocessor

import (
	"fmt"
	"image"
	"image/color"
	"runtime/debug"
	"sync"

	"imagededup/config"
	apperrors "imagededup/errors"
	"imagededup/logging"
	"imagededup/types"

	"github.com/corona10/goimagehash"
)

// HashProvider supplies the four hash primitives. Implementations are pure
// and safe for concurrent use.
type HashProvider interface {
	Name() string
	DifferenceHash(img image.Image, size int) (*goimagehash.ExtImageHash, error)
	PerceptualHash(img image.Image, size int) (*goimagehash.ExtImageHash, error)
	AverageHash(img image.Image, size int) (*goimagehash.ExtImageHash, error)
	IsUniformColor(img image.Image, threshold float64) (bool, error)
}

// ComputeHash dispatches to the provider primitive for alg
func ComputeHash(p HashProvider, alg types.Algorithm, img image.Image, size int) (*goimagehash.ExtImageHash, error) {
	switch alg {
	case types.DHash:
		return p.DifferenceHash(img, size)
	case types.PHash:
		return p.PerceptualHash(img, size)
	case types.AHash:
		return p.AverageHash(img, size)
	default:
		return nil, apperrors.NewInvalidParameterError(fmt.Sprintf("unknown algorithm %q", alg), nil)
	}
}

var (
	nativeMu      sync.Mutex
	nativeFactory func() (HashProvider, error)
)

// registerNativeProvider is called from the opencv build of the package
func registerNativeProvider(factory func() (HashProvider, error)) {
	nativeMu.Lock()
	defer nativeMu.Unlock()
	nativeFactory = factory
}

// NativeCompiled reports whether the binary was built with OpenCV support
func NativeCompiled() bool {
	nativeMu.Lock()
	defer nativeMu.Unlock()
	return nativeFactory != nil
}

// SelectProvider picks the provider once for a run. In auto mode a native
// provider that fails its probe falls back to the pure implementation.
func SelectProvider(mode string) (HashProvider, error) {
	switch mode {
	case config.ProviderPure:
		return NewPureProvider(), nil
	case config.ProviderNative:
		p, err := probeNative()
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.ProviderAuto, "":
		p, err := probeNative()
		if err != nil {
			logging.WithError(err).Debug("native hash provider unavailable, using pure Go")
			return NewPureProvider(), nil
		}
		return p, nil
	default:
		return nil, apperrors.NewInvalidParameterError(fmt.Sprintf("unknown provider mode %q", mode), nil)
	}
}

// probeNative builds the native provider and checks it against the pure one
// on a fixed pattern
func probeNative() (p HashProvider, err error) {
	nativeMu.Lock()
	factory := nativeFactory
	nativeMu.Unlock()

	if factory == nil {
		return nil, apperrors.NewPrimitiveUnavailableError("binary built without opencv support", nil)
	}

	defer func() {
		if r := recover(); r != nil {
			logging.DebugLog("native provider probe panicked: %v\n%s", r, debug.Stack())
			p = nil
			err = apperrors.NewPrimitiveUnavailableError("native provider probe panicked", fmt.Errorf("%v", r))
		}
	}()

	native, err := factory()
	if err != nil {
		return nil, apperrors.NewPrimitiveUnavailableError("cannot initialise native provider", err)
	}
	if err := verifyProvider(native, NewPureProvider()); err != nil {
		return nil, err
	}
	return native, nil
}

// verifyProvider requires candidate to reproduce every hash bit and
// uniformity verdict of reference on fixed patterns
func verifyProvider(candidate, reference HashProvider) error {
	patterns := []image.Image{probePattern(), probeBlocks()}
	for _, pattern := range patterns {
		for _, alg := range types.AllAlgorithms {
			for _, size := range []int{8, 16} {
				got, err := ComputeHash(candidate, alg, pattern, size)
				if err != nil {
					return apperrors.NewPrimitiveUnavailableError(fmt.Sprintf("%s probe failed", alg.DisplayName()), err)
				}
				want, err := ComputeHash(reference, alg, pattern, size)
				if err != nil {
					return apperrors.NewInternalError("reference probe failed", err)
				}
				if got.Bits() != want.Bits() || HexString(got) != HexString(want) {
					return apperrors.NewPrimitiveUnavailableError(
						fmt.Sprintf("%s size %d disagrees with the pure implementation: %s vs %s",
							alg.DisplayName(), size, HexString(got), HexString(want)), nil)
				}
			}
		}
	}

	solid := image.NewGray(image.Rect(0, 0, 16, 16))
	for _, img := range append(patterns, solid) {
		got, err := candidate.IsUniformColor(img, 3.0)
		if err != nil {
			return apperrors.NewPrimitiveUnavailableError("uniformity probe failed", err)
		}
		want, _ := reference.IsUniformColor(img, 3.0)
		if got != want {
			return apperrors.NewPrimitiveUnavailableError("uniformity verdict disagrees with the pure implementation", nil)
		}
	}
	return nil
}

// probePattern is a 97x61 RGB image mixing a diagonal gradient with bands
// of period 7 and 11, so no feature lines up with a resampling grid
func probePattern() image.Image {
	const w, h = 97, 61
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := (x*255/w + y*255/h) / 2
			if (x+2*y)%7 < 3 {
				v = 255 - v
			}
			if (3*x+y)%11 == 0 {
				v /= 2
			}
			img.Set(x, y, color.RGBA{R: uint8(v), G: uint8(255 - v), B: uint8(v / 3), A: 255})
		}
	}
	return img
}

// probeBlocks is a 64x64 image of 8x8 blocks in a fixed checker layout
func probeBlocks() image.Image {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			bx, by := x/8, y/8
			v := uint8(0)
			if (bx*3+by*5)%7 < 3 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}
