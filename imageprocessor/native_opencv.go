//go:build opencv

package imageprocessor

import (
	"fmt"
	"image"

	"imagededup/config"
	"imagededup/types"

	"github.com/corona10/goimagehash"
	"gocv.io/x/gocv"
)

func init() {
	registerNativeProvider(func() (HashProvider, error) {
		return NewNativeProvider()
	})
}

// NativeProvider runs the pHash DCT through OpenCV. Grayscale conversion
// and resampling stay in Go, shared with PureProvider, so both providers
// hash the same grids.
type NativeProvider struct{}

// NewNativeProvider checks that OpenCV can allocate a matrix and run a DCT
func NewNativeProvider() (*NativeProvider, error) {
	m := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV64F)
	defer m.Close()
	if m.Empty() {
		return nil, fmt.Errorf("opencv cannot allocate matrices")
	}

	out := gocv.NewMat()
	defer out.Close()
	gocv.DCT(m, &out, 0)
	if out.Empty() {
		return nil, fmt.Errorf("opencv dct returned an empty matrix")
	}
	return &NativeProvider{}, nil
}

func (p *NativeProvider) Name() string { return config.ProviderNative }

func (p *NativeProvider) DifferenceHash(img image.Image, size int) (*goimagehash.ExtImageHash, error) {
	if err := checkInput(img, size); err != nil {
		return nil, err
	}
	return newHash(types.DHash, differenceBits(grayResize(img, size+1, size))), nil
}

func (p *NativeProvider) AverageHash(img image.Image, size int) (*goimagehash.ExtImageHash, error) {
	if err := checkInput(img, size); err != nil {
		return nil, err
	}
	return newHash(types.AHash, averageBits(grayResize(img, size, size))), nil
}

// PerceptualHash applies a double precision cv::dct to the working square
func (p *NativeProvider) PerceptualHash(img image.Image, size int) (*goimagehash.ExtImageHash, error) {
	if err := checkInput(img, size); err != nil {
		return nil, err
	}
	n := phashWorkingSize(size)
	g := grayResize(img, n, n)

	src := gocv.NewMatWithSize(n, n, gocv.MatTypeCV64F)
	defer src.Close()
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			src.SetDoubleAt(y, x, g.at(x, y))
		}
	}

	dct := gocv.NewMat()
	defer dct.Close()
	gocv.DCT(src, &dct, 0)
	if dct.Empty() {
		return nil, fmt.Errorf("opencv dct returned an empty matrix")
	}

	coef := func(u, v int) float64 { return dct.GetDoubleAt(u, v) }
	return newHash(types.PHash, perceptualBits(coef, size)), nil
}

func (p *NativeProvider) IsUniformColor(img image.Image, threshold float64) (bool, error) {
	return isUniformColor(img, threshold)
}
