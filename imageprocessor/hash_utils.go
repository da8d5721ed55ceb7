package imageprocessor

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"imagededup/config"
	apperrors "imagededup/errors"
	"imagededup/types"

	"github.com/corona10/goimagehash"
	"golang.org/x/image/draw"
)

// uniformSampleGrid bounds the uniformity test to at most 32x32 samples
const uniformSampleGrid = 32

// grayGrid is a row-major grayscale sample in the 0-255 range
type grayGrid struct {
	w, h int
	pix  []float64
}

func (g grayGrid) at(x, y int) float64 {
	return g.pix[y*g.w+x]
}

func checkInput(img image.Image, size int) error {
	if img == nil || img.Bounds().Empty() {
		return apperrors.NewDecodeError("cannot compute hash for empty image", nil)
	}
	if size <= 0 || size > config.MaxHashSize {
		return apperrors.NewInvalidParameterError(
			fmt.Sprintf("hash size %d out of range [1,%d]", size, config.MaxHashSize), nil)
	}
	return nil
}

// phashWorkingSize is the square the DCT runs on
func phashWorkingSize(size int) int {
	return max(32, 4*size)
}

// differenceBits expects a (size+1) x size grid. Bit set when left > right.
func differenceBits(g grayGrid) []bool {
	bits := make([]bool, 0, (g.w-1)*g.h)
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w-1; x++ {
			bits = append(bits, g.at(x, y) > g.at(x+1, y))
		}
	}
	return bits
}

// averageBits thresholds each pixel against the grid mean
func averageBits(g grayGrid) []bool {
	var sum float64
	for _, v := range g.pix {
		sum += v
	}
	mean := sum / float64(len(g.pix))

	bits := make([]bool, len(g.pix))
	for i, v := range g.pix {
		bits[i] = v > mean
	}
	return bits
}

// perceptualBits takes the size x size block of coefficients starting at
// (1,1), skipping the DC row and column, and thresholds it against its mean
func perceptualBits(coef func(u, v int) float64, size int) []bool {
	block := make([]float64, 0, size*size)
	var sum float64
	for u := 1; u <= size; u++ {
		for v := 1; v <= size; v++ {
			c := coef(u, v)
			block = append(block, c)
			sum += c
		}
	}
	mean := sum / float64(len(block))

	bits := make([]bool, len(block))
	for i, c := range block {
		bits[i] = c > mean
	}
	return bits
}

// isUniformColor samples a bounded grid and reports uniform when every RGB
// channel's standard deviation is below threshold
func isUniformColor(img image.Image, threshold float64) (bool, error) {
	if img == nil || img.Bounds().Empty() {
		return false, apperrors.NewDecodeError("cannot test uniformity of empty image", nil)
	}

	b := img.Bounds()
	stepX := max(1, b.Dx()/uniformSampleGrid)
	stepY := max(1, b.Dy()/uniformSampleGrid)

	var sum, sumSq [3]float64
	var n float64
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			for i, v := range [3]float64{float64(c.R), float64(c.G), float64(c.B)} {
				sum[i] += v
				sumSq[i] += v * v
			}
			n++
		}
	}

	for i := range sum {
		mean := sum[i] / n
		variance := sumSq[i]/n - mean*mean
		if math.Sqrt(math.Max(variance, 0)) >= threshold {
			return false, nil
		}
	}
	return true, nil
}

// PureProvider implements the hash primitives in Go
type PureProvider struct{}

// NewPureProvider returns the in-process provider
func NewPureProvider() *PureProvider {
	return &PureProvider{}
}

func (p *PureProvider) Name() string { return config.ProviderPure }

// DifferenceHash resizes to (size+1) x size and compares neighbours
func (p *PureProvider) DifferenceHash(img image.Image, size int) (*goimagehash.ExtImageHash, error) {
	if err := checkInput(img, size); err != nil {
		return nil, err
	}
	return newHash(types.DHash, differenceBits(grayResize(img, size+1, size))), nil
}

// PerceptualHash runs a DCT on a 4*size working square (at least 32)
func (p *PureProvider) PerceptualHash(img image.Image, size int) (*goimagehash.ExtImageHash, error) {
	if err := checkInput(img, size); err != nil {
		return nil, err
	}
	n := phashWorkingSize(size)
	coef := dctLowFrequency(grayResize(img, n, n), size+1)
	return newHash(types.PHash, perceptualBits(func(u, v int) float64 { return coef[u][v] }, size)), nil
}

// AverageHash resizes to size x size and thresholds against the mean
func (p *PureProvider) AverageHash(img image.Image, size int) (*goimagehash.ExtImageHash, error) {
	if err := checkInput(img, size); err != nil {
		return nil, err
	}
	return newHash(types.AHash, averageBits(grayResize(img, size, size))), nil
}

func (p *PureProvider) IsUniformColor(img image.Image, threshold float64) (bool, error) {
	return isUniformColor(img, threshold)
}

// grayResize scales img into a w x h grayscale grid
func grayResize(img image.Image, w, h int) grayGrid {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	g := grayGrid{w: w, h: h, pix: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.pix[y*w+x] = float64(dst.GrayAt(x, y).Y)
		}
	}
	return g
}

var cosTables sync.Map // int -> [][]float64

// cosTable returns the orthonormal DCT-II basis for length n, indexed [k][i]
func cosTable(n int) [][]float64 {
	if t, ok := cosTables.Load(n); ok {
		return t.([][]float64)
	}
	t := make([][]float64, n)
	for k := 0; k < n; k++ {
		scale := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(n))
		}
		t[k] = make([]float64, n)
		for i := 0; i < n; i++ {
			t[k][i] = scale * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
	}
	actual, _ := cosTables.LoadOrStore(n, t)
	return actual.([][]float64)
}

// dctLowFrequency computes only the first k x k coefficients of the 2-D
// orthonormal DCT-II of a square grid, which matches cv::dct
func dctLowFrequency(g grayGrid, k int) [][]float64 {
	n := g.w
	t := cosTable(n)

	// Row pass: n rows x k coefficients
	rows := make([][]float64, n)
	for y := 0; y < n; y++ {
		rows[y] = make([]float64, k)
		for v := 0; v < k; v++ {
			var s float64
			for x := 0; x < n; x++ {
				s += g.at(x, y) * t[v][x]
			}
			rows[y][v] = s
		}
	}

	// Column pass
	out := make([][]float64, k)
	for u := 0; u < k; u++ {
		out[u] = make([]float64, k)
		for v := 0; v < k; v++ {
			var s float64
			for y := 0; y < n; y++ {
				s += rows[y][v] * t[u][y]
			}
			out[u][v] = s
		}
	}
	return out
}
