package imageprocessor

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// NormalizeAngle maps any angle into [0,360)
func NormalizeAngle(angle int) int {
	return ((angle % 360) + 360) % 360
}

// FoldAngle reports a rotation as the smaller of angle and 360-angle, so 90
// and 270 both read as 90
func FoldAngle(angle int) int {
	a := NormalizeAngle(angle)
	if a > 180 {
		return 360 - a
	}
	return a
}

// Rotate turns img counter-clockwise. Right angles are exact pixel
// permutations; other angles use bilinear rotation on a white background with
// the canvas expanded to fit.
func Rotate(img image.Image, angle int) image.Image {
	switch NormalizeAngle(angle) {
	case 0:
		return img
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return imaging.Rotate(img, float64(angle), color.White)
	}
}

// Scale resizes img by factor with a Lanczos filter
func Scale(img image.Image, factor float64) image.Image {
	if factor == 1.0 {
		return img
	}
	b := img.Bounds()
	w := max(1, int(math.Round(float64(b.Dx())*factor)))
	h := max(1, int(math.Round(float64(b.Dy())*factor)))
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// Shrink bounds the longest edge to maxEdge, keeping the aspect ratio
func Shrink(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	if maxEdge <= 0 || (b.Dx() <= maxEdge && b.Dy() <= maxEdge) {
		return img
	}
	return imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
}
