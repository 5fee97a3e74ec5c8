package image

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// RotationEpsilon is the smallest rotation in degrees that is applied.
const RotationEpsilon = 1e-6

// Rotate turns img counter-clockwise by degrees about its centre. The canvas
// grows to the rotated bounding box and uncovered pixels are transparent.
// Rotations under RotationEpsilon return img itself.
func Rotate(img *image.NRGBA, degrees float64) *image.NRGBA {
	if math.Abs(degrees) < RotationEpsilon {
		return img
	}
	return imaging.Rotate(img, degrees, color.Transparent)
}
