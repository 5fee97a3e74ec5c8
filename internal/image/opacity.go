package image

import (
	"image"
	"math"
)

// ClampOpacity limits opacity to [0,1]. NaN counts as fully transparent.
func ClampOpacity(opacity float64) float64 {
	if math.IsNaN(opacity) {
		return 0
	}
	return clamp(opacity, 0, 1)
}

// ApplyOpacity multiplies every alpha value by the clamped opacity and
// leaves colour channels alone (non-premultiplied). When the clamped value
// is within 0.001 of 1 the input is returned as is.
func ApplyOpacity(img *image.NRGBA, opacity float64) *image.NRGBA {
	opacity = ClampOpacity(opacity)
	if opacity >= 0.999 {
		return img
	}

	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := out.Pix[y*out.Stride:]
		copy(dst[:b.Dx()*4], src[:b.Dx()*4])
		for i := 3; i < b.Dx()*4; i += 4 {
			dst[i] = uint8(float64(src[i]) * opacity)
		}
	}
	return out
}
