//go:build gocv

package image

import (
	"image"
	"image/color"
	"log"

	"mockup-render/pkg/geometry"

	"gocv.io/x/gocv"
)

func init() {
	UseWarper("opencv", WarpOpenCV)
}

// WarpOpenCV performs the perspective warp with OpenCV's warpPerspective,
// linear interpolation and a transparent constant border. Channels are
// interpolated without premultiplication, as OpenCV does.
func WarpOpenCV(src *image.NRGBA, h geometry.Homography, size image.Point) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	b := src.Bounds()
	if b.Empty() || size.X <= 0 || size.Y <= 0 {
		return out
	}

	// NRGBA rows may be a sub-image; copy into a tight buffer for the Mat.
	pix := make([]byte, b.Dx()*b.Dy()*4)
	for y := 0; y < b.Dy(); y++ {
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(pix[y*b.Dx()*4:(y+1)*b.Dx()*4], src.Pix[off:off+b.Dx()*4])
	}
	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, pix)
	if err != nil {
		log.Printf("opencv warp: failed to wrap source: %v", err)
		return WarpBilinear(src, h, size)
	}
	defer mat.Close()

	transformMat := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer transformMat.Close()
	m := h.Matrix()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			transformMat.SetDoubleAt(r, c, m[r][c])
		}
	}

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.WarpPerspectiveWithParams(mat, &dst, transformMat, image.Point{size.X, size.Y},
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{R: 0, G: 0, B: 0, A: 0})

	data := dst.ToBytes()
	if len(data) != len(out.Pix) {
		log.Printf("opencv warp: unexpected output size %d, falling back", len(data))
		return WarpBilinear(src, h, size)
	}
	copy(out.Pix, data)
	return out
}
