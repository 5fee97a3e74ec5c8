package image

import (
	"image"
	"log"
	"math"
	"runtime"
	"sync"

	"mockup-render/pkg/geometry"
)

// Warper projects src through a homography onto a canvas of the given size.
// h maps source pixel coordinates to canvas coordinates.
type Warper func(src *image.NRGBA, h geometry.Homography, size image.Point) *image.NRGBA

// perspectiveWarper is the active backend. Builds with the gocv tag swap in
// the OpenCV implementation.
var perspectiveWarper Warper = WarpBilinear

// WarpBackend names the active perspective backend.
var WarpBackend = "go"

// WarpPerspective maps the overlay's rectangle (0,0),(w-1,0),(w-1,h-1),(0,h-1)
// onto quad, given in canvas pixels, and returns a canvas-sized raster.
// The quad is not validated: reversed or self-intersecting quads produce
// whatever the projective algebra gives. A quad the homography cannot be
// solved for leaves the canvas fully transparent.
func WarpPerspective(src *image.NRGBA, quad geometry.Quad, size image.Point) *image.NRGBA {
	b := src.Bounds()
	h, err := geometry.QuadToQuad(geometry.RectQuad(b.Dx(), b.Dy()), quad)
	if err != nil {
		log.Printf("perspective warp skipped: %v", err)
		return image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	}
	return perspectiveWarper(src, h, size)
}

// WarpBilinear inverse-maps every canvas pixel into src and samples it
// bilinearly. Taps outside src count as transparent, so edges fade out over
// one source pixel, however wide that is on the canvas. Sampling weights
// colour by alpha to avoid dark fringes.
func WarpBilinear(src *image.NRGBA, h geometry.Homography, size image.Point) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	inv, ok := h.Inverse()
	if !ok || size.X <= 0 || size.Y <= 0 {
		return out
	}

	rows := sampledRegion(src, h, size)
	if rows.Empty() {
		return out
	}

	// Parallelize by horizontal stripes
	numWorkers := runtime.NumCPU()
	height := rows.Dy()
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		startY := rows.Min.Y + w*rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > rows.Max.Y {
			endY = rows.Max.Y
		}
		if startY >= rows.Max.Y {
			break
		}

		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			for y := yStart; y < yEnd; y++ {
				for x := rows.Min.X; x < rows.Max.X; x++ {
					p, ok := inv.Apply(geometry.Point2D{X: float64(x), Y: float64(y)})
					if !ok {
						continue
					}
					off := out.PixOffset(x, y)
					sampleBilinear(src, p.X, p.Y, out.Pix[off:off+4])
				}
			}
		}(startY, endY)
	}
	wg.Wait()

	return out
}

// sampledRegion bounds the canvas pixels whose inverse map can land in the
// open square (-1, w) x (-1, h) that sampleBilinear reads from. When that
// square straddles the homography's line at infinity its image is unbounded
// and the whole canvas is scanned.
func sampledRegion(src *image.NRGBA, h geometry.Homography, size image.Point) image.Rectangle {
	canvas := image.Rect(0, 0, size.X, size.Y)
	b := src.Bounds()
	w, ht := float64(b.Dx()), float64(b.Dy())
	corners := []geometry.Point2D{{X: -1, Y: -1}, {X: w, Y: -1}, {X: w, Y: ht}, {X: -1, Y: ht}}

	pts := make([]geometry.Point2D, len(corners))
	sign := 0.0
	for i, c := range corners {
		den := h[6]*c.X + h[7]*c.Y + h[8]
		if den == 0 || (sign != 0 && math.Signbit(den) != math.Signbit(sign)) {
			return canvas
		}
		sign = den
		p, ok := h.Apply(c)
		if !ok || !p.IsFinite() {
			return canvas
		}
		pts[i] = p
	}
	minPt, maxPt := geometry.BoundingBox(pts)
	return image.Rect(
		int(math.Floor(minPt.X)), int(math.Floor(minPt.Y)),
		int(math.Floor(maxPt.X))+1, int(math.Floor(maxPt.Y))+1,
	).Intersect(canvas)
}

// sampleBilinear writes the bilinear sample of src at (x, y), in pixel
// coordinates relative to src's origin, into dst.
func sampleBilinear(src *image.NRGBA, x, y float64, dst []uint8) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if x <= -1 || y <= -1 || x >= float64(w) || y >= float64(h) {
		return
	}

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	var acc [4]float64 // premultiplied r, g, b and alpha
	taps := [4]struct {
		x, y int
		wt   float64
	}{
		{x0, y0, (1 - fx) * (1 - fy)},
		{x0 + 1, y0, fx * (1 - fy)},
		{x0, y0 + 1, (1 - fx) * fy},
		{x0 + 1, y0 + 1, fx * fy},
	}
	for _, t := range taps {
		if t.wt == 0 || t.x < 0 || t.y < 0 || t.x >= w || t.y >= h {
			continue
		}
		i := src.PixOffset(b.Min.X+t.x, b.Min.Y+t.y)
		a := float64(src.Pix[i+3]) * t.wt
		acc[0] += float64(src.Pix[i]) * a
		acc[1] += float64(src.Pix[i+1]) * a
		acc[2] += float64(src.Pix[i+2]) * a
		acc[3] += a
	}
	if acc[3] <= 0 {
		return
	}
	dst[0] = uint8(clamp(math.Round(acc[0]/acc[3]), 0, 255))
	dst[1] = uint8(clamp(math.Round(acc[1]/acc[3]), 0, 255))
	dst[2] = uint8(clamp(math.Round(acc[2]/acc[3]), 0, 255))
	dst[3] = uint8(clamp(math.Round(acc[3]), 0, 255))
}

// UseWarper replaces the perspective backend and returns a func restoring
// the previous one.
func UseWarper(name string, w Warper) (restore func()) {
	prevName, prev := WarpBackend, perspectiveWarper
	WarpBackend, perspectiveWarper = name, w
	return func() {
		WarpBackend, perspectiveWarper = prevName, prev
	}
}
