// Package editor converts between an editor's item transform and the pixel
// placement the renderer consumes.
//
// An item is the design raster drawn in scene (mockup) pixels. Its
// transform scales it in its own axes first, then rotates it about its
// local origin, then translates it. Scene y grows downward; positive
// rotation is counter-clockwise on screen, the same as the renderer.
package editor

import (
	"fmt"
	"image"
	"math"

	"mockup-render/internal/render"
	"mockup-render/pkg/geometry"
)

// minScale keeps a collapsed axis invertible.
const minScale = 1e-6

// ViewTransform is the decomposed transform of an item in the scene.
type ViewTransform struct {
	ScaleX      float64
	ScaleY      float64
	RotationDeg float64
	// Translation is the scene position of the item's local origin.
	Translation geometry.Point2D
}

// Identity returns the transform of an unscaled, unrotated item at the
// scene origin.
func Identity() ViewTransform {
	return ViewTransform{ScaleX: 1, ScaleY: 1}
}

// FromAffine decomposes m, assumed to be rotation times scale plus a
// translation. Scales come from the column norms of the linear part and
// the angle from its first column. Skew is not represented.
func FromAffine(m geometry.AffineTransform) ViewTransform {
	return ViewTransform{
		ScaleX:      math.Hypot(m.A, m.C),
		ScaleY:      math.Hypot(m.B, m.D),
		RotationDeg: math.Atan2(-m.C, m.A) * 180 / math.Pi,
		Translation: geometry.Point2D{X: m.TX, Y: m.TY},
	}
}

// Affine rebuilds the matrix the transform describes.
func (v ViewTransform) Affine() geometry.AffineTransform {
	theta := -v.RotationDeg * math.Pi / 180
	return geometry.Translation(v.Translation.X, v.Translation.Y).
		Compose(geometry.Rotation(theta)).
		Compose(geometry.Scale(v.ScaleX, v.ScaleY))
}

// Center returns the scene position of the centre of an item of the
// given pixel size.
func (v ViewTransform) Center(size image.Point) geometry.Point2D {
	return v.Affine().Apply(geometry.Point2D{X: float64(size.X) / 2, Y: float64(size.Y) / 2})
}

// ToPixels returns the centre-anchored placement that renders the item as
// the editor shows it. size is the design raster's size.
func (v ViewTransform) ToPixels(size image.Point) (render.PixelPlacement, error) {
	if size.X <= 0 || size.Y <= 0 {
		return render.PixelPlacement{}, fmt.Errorf("invalid item size %v", size)
	}
	c := v.Center(size)
	if !c.IsFinite() {
		return render.PixelPlacement{}, fmt.Errorf("transform maps the item centre to %v", c)
	}
	return render.PixelPlacement{
		X:        int(math.RoundToEven(c.X)),
		Y:        int(math.RoundToEven(c.Y)),
		Width:    max(1, int(math.RoundToEven(float64(size.X)*v.ScaleX))),
		Height:   max(1, int(math.RoundToEven(float64(size.Y)*v.ScaleY))),
		Rotation: v.RotationDeg,
		Anchor:   render.AnchorCenter,
	}, nil
}

// FromPixels returns the transform that shows an item of the given size
// where p places it. The item's centre lands on the placement centre.
func FromPixels(p render.PixelPlacement, size image.Point) (ViewTransform, error) {
	if size.X <= 0 || size.Y <= 0 {
		return ViewTransform{}, fmt.Errorf("invalid item size %v", size)
	}
	g, err := p.Resolve()
	if err != nil {
		return ViewTransform{}, err
	}

	v := ViewTransform{
		ScaleX:      math.Max(minScale, float64(g.Width)/float64(size.X)),
		ScaleY:      math.Max(minScale, float64(g.Height)/float64(size.Y)),
		RotationDeg: g.Rotation,
	}
	offset := v.Affine().ApplyVector(geometry.Point2D{X: float64(size.X) / 2, Y: float64(size.Y) / 2})
	v.Translation = geometry.Point2D{
		X: float64(g.Center.X) - offset.X,
		Y: float64(g.Center.Y) - offset.Y,
	}
	return v, nil
}
