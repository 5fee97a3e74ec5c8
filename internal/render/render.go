package render

import (
	"fmt"
	"image"

	mimage "mockup-render/internal/image"
)

// Render composites overlay onto bg as described by cfg. The config is
// validated before any pixel work. The result has bg's size.
func Render(bg, overlay image.Image, cfg Config) (*image.NRGBA, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, over, err := normalizePair(bg, overlay)
	if err != nil {
		return nil, err
	}
	size := base.Bounds().Size()

	var layer *image.NRGBA
	switch p := cfg.Placement.(type) {
	case RectPlacement:
		layer = rectLayer(over, p.Resolve(size), cfg.Aspect, size)
	case PerspectivePlacement:
		layer = mimage.WarpPerspective(over, p.Resolve(size), size)
	default:
		return nil, invalid("placement", "unsupported placement %T", p)
	}

	return composite(base, layer, cfg.Opacity, cfg.Blend)
}

// RenderPixels composites overlay onto bg at a placement given in pixels.
// A RectPlacement resolving to the same geometry renders identically.
func RenderPixels(bg, overlay image.Image, p PixelParams) (*image.NRGBA, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	geom, err := p.Placement.Resolve()
	if err != nil {
		return nil, err
	}
	base, over, err := normalizePair(bg, overlay)
	if err != nil {
		return nil, err
	}
	size := base.Bounds().Size()

	layer := rectLayer(over, geom, p.Aspect, size)
	return composite(base, layer, p.Opacity, p.Blend)
}

// RenderFile loads both rasters and calls Render. The config is validated
// before either file is opened.
func RenderFile(bgPath, overlayPath string, cfg Config) (*image.NRGBA, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bg, overlay, err := loadPair(bgPath, overlayPath)
	if err != nil {
		return nil, err
	}
	return Render(bg, overlay, cfg)
}

// RenderPixelsFile loads both rasters and calls RenderPixels.
func RenderPixelsFile(bgPath, overlayPath string, p PixelParams) (*image.NRGBA, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	bg, overlay, err := loadPair(bgPath, overlayPath)
	if err != nil {
		return nil, err
	}
	return RenderPixels(bg, overlay, p)
}

// rectLayer sizes, rotates and places the overlay on a transparent canvas
// of the background size.
func rectLayer(over *image.NRGBA, g RectGeometry, aspect mimage.FitMode, size image.Point) *image.NRGBA {
	fitted := mimage.ResizeToFit(over, image.Pt(g.Width, g.Height), aspect)
	rotated := mimage.Rotate(fitted, g.Rotation)
	return mimage.PlaceOnCanvas(rotated, size, g.Center)
}

func composite(base, layer *image.NRGBA, opacity float64, mode mimage.BlendMode) (*image.NRGBA, error) {
	layer = mimage.ApplyOpacity(layer, opacity)
	out, err := mimage.Blend(base, layer, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to blend: %w", err)
	}
	return out, nil
}

func normalizePair(bg, overlay image.Image) (*image.NRGBA, *image.NRGBA, error) {
	if bg == nil || bg.Bounds().Empty() {
		return nil, nil, invalid("background", "empty raster")
	}
	if overlay == nil || overlay.Bounds().Empty() {
		return nil, nil, invalid("overlay", "empty raster")
	}
	return normalize(bg), normalize(overlay), nil
}

// normalize converts to zero-origin NRGBA, reusing src when it already is.
func normalize(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	return mimage.Normalize(src)
}

func loadPair(bgPath, overlayPath string) (*image.NRGBA, *image.NRGBA, error) {
	bg, err := mimage.Load(bgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load mockup: %w", err)
	}
	overlay, err := mimage.Load(overlayPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load design: %w", err)
	}
	return bg, overlay, nil
}
