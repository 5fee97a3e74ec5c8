package render

import (
	"image"
	"strings"

	mimage "mockup-render/internal/image"
)

// Anchor says which point of the overlay PixelPlacement.X/Y refers to.
type Anchor int

const (
	// AnchorCenter means (X, Y) is the visual centre of the overlay.
	AnchorCenter Anchor = iota
	// AnchorTopLeft means (X, Y) is the top-left corner before rotation.
	AnchorTopLeft
)

func (a Anchor) String() string {
	if a == AnchorTopLeft {
		return "topleft"
	}
	return "center"
}

// ParseAnchor looks an anchor up by case-insensitive name. Empty means center.
func ParseAnchor(name string) (Anchor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "center", "centre":
		return AnchorCenter, nil
	case "topleft", "top-left":
		return AnchorTopLeft, nil
	default:
		return AnchorCenter, invalid("anchor", "unknown anchor %q", name)
	}
}

// PixelPlacement is a placement given directly in background pixels.
type PixelPlacement struct {
	X        int
	Y        int
	Width    int
	Height   int
	Rotation float64
	Anchor   Anchor
}

// PixelParams carries everything the pixel-driven entry point needs.
type PixelParams struct {
	Placement PixelPlacement
	Aspect    mimage.FitMode
	Opacity   float64
	Blend     mimage.BlendMode
}

func (p PixelPlacement) validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return invalid("size", "target %dx%d must be positive", p.Width, p.Height)
	}
	if !isFinite(p.Rotation) {
		return invalid("rotation", "not a finite number")
	}
	if p.Anchor != AnchorCenter && p.Anchor != AnchorTopLeft {
		return invalid("anchor", "unknown anchor %d", p.Anchor)
	}
	return nil
}

// Resolve returns the geometry the placement describes. With AnchorTopLeft
// the centre is (X + W/2, Y + H/2) in integer arithmetic.
func (p PixelPlacement) Resolve() (RectGeometry, error) {
	if err := p.validate(); err != nil {
		return RectGeometry{}, err
	}
	center := image.Pt(p.X, p.Y)
	if p.Anchor == AnchorTopLeft {
		center = image.Pt(p.X+p.Width/2, p.Y+p.Height/2)
	}
	return RectGeometry{
		Center:   center,
		Width:    p.Width,
		Height:   p.Height,
		Rotation: p.Rotation,
	}, nil
}

// Validate checks the params without touching any raster.
func (p PixelParams) Validate() error {
	if err := p.Placement.validate(); err != nil {
		return err
	}
	if !p.Blend.Valid() {
		return invalid("blend_mode", "unknown blend mode %d", p.Blend)
	}
	if !p.Aspect.Valid() {
		return invalid("maintain_aspect", "unknown aspect policy %d", p.Aspect)
	}
	return nil
}
