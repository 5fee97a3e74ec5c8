// Package render composites a design onto a mockup. It resolves placements
// against the mockup size and drives the stages in internal/image.
package render

import (
	"fmt"
	"image"
	"math"
	"strings"

	mimage "mockup-render/internal/image"
	"mockup-render/pkg/geometry"
)

// Mode selects how the overlay is placed.
type Mode int

const (
	ModeRect Mode = iota
	ModePerspective
)

func (m Mode) String() string {
	switch m {
	case ModeRect:
		return "rect"
	case ModePerspective:
		return "perspective"
	default:
		return "unknown"
	}
}

// ParseMode looks a mode up by case-insensitive name. Empty means rect.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "rect":
		return ModeRect, nil
	case "perspective":
		return ModePerspective, nil
	default:
		return ModeRect, invalid("mode", "unknown mode %q", name)
	}
}

// Placement is either a RectPlacement or a PerspectivePlacement.
type Placement interface {
	mode() Mode
}

// RectPlacement positions the overlay by centre and size, all as fractions
// of the background. Rotation is in degrees, positive counter-clockwise.
type RectPlacement struct {
	CenterX  float64
	CenterY  float64
	Width    float64
	Height   float64
	Rotation float64
}

func (RectPlacement) mode() Mode { return ModeRect }

// PerspectivePlacement maps the overlay corners onto Quad, given as
// fractions of the background in order top-left, top-right, bottom-right,
// bottom-left.
type PerspectivePlacement struct {
	Quad geometry.Quad
}

func (PerspectivePlacement) mode() Mode { return ModePerspective }

// RectGeometry is a placement resolved to background pixels.
type RectGeometry struct {
	Center   image.Point
	Width    int
	Height   int
	Rotation float64
}

// Config is everything needed to render one composite.
type Config struct {
	Placement Placement
	Blend     mimage.BlendMode
	Opacity   float64
	Aspect    mimage.FitMode
}

// DefaultConfig returns a centred rect placement covering half the mockup,
// normal blending at full opacity.
func DefaultConfig() Config {
	return Config{
		Placement: RectPlacement{CenterX: 0.5, CenterY: 0.5, Width: 0.5, Height: 0.5},
		Blend:     mimage.BlendNormal,
		Opacity:   1,
		Aspect:    mimage.FitContain,
	}
}

// Mode reports the placement variant carried by the config.
func (c Config) Mode() Mode {
	if c.Placement == nil {
		return ModeRect
	}
	return c.Placement.mode()
}

// Validate checks everything that can be checked without the rasters.
func (c Config) Validate() error {
	switch p := c.Placement.(type) {
	case RectPlacement:
		if err := p.validate(); err != nil {
			return err
		}
	case PerspectivePlacement:
		if err := p.validate(); err != nil {
			return err
		}
	case nil:
		return invalid("placement", "missing")
	default:
		return invalid("placement", "unsupported placement %T", p)
	}
	if !c.Blend.Valid() {
		return invalid("blend_mode", "unknown blend mode %d", c.Blend)
	}
	if !c.Aspect.Valid() {
		return invalid("maintain_aspect", "unknown aspect policy %d", c.Aspect)
	}
	return nil
}

func (p RectPlacement) validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"center_x_norm", p.CenterX},
		{"center_y_norm", p.CenterY},
		{"width_norm", p.Width},
		{"height_norm", p.Height},
		{"rotation_deg", p.Rotation},
	}
	for _, f := range fields {
		if !isFinite(f.v) {
			return invalid(f.name, "not a finite number")
		}
	}
	return nil
}

func (p PerspectivePlacement) validate() error {
	for i, pt := range p.Quad {
		if !pt.IsFinite() {
			return invalid("quad_norm", "point %d is not finite", i)
		}
	}
	return nil
}

// Resolve converts the fractions to pixels of a background of size bg.
// Sizes are at least one pixel; rounding is half to even.
func (p RectPlacement) Resolve(bg image.Point) RectGeometry {
	return RectGeometry{
		Center: image.Pt(
			roundInt(p.CenterX*float64(bg.X)),
			roundInt(p.CenterY*float64(bg.Y)),
		),
		Width:    max(1, roundInt(p.Width*float64(bg.X))),
		Height:   max(1, roundInt(p.Height*float64(bg.Y))),
		Rotation: p.Rotation,
	}
}

// Resolve scales the quad to pixels of a background of size bg, keeping
// the point order.
func (p PerspectivePlacement) Resolve(bg image.Point) geometry.Quad {
	return p.Quad.Scale(float64(bg.X), float64(bg.Y))
}

func (g RectGeometry) String() string {
	return fmt.Sprintf("%dx%d at (%d,%d) rot %.2f", g.Width, g.Height, g.Center.X, g.Center.Y, g.Rotation)
}

func roundInt(v float64) int {
	return int(math.RoundToEven(v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
