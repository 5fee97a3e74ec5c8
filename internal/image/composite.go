package image

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
)

// ErrUnsupportedBlendMode is returned by ParseBlendMode for unknown names.
// It is a soft failure: callers fall back to BlendNormal.
var ErrUnsupportedBlendMode = errors.New("unsupported blend mode")

// BlendMode specifies how the overlay is merged onto the background.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendMultiply
	BlendScreen
	BlendOverlay
	BlendLighten
	BlendDarken
)

var blendNames = map[BlendMode]string{
	BlendNormal:   "normal",
	BlendMultiply: "multiply",
	BlendScreen:   "screen",
	BlendOverlay:  "overlay",
	BlendLighten:  "lighten",
	BlendDarken:   "darken",
}

func (m BlendMode) String() string {
	if name, ok := blendNames[m]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether m is one of the declared modes.
func (m BlendMode) Valid() bool {
	_, ok := blendNames[m]
	return ok
}

// BlendModes returns every supported mode in declaration order.
func BlendModes() []BlendMode {
	return []BlendMode{BlendNormal, BlendMultiply, BlendScreen, BlendOverlay, BlendLighten, BlendDarken}
}

// BlendModeNames returns the names accepted by ParseBlendMode.
func BlendModeNames() []string {
	modes := BlendModes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.String()
	}
	return names
}

// ParseBlendMode looks a mode up by case-insensitive name. An empty name is
// BlendNormal. Unknown names return BlendNormal together with
// ErrUnsupportedBlendMode so the caller can decide whether to warn.
func ParseBlendMode(name string) (BlendMode, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return BlendNormal, nil
	}
	for mode, n := range blendNames {
		if n == key {
			return mode, nil
		}
	}
	return BlendNormal, fmt.Errorf("%w: %q", ErrUnsupportedBlendMode, name)
}

// mix returns the blend function f(base, over) for one mode. Inputs and
// output are normalised RGB.
func (m BlendMode) mix(base, over colorful.Color) colorful.Color {
	switch m {
	case BlendMultiply:
		return colorful.Color{R: base.R * over.R, G: base.G * over.G, B: base.B * over.B}
	case BlendScreen:
		return colorful.Color{R: screenChannel(base.R, over.R), G: screenChannel(base.G, over.G), B: screenChannel(base.B, over.B)}
	case BlendOverlay:
		return colorful.Color{R: overlayChannel(base.R, over.R), G: overlayChannel(base.G, over.G), B: overlayChannel(base.B, over.B)}
	case BlendLighten:
		return colorful.Color{R: math.Max(base.R, over.R), G: math.Max(base.G, over.G), B: math.Max(base.B, over.B)}
	case BlendDarken:
		return colorful.Color{R: math.Min(base.R, over.R), G: math.Min(base.G, over.G), B: math.Min(base.B, over.B)}
	default:
		return over
	}
}

func screenChannel(b, o float64) float64 {
	return 1 - (1-b)*(1-o)
}

func overlayChannel(b, o float64) float64 {
	if b <= 0.5 {
		return 2 * b * o
	}
	return 1 - 2*(1-b)*(1-o)
}

// Blend merges over onto base with the given mode and returns a new raster
// of base's size. Both rasters must have the same dimensions.
//
//	out_rgb = f(base, over)*over_a + base_rgb*(1-over_a)
//	out_a   = over_a + base_a*(1-over_a)
func Blend(base, over *image.NRGBA, mode BlendMode) (*image.NRGBA, error) {
	bb, ob := base.Bounds(), over.Bounds()
	if bb.Dx() != ob.Dx() || bb.Dy() != ob.Dy() {
		return nil, fmt.Errorf("blend size mismatch: base %dx%d, overlay %dx%d",
			bb.Dx(), bb.Dy(), ob.Dx(), ob.Dy())
	}

	w, h := bb.Dx(), bb.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		bRow := base.Pix[base.PixOffset(bb.Min.X, bb.Min.Y+y):]
		oRow := over.Pix[over.PixOffset(ob.Min.X, ob.Min.Y+y):]
		dRow := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			oa := float64(oRow[i+3]) / 255
			if oa == 0 {
				copy(dRow[i:i+4], bRow[i:i+4])
				continue
			}
			baseC := colorful.Color{R: float64(bRow[i]) / 255, G: float64(bRow[i+1]) / 255, B: float64(bRow[i+2]) / 255}
			overC := colorful.Color{R: float64(oRow[i]) / 255, G: float64(oRow[i+1]) / 255, B: float64(oRow[i+2]) / 255}
			ba := float64(bRow[i+3]) / 255

			f := mode.mix(baseC, overC)
			res := colorful.Color{
				R: f.R*oa + baseC.R*(1-oa),
				G: f.G*oa + baseC.G*(1-oa),
				B: f.B*oa + baseC.B*(1-oa),
			}.Clamped()
			r, g, b := res.RGB255()
			dRow[i] = r
			dRow[i+1] = g
			dRow[i+2] = b
			dRow[i+3] = to8(oa + ba*(1-oa))
		}
	}
	return out, nil
}

func to8(v float64) uint8 {
	return uint8(math.Round(clamp(v, 0, 1) * 255))
}

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}

// PlaceOnCanvas composites overlay onto a fully transparent canvas of the
// given size so that the overlay's centre lands on center. The top-left
// corner is round(center - size/2), half to even. Parts outside the canvas
// are clipped.
func PlaceOnCanvas(overlay *image.NRGBA, size image.Point, center image.Point) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	ob := overlay.Bounds()
	x0 := int(math.RoundToEven(float64(center.X) - float64(ob.Dx())/2))
	y0 := int(math.RoundToEven(float64(center.Y) - float64(ob.Dy())/2))

	dst := image.Rect(x0, y0, x0+ob.Dx(), y0+ob.Dy())
	draw.Draw(canvas, dst, overlay, ob.Min, draw.Over)
	return canvas
}
