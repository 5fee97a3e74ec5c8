package image

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// FitMode is the aspect-fit policy used when sizing the overlay.
type FitMode int

const (
	// FitContain scales to fit inside the target box, preserving aspect ratio.
	FitContain FitMode = iota
	// FitCover scales to cover the whole target box, preserving aspect ratio.
	FitCover
	// FitStretch resizes to the target box exactly.
	FitStretch
)

func (m FitMode) String() string {
	switch m {
	case FitContain:
		return "contain"
	case FitCover:
		return "cover"
	case FitStretch:
		return "stretch"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the declared policies.
func (m FitMode) Valid() bool {
	return m >= FitContain && m <= FitStretch
}

// FitModeNames returns the names accepted by ParseFitMode.
func FitModeNames() []string {
	return []string{FitContain.String(), FitCover.String(), FitStretch.String()}
}

// ParseFitMode looks a policy up by case-insensitive name. Empty means contain.
func ParseFitMode(name string) (FitMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "contain":
		return FitContain, nil
	case "cover":
		return FitCover, nil
	case "stretch":
		return FitStretch, nil
	default:
		return FitContain, fmt.Errorf("unsupported aspect policy %q", name)
	}
}

// FitSize returns the dimensions a src-sized raster is resized to for a
// target box under the given policy. Rounding is half to even and every
// dimension is at least 1.
func FitSize(src, target image.Point, mode FitMode) image.Point {
	if mode == FitStretch || src.X <= 0 || src.Y <= 0 {
		return image.Pt(max(1, target.X), max(1, target.Y))
	}

	scaleW := float64(target.X) / float64(src.X)
	scaleH := float64(target.Y) / float64(src.Y)
	scale := math.Min(scaleW, scaleH)
	if mode == FitCover {
		scale = math.Max(scaleW, scaleH)
	}

	return image.Pt(
		max(1, int(math.RoundToEven(float64(src.X)*scale))),
		max(1, int(math.RoundToEven(float64(src.Y)*scale))),
	)
}

// ResizeToFit resizes img for the target box using a Lanczos filter.
// Nothing is cropped: a cover result may exceed the box and a contain
// result may leave margins once centred.
func ResizeToFit(img *image.NRGBA, target image.Point, mode FitMode) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return img
	}
	size := FitSize(b.Size(), target, mode)
	return imaging.Resize(img, size.X, size.Y, imaging.Lanczos)
}
