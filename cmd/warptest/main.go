// Command warptest warps a design into a perspective quad and prints how well
// the solved homography reproduces the quad corners.
package main

import (
	"flag"
	"fmt"
	"image"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"mockup-render/internal/config"
	mimage "mockup-render/internal/image"
	"mockup-render/internal/render"
	"mockup-render/pkg/geometry"
)

func main() {
	mockup := flag.String("m", "", "Path to mockup image")
	design := flag.String("d", "", "Path to design image")
	cfgPath := flag.String("c", "", "Perspective config file")
	quadArg := flag.String("q", "", "Normalized quad 'x,y;x,y;x,y;x,y' (TL;TR;BR;BL), instead of -c")
	output := flag.String("o", "", "Optional path for the composite")
	flag.Parse()

	if *mockup == "" || *design == "" || (*cfgPath == "" && *quadArg == "") {
		fmt.Println("Usage: warptest -m <mockup> -d <design> (-c <config> | -q <quad>) [-o <output>]")
		os.Exit(1)
	}

	cfg := render.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	} else {
		q, err := parseQuad(*quadArg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse quad: %v\n", err)
			os.Exit(1)
		}
		cfg.Placement = render.PerspectivePlacement{Quad: q}
	}
	p, ok := cfg.Placement.(render.PerspectivePlacement)
	if !ok {
		fmt.Fprintf(os.Stderr, "Config is in %s mode, need perspective\n", cfg.Mode())
		os.Exit(1)
	}

	bg, err := mimage.Load(*mockup)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load mockup: %v\n", err)
		os.Exit(1)
	}
	over, err := mimage.Load(*design)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load design: %v\n", err)
		os.Exit(1)
	}

	size := bg.Bounds().Size()
	quad := p.Resolve(size)
	src := geometry.RectQuad(over.Bounds().Dx(), over.Bounds().Dy())

	fmt.Printf("=== Quad (pixels) ===\n")
	for i, pt := range quad {
		fmt.Printf("  %d: (%.1f, %.1f)\n", i, pt.X, pt.Y)
	}
	fmt.Printf("Convex: %v\n", quad.IsConvex())

	fmt.Printf("\n=== Homography ===\n")
	h, err := geometry.QuadToQuad(src, quad)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Homography failed: %v\n", err)
		os.Exit(1)
	}
	for _, row := range h.Matrix() {
		fmt.Printf("  [%12.6f %12.6f %12.6f]\n", row[0], row[1], row[2])
	}
	fmt.Printf("Det: %.6g\n", h.Det())
	printResiduals(h, src, quad)

	fmt.Printf("\n=== Warp (%s backend) ===\n", mimage.WarpBackend)
	start := time.Now()
	warped := mimage.WarpPerspective(over, quad, size)
	fmt.Printf("Time: %v\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("Coverage: %.2f%%\n", coverage(warped)*100)

	if *output == "" {
		return
	}
	img, err := render.Render(bg, over, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Render failed: %v\n", err)
		os.Exit(1)
	}
	if err := mimage.Save(img, *output); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nSaved composite to %s\n", *output)
}

func parseQuad(s string) (geometry.Quad, error) {
	var q geometry.Quad
	pts := strings.Split(s, ";")
	if len(pts) != 4 {
		return q, fmt.Errorf("need 4 points, got %d", len(pts))
	}
	for i, pt := range pts {
		xy := strings.Split(pt, ",")
		if len(xy) != 2 {
			return q, fmt.Errorf("point %d: need x,y", i)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xy[0]), 64)
		if err != nil {
			return q, fmt.Errorf("point %d: %w", i, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(xy[1]), 64)
		if err != nil {
			return q, fmt.Errorf("point %d: %w", i, err)
		}
		q[i] = geometry.Point2D{X: x, Y: y}
	}
	return q, nil
}

func printResiduals(h geometry.Homography, src, dst geometry.Quad) {
	fmt.Printf("\nPer-corner residuals:\n")
	worst := 0.0
	for i := range src {
		got, ok := h.Apply(src[i])
		if !ok {
			fmt.Printf("  %d: maps to infinity\n", i)
			continue
		}
		err := got.Distance(dst[i])
		worst = math.Max(worst, err)
		fmt.Printf("  %d: (%.2f, %.2f)  err=%.2e px\n", i, got.X, got.Y, err)
	}
	fmt.Printf("Max error: %.2e px\n", worst)
}

// coverage is the fraction of canvas pixels with non-zero alpha.
func coverage(img *image.NRGBA) float64 {
	n := len(img.Pix) / 4
	if n == 0 {
		return 0
	}
	covered := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 0 {
			covered++
		}
	}
	return float64(covered) / float64(n)
}
