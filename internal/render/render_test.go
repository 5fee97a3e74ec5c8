package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	mimage "mockup-render/internal/image"
	"mockup-render/pkg/geometry"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

var (
	gray = color.NRGBA{200, 200, 200, 255}
	red  = color.NRGBA{255, 0, 0, 255}
	blue = color.NRGBA{0, 0, 255, 255}
)

func rectConfig(cx, cy, w, h float64) Config {
	cfg := DefaultConfig()
	cfg.Placement = RectPlacement{CenterX: cx, CenterY: cy, Width: w, Height: h}
	return cfg
}

func TestRender_RedSquareOnGray(t *testing.T) {
	bg := solid(1000, 800, gray)
	overlay := solid(100, 100, red)

	out, err := Render(bg, overlay, rectConfig(0.5, 0.5, 0.1, 0.1))
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds().Size() != image.Pt(1000, 800) {
		t.Fatalf("size = %v", out.Bounds().Size())
	}

	// target 100x80, contain gives 80x80 centred on (500,400)
	tests := []struct {
		x, y int
		want color.NRGBA
	}{
		{500, 400, red},
		{0, 0, gray},
		{999, 799, gray},
		{460, 360, red},
		{539, 439, red},
		{459, 400, gray},
		{540, 400, gray},
		{500, 359, gray},
		{500, 440, gray},
	}
	for _, tt := range tests {
		if got := out.NRGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
	if bg.NRGBAAt(500, 400) != gray {
		t.Error("Render modified the background")
	}
}

func TestRender_OpacityClamped(t *testing.T) {
	bg := solid(64, 48, gray)
	overlay := solid(20, 20, blue)

	render := func(op float64) []uint8 {
		cfg := rectConfig(0.5, 0.5, 0.5, 0.5)
		cfg.Opacity = op
		out, err := Render(bg, overlay, cfg)
		if err != nil {
			t.Fatal(err)
		}
		return out.Pix
	}

	if !bytes.Equal(render(1.5), render(1)) {
		t.Error("opacity 1.5 differs from 1")
	}
	if !bytes.Equal(render(-0.5), render(0)) {
		t.Error("opacity -0.5 differs from 0")
	}
}

func TestRender_OpacityZeroKeepsBackground(t *testing.T) {
	bg := solid(40, 30, gray)
	bg.SetNRGBA(3, 4, color.NRGBA{1, 2, 3, 4})

	for _, mode := range mimage.BlendModes() {
		cfg := rectConfig(0.5, 0.5, 0.8, 0.8)
		cfg.Opacity = 0
		cfg.Blend = mode
		out, err := Render(bg, solid(10, 10, red), cfg)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(out.Pix, bg.Pix) {
			t.Errorf("%v: opacity 0 changed the background", mode)
		}
	}
}

func TestRender_NormalPaintsTargetRect(t *testing.T) {
	bg := solid(100, 100, gray)
	cfg := rectConfig(0.5, 0.5, 0.2, 0.4)
	cfg.Aspect = mimage.FitStretch

	out, err := Render(bg, solid(7, 3, blue), cfg)
	if err != nil {
		t.Fatal(err)
	}
	// 20x40 centred on (50,50): x 40..59, y 30..69
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			want := gray
			if x >= 40 && x < 60 && y >= 30 && y < 70 {
				want = blue
			}
			if got := out.NRGBAAt(x, y); got != want {
				t.Fatalf("(%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestRender_PerspectiveFullCanvasStretches(t *testing.T) {
	bg := solid(90, 60, gray)
	cfg := DefaultConfig()
	cfg.Placement = PerspectivePlacement{Quad: geometry.Quad{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}}

	out, err := Render(bg, solid(30, 30, red), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode() != ModePerspective {
		t.Errorf("Mode() = %v", cfg.Mode())
	}
	for y := 0; y < 60; y++ {
		for x := 0; x < 90; x++ {
			if got := out.NRGBAAt(x, y); got != red {
				t.Fatalf("(%d,%d) = %v, want %v", x, y, got, red)
			}
		}
	}
}

func TestRender_DegeneratePerspectiveLeavesBackground(t *testing.T) {
	bg := solid(40, 40, gray)
	cfg := DefaultConfig()
	cfg.Placement = PerspectivePlacement{Quad: geometry.Quad{{X: 0.5, Y: 0.5}, {X: 0.5, Y: 0.5}, {X: 0.5, Y: 0.5}, {X: 0.5, Y: 0.5}}}

	out, err := Render(bg, solid(10, 10, red), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Pix, bg.Pix) {
		t.Error("degenerate quad changed the background")
	}
}

func TestRenderPixels_MatchesConfigDriven(t *testing.T) {
	bg := solid(1000, 800, gray)
	overlay := solid(120, 60, color.NRGBA{30, 160, 90, 200})

	tests := []struct {
		name     string
		rotation float64
		blend    mimage.BlendMode
		aspect   mimage.FitMode
		opacity  float64
	}{
		{"plain", 0, mimage.BlendNormal, mimage.FitContain, 1},
		{"rotated multiply", 30, mimage.BlendMultiply, mimage.FitContain, 1},
		{"cover screen translucent", -12.5, mimage.BlendScreen, mimage.FitCover, 0.6},
		{"stretch overlay", 90, mimage.BlendOverlay, mimage.FitStretch, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Placement: RectPlacement{CenterX: 0.5, CenterY: 0.5, Width: 0.1, Height: 0.1, Rotation: tt.rotation},
				Blend:     tt.blend,
				Opacity:   tt.opacity,
				Aspect:    tt.aspect,
			}
			byConfig, err := Render(bg, overlay, cfg)
			if err != nil {
				t.Fatal(err)
			}

			params := PixelParams{
				Placement: PixelPlacement{X: 500, Y: 400, Width: 100, Height: 80, Rotation: tt.rotation},
				Blend:     tt.blend,
				Opacity:   tt.opacity,
				Aspect:    tt.aspect,
			}
			byPixels, err := RenderPixels(bg, overlay, params)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(byConfig.Pix, byPixels.Pix) {
				t.Error("config-driven and pixel-driven renders differ")
			}
		})
	}
}

func TestRenderPixels_TopLeftAnchor(t *testing.T) {
	bg := solid(200, 100, gray)
	params := PixelParams{
		Placement: PixelPlacement{X: 100, Y: 50, Width: 40, Height: 20, Anchor: AnchorTopLeft},
		Aspect:    mimage.FitStretch,
		Opacity:   1,
	}
	out, err := RenderPixels(bg, solid(5, 5, blue), params)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		x, y int
		want color.NRGBA
	}{
		{100, 50, blue},
		{139, 69, blue},
		{99, 50, gray},
		{140, 60, gray},
		{120, 70, gray},
	}
	for _, tt := range tests {
		if got := out.NRGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestRenderPixels_RejectsNonPositiveSize(t *testing.T) {
	for _, p := range []PixelPlacement{{Width: 0, Height: 10}, {Width: 10, Height: -1}} {
		_, err := RenderPixels(solid(4, 4, gray), solid(2, 2, red), PixelParams{Placement: p, Opacity: 1})
		if !IsValidationError(err) {
			t.Errorf("%+v: error = %v, want ValidationError", p, err)
		}
	}
}

func TestRender_EmptyRasters(t *testing.T) {
	empty := image.NewNRGBA(image.Rect(0, 0, 0, 0))
	if _, err := Render(empty, solid(2, 2, red), DefaultConfig()); !IsValidationError(err) {
		t.Errorf("empty background error = %v", err)
	}
	if _, err := Render(solid(2, 2, gray), empty, DefaultConfig()); !IsValidationError(err) {
		t.Errorf("empty overlay error = %v", err)
	}
}

func TestRender_NonNRGBAInputs(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 20, 20))
	for i := range g.Pix {
		g.Pix[i] = 200
	}
	offset := solid(30, 30, red).SubImage(image.Rect(10, 10, 30, 30))

	out, err := Render(g, offset, rectConfig(0.5, 0.5, 0.5, 0.5))
	if err != nil {
		t.Fatal(err)
	}
	if got := out.NRGBAAt(10, 10); got != red {
		t.Errorf("centre = %v, want %v", got, red)
	}
	if got := out.NRGBAAt(0, 0); got != gray {
		t.Errorf("corner = %v, want %v", got, gray)
	}
}

func TestRenderFile(t *testing.T) {
	dir := t.TempDir()
	bgPath := filepath.Join(dir, "mockup.png")
	designPath := filepath.Join(dir, "design.png")
	if err := mimage.Save(solid(50, 50, gray), bgPath); err != nil {
		t.Fatal(err)
	}
	if err := mimage.Save(solid(10, 10, red), designPath); err != nil {
		t.Fatal(err)
	}

	out, err := RenderFile(bgPath, designPath, rectConfig(0.5, 0.5, 0.2, 0.2))
	if err != nil {
		t.Fatal(err)
	}
	if got := out.NRGBAAt(25, 25); got != red {
		t.Errorf("centre = %v, want %v", got, red)
	}

	out, err = RenderPixelsFile(bgPath, designPath, PixelParams{
		Placement: PixelPlacement{X: 25, Y: 25, Width: 10, Height: 10},
		Opacity:   1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := out.NRGBAAt(25, 25); got != red {
		t.Errorf("pixel-driven centre = %v, want %v", got, red)
	}
}

func TestRenderFile_Errors(t *testing.T) {
	dir := t.TempDir()
	bgPath := filepath.Join(dir, "mockup.png")
	if err := mimage.Save(solid(8, 8, gray), bgPath); err != nil {
		t.Fatal(err)
	}
	corrupt := filepath.Join(dir, "design.png")
	if err := os.WriteFile(corrupt, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "nope.png")

	if _, err := RenderFile(missing, corrupt, DefaultConfig()); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing mockup error = %v", err)
	}
	if _, err := RenderFile(bgPath, corrupt, DefaultConfig()); !mimage.IsDecodeError(err) {
		t.Errorf("corrupt design error = %v", err)
	}

	// Validation wins over I/O.
	bad := DefaultConfig()
	bad.Placement = nil
	if _, err := RenderFile(missing, missing, bad); !IsValidationError(err) {
		t.Errorf("invalid config error = %v, want ValidationError", err)
	}
	if _, err := RenderPixelsFile(missing, missing, PixelParams{}); !IsValidationError(err) {
		t.Errorf("invalid params error = %v, want ValidationError", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   func() Config
		field string
	}{
		{"default", DefaultConfig, ""},
		{"nil placement", func() Config { c := DefaultConfig(); c.Placement = nil; return c }, "placement"},
		{"nan centre", func() Config { return rectConfig(math.NaN(), 0.5, 0.5, 0.5) }, "center_x_norm"},
		{"inf width", func() Config { return rectConfig(0.5, 0.5, math.Inf(1), 0.5) }, "width_norm"},
		{"bad blend", func() Config { c := DefaultConfig(); c.Blend = 99; return c }, "blend_mode"},
		{"bad aspect", func() Config { c := DefaultConfig(); c.Aspect = -1; return c }, "maintain_aspect"},
		{"inf quad", func() Config {
			c := DefaultConfig()
			c.Placement = PerspectivePlacement{Quad: geometry.Quad{{X: 0, Y: 0}, {X: math.Inf(-1), Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}}
			return c
		}, "quad_norm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg().Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("error = %v, want ValidationError on %s", err, tt.field)
			}
		})
	}
}

func TestRectPlacement_Resolve(t *testing.T) {
	tests := []struct {
		name string
		p    RectPlacement
		bg   image.Point
		want RectGeometry
	}{
		{"scenario", RectPlacement{0.5, 0.5, 0.1, 0.1, 0}, image.Pt(1000, 800), RectGeometry{image.Pt(500, 400), 100, 80, 0}},
		{"half to even", RectPlacement{0.5, 0.5, 0.5, 0.5, 15}, image.Pt(5, 3), RectGeometry{image.Pt(2, 2), 2, 2, 15}},
		{"floors at one", RectPlacement{0, 1, 0, -0.2, 0}, image.Pt(10, 10), RectGeometry{image.Pt(0, 10), 1, 1, 0}},
		{"outside the canvas", RectPlacement{1.5, -0.5, 2, 2, 0}, image.Pt(10, 20), RectGeometry{image.Pt(15, -10), 20, 40, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Resolve(tt.bg); got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPerspectivePlacement_Resolve(t *testing.T) {
	p := PerspectivePlacement{Quad: geometry.Quad{{X: 0.1, Y: 0.2}, {X: 0.9, Y: 0.1}, {X: 0.8, Y: 0.9}, {X: 0.2, Y: 0.8}}}
	got := p.Resolve(image.Pt(200, 100))
	want := geometry.Quad{{X: 20, Y: 20}, {X: 180, Y: 10}, {X: 160, Y: 90}, {X: 40, Y: 80}}
	for i := range want {
		if math.Abs(got[i].X-want[i].X) > 1e-9 || math.Abs(got[i].Y-want[i].Y) > 1e-9 {
			t.Errorf("point %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseModeAndAnchor(t *testing.T) {
	if m, err := ParseMode(" Perspective "); err != nil || m != ModePerspective {
		t.Errorf("ParseMode = %v, %v", m, err)
	}
	if m, err := ParseMode(""); err != nil || m != ModeRect {
		t.Errorf("ParseMode(\"\") = %v, %v", m, err)
	}
	if _, err := ParseMode("mesh"); !IsValidationError(err) {
		t.Errorf("ParseMode(mesh) error = %v", err)
	}
	if a, err := ParseAnchor("TopLeft"); err != nil || a != AnchorTopLeft {
		t.Errorf("ParseAnchor = %v, %v", a, err)
	}
	if _, err := ParseAnchor("bottom"); err == nil {
		t.Error("ParseAnchor(bottom) expected error")
	}
}
