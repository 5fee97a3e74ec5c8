package image

import (
	"errors"
	"image"
	"image/color"
	"testing"
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

func diff8(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func nearColor(a, b color.NRGBA, tol int) bool {
	return diff8(a.R, b.R) <= tol && diff8(a.G, b.G) <= tol &&
		diff8(a.B, b.B) <= tol && diff8(a.A, b.A) <= tol
}

func TestParseBlendMode(t *testing.T) {
	tests := []struct {
		in      string
		want    BlendMode
		wantErr bool
	}{
		{"", BlendNormal, false},
		{"normal", BlendNormal, false},
		{"Multiply", BlendMultiply, false},
		{" SCREEN ", BlendScreen, false},
		{"overlay", BlendOverlay, false},
		{"lighten", BlendLighten, false},
		{"darken", BlendDarken, false},
		{"difference", BlendNormal, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBlendMode(tt.in)
			if got != tt.want {
				t.Errorf("ParseBlendMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if tt.wantErr != errors.Is(err, ErrUnsupportedBlendMode) {
				t.Errorf("ParseBlendMode(%q) error = %v", tt.in, err)
			}
		})
	}
}

func TestBlendModeNamesRoundTrip(t *testing.T) {
	for _, name := range BlendModeNames() {
		m, err := ParseBlendMode(name)
		if err != nil || m.String() != name || !m.Valid() {
			t.Errorf("ParseBlendMode(%q) = %v, %v", name, m, err)
		}
	}
	if BlendMode(42).Valid() {
		t.Error("BlendMode(42).Valid() = true")
	}
}

func TestBlend_Formulas(t *testing.T) {
	base := color.NRGBA{R: 200, G: 100, B: 50, A: 255}
	over := color.NRGBA{R: 100, G: 200, B: 128, A: 255}

	tests := []struct {
		mode BlendMode
		want color.NRGBA
	}{
		{BlendNormal, color.NRGBA{100, 200, 128, 255}},
		// 200*100/255=78.4, 100*200/255=78.4, 50*128/255=25.1
		{BlendMultiply, color.NRGBA{78, 78, 25, 255}},
		// 255-(55*155/255)=221.6, 255-(155*55/255)=221.6, 255-(205*127/255)=152.9
		{BlendScreen, color.NRGBA{222, 222, 153, 255}},
		// R base>0.5: 255-2*55*155/255=188.1; G base<=0.5: 2*100*200/255=156.9; B: 2*50*128/255=50.2
		{BlendOverlay, color.NRGBA{188, 157, 50, 255}},
		{BlendLighten, color.NRGBA{200, 200, 128, 255}},
		{BlendDarken, color.NRGBA{100, 100, 50, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			out, err := Blend(solid(2, 2, base), solid(2, 2, over), tt.mode)
			if err != nil {
				t.Fatal(err)
			}
			got := out.NRGBAAt(1, 1)
			if !nearColor(got, tt.want, 1) {
				t.Errorf("Blend(%v) = %v, want %v", tt.mode, got, tt.want)
			}
		})
	}
}

func TestBlend_RoundsToNearest(t *testing.T) {
	// multiply: 200*200/255 = 156.86; alpha 0.502+0.502*0.498 = 0.752 -> 191.75
	out, err := Blend(solid(1, 1, color.NRGBA{200, 200, 200, 128}), solid(1, 1, color.NRGBA{200, 200, 200, 128}), BlendMultiply)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.NRGBAAt(0, 0); got.A != 192 {
		t.Errorf("alpha = %d, want 192", got.A)
	}
	out, err = Blend(solid(1, 1, color.NRGBA{255, 255, 255, 255}), solid(1, 1, color.NRGBA{200, 200, 200, 255}), BlendMultiply)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{200, 200, 200, 255}) {
		t.Errorf("multiply by white = %v, want unchanged", got)
	}
	out, err = Blend(solid(1, 1, color.NRGBA{200, 0, 0, 255}), solid(1, 1, color.NRGBA{200, 0, 0, 255}), BlendMultiply)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.NRGBAAt(0, 0).R; got != 157 {
		t.Errorf("multiply 200*200 = %d, want 157", got)
	}

	// An opaque normal blend reproduces every byte value exactly.
	base := solid(1, 1, color.NRGBA{0, 0, 0, 255})
	for v := 0; v < 256; v++ {
		c := uint8(v)
		out, err := Blend(base, solid(1, 1, color.NRGBA{c, c, c, 255}), BlendNormal)
		if err != nil {
			t.Fatal(err)
		}
		if got := out.NRGBAAt(0, 0); got != (color.NRGBA{c, c, c, 255}) {
			t.Fatalf("normal blend of %d = %v", v, got)
		}
	}
}

func TestBlend_BoundaryValues(t *testing.T) {
	black := color.NRGBA{0, 0, 0, 255}
	white := color.NRGBA{255, 255, 255, 255}
	mid := color.NRGBA{90, 160, 30, 255}

	tests := []struct {
		name       string
		base, over color.NRGBA
		mode       BlendMode
		want       color.NRGBA
	}{
		{"multiply black overlay", mid, black, BlendMultiply, black},
		{"multiply black base", black, mid, BlendMultiply, black},
		{"screen white overlay", mid, white, BlendScreen, white},
		{"screen white base", white, mid, BlendScreen, white},
		{"lighten white", mid, white, BlendLighten, white},
		{"darken black", mid, black, BlendDarken, black},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Blend(solid(1, 1, tt.base), solid(1, 1, tt.over), tt.mode)
			if err != nil {
				t.Fatal(err)
			}
			if got := out.NRGBAAt(0, 0); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBlend_AlphaAccumulation(t *testing.T) {
	base := color.NRGBA{R: 0, G: 0, B: 255, A: 128}
	over := color.NRGBA{R: 255, G: 0, B: 0, A: 128}

	for _, mode := range BlendModes() {
		t.Run(mode.String(), func(t *testing.T) {
			out, err := Blend(solid(1, 1, base), solid(1, 1, over), mode)
			if err != nil {
				t.Fatal(err)
			}
			// 0.502 + 0.502*(1-0.502) = 0.752 -> 192
			if got := out.NRGBAAt(0, 0).A; diff8(got, 192) > 1 {
				t.Errorf("alpha = %d, want 192", got)
			}
		})
	}
}

func TestBlend_TransparentOverlayKeepsBase(t *testing.T) {
	base := solid(3, 3, color.NRGBA{12, 34, 56, 78})
	for _, mode := range BlendModes() {
		out, err := Blend(base, solid(3, 3, color.NRGBA{255, 255, 255, 0}), mode)
		if err != nil {
			t.Fatal(err)
		}
		if got := out.NRGBAAt(2, 2); got != (color.NRGBA{12, 34, 56, 78}) {
			t.Errorf("%v: got %v", mode, got)
		}
	}
}

func TestBlend_DoesNotMutateInputs(t *testing.T) {
	base := solid(2, 2, color.NRGBA{10, 20, 30, 255})
	over := solid(2, 2, color.NRGBA{200, 100, 0, 255})
	if _, err := Blend(base, over, BlendScreen); err != nil {
		t.Fatal(err)
	}
	if base.NRGBAAt(0, 0) != (color.NRGBA{10, 20, 30, 255}) || over.NRGBAAt(0, 0) != (color.NRGBA{200, 100, 0, 255}) {
		t.Error("Blend modified its inputs")
	}
}

func TestBlend_SizeMismatch(t *testing.T) {
	if _, err := Blend(solid(2, 2, color.NRGBA{}), solid(3, 2, color.NRGBA{}), BlendNormal); err == nil {
		t.Error("expected size mismatch error")
	}
}

func TestPlaceOnCanvas(t *testing.T) {
	red := color.NRGBA{255, 0, 0, 255}
	canvas := PlaceOnCanvas(solid(10, 10, red), image.Pt(50, 40), image.Pt(25, 20))

	if canvas.Bounds() != image.Rect(0, 0, 50, 40) {
		t.Fatalf("canvas bounds = %v", canvas.Bounds())
	}
	tests := []struct {
		x, y int
		want color.NRGBA
	}{
		{20, 15, red},
		{29, 24, red},
		{19, 15, color.NRGBA{}},
		{30, 24, color.NRGBA{}},
		{0, 0, color.NRGBA{}},
	}
	for _, tt := range tests {
		if got := canvas.NRGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestPlaceOnCanvas_ClipsOverflow(t *testing.T) {
	blue := color.NRGBA{0, 0, 255, 255}
	canvas := PlaceOnCanvas(solid(20, 20, blue), image.Pt(30, 30), image.Pt(0, 0))
	if got := canvas.NRGBAAt(0, 0); got != blue {
		t.Errorf("(0,0) = %v, want %v", got, blue)
	}
	if got := canvas.NRGBAAt(10, 10); got != (color.NRGBA{}) {
		t.Errorf("(10,10) = %v, want transparent", got)
	}
}
