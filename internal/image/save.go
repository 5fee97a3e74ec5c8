package image

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// JPEGQuality is the quality used for JPEG output.
const JPEGQuality = 95

// OutputFormats returns the extensions Save can write.
func OutputFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".tif", ".gif"}
}

// IsOutputFormat reports whether Save can write the extension of path.
func IsOutputFormat(path string) bool {
	_, err := imaging.FormatFromFilename(path)
	return err == nil
}

// Save writes img to path, creating parent directories. The format follows
// the extension. JPEG output drops alpha outright: colour channels are kept
// as they are and nothing is composited against a backing colour, so soft
// edges over JPEG will show artifacts.
func Save(img *image.NRGBA, path string) error {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return fmt.Errorf("unsupported output format %q: %w", filepath.Ext(path), err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := Encode(file, img, format); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Encode writes img to w in the given format with the same alpha rules as Save.
func Encode(w io.Writer, img *image.NRGBA, format imaging.Format) error {
	var out image.Image = img
	if format == imaging.JPEG {
		out = DropAlpha(img)
	}
	if err := imaging.Encode(w, out, format, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return nil
}

// DropAlpha returns a copy of img with every alpha forced to 255 and the
// colour channels untouched.
func DropAlpha(img *image.NRGBA) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}
	return out
}
