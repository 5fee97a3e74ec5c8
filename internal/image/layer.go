// Package image provides raster loading, saving and the compositing stages
// used to place a design onto a mockup.
package image

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeError reports raster data that could not be decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to decode image: %v", e.Err)
	}
	return fmt.Sprintf("failed to decode image %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err is or wraps a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Load opens and decodes the raster at path and normalises it to NRGBA.
// Open failures are returned wrapped so errors.Is(err, fs.ErrNotExist)
// still works; undecodable data returns a *DecodeError.
func Load(path string) (*image.NRGBA, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, err := decode(file)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return img, nil
}

// Decode reads a raster from r and normalises it to NRGBA.
func Decode(r io.Reader) (*image.NRGBA, error) {
	img, err := decode(r)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return img, nil
}

func decode(r io.Reader) (*image.NRGBA, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, err
	}
	return Normalize(img), nil
}

// Normalize returns src as 8-bit non-premultiplied RGBA. Sources without an
// alpha channel (gray, YCbCr, paletted without transparency) come out fully
// opaque. The result never aliases src.
func Normalize(src image.Image) *image.NRGBA {
	return imaging.Clone(src)
}

// SupportedFormats returns the list of readable image extensions.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".bmp", ".webp", ".tiff", ".tif", ".gif"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
