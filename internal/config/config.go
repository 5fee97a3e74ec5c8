// Package config reads and writes render configuration files.
//
// Files are JSON or TOML with the same field names:
//
//	mode            "rect" | "perspective"
//	placement       center_x_norm, center_y_norm, width_norm, height_norm,
//	                rotation_deg (rect) or quad_norm (perspective)
//	blend_mode      normal | multiply | screen | overlay | lighten | darken
//	opacity         0..1
//	maintain_aspect contain | cover | stretch
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	mimage "mockup-render/internal/image"
	"mockup-render/internal/render"
	"mockup-render/pkg/geometry"
)

// Format is a config file encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatTOML
)

// FormatFromPath picks the encoding from the file extension. Anything that
// is not .toml is JSON.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatJSON
}

// File is the on-disk shape of a render config. Pointers distinguish
// missing fields from zero values.
type File struct {
	Mode           string    `json:"mode" toml:"mode"`
	Placement      Placement `json:"placement" toml:"placement"`
	BlendMode      string    `json:"blend_mode,omitempty" toml:"blend_mode,omitempty"`
	Opacity        *float64  `json:"opacity,omitempty" toml:"opacity,omitempty"`
	MaintainAspect string    `json:"maintain_aspect,omitempty" toml:"maintain_aspect,omitempty"`
}

// Placement holds the fields of either placement variant.
type Placement struct {
	CenterXNorm *float64    `json:"center_x_norm,omitempty" toml:"center_x_norm,omitempty"`
	CenterYNorm *float64    `json:"center_y_norm,omitempty" toml:"center_y_norm,omitempty"`
	WidthNorm   *float64    `json:"width_norm,omitempty" toml:"width_norm,omitempty"`
	HeightNorm  *float64    `json:"height_norm,omitempty" toml:"height_norm,omitempty"`
	RotationDeg *float64    `json:"rotation_deg,omitempty" toml:"rotation_deg,omitempty"`
	QuadNorm    [][]float64 `json:"quad_norm,omitempty" toml:"quad_norm,omitempty"`
}

// Load reads a config file, choosing the decoder by extension.
func Load(path string) (render.Config, error) {
	var f File
	switch FormatFromPath(path) {
	case FormatTOML:
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return render.Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return render.Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := json.Unmarshal(data, &f); err != nil {
			return render.Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	return f.Config()
}

// Parse decodes config data in the given format.
func Parse(data []byte, format Format) (render.Config, error) {
	var f File
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &f); err != nil {
			return render.Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &f); err != nil {
			return render.Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	return f.Config()
}

// Config converts the file to a render config, filling defaults for
// missing fields. Unknown blend modes fall back to normal with a warning.
func (f File) Config() (render.Config, error) {
	cfg := render.DefaultConfig()

	mode, err := render.ParseMode(f.Mode)
	if err != nil {
		return render.Config{}, err
	}

	switch mode {
	case render.ModePerspective:
		quad, err := parseQuad(f.Placement.QuadNorm)
		if err != nil {
			return render.Config{}, err
		}
		cfg.Placement = render.PerspectivePlacement{Quad: quad}
	default:
		p := f.Placement
		cfg.Placement = render.RectPlacement{
			CenterX:  orDefault(p.CenterXNorm, 0.5),
			CenterY:  orDefault(p.CenterYNorm, 0.5),
			Width:    orDefault(p.WidthNorm, 0.5),
			Height:   orDefault(p.HeightNorm, 0.5),
			Rotation: orDefault(p.RotationDeg, 0),
		}
	}

	cfg.Blend, err = mimage.ParseBlendMode(f.BlendMode)
	if errors.Is(err, mimage.ErrUnsupportedBlendMode) {
		log.Printf("Warning: %v, using normal", err)
	}

	cfg.Opacity = mimage.ClampOpacity(orDefault(f.Opacity, 1))

	cfg.Aspect, err = mimage.ParseFitMode(f.MaintainAspect)
	if err != nil {
		return render.Config{}, &render.ValidationError{Field: "maintain_aspect", Reason: err.Error()}
	}

	if err := cfg.Validate(); err != nil {
		return render.Config{}, err
	}
	return cfg, nil
}

func parseQuad(points [][]float64) (geometry.Quad, error) {
	var q geometry.Quad
	if len(points) != 4 {
		return q, &render.ValidationError{
			Field:  "quad_norm",
			Reason: fmt.Sprintf("perspective placement requires 4 points, got %d", len(points)),
		}
	}
	for i, pt := range points {
		if len(pt) != 2 {
			return q, &render.ValidationError{
				Field:  "quad_norm",
				Reason: fmt.Sprintf("point %d has %d coordinates, want 2", i, len(pt)),
			}
		}
		q[i] = geometry.NewPoint2D(pt[0], pt[1])
	}
	return q, nil
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// FromConfig builds the on-disk representation of cfg.
func FromConfig(cfg render.Config) File {
	opacity := cfg.Opacity
	f := File{
		Mode:           cfg.Mode().String(),
		BlendMode:      cfg.Blend.String(),
		Opacity:        &opacity,
		MaintainAspect: cfg.Aspect.String(),
	}
	switch p := cfg.Placement.(type) {
	case render.RectPlacement:
		f.Placement = Placement{
			CenterXNorm: ptr(p.CenterX),
			CenterYNorm: ptr(p.CenterY),
			WidthNorm:   ptr(p.Width),
			HeightNorm:  ptr(p.Height),
			RotationDeg: ptr(p.Rotation),
		}
	case render.PerspectivePlacement:
		for _, pt := range p.Quad {
			f.Placement.QuadNorm = append(f.Placement.QuadNorm, []float64{pt.X, pt.Y})
		}
	}
	return f
}

func ptr(v float64) *float64 { return &v }

// Save writes cfg to path, choosing the encoder by extension.
func Save(path string, cfg render.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := Marshal(cfg, FormatFromPath(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Marshal encodes cfg in the given format.
func Marshal(cfg render.Config, format Format) ([]byte, error) {
	f := FromConfig(cfg)
	if format == FormatTOML {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(f); err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		return buf.Bytes(), nil
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return append(data, '\n'), nil
}

// Template returns the starting config written by init-config.
func Template(mode render.Mode) render.Config {
	cfg := render.DefaultConfig()
	if mode == render.ModePerspective {
		cfg.Placement = render.PerspectivePlacement{Quad: geometry.Quad{
			{X: 0.2, Y: 0.2}, {X: 0.8, Y: 0.2}, {X: 0.8, Y: 0.8}, {X: 0.2, Y: 0.8},
		}}
		return cfg
	}
	cfg.Placement = render.RectPlacement{CenterX: 0.5, CenterY: 0.5, Width: 0.6, Height: 0.4}
	return cfg
}
