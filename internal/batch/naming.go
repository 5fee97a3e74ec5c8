package batch

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	mimage "mockup-render/internal/image"
)

// DefaultPattern is the output file name pattern.
const DefaultPattern = "{name}_mockup.png"

// OutputName expands {name}, {index} and {ext} in pattern for the design
// at designPath. {ext} has no leading dot.
func OutputName(pattern, designPath string, index int) string {
	base := filepath.Base(designPath)
	ext := filepath.Ext(base)
	return strings.NewReplacer(
		"{name}", strings.TrimSuffix(base, ext),
		"{index}", strconv.Itoa(index),
		"{ext}", strings.TrimPrefix(ext, "."),
	).Replace(pattern)
}

// Slugify keeps letters, digits, '-', '_' and '.', replacing everything else
// with '_', collapsing repeats and trimming leading or trailing '.' and '_'.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	s := b.String()
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	s = strings.Trim(s, "._")
	if s == "" {
		return "file"
	}
	return s
}

// OutputFile returns the slugified output file name, replacing the
// extension with .png when it is not one Save can write.
func OutputFile(pattern, designPath string, index int) string {
	name := Slugify(OutputName(pattern, designPath, index))
	if !mimage.IsOutputFormat(name) {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".png"
	}
	return name
}
