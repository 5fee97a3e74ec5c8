// Package batch renders many designs onto one mockup: it gathers designs
// from globs or JSON item lists, names and saves the outputs, and feeds
// uploads and report rows.
package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	mimage "mockup-render/internal/image"
)

// GlobDesigns expands the patterns in order, each one's matches sorted,
// keeping regular files with a readable image extension. A file matched
// by several patterns appears once.
func GlobDesigns(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pat := range patterns {
		matches, err := filepath.Glob(pat)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pat, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if seen[m] || !mimage.IsSupportedFormat(m) {
				continue
			}
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	return files, nil
}

// Item is a remote design listed in a JSON source.
type Item struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// LoadItems reads a JSON item list. See ParseItems for accepted shapes.
func LoadItems(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}
	items, err := ParseItems(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse items %s: %w", path, err)
	}
	return items, nil
}

// ParseItems accepts any of:
//
//	{"urls": ["https://...", ...]}
//	{"items": [{"title": ..., "url"|"image"|"img"|"link": ...}, ...]}
//	[{"title": ..., "url": ...}, "https://...", ...]
//	{"<title>": "https://...", "<title>": {"url": ...}, ...}
//
// Titles default to the URL's base name without extension. Entries without
// a URL are dropped.
func ParseItems(data []byte) ([]Item, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	var items []Item
	switch v := raw.(type) {
	case map[string]any:
		if urls, ok := v["urls"].([]any); ok {
			for _, u := range urls {
				if s, ok := u.(string); ok && s != "" {
					items = append(items, Item{Title: urlStem(s), URL: s})
				}
			}
			return items, nil
		}
		if list, ok := v["items"].([]any); ok {
			for _, it := range list {
				if obj, ok := it.(map[string]any); ok {
					if item, ok := objectItem(obj, ""); ok {
						items = append(items, item)
					}
				}
			}
			return items, nil
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch val := v[k].(type) {
			case string:
				if val != "" {
					items = append(items, Item{Title: k, URL: val})
				}
			case map[string]any:
				if item, ok := objectItem(val, k); ok {
					items = append(items, item)
				}
			}
		}
	case []any:
		for _, it := range v {
			switch val := it.(type) {
			case string:
				if val != "" {
					items = append(items, Item{Title: urlStem(val), URL: val})
				}
			case map[string]any:
				if item, ok := objectItem(val, ""); ok {
					items = append(items, item)
				}
			}
		}
	default:
		return nil, fmt.Errorf("unsupported item list of type %T", raw)
	}
	return items, nil
}

func objectItem(obj map[string]any, title string) (Item, bool) {
	var url string
	for _, key := range []string{"url", "image", "img", "link"} {
		if s, ok := obj[key].(string); ok && s != "" {
			url = s
			break
		}
	}
	if url == "" {
		return Item{}, false
	}
	if title == "" {
		title, _ = obj["title"].(string)
	}
	if title == "" {
		title = urlStem(url)
	}
	return Item{Title: title, URL: url}, true
}

// urlStem returns the last path element of a URL without its extension.
func urlStem(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	base := path.Base(u)
	return strings.TrimSuffix(base, path.Ext(base))
}

var (
	nonTitleChars = regexp.MustCompile(`[^A-Za-z0-9 ]+`)
	spaceRuns     = regexp.MustCompile(`\s+`)
)

// SlugTitle turns an item title into a readable file stem: separators
// become spaces, anything else that is not a letter or digit is removed.
func SlugTitle(title string) string {
	s := strings.NewReplacer("_", " ", "-", " ").Replace(title)
	s = nonTitleChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(spaceRuns.ReplaceAllString(s, " "))
	if s == "" {
		return "image"
	}
	return s
}
