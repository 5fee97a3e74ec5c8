package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	mimage "mockup-render/internal/image"
)

// ErrSkipped marks an item that was passed over rather than failed.
var ErrSkipped = errors.New("skipped")

// FetchTimeout bounds one download.
const FetchTimeout = 30 * time.Second

// fetchableExts are the URL extensions worth downloading.
var fetchableExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}

// Fetcher downloads remote designs into Dir as PNG files named after the
// item title. A non-empty file already there is reused.
type Fetcher struct {
	Dir    string
	Client *http.Client
}

// NewFetcher returns a Fetcher writing to dir.
func NewFetcher(dir string) *Fetcher {
	return &Fetcher{Dir: dir, Client: &http.Client{Timeout: FetchTimeout}}
}

// Path returns where item is stored.
func (f *Fetcher) Path(item Item) string {
	return filepath.Join(f.Dir, SlugTitle(item.Title)+".png")
}

// Fetch makes item available locally and returns its path. Items whose URL
// or response is not an image return an error wrapping ErrSkipped.
func (f *Fetcher) Fetch(ctx context.Context, item Item) (string, error) {
	out := f.Path(item)
	if info, err := os.Stat(out); err == nil && info.Size() > 0 {
		return out, nil
	}

	u, err := url.Parse(strings.TrimSpace(item.URL))
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("%w: bad URL %q", ErrSkipped, item.URL)
	}
	if !fetchableExts[strings.ToLower(path.Ext(u.Path))] {
		return "", fmt.Errorf("%w: non-image URL %s", ErrSkipped, item.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: FetchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", item.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("failed to fetch %s: HTTP %d", item.URL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(strings.ToLower(ct), "image") {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: content type %q at %s", ErrSkipped, ct, item.URL)
	}

	img, err := mimage.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: invalid image data at %s", ErrSkipped, item.URL)
	}
	if err := mimage.Save(img, out); err != nil {
		return "", err
	}
	return out, nil
}
