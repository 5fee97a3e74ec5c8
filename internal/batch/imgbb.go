package batch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// ImgBBEndpoint is the imgbb upload API.
const ImgBBEndpoint = "https://api.imgbb.com/1/upload"

// UploadTimeout bounds one upload.
const UploadTimeout = 60 * time.Second

// Upload describes a stored image.
type Upload struct {
	URL       string `json:"url"`
	DeleteURL string `json:"delete_url"`
	ID        string `json:"id"`
}

// Uploader publishes a rendered file.
type Uploader interface {
	Upload(ctx context.Context, path string) (Upload, error)
}

// ImgBB uploads to imgbb with an API key.
type ImgBB struct {
	Key      string
	Endpoint string
	Client   *http.Client
}

// NewImgBB returns an uploader for the public endpoint.
func NewImgBB(key string) *ImgBB {
	return &ImgBB{Key: key, Endpoint: ImgBBEndpoint, Client: &http.Client{Timeout: UploadTimeout}}
}

type imgbbResponse struct {
	Success bool   `json:"success"`
	Data    Upload `json:"data"`
}

// Upload posts the file base64-encoded as a form field.
func (u *ImgBB) Upload(ctx context.Context, path string) (Upload, error) {
	if u.Key == "" {
		return Upload{}, fmt.Errorf("imgbb upload requires an API key")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to read upload: %w", err)
	}

	form := url.Values{
		"key":   {u.Key},
		"image": {base64.StdEncoding.EncodeToString(data)},
	}
	endpoint := u.Endpoint
	if endpoint == "" {
		endpoint = ImgBBEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Upload{}, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := u.Client
	if client == nil {
		client = &http.Client{Timeout: UploadTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Upload{}, fmt.Errorf("imgbb upload failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Upload{}, fmt.Errorf("imgbb upload failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Upload{}, fmt.Errorf("imgbb upload failed: HTTP %d %s", resp.StatusCode, truncate(string(body), 200))
	}

	var r imgbbResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return Upload{}, fmt.Errorf("imgbb upload failed: bad response: %w", err)
	}
	if !r.Success {
		return Upload{}, fmt.Errorf("imgbb upload failed: %s", truncate(string(body), 200))
	}
	return r.Data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
