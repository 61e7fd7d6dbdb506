package imageio

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// MaxFetchBytes caps downloaded image bodies
const MaxFetchBytes = 64 << 20

var fetchClient = &http.Client{Timeout: 30 * time.Second}

// IsURL reports whether source is an http(s) URL
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Load reads source from a URL or a local path
func (c *Codec) Load(ctx context.Context, source string) (image.Image, error) {
	if IsURL(source) {
		return c.Fetch(ctx, source)
	}
	return c.Read(source)
}

// Fetch downloads and decodes an image
func (c *Codec) Fetch(ctx context.Context, imageURL string) (image.Image, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "shot-analyzer/1.0")

	resp, err := fetchClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	return c.DecodeReader(io.LimitReader(resp.Body, MaxFetchBytes))
}

// SourceName returns the file name part of a path or URL
func SourceName(source string) string {
	if IsURL(source) {
		if u, err := url.Parse(source); err == nil {
			if base := path.Base(u.Path); base != "/" && base != "." {
				return base
			}
		}
		return "download.jpg"
	}
	source = strings.ReplaceAll(source, "\\", "/")
	return path.Base(source)
}
