package imageio

import (
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/still.png":
			w.Header().Set("Content-Type", "image/png")
			_ = imaging.Encode(w, imaging.New(12, 8, color.NRGBA{1, 2, 3, 255}), imaging.PNG)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New()

	img, err := c.Load(context.Background(), srv.URL+"/still.png")
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())

	_, err = c.Fetch(context.Background(), srv.URL+"/page")
	assert.ErrorContains(t, err, "Content-Type")

	_, err = c.Fetch(context.Background(), srv.URL+"/missing.png")
	assert.ErrorContains(t, err, "HTTP 404")

	_, err = c.Fetch(context.Background(), "ftp://example.com/a.png")
	assert.ErrorContains(t, err, "unsupported URL scheme")
}

func TestSourceName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"stills/frame.jpg", "frame.jpg"},
		{`C:\stills\frame.png`, "frame.png"},
		{"https://example.com/a/b/shot.webp?x=1", "shot.webp"},
		{"https://example.com/", "download.jpg"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SourceName(tt.input))
	}
	assert.True(t, IsURL("http://x"))
	assert.False(t, IsURL("x.png"))
}
