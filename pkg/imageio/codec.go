// Package imageio reads and writes the images the analyzer consumes and emits.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for extensions the codec cannot encode or decode
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Codec loads and saves images by file extension
type Codec struct {
	Quality  int
	Lossless bool
	Formats  []string
}

// New returns a codec with jpg/png/webp support
func New() *Codec {
	return &Codec{
		Quality: 90,
		Formats: []string{"jpg", "jpeg", "png", "webp"},
	}
}

// Read decodes the image at path
func (c *Codec) Read(path string) (image.Image, error) {
	if !c.Supports(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	// imaging.Open honours EXIF orientation for jpegs
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return c.Decode(data)
}

// Decode decodes raw image bytes, falling back to the webp decoder
func (c *Codec) Decode(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("failed to decode image: %w", ErrUnsupportedFormat)
}

// DecodeReader decodes an image from a stream
func (c *Codec) DecodeReader(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return c.Decode(data)
}

// Write encodes img to path using the format implied by its extension
func (c *Codec) Write(path string, img image.Image) error {
	format := Ext(path)
	switch format {
	case "webp", "png", "jpg", "jpeg":
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := c.Encode(f, img, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return f.Close()
}

// Encode writes img to w in the given format (jpg, png or webp)
func (c *Codec) Encode(w io.Writer, img image.Image, format string) error {
	switch strings.ToLower(format) {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: c.Lossless, Quality: float32(c.Quality)})
	case "png":
		return imaging.Encode(w, img, imaging.PNG)
	case "jpg", "jpeg":
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(c.Quality))
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Supports reports whether the file extension is in the configured format list
func (c *Codec) Supports(path string) bool {
	ext := Ext(path)
	for _, f := range c.Formats {
		if strings.EqualFold(f, ext) {
			return true
		}
	}
	return false
}

// Ext returns the lower-cased extension without the dot
func Ext(path string) string {
	ext := filepath.Ext(path)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}
