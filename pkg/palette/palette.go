// Package palette extracts a dominant-color palette from an image and derives
// a coarse emotional tone from it.
package palette

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/menta2k/shot-analyzer/pkg/render"
	"github.com/menta2k/shot-analyzer/pkg/types"
)

// Defaults
const (
	DefaultSize       = 5
	DefaultRestarts   = 3
	DefaultMaxSamples = 0
)

// Tone thresholds on mean channel difference
const (
	coolMargin = 20.0
	warmMargin = 20.0
)

// ErrEmptyPalette is returned when no palette could be produced
var ErrEmptyPalette = errors.New("empty palette")

// Extractor turns an image into an n-color palette
type Extractor struct {
	clusterer Clusterer
	// MaxSamples caps the pixels handed to the clusterer. Larger images are
	// subsampled with nearest-neighbor so only source colors are seen. Zero
	// clusters every pixel.
	MaxSamples int
	logger     zerolog.Logger
}

// NewExtractor creates an Extractor over the given clusterer
func NewExtractor(c Clusterer, maxSamples int, logger zerolog.Logger) *Extractor {
	return &Extractor{
		clusterer:  c,
		MaxSamples: maxSamples,
		logger:     logger.With().Str("stage", "palette").Logger(),
	}
}

// Extract returns exactly n colors in clusterer order. Centers are truncated
// to integer RGB.
func (e *Extractor) Extract(ctx context.Context, img image.Image, n int) (types.Palette, error) {
	if n <= 0 {
		n = DefaultSize
	}
	if e.clusterer == nil {
		return nil, fmt.Errorf("%w: no clusterer configured", ErrEmptyPalette)
	}

	pixels := Pixels(e.sample(img))
	centers, err := e.clusterer.Cluster(ctx, pixels, n)
	if err != nil {
		return nil, fmt.Errorf("clustering %d pixels: %w", len(pixels), err)
	}
	if len(centers) != n {
		return nil, fmt.Errorf("%w: clusterer returned %d of %d colors", ErrEmptyPalette, len(centers), n)
	}

	pal := make(types.Palette, n)
	for i, c := range centers {
		pal[i] = types.RGB{R: toByte(c[0]), G: toByte(c[1]), B: toByte(c[2])}
	}

	e.logger.Debug().Int("colors", n).Int("pixels", len(pixels)).Msg("palette extracted")
	return pal, nil
}

func (e *Extractor) sample(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if e.MaxSamples <= 0 || w*h <= e.MaxSamples {
		return img
	}
	scale := math.Sqrt(float64(e.MaxSamples) / float64(w*h))
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return imaging.Resize(img, nw, nh, imaging.NearestNeighbor)
}

// Pixels flattens img into RGB triples in row-major order, ignoring alpha
func Pixels(img image.Image) []types.RGB {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()

	out := make([]types.RGB, 0, w*h)
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			out = append(out, types.RGB{R: row[x], G: row[x+1], B: row[x+2]})
		}
	}
	return out
}

// EmotionTone compares the mean red and blue channels of the palette.
// An empty palette is neutral.
func EmotionTone(p types.Palette) types.EmotionTone {
	if len(p) == 0 {
		return types.ToneNeutral
	}

	var sumR, sumB float64
	for _, c := range p {
		sumR += float64(c.R)
		sumB += float64(c.B)
	}
	avgR := sumR / float64(len(p))
	avgB := sumB / float64(len(p))

	switch {
	case avgB > avgR+coolMargin:
		return types.ToneCool
	case avgR > avgB+warmMargin:
		return types.ToneWarm
	default:
		return types.ToneNeutral
	}
}

// Swatch renders the palette as vertical bands
func Swatch(p types.Palette) *image.NRGBA {
	return render.Swatch(p)
}

func toByte(v float64) uint8 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
