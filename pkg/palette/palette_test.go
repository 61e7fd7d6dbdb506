package palette

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/shot-analyzer/pkg/types"
)

// createStripes paints one vertical stripe per color
func createStripes(stripeWidth, height int, colors ...color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, stripeWidth*len(colors), height))
	for i, c := range colors {
		for y := 0; y < height; y++ {
			for x := i * stripeWidth; x < (i+1)*stripeWidth; x++ {
				img.SetNRGBA(x, y, c)
			}
		}
	}
	return img
}

type stubClusterer struct {
	centers [][3]float64
	err     error
	gotN    int
	gotLen  int
	got     []types.RGB
}

func (s *stubClusterer) Cluster(ctx context.Context, pixels []types.RGB, n int) ([][3]float64, error) {
	s.gotN = n
	s.gotLen = len(pixels)
	s.got = pixels
	return s.centers, s.err
}

func TestExtractTruncatesInOrder(t *testing.T) {
	stub := &stubClusterer{centers: [][3]float64{
		{10.9, 20.2, 30.5},
		{255.7, -3, 128},
		{0, 0, 0},
	}}
	e := NewExtractor(stub, 0, zerolog.Nop())

	pal, err := e.Extract(context.Background(), createStripes(4, 4, color.NRGBA{1, 2, 3, 255}), 3)
	require.NoError(t, err)

	assert.Equal(t, types.Palette{{R: 10, G: 20, B: 30}, {R: 255, G: 0, B: 128}, {R: 0, G: 0, B: 0}}, pal)
	assert.Equal(t, 3, stub.gotN)
	assert.Equal(t, 16, stub.gotLen)
}

func TestExtractWrongCount(t *testing.T) {
	stub := &stubClusterer{centers: [][3]float64{{1, 2, 3}}}
	_, err := NewExtractor(stub, 0, zerolog.Nop()).Extract(context.Background(), createStripes(2, 2, color.NRGBA{A: 255}), 5)
	assert.ErrorIs(t, err, ErrEmptyPalette)
}

func TestExtractClustererError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewExtractor(&stubClusterer{err: boom}, 0, zerolog.Nop()).Extract(context.Background(), createStripes(2, 2, color.NRGBA{A: 255}), 5)
	assert.ErrorIs(t, err, boom)

	_, err = NewExtractor(nil, 0, zerolog.Nop()).Extract(context.Background(), createStripes(2, 2, color.NRGBA{A: 255}), 5)
	assert.ErrorIs(t, err, ErrEmptyPalette)
}

func TestExtractDownsamples(t *testing.T) {
	stub := &stubClusterer{centers: make([][3]float64, DefaultSize)}
	e := NewExtractor(stub, 100, zerolog.Nop())

	_, err := e.Extract(context.Background(), createStripes(100, 100, color.NRGBA{9, 9, 9, 255}, color.NRGBA{200, 9, 9, 255}), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, stub.gotN)
	assert.LessOrEqual(t, stub.gotLen, 100)
	assert.Greater(t, stub.gotLen, 0)

	// subsampling must not blend the two stripes into new colors
	for _, px := range stub.got {
		assert.Contains(t, []types.RGB{{R: 9, G: 9, B: 9}, {R: 200, G: 9, B: 9}}, px)
	}
}

func TestExtractDefaultUsesEveryPixel(t *testing.T) {
	stub := &stubClusterer{centers: make([][3]float64, DefaultSize)}
	e := NewExtractor(stub, DefaultMaxSamples, zerolog.Nop())

	_, err := e.Extract(context.Background(), createStripes(150, 300, color.NRGBA{9, 9, 9, 255}, color.NRGBA{200, 9, 9, 255}), 0)
	require.NoError(t, err)
	assert.Equal(t, 300*300, stub.gotLen)
}

func TestExtractWithKMeans(t *testing.T) {
	img := createStripes(10, 10,
		color.NRGBA{255, 0, 0, 255},
		color.NRGBA{0, 255, 0, 255},
		color.NRGBA{0, 0, 255, 255},
		color.NRGBA{255, 255, 0, 255},
		color.NRGBA{0, 0, 0, 255},
	)

	e := NewExtractor(NewKMeansClusterer(3), DefaultMaxSamples, zerolog.Nop())
	pal, err := e.Extract(context.Background(), img, 5)
	require.NoError(t, err)
	assert.Len(t, pal, 5)
}

func TestKMeansErrors(t *testing.T) {
	k := NewKMeansClusterer(0)
	assert.Equal(t, DefaultRestarts, k.Restarts)

	_, err := k.Cluster(context.Background(), []types.RGB{{R: 1, G: 1, B: 1}}, 3)
	assert.ErrorIs(t, err, ErrEmptyPalette)

	_, err = k.Cluster(context.Background(), []types.RGB{{R: 1, G: 1, B: 1}}, 0)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = k.Cluster(ctx, []types.RGB{{R: 1, G: 1, B: 1}, {R: 2, G: 2, B: 2}}, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPixels(t *testing.T) {
	img := createStripes(1, 2, color.NRGBA{1, 2, 3, 255}, color.NRGBA{4, 5, 6, 255})
	assert.Equal(t, []types.RGB{{R: 1, G: 2, B: 3}, {R: 4, G: 5, B: 6}, {R: 1, G: 2, B: 3}, {R: 4, G: 5, B: 6}}, Pixels(img))
}

func TestEmotionTone(t *testing.T) {
	tests := []struct {
		name    string
		palette types.Palette
		want    types.EmotionTone
	}{
		{"blue heavy", types.Palette{{R: 0, G: 0, B: 255}, {R: 10, G: 10, B: 200}}, types.ToneCool},
		{"red heavy", types.Palette{{R: 255, G: 0, B: 0}, {R: 200, G: 10, B: 10}}, types.ToneWarm},
		{"grey", types.Palette{{R: 128, G: 128, B: 128}}, types.ToneNeutral},
		{"margin is exclusive", types.Palette{{R: 100, G: 0, B: 120}}, types.ToneNeutral},
		{"just over margin", types.Palette{{R: 100, G: 0, B: 121}}, types.ToneCool},
		{"empty", nil, types.ToneNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EmotionTone(tt.palette))
		})
	}
}

func TestSwatchBands(t *testing.T) {
	sw := Swatch(types.Palette{{R: 255, G: 0, B: 0}, {R: 0, G: 255, B: 0}, {R: 0, G: 0, B: 255}})
	require.Equal(t, image.Rect(0, 0, 500, 100), sw.Bounds())

	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, sw.NRGBAAt(165, 50))
	assert.Equal(t, color.NRGBA{0, 255, 0, 255}, sw.NRGBAAt(166, 50))
	assert.Equal(t, color.NRGBA{0, 0, 255, 255}, sw.NRGBAAt(497, 50))
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, sw.NRGBAAt(498, 50))
}
