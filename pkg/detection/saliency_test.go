package detection

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/shot-analyzer/pkg/types"
)

func TestSaliencyFindsSubject(t *testing.T) {
	subject := image.Rect(40, 100, 160, 260)
	img := createTestImage(400, 300, subject)

	d := NewSaliencyDetector(DefaultSaliencyConfig())
	cands, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	require.NotEmpty(t, cands)

	best := cands[0]
	assert.Greater(t, best.Confidence, 0.0)
	assert.LessOrEqual(t, best.Confidence, 1.0)

	// the winning window must overlap the bright square
	overlap := image.Rect(best.Box.X1, best.Box.Y1, best.Box.X2, best.Box.Y2).Intersect(subject)
	assert.False(t, overlap.Empty(), "best window %v misses subject %v", best.Box, subject)

	for _, c := range cands {
		assert.GreaterOrEqual(t, c.Box.X1, 0)
		assert.LessOrEqual(t, c.Box.X2, 400)
		assert.LessOrEqual(t, c.Box.Y2, 300)
	}
}

func TestSaliencyFlatImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{90, 90, 90, 255})
		}
	}

	cands, err := NewSaliencyDetector(DefaultSaliencyConfig()).Detect(context.Background(), img)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestSaliencyTinyImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	cands, err := NewSaliencyDetector(SaliencyConfig{}).Detect(context.Background(), img)
	require.NoError(t, err)
	assert.Nil(t, cands)
}

func TestSaliencyHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	img := createTestImage(50, 50, image.Rect(10, 10, 20, 20))
	_, err := NewSaliencyDetector(DefaultSaliencyConfig()).Detect(ctx, img)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSuppress(t *testing.T) {
	regions := []types.Candidate{
		{Box: types.BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}, Confidence: 0.5},
		{Box: types.BoundingBox{X1: 1, Y1: 1, X2: 11, Y2: 11}, Confidence: 0.9},
		{Box: types.BoundingBox{X1: 50, Y1: 50, X2: 60, Y2: 60}, Confidence: 0.4},
		{Box: types.BoundingBox{X1: 80, Y1: 80, X2: 90, Y2: 90}, Confidence: 0},
	}

	kept := suppress(regions, 0.3, 10)
	require.Len(t, kept, 2)
	assert.Equal(t, 0.9, kept[0].Confidence)
	assert.Equal(t, 0.4, kept[1].Confidence)
}

func TestIntersectionOverUnion(t *testing.T) {
	a := types.BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}
	assert.Equal(t, 1.0, intersectionOverUnion(a, a))
	assert.Equal(t, 0.0, intersectionOverUnion(a, types.BoundingBox{X1: 10, Y1: 10, X2: 20, Y2: 20}))
	assert.InDelta(t, 25.0/175.0, intersectionOverUnion(a, types.BoundingBox{X1: 5, Y1: 5, X2: 15, Y2: 15}), 1e-9)
}
