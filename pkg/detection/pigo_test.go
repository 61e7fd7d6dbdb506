package detection

import (
	"context"
	"image"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/shot-analyzer/pkg/types"
)

func newTestFaceDetector(t *testing.T) *FaceDetector {
	t.Helper()
	cfg := DefaultFaceConfig()
	cfg.CascadePath = filepath.Join("testdata", "facefinder")
	d, err := NewFaceDetector(cfg)
	require.NoError(t, err)
	return d
}

func assertInsideFrame(t *testing.T, cands []types.Candidate, w, h int) {
	t.Helper()
	for _, c := range cands {
		assert.GreaterOrEqual(t, c.Box.X1, 0, c.Box.String())
		assert.GreaterOrEqual(t, c.Box.Y1, 0, c.Box.String())
		assert.LessOrEqual(t, c.Box.X2, w, c.Box.String())
		assert.LessOrEqual(t, c.Box.Y2, h, c.Box.String())
		assert.Less(t, c.Box.X1, c.Box.X2, c.Box.String())
		assert.Less(t, c.Box.Y1, c.Box.Y2, c.Box.String())
		assert.Equal(t, "face", c.Label)
		assert.Greater(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 1.0)
	}
}

func TestFaceDetectorDetect(t *testing.T) {
	d := newTestFaceDetector(t)
	img, err := imaging.Open(filepath.Join("testdata", "face.jpg"))
	require.NoError(t, err)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	cands, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	assertInsideFrame(t, cands, w, h)

	best := cands[0]
	for _, c := range cands[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	// the portrait's face sits in the middle of the frame
	cx := best.Box.CenterX()
	cy := float64(best.Box.Y1+best.Box.Y2) / 2
	assert.InDelta(t, float64(w)/2, cx, float64(w)/4, best.Box.String())
	assert.InDelta(t, float64(h)/2, cy, float64(h)/4, best.Box.String())
	assert.Greater(t, best.Box.Width(), w/5)
}

func TestFaceDetectorOffsetBounds(t *testing.T) {
	d := newTestFaceDetector(t)
	img, err := imaging.Open(filepath.Join("testdata", "face.jpg"))
	require.NoError(t, err)

	sub := imaging.Clone(img).SubImage(image.Rect(10, 10, 310, 390))
	require.Equal(t, image.Pt(10, 10), sub.Bounds().Min)

	cands, err := d.Detect(context.Background(), sub)
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	assertInsideFrame(t, cands, 300, 380)
}

func TestFaceDetectorNoFace(t *testing.T) {
	d := newTestFaceDetector(t)
	cands, err := d.Detect(context.Background(), imaging.New(120, 80, image.White.C))
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestFaceDetectorCancelled(t *testing.T) {
	d := newTestFaceDetector(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Detect(ctx, imaging.New(10, 10, image.White.C))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFaceBox(t *testing.T) {
	tests := []struct {
		name            string
		row, col, scale int
		want            types.BoundingBox
		ok              bool
	}{
		{"inside", 50, 40, 20, types.BoundingBox{X1: 30, Y1: 40, X2: 50, Y2: 60}, true},
		{"clipped top left", 5, 4, 20, types.BoundingBox{X1: 0, Y1: 0, X2: 14, Y2: 15}, true},
		{"clipped bottom right", 95, 95, 20, types.BoundingBox{X1: 85, Y1: 85, X2: 100, Y2: 100}, true},
		{"outside", 50, 130, 20, types.BoundingBox{X1: 120, Y1: 40, X2: 100, Y2: 60}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, ok := faceBox(tt.row, tt.col, tt.scale, 100, 100)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, box)
			}
		})
	}
}
