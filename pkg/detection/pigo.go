package detection

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	"github.com/menta2k/shot-analyzer/pkg/types"
)

// FaceConfig holds the pigo cascade parameters
type FaceConfig struct {
	CascadePath  string
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	// QNorm maps the unbounded cascade score q to a confidence of 1-exp(-q/QNorm)
	QNorm float64
}

// DefaultFaceConfig mirrors the values pigo's examples use
func DefaultFaceConfig() FaceConfig {
	return FaceConfig{
		MinSize:      20,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		QNorm:        5.0,
	}
}

// FaceDetector finds faces with a pigo cascade. The unpacked classifier is
// read-only and shared by every call.
type FaceDetector struct {
	classifier *pigo.Pigo
	config     FaceConfig
}

// NewFaceDetector loads and unpacks the cascade file at cfg.CascadePath
func NewFaceDetector(cfg FaceConfig) (*FaceDetector, error) {
	data, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("reading cascade: %w", err)
	}
	return NewFaceDetectorFromBytes(data, cfg)
}

// NewFaceDetectorFromBytes unpacks an in-memory cascade
func NewFaceDetectorFromBytes(cascade []byte, cfg FaceConfig) (*FaceDetector, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpacking cascade: %w", err)
	}
	if cfg.QNorm <= 0 {
		cfg.QNorm = 5.0
	}
	return &FaceDetector{classifier: classifier, config: cfg}, nil
}

// Detect runs the cascade over the grayscale image. Boxes are clipped to the
// frame; detections that collapse after clipping are dropped.
func (d *FaceDetector) Detect(ctx context.Context, img image.Image) ([]types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// pigo indexes pixels from (0,0)
	src := imaging.Clone(img)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	pixels := pigo.RgbToGrayscale(src)

	params := pigo.CascadeParams{
		MinSize:     d.config.MinSize,
		MaxSize:     d.config.MaxSize,
		ShiftFactor: d.config.ShiftFactor,
		ScaleFactor: d.config.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.config.IoUThreshold)

	cands := make([]types.Candidate, 0, len(dets))
	for _, det := range dets {
		if det.Q <= 0 {
			continue
		}
		box, ok := faceBox(det.Row, det.Col, det.Scale, cols, rows)
		if !ok {
			continue
		}
		cands = append(cands, types.Candidate{
			Box:        box,
			Confidence: faceConfidence(float64(det.Q), d.config.QNorm),
			Label:      "face",
		})
	}
	return cands, nil
}

// faceBox turns a pigo centre/scale detection into a box clipped to a
// cols x rows frame
func faceBox(row, col, scale, cols, rows int) (types.BoundingBox, bool) {
	half := scale / 2
	box := types.BoundingBox{
		X1: maxInt(col-half, 0),
		Y1: maxInt(row-half, 0),
		X2: minInt(col+half, cols),
		Y2: minInt(row+half, rows),
	}
	return box, box.X1 < box.X2 && box.Y1 < box.Y2
}

func faceConfidence(q, norm float64) float64 {
	if q <= 0 {
		return 0
	}
	return clamp(1-math.Exp(-q/norm), 0, 1)
}
