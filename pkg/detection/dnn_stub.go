//go:build !gocv

package detection

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/shot-analyzer/pkg/types"
)

// DNNDetector is only functional in builds tagged gocv
type DNNDetector struct{}

// NewDNNDetector reports that OpenCV support was not compiled in
func NewDNNDetector(cfg DNNConfig) (*DNNDetector, error) {
	return nil, fmt.Errorf("%w: built without the gocv tag", ErrDetectorUnavailable)
}

// Detect always fails
func (d *DNNDetector) Detect(ctx context.Context, img image.Image) ([]types.Candidate, error) {
	return nil, ErrDetectorUnavailable
}

// Close is a no-op
func (d *DNNDetector) Close() error { return nil }
