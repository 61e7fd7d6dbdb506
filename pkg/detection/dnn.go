//go:build gocv

package detection

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/menta2k/shot-analyzer/pkg/types"
)

// DNNDetector runs an SSD-style OpenCV network whose output rows are
// [batch, class, confidence, x1, y1, x2, y2] in normalized coordinates.
type DNNDetector struct {
	mu     sync.Mutex
	net    gocv.Net
	config DNNConfig
}

// NewDNNDetector loads the network once; the returned detector serializes
// inference since gocv.Net is not safe for concurrent use.
func NewDNNDetector(cfg DNNConfig) (*DNNDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return nil, fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network")
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		return nil, fmt.Errorf("setting backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		return nil, fmt.Errorf("setting target: %w", err)
	}

	if cfg.InputSize <= 0 {
		cfg.InputSize = 300
	}
	return &DNNDetector{net: net, config: cfg}, nil
}

// Detect runs one forward pass and returns every row as a candidate
func (d *DNNDetector) Detect(ctx context.Context, img image.Image) ([]types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("converting image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	size := d.config.InputSize
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(size, size), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	cols, rows := float32(mat.Cols()), float32(mat.Rows())
	reshaped := output.Reshape(1, output.Total()/7)
	defer reshaped.Close()

	var cands []types.Candidate
	for i := 0; i < reshaped.Rows(); i++ {
		conf := reshaped.GetFloatAt(i, 2)
		if conf <= 0 {
			continue
		}
		classID := int(reshaped.GetFloatAt(i, 1))
		if len(d.config.Classes) > 0 && !containsInt(d.config.Classes, classID) {
			continue
		}
		cands = append(cands, types.Candidate{
			Box: types.BoundingBox{
				X1: int(reshaped.GetFloatAt(i, 3) * cols),
				Y1: int(reshaped.GetFloatAt(i, 4) * rows),
				X2: int(reshaped.GetFloatAt(i, 5) * cols),
				Y2: int(reshaped.GetFloatAt(i, 6) * rows),
			},
			Confidence: float64(conf),
			Label:      fmt.Sprintf("class-%d", classID),
		})
	}
	return cands, nil
}

// Close releases the network
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
