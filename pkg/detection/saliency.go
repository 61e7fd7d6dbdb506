package detection

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/menta2k/shot-analyzer/pkg/types"
)

// SaliencyConfig holds configuration for the saliency heuristic
type SaliencyConfig struct {
	ContrastWeight float64
	ColorWeight    float64
	// Gain scales a window's mean saliency into a [0,1] confidence
	Gain       float64
	WorkingDim int
	MaxRegions int
	IoU        float64
}

// DefaultSaliencyConfig returns the tuned defaults
func DefaultSaliencyConfig() SaliencyConfig {
	return SaliencyConfig{
		ContrastWeight: 0.6,
		ColorWeight:    0.4,
		Gain:           4.0,
		WorkingDim:     256,
		MaxRegions:     10,
		IoU:            0.3,
	}
}

// SaliencyDetector is a model-free fallback: it scores sliding windows by
// local edge strength and brightness contrast against the frame mean.
type SaliencyDetector struct {
	config SaliencyConfig
}

// NewSaliencyDetector creates a SaliencyDetector
func NewSaliencyDetector(cfg SaliencyConfig) *SaliencyDetector {
	if cfg.WorkingDim <= 0 {
		cfg.WorkingDim = 256
	}
	if cfg.MaxRegions <= 0 {
		cfg.MaxRegions = 10
	}
	return &SaliencyDetector{config: cfg}
}

// scores at or below this are float noise on flat frames
const saliencyFloor = 1e-6

// window fractions of the working image, per axis
var windowFractions = []float64{0.2, 0.35, 0.5, 0.7}

// Detect returns the highest-scoring non-overlapping windows
func (d *SaliencyDetector) Detect(ctx context.Context, img image.Image) ([]types.Candidate, error) {
	b := img.Bounds()
	origW, origH := b.Dx(), b.Dy()
	if origW < 3 || origH < 3 {
		return nil, nil
	}

	work := img
	if origW > d.config.WorkingDim || origH > d.config.WorkingDim {
		if origW >= origH {
			work = imaging.Resize(img, d.config.WorkingDim, 0, imaging.Box)
		} else {
			work = imaging.Resize(img, 0, d.config.WorkingDim, imaging.Box)
		}
	}
	gray := imaging.Grayscale(work)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()

	integral := d.saliencyIntegral(gray)

	var regions []types.Candidate
	for _, fy := range windowFractions {
		for _, fx := range windowFractions {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			ww := int(fx * float64(w))
			wh := int(fy * float64(h))
			if ww < 2 || wh < 2 {
				continue
			}
			stepX := maxInt(1, ww/8)
			stepY := maxInt(1, wh/8)
			for y := 0; y+wh <= h; y += stepY {
				for x := 0; x+ww <= w; x += stepX {
					mean := integral.sum(x, y, x+ww, y+wh) / float64(ww*wh)
					regions = append(regions, types.Candidate{
						Box:        types.BoundingBox{X1: x, Y1: y, X2: x + ww, Y2: y + wh},
						Confidence: clamp(mean*d.config.Gain, 0, 1),
						Label:      "salient region",
					})
				}
			}
		}
	}

	picked := suppress(regions, d.config.IoU, d.config.MaxRegions)

	sx := float64(origW) / float64(w)
	sy := float64(origH) / float64(h)
	for i := range picked {
		bx := picked[i].Box
		picked[i].Box = types.BoundingBox{
			X1: int(float64(bx.X1) * sx),
			Y1: int(float64(bx.Y1) * sy),
			X2: int(float64(bx.X2) * sx),
			Y2: int(float64(bx.Y2) * sy),
		}
	}
	return picked, nil
}

type integralImage struct {
	w    int
	data []float64
}

func (ii integralImage) at(x, y int) float64 {
	return ii.data[y*(ii.w+1)+x]
}

func (ii integralImage) sum(x0, y0, x1, y1 int) float64 {
	return ii.at(x1, y1) - ii.at(x0, y1) - ii.at(x1, y0) + ii.at(x0, y0)
}

// saliencyIntegral computes per-pixel saliency and returns its summed-area table
func (d *SaliencyDetector) saliencyIntegral(gray *image.NRGBA) integralImage {
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	lum := func(x, y int) float64 {
		return float64(gray.Pix[y*gray.Stride+x*4]) / 255.0
	}

	var mean float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mean += lum(x, y)
		}
	}
	mean /= float64(w * h)

	neighbors := [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

	ii := integralImage{w: w, data: make([]float64, (w+1)*(h+1))}
	for y := 0; y < h; y++ {
		var rowSum float64
		for x := 0; x < w; x++ {
			c := lum(x, y)
			var edge float64
			if x > 0 && y > 0 && x < w-1 && y < h-1 {
				for _, o := range neighbors {
					edge += math.Abs(c - lum(x+o[0], y+o[1]))
				}
				edge /= 8.0
			}
			s := d.config.ContrastWeight*edge + d.config.ColorWeight*math.Abs(c-mean)
			rowSum += s
			ii.data[(y+1)*(w+1)+x+1] = ii.data[y*(w+1)+x+1] + rowSum
		}
	}
	return ii
}

// suppress keeps the best-scoring regions, dropping any that overlap an
// already kept one by more than iou.
func suppress(regions []types.Candidate, iou float64, limit int) []types.Candidate {
	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].Confidence != regions[j].Confidence {
			return regions[i].Confidence > regions[j].Confidence
		}
		return regions[i].Box.Area() > regions[j].Box.Area()
	})

	var kept []types.Candidate
	for _, r := range regions {
		if r.Confidence <= saliencyFloor {
			break
		}
		overlap := false
		for _, k := range kept {
			if intersectionOverUnion(r.Box, k.Box) > iou {
				overlap = true
				break
			}
		}
		if !overlap {
			kept = append(kept, r)
			if len(kept) == limit {
				break
			}
		}
	}
	return kept
}

func intersectionOverUnion(a, b types.BoundingBox) float64 {
	ix := minInt(a.X2, b.X2) - maxInt(a.X1, b.X1)
	iy := minInt(a.Y2, b.Y2) - maxInt(a.Y1, b.Y1)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := float64(ix * iy)
	union := float64(a.Area()+b.Area()) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
