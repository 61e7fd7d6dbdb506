// Package shot classifies framing tightness from the subject's vertical extent.
package shot

import "github.com/menta2k/shot-analyzer/pkg/types"

type threshold struct {
	min  float64
	shot types.ShotType
}

// thresholds are checked top-down; the first match wins
var thresholds = []threshold{
	{0.85, types.ShotExtremeCloseUp},
	{0.65, types.ShotCloseUp},
	{0.50, types.ShotMediumCloseUp},
	{0.35, types.ShotMedium},
	{0.20, types.ShotLong},
}

// VerticalRatio returns (y2-y1)/height
func VerticalRatio(box types.BoundingBox, height int) float64 {
	if height <= 0 {
		return 0
	}
	return float64(box.Y2-box.Y1) / float64(height)
}

// Classify maps the subject's vertical fill to a shot label.
// A nil box yields Unknown.
func Classify(box *types.BoundingBox, height int) types.ShotType {
	if box == nil || height <= 0 {
		return types.ShotUnknown
	}
	return ClassifyRatio(VerticalRatio(*box, height))
}

// ClassifyRatio maps a vertical fill ratio to a shot label
func ClassifyRatio(ratio float64) types.ShotType {
	for _, t := range thresholds {
		if ratio >= t.min {
			return t.shot
		}
	}
	return types.ShotExtremeLong
}
