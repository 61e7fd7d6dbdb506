// Package composition measures where and how large the subject sits in the frame.
//
// Every function tolerates a nil bounding box and propagates nil rather than
// guessing a value.
package composition

import "github.com/menta2k/shot-analyzer/pkg/types"

// Scale boundaries, exclusive-above
const (
	LargeRatio  = 0.25
	MediumRatio = 0.08
)

// SizeRatio returns bbox area over frame area, or nil when there is no box
func SizeRatio(box *types.BoundingBox, width, height int) *float64 {
	if box == nil || width <= 0 || height <= 0 {
		return nil
	}
	ratio := float64(box.Area()) / float64(width*height)
	if ratio > 1 {
		ratio = 1
	}
	return &ratio
}

// Scale maps a size ratio to Small/Medium/Large
func Scale(ratio *float64) *types.SubjectScale {
	if ratio == nil {
		return nil
	}
	var s types.SubjectScale
	switch {
	case *ratio > LargeRatio:
		s = types.ScaleLarge
	case *ratio > MediumRatio:
		s = types.ScaleMedium
	default:
		s = types.ScaleSmall
	}
	return &s
}

// Bias returns the column of the bbox center: Left, Middle or Right
func Bias(box *types.BoundingBox, width, height int) *types.CompositionBias {
	if box == nil {
		return nil
	}
	cx := box.CenterX()
	w := float64(width)
	var b types.CompositionBias
	switch {
	case cx < w/3:
		b = types.BiasLeft
	case cx < 2*w/3:
		b = types.BiasMiddle
	default:
		b = types.BiasRight
	}
	return &b
}
