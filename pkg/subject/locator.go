// Package subject picks the main subject out of raw detector candidates and
// places it horizontally within the frame.
package subject

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/menta2k/shot-analyzer/pkg/detection"
	"github.com/menta2k/shot-analyzer/pkg/render"
	"github.com/menta2k/shot-analyzer/pkg/types"
)

// DefaultMinConfidence is the lowest candidate confidence the locator accepts
const DefaultMinConfidence = 0.25

var (
	// ErrNoCandidates means no candidate reached the confidence threshold
	ErrNoCandidates = errors.New("no candidate above confidence threshold")
	// ErrDegenerateBox means the best box collapsed after clamping
	ErrDegenerateBox = errors.New("bounding box collapsed after clamping")
)

// Result is the outcome of locating the subject in one image
type Result struct {
	Position   types.Position
	BBox       *types.BoundingBox
	Confidence float64
	Label      string
	// Annotated is the image with the box drawn, or a plain copy when
	// nothing was found
	Annotated image.Image
	// Err records why no subject was found; it is informational only
	Err error
}

// Found reports whether a subject box was located
func (r Result) Found() bool {
	return r.BBox != nil
}

// Locator runs a detector and reduces its output to one subject
type Locator struct {
	detector      detection.Detector
	minConfidence float64
	logger        zerolog.Logger
}

// New creates a Locator. A non-positive minConfidence selects the default.
func New(det detection.Detector, minConfidence float64, logger zerolog.Logger) *Locator {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Locator{
		detector:      det,
		minConfidence: minConfidence,
		logger:        logger.With().Str("stage", "subject").Logger(),
	}
}

// Locate detects the subject in img. Detection problems never surface as a
// returned error: they yield position none, no box and an unannotated copy.
func (l *Locator) Locate(ctx context.Context, img image.Image) Result {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	none := func(err error) Result {
		l.logger.Warn().Err(err).Msg("no subject located")
		return Result{
			Position:  types.PositionNone,
			Annotated: imaging.Clone(img),
			Err:       err,
		}
	}

	if l.detector == nil {
		return none(detection.ErrDetectorUnavailable)
	}

	cands, err := l.detector.Detect(ctx, img)
	if err != nil {
		return none(fmt.Errorf("detection failed: %w", err))
	}

	best, ok := SelectBest(cands, l.minConfidence)
	if !ok {
		return none(fmt.Errorf("%w (%d candidates, min %.2f)", ErrNoCandidates, len(cands), l.minConfidence))
	}

	box, ok := Clamp(best.Box, w, h)
	if !ok {
		return none(fmt.Errorf("%w: %s", ErrDegenerateBox, best.Box))
	}

	pos := ClassifyPosition(box, w)
	l.logger.Debug().
		Str("bbox", box.String()).
		Float64("confidence", best.Confidence).
		Str("label", best.Label).
		Str("position", string(pos)).
		Msg("subject located")

	return Result{
		Position:   pos,
		BBox:       &box,
		Confidence: best.Confidence,
		Label:      best.Label,
		Annotated:  render.Annotate(img, box, best.Confidence),
	}
}

// SelectBest returns the most confident candidate at or above minConfidence.
// Ties go to the larger area; on a full tie the earlier candidate wins.
func SelectBest(cands []types.Candidate, minConfidence float64) (types.Candidate, bool) {
	var best types.Candidate
	found := false

	for _, c := range cands {
		if c.Confidence < minConfidence {
			continue
		}
		if !found {
			best, found = c, true
			continue
		}
		if c.Confidence > best.Confidence ||
			(c.Confidence == best.Confidence && c.Box.Area() > best.Box.Area()) {
			best = c
		}
	}
	return best, found
}

// Clamp limits the box to [0,w-1]x[0,h-1]. It returns false when the clamped
// box has no extent.
func Clamp(box types.BoundingBox, w, h int) (types.BoundingBox, bool) {
	out := types.BoundingBox{
		X1: clampInt(box.X1, 0, w-1),
		Y1: clampInt(box.Y1, 0, h-1),
		X2: clampInt(box.X2, 0, w-1),
		Y2: clampInt(box.Y2, 0, h-1),
	}
	if out.X2 <= out.X1 || out.Y2 <= out.Y1 {
		return out, false
	}
	return out, true
}

// ClassifyPosition places the box center in the left, middle or right third
func ClassifyPosition(box types.BoundingBox, w int) types.Position {
	cx := box.CenterX()
	third := float64(w) / 3.0

	switch {
	case cx < third:
		return types.PositionLeft
	case cx > 2*third:
		return types.PositionRight
	default:
		return types.PositionCenter
	}
}

// Fallback is the box assumed when nothing was detected: the middle half of
// the frame on both axes.
func Fallback(w, h int) types.BoundingBox {
	return types.BoundingBox{
		X1: int(float64(w) * 0.25),
		Y1: int(float64(h) * 0.25),
		X2: int(float64(w) * 0.75),
		Y2: int(float64(h) * 0.75),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
