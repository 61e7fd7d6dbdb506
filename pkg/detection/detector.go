// Package detection provides the subject detectors the locator consumes.
//
// A Detector returns every raw candidate it found for one image; choosing the
// main subject is the locator's job, not the detector's.
package detection

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/menta2k/shot-analyzer/pkg/types"
)

// ErrDetectorUnavailable is returned when a backend could not be initialized
var ErrDetectorUnavailable = errors.New("detector unavailable")

// Detector produces candidate subject boxes in pixel coordinates relative to
// the image bounds' origin.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]types.Candidate, error)
}

// Func adapts a plain function to the Detector interface
type Func func(ctx context.Context, img image.Image) ([]types.Candidate, error)

// Detect calls f
func (f Func) Detect(ctx context.Context, img image.Image) ([]types.Candidate, error) {
	return f(ctx, img)
}

// Static always returns the same candidates; useful for tests and replays
type Static []types.Candidate

// Detect returns a copy of the candidates
func (s Static) Detect(ctx context.Context, img image.Image) ([]types.Candidate, error) {
	out := make([]types.Candidate, len(s))
	copy(out, s)
	return out, nil
}

// Unavailable is the detector used when a backend failed to load.
// Every call degrades to "no subject" in the locator.
type Unavailable struct {
	Reason error
}

// Detect always fails
func (u Unavailable) Detect(ctx context.Context, img image.Image) ([]types.Candidate, error) {
	if u.Reason != nil {
		return nil, errors.Join(ErrDetectorUnavailable, u.Reason)
	}
	return nil, ErrDetectorUnavailable
}

// WithTimeout bounds every Detect call of d. A non-positive timeout returns d.
func WithTimeout(d Detector, timeout time.Duration) Detector {
	if timeout <= 0 {
		return d
	}
	return Func(func(ctx context.Context, img image.Image) ([]types.Candidate, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return d.Detect(ctx, img)
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
