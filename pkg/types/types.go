package types

import "fmt"

// BoundingBox is an axis-aligned pixel rectangle (x1,y1)-(x2,y2)
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns x2-x1, clamped at zero
func (b BoundingBox) Width() int {
	if b.X2 < b.X1 {
		return 0
	}
	return b.X2 - b.X1
}

// Height returns y2-y1, clamped at zero
func (b BoundingBox) Height() int {
	if b.Y2 < b.Y1 {
		return 0
	}
	return b.Y2 - b.Y1
}

// Area returns the box area; degenerate dimensions count as zero
func (b BoundingBox) Area() int {
	return b.Width() * b.Height()
}

// CenterX returns the horizontal center of the box
func (b BoundingBox) CenterX() float64 {
	return float64(b.X1+b.X2) / 2.0
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", b.X1, b.Y1, b.X2, b.Y2)
}

// Candidate is one raw detector output
type Candidate struct {
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
	Label      string      `json:"label,omitempty"`
}

// Position is the horizontal placement of the subject relative to image thirds
type Position string

const (
	PositionLeft   Position = "left"
	PositionCenter Position = "center"
	PositionRight  Position = "right"
	PositionNone   Position = "none"
)

// CompositionBias is the bbox-center column. It shares geometry with Position
// but is reported separately with its own labels.
type CompositionBias string

const (
	BiasLeft   CompositionBias = "Left"
	BiasMiddle CompositionBias = "Middle"
	BiasRight  CompositionBias = "Right"
)

// SubjectScale classifies how much of the frame the subject covers
type SubjectScale string

const (
	ScaleSmall  SubjectScale = "Small"
	ScaleMedium SubjectScale = "Medium"
	ScaleLarge  SubjectScale = "Large"
)

// ShotType is the cinematographic framing label
type ShotType string

const (
	ShotExtremeCloseUp ShotType = "Extreme Close-Up"
	ShotCloseUp        ShotType = "Close-Up"
	ShotMediumCloseUp  ShotType = "Medium Close-Up"
	ShotMedium         ShotType = "Medium Shot"
	ShotLong           ShotType = "Long Shot"
	ShotExtremeLong    ShotType = "Extreme Long Shot"
	ShotUnknown        ShotType = "Unknown"
)

// EmotionTone is the coarse mood derived from a palette
type EmotionTone string

const (
	ToneCool    EmotionTone = "cool"
	ToneWarm    EmotionTone = "warm"
	ToneNeutral EmotionTone = "neutral"
)

// RGB is an 8-bit color triple
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex returns the #rrggbb form of the color
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Palette is an ordered list of colors in clusterer order, not by prevalence
type Palette []RGB

// Report is the full analysis record for one image
type Report struct {
	RunID           string           `json:"run_id"`
	Source          string           `json:"source,omitempty"`
	Readable        bool             `json:"readable"`
	Width           int              `json:"width"`
	Height          int              `json:"height"`
	BBox            *BoundingBox     `json:"bbox"`
	Confidence      float64          `json:"confidence"`
	Position        Position         `json:"position"`
	Fallback        bool             `json:"fallback"`
	SizeRatio       *float64         `json:"size_ratio"`
	Scale           *SubjectScale    `json:"scale"`
	CompositionBias *CompositionBias `json:"composition_bias"`
	ShotType        ShotType         `json:"shot_type"`
	Palette         Palette          `json:"palette"`
	EmotionTone     EmotionTone      `json:"emotion_tone,omitempty"`
	Explanation     string           `json:"explanation"`
	Notes           []string         `json:"notes,omitempty"`
}
