package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/menta2k/shot-analyzer/pkg/client"
	"github.com/menta2k/shot-analyzer/pkg/types"
)

// DefaultPrompt asks the vision model for every salient subject with a
// normalized box and a confidence score.
const DefaultPrompt = `You are an image subject locator for film stills.

Return JSON only:
{
  "subjects": [
    {
      "label": "string",
      "confidence": 0.0,
      "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}
    }
  ]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels); x,y is the top-left corner.
- Boxes must tightly include each visible character, person, animal or vehicle.
- confidence is your certainty in [0,1] that the box contains a real subject.
- List at most 10 subjects, most prominent first.
- If nothing qualifies, return {"subjects": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

var reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)

type normBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type modelSubject struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        normBox `json:"box"`
}

type modelReply struct {
	Subjects []modelSubject `json:"subjects"`
}

// VisionConfig tunes what is sent to the vision model
type VisionConfig struct {
	Model   string
	Prompt  string
	MaxDim  int // long side sent to the model, 0 keeps the original
	Quality int // JPEG quality of the upload
}

// VisionDetector asks a vision-language model to locate subjects
type VisionDetector struct {
	client client.VisionClient
	config VisionConfig
	logger zerolog.Logger
}

// NewVisionDetector creates a detector backed by a vision client
func NewVisionDetector(c client.VisionClient, cfg VisionConfig, logger zerolog.Logger) *VisionDetector {
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.Quality <= 0 {
		cfg.Quality = 85
	}
	return &VisionDetector{
		client: c,
		config: cfg,
		logger: logger.With().Str("stage", "vision-detector").Logger(),
	}
}

// Detect sends the image to the model and converts its boxes to pixels
func (d *VisionDetector) Detect(ctx context.Context, img image.Image) ([]types.Candidate, error) {
	imgB64, err := PrepareImage(img, d.config.MaxDim, d.config.Quality)
	if err != nil {
		return nil, fmt.Errorf("preparing image: %w", err)
	}

	raw, err := d.client.Query(ctx, d.config.Model, d.config.Prompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("vision query: %w", err)
	}

	reply, err := parseReply(raw)
	if err != nil {
		d.logger.Debug().Str("raw", raw).Msg("unparseable model reply")
		return nil, err
	}

	b := img.Bounds()
	cands := toCandidates(reply, b.Dx(), b.Dy())
	d.logger.Debug().Int("candidates", len(cands)).Str("model", d.config.Model).Msg("vision detection done")
	return cands, nil
}

// PrepareImage downsizes img so its long side is at most maxDim and returns
// it as base64 JPEG.
func PrepareImage(img image.Image, maxDim, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func parseReply(raw string) (*modelReply, error) {
	cleaned := sanitizeModelJSON(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, fmt.Errorf("model returned non-JSON response")
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	return &reply, nil
}

// toCandidates converts normalized boxes to pixel boxes. Values above 1 are
// taken as pixel coordinates already.
func toCandidates(reply *modelReply, width, height int) []types.Candidate {
	fw, fh := float64(width), float64(height)
	cands := make([]types.Candidate, 0, len(reply.Subjects))

	for _, s := range reply.Subjects {
		bx := s.Box
		if bx.X > 1 || bx.Y > 1 || bx.W > 1 || bx.H > 1 {
			bx = normBox{X: bx.X / fw, Y: bx.Y / fh, W: bx.W / fw, H: bx.H / fh}
		}
		x0 := clamp(bx.X, 0, 1)
		y0 := clamp(bx.Y, 0, 1)
		x1 := clamp(bx.X+bx.W, 0, 1)
		y1 := clamp(bx.Y+bx.H, 0, 1)

		cands = append(cands, types.Candidate{
			Box: types.BoundingBox{
				X1: int(x0*fw + 0.5),
				Y1: int(y0*fh + 0.5),
				X2: int(x1*fw + 0.5),
				Y2: int(y1*fh + 0.5),
			},
			Confidence: clamp(s.Confidence, 0, 1),
			Label:      strings.ToLower(strings.TrimSpace(s.Label)),
		})
	}
	return cands
}

// sanitizeModelJSON removes code fences, comments, and trailing commas
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = stripComments(raw)
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

// stripComments removes // and /* */ comments that sit outside JSON string
// literals. Line comments keep their newline.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		if c == '/' && i+1 < len(s) {
			switch s[i+1] {
			case '/':
				for i < len(s) && s[i] != '\n' {
					i++
				}
				if i < len(s) {
					b.WriteByte('\n')
				}
				continue
			case '*':
				end := strings.Index(s[i+2:], "*/")
				if end < 0 {
					return b.String()
				}
				i += end + 3
				continue
			}
		}

		if c == '"' {
			inString = true
		}
		b.WriteByte(c)
	}
	return b.String()
}
