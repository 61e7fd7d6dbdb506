// Package explain turns analysis labels into a short director-style paragraph.
package explain

import (
	"fmt"
	"strings"

	"github.com/menta2k/shot-analyzer/pkg/types"
)

// NoDetection is returned when none of the inputs produced a sentence
const NoDetection = "The system could not identify elements due to low detection confidence."

const closing = "Overall, the color scheme reinforces the emotional direction of the scene."

// shotAliases expands abbreviated labels. Full labels pass through untouched.
var shotAliases = map[string]string{
	"CU": "Close-Up",
	"MS": "Medium Shot",
	"LS": "Long Shot",
}

var positionPhrases = map[string]string{
	"left":   "left-weighted",
	"center": "centered",
	"right":  "right-weighted",
}

var tonePhrases = map[string]string{
	"cool":    "cool tones",
	"warm":    "warm tones",
	"neutral": "neutral tones",
}

// Input carries every label the composer may mention. Empty strings and nil
// pointers are treated as absent.
type Input struct {
	ShotType types.ShotType
	Position types.Position
	Scale    *types.SubjectScale
	Tone     types.EmotionTone
	Bias     *types.CompositionBias
	Palette  types.Palette
}

// Compose builds the explanation. Sentence order is fixed: shot type,
// position, scale, composition bias, tone, palette closing.
func Compose(in Input) string {
	var parts []string

	if st := string(in.ShotType); st != "" && st != "unknown" {
		if alias, ok := shotAliases[st]; ok {
			st = alias
		}
		parts = append(parts, fmt.Sprintf("This shot is a %s, emphasizing character presence and storytelling intent.", st))
	}

	if pos := string(in.Position); pos != "" {
		if phrase, ok := positionPhrases[pos]; ok {
			pos = phrase
		}
		parts = append(parts, fmt.Sprintf("The composition is %s, guiding viewer attention.", pos))
	}

	if in.Scale != nil && *in.Scale != "" {
		parts = append(parts, fmt.Sprintf("The subject scale is %s, affecting narrative importance.", strings.ToLower(string(*in.Scale))))
	}

	if in.Bias != nil && *in.Bias != "" {
		parts = append(parts, fmt.Sprintf("Framing bias leans toward the %s region.", strings.ToLower(string(*in.Bias))))
	}

	if tone := string(in.Tone); tone != "" {
		if phrase, ok := tonePhrases[tone]; ok {
			tone = phrase
		}
		parts = append(parts, fmt.Sprintf("The palette uses %s, shaping mood and atmosphere.", tone))
	}

	if len(in.Palette) > 0 {
		parts = append(parts, closing)
	}

	if len(parts) == 0 {
		return NoDetection
	}
	return strings.Join(parts, " ")
}
