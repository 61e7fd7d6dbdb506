// Package shotanalyzer reads a single film still and describes how it was shot.
//
// The pipeline locates the main subject, measures how much of the frame it
// fills and where it sits, extracts a dominant-color palette and turns all of
// it into a cinematographic shot label and a short explanation.
//
// Basic usage:
//
//	det := detection.NewSaliencyDetector(detection.DefaultSaliencyConfig())
//	a := shotanalyzer.New(shotanalyzer.DefaultConfig(), det, palette.NewKMeansClusterer(3))
//
//	report, err := a.AnalyzeFile(ctx, "still.jpg", "analysis_outputs")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(report.ShotType, report.Explanation)
//
// Detection and clustering problems never abort a run. They degrade to a
// fallback subject box or an empty palette and are recorded in Report.Notes.
package shotanalyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/shot-analyzer/pkg/composition"
	"github.com/menta2k/shot-analyzer/pkg/detection"
	"github.com/menta2k/shot-analyzer/pkg/explain"
	"github.com/menta2k/shot-analyzer/pkg/imageio"
	"github.com/menta2k/shot-analyzer/pkg/palette"
	"github.com/menta2k/shot-analyzer/pkg/render"
	"github.com/menta2k/shot-analyzer/pkg/shot"
	"github.com/menta2k/shot-analyzer/pkg/subject"
	"github.com/menta2k/shot-analyzer/pkg/types"
)

// Version of the shot analyzer library
const Version = "1.0.0"

// ReportFile is the name of the JSON report written next to the artifacts
const ReportFile = "report.json"

// Config holds the pipeline tunables
type Config struct {
	MinConfidence float64
	PaletteSize   int
	MaxSamples    int
}

// DefaultConfig returns the standard pipeline settings
func DefaultConfig() Config {
	return Config{
		MinConfidence: subject.DefaultMinConfidence,
		PaletteSize:   palette.DefaultSize,
		MaxSamples:    palette.DefaultMaxSamples,
	}
}

// Option customizes an Analyzer
type Option func(*Analyzer)

// WithLogger sets the logger used by the pipeline and its components
func WithLogger(l zerolog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithCodec replaces the image codec
func WithCodec(c *imageio.Codec) Option {
	return func(a *Analyzer) { a.codec = c }
}

// WithRunIDs replaces the run identifier generator
func WithRunIDs(gen func() string) Option {
	return func(a *Analyzer) { a.newRunID = gen }
}

// Artifacts are the images produced for one run
type Artifacts struct {
	Grid    image.Image
	Subject image.Image
	Swatch  image.Image
}

// ArtifactPaths locates the files written for one run
type ArtifactPaths struct {
	Dir     string `json:"dir"`
	Grid    string `json:"grid"`
	Subject string `json:"subject"`
	Palette string `json:"palette"`
	Report  string `json:"report"`
}

// Analyzer runs the full still-image analysis. It is built once and shared;
// concurrent calls are safe when the detector and clusterer are.
type Analyzer struct {
	config    Config
	locator   *subject.Locator
	extractor *palette.Extractor
	codec     *imageio.Codec
	newRunID  func() string
	logger    zerolog.Logger
}

// New creates an Analyzer around a detector and a clusterer
func New(cfg Config, det detection.Detector, cl palette.Clusterer, opts ...Option) *Analyzer {
	if cfg.PaletteSize <= 0 {
		cfg.PaletteSize = palette.DefaultSize
	}

	a := &Analyzer{
		config:   cfg,
		codec:    imageio.New(),
		newRunID: NewRunID,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(a)
	}

	// each stage tags its own logger from the caller's base
	base := a.logger
	a.logger = base.With().Str("stage", "pipeline").Logger()
	a.locator = subject.New(det, cfg.MinConfidence, base)
	a.extractor = palette.NewExtractor(cl, cfg.MaxSamples, base)
	return a
}

// Analyze runs every stage on img. It never fails; degraded stages are noted
// in the report.
func (a *Analyzer) Analyze(ctx context.Context, img image.Image) (types.Report, Artifacts) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	report := types.Report{
		RunID:    a.newRunID(),
		Readable: true,
		Width:    w,
		Height:   h,
	}
	logger := a.logger.With().Str("run_id", report.RunID).Logger()

	var art Artifacts
	art.Grid = render.GridOverlay(img)

	located := a.locator.Locate(ctx, img)
	art.Subject = located.Annotated
	report.Position = located.Position
	report.Confidence = located.Confidence
	report.BBox = located.BBox

	if report.BBox == nil {
		fb := subject.Fallback(w, h)
		report.BBox = &fb
		report.Position = types.PositionCenter
		report.Fallback = true
		report.Notes = append(report.Notes, fmt.Sprintf("subject detection failed, using fallback box %s: %v", fb, located.Err))
		logger.Warn().Err(located.Err).Str("bbox", fb.String()).Msg("subject detection failed, using fallback bbox")
	}

	report.SizeRatio = composition.SizeRatio(report.BBox, w, h)
	report.Scale = composition.Scale(report.SizeRatio)
	report.CompositionBias = composition.Bias(report.BBox, w, h)

	pal, err := a.extractor.Extract(ctx, img, a.config.PaletteSize)
	if err != nil {
		report.Notes = append(report.Notes, fmt.Sprintf("palette extraction failed: %v", err))
		logger.Error().Err(err).Msg("palette extraction failed")
		pal = types.Palette{}
	}
	report.Palette = pal
	art.Swatch = palette.Swatch(pal)
	report.EmotionTone = palette.EmotionTone(pal)

	report.ShotType = shot.Classify(report.BBox, h)

	report.Explanation = explain.Compose(explain.Input{
		ShotType: report.ShotType,
		Position: report.Position,
		Scale:    report.Scale,
		Tone:     report.EmotionTone,
		Bias:     report.CompositionBias,
		Palette:  report.Palette,
	})

	logger.Info().
		Int("width", w).
		Int("height", h).
		Str("shot_type", string(report.ShotType)).
		Str("position", string(report.Position)).
		Str("tone", string(report.EmotionTone)).
		Bool("fallback", report.Fallback).
		Msg("analysis complete")

	return report, art
}

// AnalyzeFile reads the image at path (a local file or an http(s) URL),
// analyzes it and writes the artifacts under outDir/<runID>/. An unreadable
// image yields a report with Readable=false rather than an error; only write
// failures are returned.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path, outDir string) (types.Report, error) {
	name := imageio.SourceName(path)

	img, err := a.codec.Load(ctx, path)
	if err != nil {
		report := Unreadable(a.newRunID(), name, err)
		a.logger.Error().Err(err).Str("path", path).Str("run_id", report.RunID).Msg("failed to read image")

		dir := filepath.Join(outDir, report.RunID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return report, fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := writeReport(filepath.Join(dir, ReportFile), report); err != nil {
			return report, err
		}
		return report, nil
	}

	report, _, err := a.Save(ctx, img, name, outDir)
	return report, err
}

// Save analyzes an already decoded image and writes grid_<name>,
// subject_<name>, palette_<name> and the JSON report under outDir/<runID>/.
func (a *Analyzer) Save(ctx context.Context, img image.Image, name, outDir string) (types.Report, ArtifactPaths, error) {
	report, art := a.Analyze(ctx, img)
	report.Source = name
	name = artifactName(name)

	dir := filepath.Join(outDir, report.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return report, ArtifactPaths{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := ArtifactPaths{
		Dir:     dir,
		Grid:    filepath.Join(dir, "grid_"+name),
		Subject: filepath.Join(dir, "subject_"+name),
		Palette: filepath.Join(dir, "palette_"+name),
		Report:  filepath.Join(dir, ReportFile),
	}

	writes := []struct {
		path string
		img  image.Image
	}{
		{paths.Grid, art.Grid},
		{paths.Subject, art.Subject},
		{paths.Palette, art.Swatch},
	}
	for _, wr := range writes {
		if err := a.codec.Write(wr.path, wr.img); err != nil {
			return report, paths, fmt.Errorf("failed to save %s: %w", filepath.Base(wr.path), err)
		}
	}

	if err := writeReport(paths.Report, report); err != nil {
		return report, paths, err
	}
	return report, paths, nil
}

// Unreadable builds the report for an image that could not be decoded. Tone
// is left empty since no pixels were seen.
func Unreadable(runID, source string, cause error) types.Report {
	r := types.Report{
		RunID:       runID,
		Source:      source,
		Readable:    false,
		Position:    types.PositionNone,
		ShotType:    types.ShotUnknown,
		Palette:     types.Palette{},
		Explanation: explain.NoDetection,
	}
	if cause != nil {
		r.Notes = append(r.Notes, fmt.Sprintf("image could not be read: %v", cause))
	}
	return r
}

// NewRunID returns a 10-character hex identifier
func NewRunID() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return id[:10]
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

// artifactName makes sure name carries an extension the codec can encode
func artifactName(name string) string {
	switch imageio.Ext(name) {
	case "jpg", "jpeg", "png", "webp":
		return name
	}
	return name + ".png"
}

func writeReport(path string, report types.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
