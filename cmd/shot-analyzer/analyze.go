package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	shotanalyzer "github.com/menta2k/shot-analyzer"
	"github.com/menta2k/shot-analyzer/internal/config"
	"github.com/menta2k/shot-analyzer/internal/logging"
	"github.com/menta2k/shot-analyzer/internal/utils"
	"github.com/menta2k/shot-analyzer/pkg/imageio"
	"github.com/menta2k/shot-analyzer/pkg/palette"
	"github.com/menta2k/shot-analyzer/pkg/types"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		in       string
		outDir   string
		asJSON   bool
		backend  string
		model    string
		url      string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze an image, or every image in a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if backend != "" {
				cfg.Detector.Backend = backend
			}
			if model != "" {
				cfg.Detector.Model = model
			}
			if url != "" {
				cfg.Detector.URL = url
			}
			if outDir == "" {
				outDir = cfg.Output.Dir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			inputs, err := collectInputs(in)
			if err != nil {
				return err
			}

			a, closer := newAnalyzer(cfg)
			defer closer.Close()

			reports := make([]types.Report, len(inputs))
			g, ctx := errgroup.WithContext(cmd.Context())
			if parallel < 1 {
				parallel = 1
			}
			g.SetLimit(parallel)
			for i, path := range inputs {
				g.Go(func() error {
					r, err := a.AnalyzeFile(ctx, path, outDir)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					reports[i] = r
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			return printReports(cmd.OutOrStdout(), reports, outDir, asJSON)
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "input image, URL or directory (jpg/png/webp)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print reports as JSON")
	cmd.Flags().StringVar(&backend, "backend", "", "detector backend: saliency, pigo, ollama, llamacpp, dnn")
	cmd.Flags().StringVar(&model, "model", "", "vision model name")
	cmd.Flags().StringVar(&url, "url", "", "vision model server URL")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 2, "images analyzed concurrently in directory mode")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func newAnalyzer(cfg *config.Config) (*shotanalyzer.Analyzer, io.Closer) {
	logger := logging.WithComponent("analyzer")
	det, closer := buildDetector(cfg.Detector, logger)

	codec := imageio.New()
	codec.Quality = cfg.Output.Quality
	codec.Lossless = cfg.Output.Lossless
	codec.Formats = cfg.Output.Formats

	a := shotanalyzer.New(shotanalyzer.Config{
		MinConfidence: cfg.Detector.MinConfidence,
		PaletteSize:   cfg.Palette.Size,
		MaxSamples:    cfg.Palette.MaxSamples,
	},
		det,
		palette.NewKMeansClusterer(cfg.Palette.Restarts),
		shotanalyzer.WithLogger(logger),
		shotanalyzer.WithCodec(codec),
	)
	return a, closer
}

func collectInputs(in string) ([]string, error) {
	if imageio.IsURL(in) {
		return []string{in}, nil
	}

	info, err := os.Stat(in)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	if !info.IsDir() {
		return []string{in}, nil
	}

	files, err := utils.ListImageFiles(in)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", in, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images found in %s", in)
	}
	log.Info().Int("images", len(files)).Str("dir", in).Msg("analyzing directory")
	return files, nil
}

func printReports(w io.Writer, reports []types.Report, outDir string, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(reports) == 1 {
			return enc.Encode(reports[0])
		}
		return enc.Encode(reports)
	}

	for _, r := range reports {
		fmt.Fprintf(w, "%s  run=%s\n", r.Source, r.RunID)
		if !r.Readable {
			fmt.Fprintf(w, "  unreadable image\n\n")
			continue
		}
		fmt.Fprintf(w, "  size:        %dx%d\n", r.Width, r.Height)
		if r.BBox != nil {
			fmt.Fprintf(w, "  subject:     %s (%s, confidence %.2f, fallback %t)\n", r.BBox, r.Position, r.Confidence, r.Fallback)
		}
		fmt.Fprintf(w, "  shot type:   %s\n", r.ShotType)
		if r.Scale != nil && r.CompositionBias != nil && r.SizeRatio != nil {
			fmt.Fprintf(w, "  composition: %s scale (%.3f), %s bias\n", *r.Scale, *r.SizeRatio, *r.CompositionBias)
		}
		fmt.Fprintf(w, "  palette:     %s (%s)\n", hexes(r.Palette), r.EmotionTone)
		fmt.Fprintf(w, "  artifacts:   %s\n", filepath.Join(outDir, r.RunID))
		fmt.Fprintf(w, "  %s\n\n", r.Explanation)
	}
	return nil
}

func hexes(p types.Palette) []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.Hex()
	}
	return out
}
