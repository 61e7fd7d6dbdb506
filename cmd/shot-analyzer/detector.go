package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/menta2k/shot-analyzer/internal/config"
	"github.com/menta2k/shot-analyzer/pkg/client"
	"github.com/menta2k/shot-analyzer/pkg/detection"
	"github.com/menta2k/shot-analyzer/pkg/llamacpp"
	"github.com/menta2k/shot-analyzer/pkg/ollama"
)

// buildDetector creates the configured backend once per process. Backends
// that fail to load degrade to detection.Unavailable so every image still
// gets the fallback box. The returned closer releases native resources.
func buildDetector(cfg config.DetectorConfig, logger zerolog.Logger) (detection.Detector, io.Closer) {
	det, closer, err := newBackend(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Str("backend", cfg.Backend).Msg("detector unavailable, every run will use the fallback box")
		return detection.Unavailable{Reason: err}, nopCloser{}
	}
	return detection.WithTimeout(det, time.Duration(cfg.Timeout)*time.Second), closer
}

func newBackend(cfg config.DetectorConfig, logger zerolog.Logger) (detection.Detector, io.Closer, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendSaliency:
		return detection.NewSaliencyDetector(detection.DefaultSaliencyConfig()), nopCloser{}, nil

	case config.BackendPigo:
		fc := detection.DefaultFaceConfig()
		fc.CascadePath = cfg.CascadePath
		d, err := detection.NewFaceDetector(fc)
		if err != nil {
			return nil, nil, err
		}
		return d, nopCloser{}, nil

	case config.BackendOllama, config.BackendLlamaCpp:
		vc, err := newVisionClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		d := detection.NewVisionDetector(vc, detection.VisionConfig{
			Model:  cfg.Model,
			MaxDim: cfg.MaxDim,
		}, logger)
		return d, nopCloser{}, nil

	case config.BackendDNN:
		d, err := detection.NewDNNDetector(detection.DNNConfig{
			ModelPath:  cfg.DNNModel,
			ConfigPath: cfg.DNNConfig,
			InputSize:  cfg.DNNInputSize,
			Classes:    cfg.DNNClasses,
		})
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil

	default:
		return nil, nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
}

func newVisionClient(cfg config.DetectorConfig) (client.VisionClient, error) {
	if strings.EqualFold(cfg.Backend, config.BackendOllama) {
		c, err := ollama.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	}

	c, err := llamacpp.NewClient(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
	}
	return c, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
