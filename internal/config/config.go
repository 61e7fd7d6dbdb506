package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Detector backends
const (
	BackendSaliency = "saliency"
	BackendPigo     = "pigo"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
	BackendDNN      = "dnn"
)

// Config holds the application configuration
type Config struct {
	Detector DetectorConfig `yaml:"detector"`
	Palette  PaletteConfig  `yaml:"palette"`
	Output   OutputConfig   `yaml:"output"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// DetectorConfig selects and tunes the subject detector
type DetectorConfig struct {
	Backend       string  `yaml:"backend"`
	MinConfidence float64 `yaml:"min_confidence"`

	// vision LLM backends
	Model   string `yaml:"model"`
	URL     string `yaml:"url"`
	MaxDim  int    `yaml:"max_dim"`
	Timeout int    `yaml:"timeout_seconds"`

	// pigo backend
	CascadePath string `yaml:"cascade_path"`

	// OpenCV DNN backend
	DNNModel     string `yaml:"dnn_model"`
	DNNConfig    string `yaml:"dnn_config"`
	DNNInputSize int    `yaml:"dnn_input_size"`
	DNNClasses   []int  `yaml:"dnn_classes"`
}

// PaletteConfig holds palette extraction settings
type PaletteConfig struct {
	Size       int `yaml:"size"`
	Restarts   int `yaml:"restarts"`
	MaxSamples int `yaml:"max_samples"`
}

// OutputConfig holds artifact output settings
type OutputConfig struct {
	Dir      string   `yaml:"dir"`
	Quality  int      `yaml:"quality"`
	// Lossless switches webp artifacts to lossless encoding; Quality is
	// then the compression effort
	Lossless bool     `yaml:"lossless"`
	Formats  []string `yaml:"formats"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr              string   `yaml:"addr"`
	MaxUploadMB       int      `yaml:"max_upload_mb"`
	MaxConcurrent     int      `yaml:"max_concurrent"`
	RatePerSecond     float64  `yaml:"rate_per_second"`
	Burst             int      `yaml:"burst"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Backend:       BackendSaliency,
			MinConfidence: 0.25,
			Model:         "llava:7b",
			URL:           "http://localhost:11434",
			MaxDim:        1024,
			Timeout:       300,
			CascadePath:   "./models/facefinder",
			DNNModel:      "./models/frozen_inference_graph.pb",
			DNNConfig:     "./models/ssd_mobilenet_v1_coco.pbtxt",
			DNNInputSize:  300,
			DNNClasses:    []int{1},
		},
		Palette: PaletteConfig{
			Size:       5,
			Restarts:   3,
			MaxSamples: 0,
		},
		Output: OutputConfig{
			Dir:     "./analysis_outputs",
			Quality: 90,
			Formats: []string{"jpg", "jpeg", "png", "webp"},
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:5000",
			MaxUploadMB:       10,
			MaxConcurrent:     4,
			RatePerSecond:     2,
			Burst:             5,
			AllowedExtensions: []string{"png", "jpg", "jpeg", "webp"},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 2,
			MaxAgeDays: 28,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (or the first one found in the usual places), then SHOT_* environment
// variables. A .env file in the working directory is read first if present.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := Default()
	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// without overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from SHOT_* environment variables. Unparseable
// numbers leave the current value in place.
func (c *Config) ApplyEnv() {
	d := &c.Detector
	d.Backend = getEnv("SHOT_DETECTOR", d.Backend)
	d.MinConfidence = getEnvAsFloat("SHOT_MIN_CONFIDENCE", d.MinConfidence)
	d.Model = getEnv("SHOT_MODEL", d.Model)
	d.URL = getEnv("SHOT_MODEL_URL", d.URL)
	d.MaxDim = getEnvAsInt("SHOT_MODEL_MAX_DIM", d.MaxDim)
	d.Timeout = getEnvAsInt("SHOT_MODEL_TIMEOUT", d.Timeout)
	d.CascadePath = getEnv("SHOT_CASCADE_PATH", d.CascadePath)
	d.DNNModel = getEnv("SHOT_DNN_MODEL", d.DNNModel)
	d.DNNConfig = getEnv("SHOT_DNN_CONFIG", d.DNNConfig)

	c.Palette.Size = getEnvAsInt("SHOT_PALETTE_SIZE", c.Palette.Size)
	c.Palette.Restarts = getEnvAsInt("SHOT_PALETTE_RESTARTS", c.Palette.Restarts)

	c.Output.Dir = getEnv("SHOT_OUTPUT_DIR", c.Output.Dir)
	c.Output.Quality = getEnvAsInt("SHOT_OUTPUT_QUALITY", c.Output.Quality)
	c.Output.Lossless = getEnvAsBool("SHOT_OUTPUT_LOSSLESS", c.Output.Lossless)

	c.Server.Addr = getEnv("SHOT_ADDR", c.Server.Addr)
	c.Server.MaxUploadMB = getEnvAsInt("SHOT_MAX_UPLOAD_MB", c.Server.MaxUploadMB)
	c.Server.MaxConcurrent = getEnvAsInt("SHOT_MAX_CONCURRENT", c.Server.MaxConcurrent)
	c.Server.RatePerSecond = getEnvAsFloat("SHOT_RATE_PER_SECOND", c.Server.RatePerSecond)

	c.Log.Level = getEnv("SHOT_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("SHOT_LOG_FILE", c.Log.File)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch strings.ToLower(c.Detector.Backend) {
	case BackendSaliency, BackendPigo, BackendOllama, BackendLlamaCpp, BackendDNN:
	default:
		return fmt.Errorf("detector.backend %q is not one of saliency, pigo, ollama, llamacpp, dnn", c.Detector.Backend)
	}

	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("detector.min_confidence must be between 0 and 1")
	}

	if c.Palette.Size < 1 {
		return fmt.Errorf("palette.size must be positive")
	}

	if c.Palette.Restarts < 1 {
		return fmt.Errorf("palette.restarts must be positive")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir cannot be empty")
	}

	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	if c.Server.MaxConcurrent < 1 {
		return fmt.Errorf("server.max_concurrent must be positive")
	}

	if len(c.Server.AllowedExtensions) == 0 {
		return fmt.Errorf("server.allowed_extensions cannot be empty")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "shot-analyzer", "config.yaml")
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		GetConfigPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
