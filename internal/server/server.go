// Package server exposes the analyzer over a small JSON HTTP API.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	shotanalyzer "github.com/menta2k/shot-analyzer"
	"github.com/menta2k/shot-analyzer/internal/config"
	"github.com/menta2k/shot-analyzer/internal/utils"
	"github.com/menta2k/shot-analyzer/pkg/imageio"
	"github.com/menta2k/shot-analyzer/pkg/types"
)

// OutputsPrefix is the URL prefix artifacts are served under
const OutputsPrefix = "/outputs"

// AnalyzeResponse is returned by POST /api/analyze
type AnalyzeResponse struct {
	Report    types.Report      `json:"report"`
	Artifacts map[string]string `json:"artifacts"`
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server serves uploads to a shared Analyzer
type Server struct {
	analyzer *shotanalyzer.Analyzer
	codec    *imageio.Codec
	cfg      config.ServerConfig
	outDir   string
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	logger   zerolog.Logger
	engine   *gin.Engine
}

// New creates a Server writing artifacts under outDir
func New(a *shotanalyzer.Analyzer, cfg config.ServerConfig, outDir string, logger zerolog.Logger) *Server {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxUploadMB < 1 {
		cfg.MaxUploadMB = 10
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	s := &Server{
		analyzer: a,
		codec:    imageio.New(),
		cfg:      cfg,
		outDir:   outDir,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on the configured address until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.MaxMultipartMemory = int64(s.cfg.MaxUploadMB) << 20

	r.GET("/healthz", s.healthHandler)
	r.POST("/api/analyze", s.rateLimit(), s.analyzeHandler)
	r.Static(OutputsPrefix, s.outDir)
	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"version":   shotanalyzer.Version,
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) analyzeHandler(c *gin.Context) {
	maxBytes := int64(s.cfg.MaxUploadMB) << 20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		s.fail(c, http.StatusBadRequest, "no file uploaded")
		return
	}
	if file.Filename == "" {
		s.fail(c, http.StatusBadRequest, "no file uploaded")
		return
	}
	if !utils.HasExtension(file.Filename, s.cfg.AllowedExtensions) {
		s.fail(c, http.StatusBadRequest, "invalid file type")
		return
	}

	f, err := file.Open()
	if err != nil {
		s.fail(c, http.StatusBadRequest, "error reading upload")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.fail(c, http.StatusBadRequest, "error reading upload")
		return
	}
	img, err := s.codec.Decode(data)
	if err != nil {
		s.logger.Warn().Err(err).Str("filename", file.Filename).Msg("undecodable upload")
		s.fail(c, http.StatusBadRequest, "error reading image file")
		return
	}

	ctx := c.Request.Context()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.fail(c, http.StatusServiceUnavailable, "request cancelled while queued")
		return
	}
	defer s.sem.Release(1)

	name := utils.MakeUniqueFilename(file.Filename, s.cfg.AllowedExtensions)
	s.logger.Info().
		Str("filename", name).
		Str("size", utils.FormatFileSize(file.Size)).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("analyzing upload")
	report, paths, err := s.analyzer.Save(ctx, img, name, s.outDir)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", report.RunID).Msg("analysis failed")
		s.fail(c, http.StatusInternalServerError, "server error while analyzing image")
		return
	}

	c.JSON(http.StatusOK, AnalyzeResponse{
		Report: report,
		Artifacts: map[string]string{
			"grid":    s.artifactURL(report.RunID, paths.Grid),
			"subject": s.artifactURL(report.RunID, paths.Subject),
			"palette": s.artifactURL(report.RunID, paths.Palette),
			"report":  s.artifactURL(report.RunID, paths.Report),
		},
	})
}

func (s *Server) artifactURL(runID, file string) string {
	return path.Join(OutputsPrefix, runID, filepath.Base(file))
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow() {
			s.fail(c, http.StatusTooManyRequests, "too many requests")
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}
