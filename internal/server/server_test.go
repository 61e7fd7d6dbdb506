package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shotanalyzer "github.com/menta2k/shot-analyzer"
	"github.com/menta2k/shot-analyzer/internal/config"
	"github.com/menta2k/shot-analyzer/pkg/detection"
	"github.com/menta2k/shot-analyzer/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type greyClusterer struct{}

func (greyClusterer) Cluster(ctx context.Context, pixels []types.RGB, n int) ([][3]float64, error) {
	out := make([][3]float64, n)
	for i := range out {
		out[i] = [3]float64{128, 128, 128}
	}
	return out, nil
}

func newTestServer(t *testing.T, mutate func(*config.ServerConfig)) *Server {
	t.Helper()
	det := detection.Static{{Box: types.BoundingBox{X1: 10, Y1: 10, X2: 50, Y2: 50}, Confidence: 0.8}}
	a := shotanalyzer.New(shotanalyzer.DefaultConfig(), det, greyClusterer{}, shotanalyzer.WithLogger(zerolog.Nop()))

	cfg := config.Default().Server
	cfg.RatePerSecond = 0
	if mutate != nil {
		mutate(&cfg)
	}
	return New(a, cfg, t.TempDir(), zerolog.Nop())
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(90, 60, color.NRGBA{200, 40, 40, 255}), imaging.PNG))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestAnalyzeUpload(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "image", "frame one.png", pngBytes(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Report.Readable)
	assert.Equal(t, 90, resp.Report.Width)
	assert.Len(t, resp.Report.RunID, 10)
	assert.True(t, strings.HasPrefix(resp.Report.Source, "frame_one__"))
	assert.Len(t, resp.Report.Palette, 5)
	assert.Equal(t, types.ToneNeutral, resp.Report.EmotionTone)

	for _, key := range []string{"grid", "subject", "palette", "report"} {
		url, ok := resp.Artifacts[key]
		require.True(t, ok, key)
		assert.True(t, strings.HasPrefix(url, "/outputs/"+resp.Report.RunID+"/"), url)

		get := httptest.NewRecorder()
		s.Handler().ServeHTTP(get, httptest.NewRequest(http.MethodGet, url, nil))
		assert.Equal(t, http.StatusOK, get.Code, url)
	}
}

func TestAnalyzeRejects(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		filename string
		data     []byte
	}{
		{"wrong field", "file", "a.png", []byte("x")},
		{"bad extension", "image", "a.gif", []byte("GIF89a")},
		{"no extension", "image", "image", []byte("x")},
		{"undecodable", "image", "a.jpg", []byte("definitely not a jpeg")},
	}

	s := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, uploadRequest(t, tt.field, tt.filename, tt.data))
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestAnalyzeTooLarge(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) { c.MaxUploadMB = 1 })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "image", "big.png", make([]byte, 2<<20)))
	assert.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) {
		c.RatePerSecond = 0.001
		c.Burst = 1
	})

	first := httptest.NewRecorder()
	s.Handler().ServeHTTP(first, uploadRequest(t, "image", "a.png", pngBytes(t)))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	s.Handler().ServeHTTP(second, uploadRequest(t, "image", "a.png", pngBytes(t)))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) { c.Addr = "127.0.0.1:0" })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx))
}

func TestAnalyzeLogsUploadSize(t *testing.T) {
	det := detection.Static{{Box: types.BoundingBox{X1: 10, Y1: 10, X2: 50, Y2: 50}, Confidence: 0.8}}
	a := shotanalyzer.New(shotanalyzer.DefaultConfig(), det, greyClusterer{}, shotanalyzer.WithLogger(zerolog.Nop()))
	cfg := config.Default().Server
	cfg.RatePerSecond = 0

	var logs bytes.Buffer
	s := New(a, cfg, t.TempDir(), zerolog.New(&logs))

	data := pngBytes(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "image", "frame.png", data))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Contains(t, logs.String(), `"message":"analyzing upload"`)
	assert.Contains(t, logs.String(), fmt.Sprintf(`"size":"%d B"`, len(data)))
	assert.Contains(t, logs.String(), `"width":90`)
}
