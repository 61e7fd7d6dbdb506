package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url")
	assert.Error(t, err)

	c, err := NewClient("http://localhost:11434/api/chat")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestQuery(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel, _ = body["model"].(string)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   gotModel,
			"message": map[string]any{"role": "assistant", "content": `{"subjects":[]}`},
			"done":    true,
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	img := base64.StdEncoding.EncodeToString([]byte("fake"))
	reply, err := c.Query(context.Background(), "llava", "find subjects", img)
	require.NoError(t, err)
	assert.Equal(t, `{"subjects":[]}`, reply)
	assert.Equal(t, "llava", gotModel)
}

func TestQueryBadBase64(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = c.Query(context.Background(), "llava", "p", "%%%")
	assert.Error(t, err)
}

func TestModelOptions(t *testing.T) {
	opts := modelOptions("openbmb/minicpm-v4.5")
	assert.Equal(t, 4096, opts["num_ctx"])

	opts = modelOptions("llava")
	_, ok := opts["num_ctx"]
	assert.False(t, ok)
}
