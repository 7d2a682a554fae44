package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiology-ai-assistant/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestClient(baseURL, apiKey string) *Client {
	return NewClient(domain.VisionConfig{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Model:       "gpt-4o",
		Temperature: 0.2,
		MaxTokens:   256,
		Timeout:     5 * time.Second,
		RateLimit:   100,
		MaxImageDim: 512,
	}, testLogger())
}

func completionResponse(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(body)
}

func TestConfigured(t *testing.T) {
	assert.True(t, newTestClient("http://example.com", "key").Configured())
	assert.False(t, newTestClient("http://example.com", "").Configured())
}

func TestDescribe(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse(`{"findings": []}`)))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "test-key")

	out, err := client.Describe(context.Background(), pngBytes(t, 64, 64), "chest.jpg")
	require.NoError(t, err)
	assert.Equal(t, `{"findings": []}`, out)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "gpt-4o", captured.Model)
}

func TestDescribe_NoAPIKey(t *testing.T) {
	client := newTestClient("http://example.com", "")

	_, err := client.Describe(context.Background(), pngBytes(t, 64, 64), "chest.jpg")
	require.Error(t, err)
	assert.Equal(t, domain.ErrUpstream, domain.ErrorCode(err))
}

func TestDescribe_BadImage(t *testing.T) {
	client := newTestClient("http://example.com", "key")

	_, err := client.Describe(context.Background(), []byte("not an image"), "chest.jpg")
	require.Error(t, err)
	assert.Equal(t, domain.ErrInvalidInput, domain.ErrorCode(err))
}

func TestDescribe_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "key")

	_, err := client.Describe(context.Background(), pngBytes(t, 64, 64), "chest.jpg")
	require.Error(t, err)
	assert.Equal(t, domain.ErrUpstream, domain.ErrorCode(err))
	assert.Contains(t, err.Error(), "rate limiting")
}

func TestDescribe_UpstreamErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "model overloaded", "type": "server_error"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "key")

	_, err := client.Describe(context.Background(), pngBytes(t, 64, 64), "chest.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestDescribe_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "key")

	_, err := client.Describe(context.Background(), pngBytes(t, 64, 64), "chest.jpg")
	require.Error(t, err)
	assert.Equal(t, domain.ErrUpstream, domain.ErrorCode(err))
}

func TestDescribe_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "key")
	image := pngBytes(t, 64, 64)

	for i := 0; i < 5; i++ {
		_, err := client.Describe(context.Background(), image, "chest.jpg")
		require.Error(t, err)
	}

	// The breaker is now open and rejects before reaching the server.
	_, err := client.Describe(context.Background(), image, "chest.jpg")
	require.Error(t, err)
	assert.Equal(t, domain.ErrUpstream, domain.ErrorCode(err))
}
