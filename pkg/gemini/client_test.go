package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rileybot/pkg/generator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	client := NewClient("test-key", "gemini-1.5-flash")
	client.baseURL = url + "/v1beta/models"
	return client
}

func TestGenerateContent(t *testing.T) {
	geminiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.SystemInstruction)
		assert.Equal(t, "you are riley", req.SystemInstruction.Parts[0].Text)
		assert.Equal(t, "user", req.Contents[0].Role)
		assert.Equal(t, "write a post", req.Contents[0].Parts[0].Text)
		assert.Equal(t, 0.95, req.GenerationConfig.TopP)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  hades run #40, "},{"text":"still no sleep "}]},"finishReason":"STOP"}]}`))
	}))
	defer geminiServer.Close()

	client := newTestClient(geminiServer.URL)
	text, err := client.GenerateContent(context.Background(), "you are riley", "write a post")
	require.NoError(t, err)
	assert.Equal(t, "hades run #40, still no sleep", text)
}

func TestGenerateContent_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "api error",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"quota"}}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
			},
		},
		{
			name:   "prompt blocked",
			status: http.StatusOK,
			body:   `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrBlocked)
			},
		},
		{
			name:   "candidate stopped for safety",
			status: http.StatusOK,
			body:   `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrBlocked)
			},
		},
		{
			name:   "no candidates",
			status: http.StatusOK,
			body:   `{"candidates":[]}`,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "no response candidates")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).GenerateContent(context.Background(), "", "hi")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGenerateContent_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(server.URL).GenerateContent(ctx, "", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerateContent_NoKey(t *testing.T) {
	_, err := NewClient("", "m").GenerateContent(context.Background(), "", "hi")
	assert.Error(t, err)
}

func TestAdapter(t *testing.T) {
	assert.Nil(t, NewAdapter("", "m", 1, 1))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 0.7, req.GenerationConfig.Temperature)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer server.Close()

	a := NewAdapter("k", "gemini-1.5-flash", 0.7, 0.9)
	a.client.baseURL = server.URL

	var gen generator.TextGenerator = a
	text, err := gen.Generate(context.Background(), generator.Prompt{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}
