package openaichat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"rileybot/pkg/generator"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionJSON = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-4o-mini",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": "  speedran my laundry, any%  "},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key-a", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON))
	}))
	defer server.Close()

	c := NewClient("key-a", server.URL, "gpt-4o-mini", 1, 0.95, option.WithMaxRetries(0))

	var gen generator.TextGenerator = c
	text, err := gen.Generate(context.Background(), generator.Prompt{System: "you are riley", User: "post"})
	require.NoError(t, err)
	assert.Equal(t, "speedran my laundry, any%", text)
}

func TestGenerate_RotatesOnRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") == "Bearer key-a" {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
			return
		}
		w.Write([]byte(completionJSON))
	}))
	defer server.Close()

	c := NewClient("key-a, key-b", server.URL, "gpt-4o-mini", 1, 0.95, option.WithMaxRetries(0))

	text, err := c.Generate(context.Background(), generator.Prompt{User: "post"})
	require.NoError(t, err)
	assert.Equal(t, "speedran my laundry, any%", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, c.keys[0].FailureCount)
	assert.Equal(t, 0, c.keys[1].FailureCount)
}

func TestGenerate_AllKeysExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer server.Close()

	c := NewClient("key-a,key-b", server.URL, "m", 1, 1, option.WithMaxRetries(0))
	_, err := c.Generate(context.Background(), generator.Prompt{User: "post"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all API keys exhausted")
}

func TestGenerate_ServerErrorDoesNotRotate(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad request"}}`))
	}))
	defer server.Close()

	c := NewClient("key-a,key-b", server.URL, "m", 1, 1, option.WithMaxRetries(0))
	_, err := c.Generate(context.Background(), generator.Prompt{User: "post"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerate_NoKeys(t *testing.T) {
	c := NewClient(" , ", "", "m", 1, 1)
	_, err := c.Generate(context.Background(), generator.Prompt{User: "post"})
	assert.EqualError(t, err, "no API keys configured")
}

func TestIsRateLimitOrAuthError(t *testing.T) {
	assert.True(t, isRateLimitOrAuthError(errors.New("Rate limit reached")))
	assert.False(t, isRateLimitOrAuthError(errors.New("connection refused")))
}
