// Package openaichat talks to any OpenAI-compatible chat completions API,
// rotating between several API keys when one is rate limited or rejected.
package openaichat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"rileybot/pkg/generator"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	defaultMaxTokens = 512
)

type KeyState struct {
	Key          string
	FailureCount int
	LastUsed     time.Time
	LastSuccess  time.Time
}

type Client struct {
	keys        []*KeyState
	keyMu       sync.RWMutex
	clients     map[string]openai.Client
	clientsMu   sync.RWMutex
	baseURL     string
	model       string
	temperature float64
	topP        float64
	maxTokens   int64
	opts        []option.RequestOption
}

// NewClient accepts a comma-separated list of API keys.
func NewClient(apiKeys, baseURL, model string, temperature, topP float64, opts ...option.RequestOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	keyStrings := strings.Split(apiKeys, ",")
	keys := make([]*KeyState, 0, len(keyStrings))
	for _, k := range keyStrings {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, &KeyState{Key: k})
		}
	}

	if len(keys) == 0 {
		log.Warn().Msg("No OpenAI API keys provided")
	} else {
		log.Debug().Int("keys", len(keys)).Str("base_url", baseURL).Msg("Loaded OpenAI API key(s)")
	}

	return &Client{
		keys:        keys,
		clients:     make(map[string]openai.Client),
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		topP:        topP,
		maxTokens:   defaultMaxTokens,
		opts:        opts,
	}
}

func (c *Client) getClient(key string) openai.Client {
	c.clientsMu.RLock()
	if client, ok := c.clients[key]; ok {
		c.clientsMu.RUnlock()
		return client
	}
	c.clientsMu.RUnlock()

	c.clientsMu.Lock()
	defer c.clientsMu.Unlock()

	opts := append([]option.RequestOption{
		option.WithBaseURL(c.baseURL),
		option.WithAPIKey(key),
	}, c.opts...)
	client := openai.NewClient(opts...)
	c.clients[key] = client
	return client
}

// getBestKey returns the key with the fewest recent failures, skipping the
// ones in exclude.
func (c *Client) getBestKey(exclude map[*KeyState]bool) *KeyState {
	c.keyMu.RLock()
	defer c.keyMu.RUnlock()

	var best *KeyState
	for _, k := range c.keys {
		if exclude[k] {
			continue
		}
		if best == nil || k.FailureCount < best.FailureCount {
			best = k
		}
	}
	return best
}

func (c *Client) recordSuccess(key *KeyState) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	key.LastSuccess = time.Now()
	key.LastUsed = time.Now()
	if key.FailureCount > 0 {
		key.FailureCount--
	}
}

func (c *Client) recordFailure(key *KeyState) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	key.FailureCount++
	key.LastUsed = time.Now()
}

// Generate implements generator.TextGenerator. A key that is rate limited or
// rejected is penalized and the next key is tried; other errors return at once.
func (c *Client) Generate(ctx context.Context, p generator.Prompt) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if p.System != "" {
		messages = append(messages, openai.SystemMessage(p.System))
	}
	messages = append(messages, openai.UserMessage(p.User))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
		TopP:        openai.Float(c.topP),
		MaxTokens:   openai.Int(c.maxTokens),
	}

	tried := make(map[*KeyState]bool)
	var lastErr error
	for {
		keyState := c.getBestKey(tried)
		if keyState == nil {
			break
		}
		tried[keyState] = true

		resp, err := c.getClient(keyState.Key).Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if isRateLimitOrAuthError(err) {
				c.recordFailure(keyState)
				log.Warn().Err(err).Int("failures", keyState.FailureCount).Msg("Key rate limited/auth failed, trying another key")
				continue
			}
			return "", err
		}

		if resp == nil || len(resp.Choices) == 0 {
			return "", fmt.Errorf("empty response from model %s", c.model)
		}

		c.recordSuccess(keyState)
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	}

	if lastErr == nil {
		return "", fmt.Errorf("no API keys configured")
	}
	return "", fmt.Errorf("all API keys exhausted: %w", lastErr)
}

func isRateLimitOrAuthError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusForbidden:
			return true
		}
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "unauthorized")
}
