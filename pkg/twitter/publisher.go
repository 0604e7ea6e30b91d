// Package twitter posts text to X/Twitter through the v2 API, signing each
// request with OAuth1 user credentials.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"rileybot/pkg/session"

	"github.com/dghubble/oauth1"
	"github.com/rs/zerolog/log"
)

const defaultAPIURL = "https://api.twitter.com/2/tweets"

// APIError is a non-201 answer from the tweets endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter API error (status %d): %s", e.StatusCode, e.Body)
}

type Publisher struct {
	config   *oauth1.Config
	sessions session.Provider
	apiURL   string
}

func NewPublisher(consumerKey, consumerSecret string, sessions session.Provider) *Publisher {
	return &Publisher{
		config:   oauth1.NewConfig(consumerKey, consumerSecret),
		sessions: sessions,
		apiURL:   defaultAPIURL,
	}
}

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// Publish posts text and returns the new post's id. A 401 drops cached
// session credentials so the next run logs in again.
func (p *Publisher) Publish(ctx context.Context, text string) (string, error) {
	creds, err := p.sessions.Credentials(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get session: %w", err)
	}

	body, err := json.Marshal(tweetRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.config.Client(ctx, oauth1.NewToken(creds.Token, creds.Secret))
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		if resp.StatusCode == http.StatusUnauthorized {
			if inv, ok := p.sessions.(session.Invalidator); ok {
				if err := inv.Invalidate(); err != nil {
					log.Warn().Err(err).Msg("Failed to drop rejected session")
				}
			}
		}
		bodyStr := string(respBody)
		if len(bodyStr) > 200 {
			bodyStr = bodyStr[:200] + "...(truncated)"
		}
		return "", &APIError{StatusCode: resp.StatusCode, Body: bodyStr}
	}

	var tr tweetResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if tr.Data.ID == "" {
		return "", fmt.Errorf("response carried no post id")
	}
	return tr.Data.ID, nil
}
