// Package session obtains the OAuth1 access token pair the X/Twitter
// publisher signs requests with. Providers range from static environment
// credentials to an interactive PIN flow driven by a person or a browser.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrNoCredentials = errors.New("no session credentials available")

// Credentials is an OAuth1 access token pair.
type Credentials struct {
	Token  string `json:"access_token"`
	Secret string `json:"access_token_secret"`
}

func (c Credentials) Valid() bool {
	return c.Token != "" && c.Secret != ""
}

// Masked returns the secret with all but its last four characters hidden.
func (c Credentials) Masked() string {
	if len(c.Secret) <= 4 {
		return "****"
	}
	return "****" + c.Secret[len(c.Secret)-4:]
}

type Provider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// Invalidator is implemented by providers that can drop credentials the
// platform has rejected.
type Invalidator interface {
	Invalidate() error
}

// Static hands out credentials from configuration.
type Static struct {
	Creds Credentials
}

func (s Static) Credentials(ctx context.Context) (Credentials, error) {
	if !s.Creds.Valid() {
		return Credentials{}, ErrNoCredentials
	}
	return s.Creds, nil
}

// Cached keeps the credentials produced by Next in a 0600 JSON file so the
// interactive flow only runs once.
type Cached struct {
	Path string
	Next Provider

	mu    sync.Mutex
	creds Credentials
}

func NewCached(path string, next Provider) *Cached {
	return &Cached{Path: path, Next: next}
}

func (c *Cached) Credentials(ctx context.Context) (Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.creds.Valid() {
		return c.creds, nil
	}

	if data, err := os.ReadFile(c.Path); err == nil {
		var creds Credentials
		if err := json.Unmarshal(data, &creds); err == nil && creds.Valid() {
			c.creds = creds
			return creds, nil
		}
		log.Warn().Str("path", c.Path).Msg("Ignoring unreadable token cache")
	}

	if c.Next == nil {
		return Credentials{}, ErrNoCredentials
	}
	creds, err := c.Next.Credentials(ctx)
	if err != nil {
		return Credentials{}, err
	}

	if err := c.save(creds); err != nil {
		log.Warn().Err(err).Str("path", c.Path).Msg("Failed to cache session tokens")
	}
	c.creds = creds
	return creds, nil
}

func (c *Cached) save(creds Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.Path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return os.WriteFile(c.Path, data, 0600)
}

// Invalidate forgets the cached pair so the next call runs Next again.
func (c *Cached) Invalidate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.creds = Credentials{}
	if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
