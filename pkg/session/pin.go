package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dghubble/oauth1"
	"github.com/dghubble/oauth1/twitter"
	"github.com/rs/zerolog/log"
)

// VerifierSource turns an authorization URL into the PIN the platform shows
// after the account approves the app.
type VerifierSource interface {
	Verifier(ctx context.Context, authURL string) (string, error)
}

// PINFlow runs the out-of-band OAuth1 flow: request token, authorize,
// exchange the PIN for an access token.
type PINFlow struct {
	Config   *oauth1.Config
	Verifier VerifierSource
}

// TwitterEndpoint asks for write access so the token can post.
var TwitterEndpoint = oauth1.Endpoint{
	RequestTokenURL: twitter.AuthorizeEndpoint.RequestTokenURL + "?x_auth_access_type=write",
	AuthorizeURL:    twitter.AuthorizeEndpoint.AuthorizeURL,
	AccessTokenURL:  twitter.AuthorizeEndpoint.AccessTokenURL,
}

func NewPINFlow(consumerKey, consumerSecret string, verifier VerifierSource) *PINFlow {
	return &PINFlow{
		Config: &oauth1.Config{
			ConsumerKey:    consumerKey,
			ConsumerSecret: consumerSecret,
			CallbackURL:    "oob",
			Endpoint:       TwitterEndpoint,
		},
		Verifier: verifier,
	}
}

// contextTransport ties every request it sends to ctx.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// boundConfig returns a copy of the OAuth1 config whose token requests are
// cancelled with ctx.
func (f *PINFlow) boundConfig(ctx context.Context) *oauth1.Config {
	cfg := *f.Config
	base := http.DefaultTransport
	if f.Config.HTTPClient != nil && f.Config.HTTPClient.Transport != nil {
		base = f.Config.HTTPClient.Transport
	}
	cfg.HTTPClient = &http.Client{Transport: contextTransport{ctx: ctx, base: base}}
	return &cfg
}

func (f *PINFlow) Credentials(ctx context.Context) (Credentials, error) {
	config := f.boundConfig(ctx)

	requestToken, requestSecret, err := config.RequestToken()
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to get request token: %w", err)
	}

	authURL, err := config.AuthorizationURL(requestToken)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to build authorization URL: %w", err)
	}

	verifier, err := f.Verifier.Verifier(ctx, authURL.String())
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to get verifier: %w", err)
	}
	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return Credentials{}, fmt.Errorf("empty verifier")
	}

	accessToken, accessSecret, err := config.AccessToken(requestToken, requestSecret, verifier)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to get access token: %w", err)
	}

	log.Info().Msg("Obtained access token")
	return Credentials{Token: accessToken, Secret: accessSecret}, nil
}

// PromptVerifier asks a person to open the URL and paste the PIN.
type PromptVerifier struct {
	In  io.Reader
	Out io.Writer
}

func (p PromptVerifier) Verifier(ctx context.Context, authURL string) (string, error) {
	fmt.Fprintf(p.Out, "Open this URL, authorize the app and paste the PIN:\n%s\nPIN: ", authURL)

	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		if err != nil && line == "" {
			errs <- err
			return
		}
		lines <- line
	}()

	select {
	case <-ctx.Done():
		// unblocks the reader goroutine
		if c, ok := p.In.(io.Closer); ok {
			c.Close()
		}
		return "", ctx.Err()
	case err := <-errs:
		return "", fmt.Errorf("failed to read PIN: %w", err)
	case line := <-lines:
		return strings.TrimSpace(line), nil
	}
}
