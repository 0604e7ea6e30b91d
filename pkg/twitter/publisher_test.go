package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rileybot/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSessions struct {
	creds       session.Credentials
	err         error
	invalidated bool
}

func (m *mockSessions) Credentials(ctx context.Context) (session.Credentials, error) {
	return m.creds, m.err
}

func (m *mockSessions) Invalidate() error {
	m.invalidated = true
	return nil
}

func newTestPublisher(url string, s session.Provider) *Publisher {
	p := NewPublisher("consumer-key", "consumer-secret", s)
	p.apiURL = url + "/2/tweets"
	return p
}

func TestPublish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/2/tweets", r.URL.Path)
		auth := r.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(auth, "OAuth "))
		assert.Contains(t, auth, `oauth_consumer_key="consumer-key"`)
		assert.Contains(t, auth, `oauth_token="user-token"`)

		var req tweetRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "new run, new me", req.Text)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1790000000000000001","text":"new run, new me"}}`))
	}))
	defer server.Close()

	sessions := &mockSessions{creds: session.Credentials{Token: "user-token", Secret: "user-secret"}}
	id, err := newTestPublisher(server.URL, sessions).Publish(context.Background(), "new run, new me")
	require.NoError(t, err)
	assert.Equal(t, "1790000000000000001", id)
}

func TestPublish_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"detail":"You are not allowed to create a Tweet with duplicate content."}`))
	}))
	defer server.Close()

	sessions := &mockSessions{creds: session.Credentials{Token: "t", Secret: "s"}}
	_, err := newTestPublisher(server.URL, sessions).Publish(context.Background(), "dup")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "duplicate content")
	assert.False(t, sessions.invalidated)
}

func TestPublish_UnauthorizedDropsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"title":"Unauthorized"}`))
	}))
	defer server.Close()

	sessions := &mockSessions{creds: session.Credentials{Token: "t", Secret: "s"}}
	_, err := newTestPublisher(server.URL, sessions).Publish(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, sessions.invalidated)
}

func TestPublish_SessionError(t *testing.T) {
	sessions := &mockSessions{err: session.ErrNoCredentials}
	_, err := newTestPublisher("http://127.0.0.1:0", sessions).Publish(context.Background(), "hi")
	assert.ErrorIs(t, err, session.ErrNoCredentials)
}
