package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVerifier(t *testing.T) {
	page := `<html><body>
		<div id="oauth_pin">
			<p>Next, return to Riley and enter this PIN to complete the authorization process:</p>
			<kbd aria-labelledby="code-desc"><code>  4921034 </code></kbd>
		</div>
	</body></html>`

	pin, err := extractVerifier(page)
	require.NoError(t, err)
	assert.Equal(t, "4921034", pin)

	_, err = extractVerifier(`<html><body><p>Authorize app?</p></body></html>`)
	assert.Error(t, err)
}

func TestHasUnusualActivity(t *testing.T) {
	challenge := `<html><body><span>There was unusual login activity on your account.</span>
		<input name="text"></body></html>`
	assert.True(t, hasUnusualActivity(challenge))
	assert.True(t, hasUnusualActivity(`<p>UNUSUAL LOGIN ACTIVITY</p>`))
	assert.False(t, hasUnusualActivity(`<html><body><input name="password"></body></html>`))
}
