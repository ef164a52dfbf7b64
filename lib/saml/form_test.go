package saml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openconnect-tools/gp-okta/lib/client/types"
)

func TestExtractForm(t *testing.T) {
	body := []byte(`<html><body>
		<form action="https://idp.example.com/sso" method="post">
			<input type="hidden" name="SAMLRequest" value="abc123"/>
			<input type="hidden" name="RelayState" value="rs"/>
			<input type="submit"/>
		</form>
	</body></html>`)

	action, fields, err := ExtractForm(body)
	require.NoError(t, err)
	assert.Equal(t, "https://idp.example.com/sso", action)
	assert.Equal(t, map[string]string{"SAMLRequest": "abc123", "RelayState": "rs"}, fields)
}

func TestExtractFormFirstFormWins(t *testing.T) {
	body := []byte(`<html><body>
		<form action="/first"><input name="a" value="1"/></form>
		<form action="/second"><input name="b" value="2"/></form>
	</body></html>`)

	action, fields, err := ExtractForm(body)
	require.NoError(t, err)
	assert.Equal(t, "/first", action)
	assert.Equal(t, map[string]string{"a": "1"}, fields)
}

func TestExtractFormNoForm(t *testing.T) {
	_, _, err := ExtractForm([]byte(`<html><body><p>nothing here</p></body></html>`))
	assert.True(t, errors.Is(err, types.ErrProtocolViolation))
}

func TestExtractFormSurvivesSloppyMarkup(t *testing.T) {
	// gateways emit html that never saw a validator
	body := []byte(`<form action="/submit"><input name="x" value="y"><br></form>`)

	action, fields, err := ExtractForm(body)
	require.NoError(t, err)
	assert.Equal(t, "/submit", action)
	assert.Equal(t, "y", fields["x"])
}
