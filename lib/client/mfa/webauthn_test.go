package mfa

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openconnect-tools/gp-okta/lib/client/types"
)

type fakeAuthenticator struct {
	present   bool
	assertion *Assertion
	err       error

	gotRequest AssertionRequest
}

func (a *fakeAuthenticator) Present() bool { return a.present }

func (a *fakeAuthenticator) Assert(req AssertionRequest, interaction Interaction) (*Assertion, error) {
	a.gotRequest = req
	return a.assertion, a.err
}

type fakeInteraction struct {
	retry bool
}

func (i fakeInteraction) PromptPresence()    {}
func (i fakeInteraction) ConfirmRetry() bool { return i.retry }

func websafe(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

func TestWebauthnFirstVerifyRequestsChallenge(t *testing.T) {
	auth := &fakeAuthenticator{present: true}
	device := NewWebauthnDevice("example.okta.com", auth, fakeInteraction{})

	verifyURL, payload, err := device.Verify(types.OktaUserAuthn{
		Status:     "MFA_REQUIRED",
		StateToken: "session-token",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.okta.com/api/v1/authn/factors/webauthn/verify", verifyURL)

	var body types.OktaStateToken
	require.NoError(t, json.Unmarshal(payload, &body))
	assert.Equal(t, "session-token", body.StateToken)
}

func TestWebauthnNoDeviceFallsBack(t *testing.T) {
	auth := &fakeAuthenticator{present: false}
	device := NewWebauthnDevice("example.okta.com", auth, fakeInteraction{retry: false})

	_, _, err := device.Verify(types.OktaUserAuthn{Status: "MFA_REQUIRED"})
	assert.True(t, errors.Is(err, types.ErrDeviceUnavailable))
}

func TestWebauthnAssertionRoundTripsEncoding(t *testing.T) {
	authData := []byte{0x01, 0x02, 0xfb, 0xff}
	clientData := []byte(`{"type":"webauthn.get"}`)
	signature := []byte{0xde, 0xad, 0xbe, 0xef}

	auth := &fakeAuthenticator{
		present: true,
		assertion: &Assertion{
			AuthenticatorData: websafe(authData),
			ClientData:        websafe(clientData),
			SignatureData:     websafe(signature),
		},
	}
	device := NewWebauthnDevice("example.okta.com", auth, fakeInteraction{})

	challenge := types.OktaUserAuthn{
		Status: "MFA_CHALLENGE",
		// the challenge response carries its own token
		StateToken: "challenge-token",
		Links: types.OktaUserAuthnLinks{
			Next: types.OktaUserAuthnLink{Href: "https://example.okta.com/next"},
		},
		Embedded: types.OktaUserAuthnEmbedded{
			Challenge: types.OktaUserAuthnChallenge{Challenge: websafe([]byte("nonce"))},
			Factors: []types.OktaUserAuthnFactor{
				{FactorType: "webauthn", Profile: types.OktaUserAuthnFactorProfile{CredentialId: websafe([]byte("cred-1"))}},
				{FactorType: "webauthn", Profile: types.OktaUserAuthnFactorProfile{CredentialId: websafe([]byte("cred-2"))}},
			},
		},
	}

	verifyURL, payload, err := device.Verify(challenge)
	require.NoError(t, err)
	assert.Equal(t, "https://example.okta.com/next", verifyURL)

	// every enrolled key can answer
	assert.Equal(t, []string{websafe([]byte("cred-1")), websafe([]byte("cred-2"))}, auth.gotRequest.KeyHandles)
	assert.Equal(t, "example.okta.com", auth.gotRequest.RPId)

	var body types.OktaWebauthnAssertion
	require.NoError(t, json.Unmarshal(payload, &body))
	assert.Equal(t, "challenge-token", body.StateToken)

	// transport fields are standard padded base64 of the same raw bytes
	decoded, err := base64.StdEncoding.DecodeString(body.AuthenticatorData)
	require.NoError(t, err)
	assert.Equal(t, authData, decoded)

	decoded, err = base64.StdEncoding.DecodeString(body.ClientData)
	require.NoError(t, err)
	assert.Equal(t, clientData, decoded)

	decoded, err = base64.StdEncoding.DecodeString(body.SignatureData)
	require.NoError(t, err)
	assert.Equal(t, signature, decoded)
}

func TestWebauthnChallengeWithoutCredentials(t *testing.T) {
	auth := &fakeAuthenticator{present: true, assertion: &Assertion{}}
	device := NewWebauthnDevice("example.okta.com", auth, fakeInteraction{})

	_, _, err := device.Verify(types.OktaUserAuthn{
		Status:   "MFA_CHALLENGE",
		Links:    types.OktaUserAuthnLinks{Next: types.OktaUserAuthnLink{Href: "https://example.okta.com/next"}},
		Embedded: types.OktaUserAuthnEmbedded{Challenge: types.OktaUserAuthnChallenge{Challenge: websafe([]byte("nonce"))}},
	})
	assert.True(t, errors.Is(err, types.ErrProtocolViolation))
}
