package mfa

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/openconnect-tools/gp-okta/lib/client/types"
)

// Not using factor.Links.Verify.Href: several webauthn devices may be
// enrolled, and this generic endpoint issues a challenge that any of them
// can answer.
const webauthnVerifyPath = "https://%s/api/v1/authn/factors/webauthn/verify"

// WebauthnDevice answers a webauthn challenge with a local hardware
// authenticator. The first Verify call requests the challenge; the second
// sees the MFA_CHALLENGE response, has the authenticator sign it, and
// submits the assertion.
type WebauthnDevice struct {
	domain        string
	authenticator Authenticator
	interaction   Interaction
}

func NewWebauthnDevice(domain string, authenticator Authenticator, interaction Interaction) *WebauthnDevice {
	return &WebauthnDevice{
		domain:        domain,
		authenticator: authenticator,
		interaction:   interaction,
	}
}

func (d *WebauthnDevice) SetFactor(factor types.OktaUserAuthnFactor) {}

func (d *WebauthnDevice) Supported(factor types.OktaUserAuthnFactor) error {
	if factor.FactorType != "webauthn" {
		return fmt.Errorf("webauthn doesn't support %s: %w", factor.FactorType, types.ErrUnsupportedFactor)
	}
	if d.authenticator == nil {
		return types.ErrDeviceUnavailable
	}
	return nil
}

func (d *WebauthnDevice) Verify(authResp types.OktaUserAuthn) (string, []byte, error) {
	if authResp.Status == "MFA_CHALLENGE" && authResp.Embedded.Challenge.Challenge != "" {
		return d.assert(authResp)
	}
	return d.requestChallenge(authResp)
}

func (d *WebauthnDevice) requestChallenge(authResp types.OktaUserAuthn) (string, []byte, error) {
	for !d.authenticator.Present() {
		fmt.Println("Please insert a suitable device if you wish to continue with webauthn MFA.")
		if !d.interaction.ConfirmRetry() {
			log.Info("Falling back to other MFA method.")
			return "", nil, types.ErrDeviceUnavailable
		}
	}

	payload, err := json.Marshal(types.OktaStateToken{StateToken: authResp.StateToken})
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf(webauthnVerifyPath, d.domain), payload, nil
}

// assert signs the provider challenge. The allowed key handles are gathered
// across every webauthn factor in the challenge response so any enrolled key
// can answer, and the submission carries the challenge's own state token,
// which may differ from the token the transaction started with.
func (d *WebauthnDevice) assert(authResp types.OktaUserAuthn) (string, []byte, error) {
	handles := make([]string, 0, len(authResp.Embedded.Factors))
	for _, factor := range authResp.Embedded.Factors {
		if factor.Profile.CredentialId != "" {
			handles = append(handles, factor.Profile.CredentialId)
		}
	}
	if len(handles) == 0 {
		return "", nil, fmt.Errorf("webauthn challenge carries no credential ids: %w", types.ErrProtocolViolation)
	}

	assertion, err := d.authenticator.Assert(AssertionRequest{
		Challenge:  authResp.Embedded.Challenge.Challenge,
		RPId:       d.domain,
		KeyHandles: handles,
	}, d.interaction)
	if err != nil {
		return "", nil, err
	}

	body, err := EncodeAssertion(assertion, authResp.StateToken)
	if err != nil {
		return "", nil, err
	}

	next := authResp.Links.Next.Href
	if next == "" {
		return "", nil, fmt.Errorf("webauthn challenge carries no next link: %w", types.ErrProtocolViolation)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", nil, err
	}
	return next, payload, nil
}

// EncodeAssertion converts an authenticator assertion into the submission
// body Okta expects: each websafe field re-encoded as standard padded
// base64.
func EncodeAssertion(assertion *Assertion, stateToken string) (*types.OktaWebauthnAssertion, error) {
	authenticatorData, err := websafeToStd(assertion.AuthenticatorData)
	if err != nil {
		return nil, err
	}
	clientData, err := websafeToStd(assertion.ClientData)
	if err != nil {
		return nil, err
	}
	signatureData, err := websafeToStd(assertion.SignatureData)
	if err != nil {
		return nil, err
	}
	return &types.OktaWebauthnAssertion{
		StateToken:        stateToken,
		AuthenticatorData: authenticatorData,
		ClientData:        clientData,
		SignatureData:     signatureData,
	}, nil
}
