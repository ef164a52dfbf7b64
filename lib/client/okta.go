// Package client implements the Okta authn API state machine: password
// authentication followed by multi-factor negotiation, ending in a session
// token.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openconnect-tools/gp-okta/lib/client/mfa"
	"github.com/openconnect-tools/gp-okta/lib/client/types"
)

// OktaCredential is everything needed to authenticate one user against one
// Okta org.
type OktaCredential struct {
	Domain   string
	Username string
	Password string

	// TOTPSecret enables local code generation for token:software:totp.
	TOTPSecret string

	// FactorPriorities orders factor types during negotiation; see
	// mfa.Sort. Types not present rank 0.
	FactorPriorities map[string]int
}

func (c OktaCredential) Validate() error {
	if c.Domain == "" || c.Username == "" || c.Password == "" {
		return errors.New("missing okta domain, username or password")
	}
	return nil
}

// timeNow feeds the TOTP device's clock; nil means the wall clock. Tests pin
// it to replay fixed codes.
var timeNow func() time.Time

type OktaClient struct {
	creds    OktaCredential
	BaseURL  *url.URL
	client   *http.Client
	userAuth *types.OktaUserAuthn
	devices  []mfa.Device
}

// NewOktaClient builds a client around a caller-supplied http.Client; the
// caller shares the same client (and cookie jar) with the SAML flow so the
// provider-side tracking cookie set before authentication is present on the
// session redirect.
func NewOktaClient(
	creds OktaCredential,
	httpClient *http.Client,
	input mfa.Input,
	authenticator mfa.Authenticator,
	interaction mfa.Interaction) (*OktaClient, error) {

	if err := creds.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(fmt.Sprintf("https://%s", creds.Domain))
	if err != nil {
		return nil, fmt.Errorf("parsing okta domain: %w", err)
	}

	devices := []mfa.Device{
		mfa.NewPushDevice(),
		mfa.NewSMSDevice(input),
		mfa.NewTOTPDevice(input, creds.TOTPSecret, timeNow),
		mfa.NewWebauthnDevice(creds.Domain, authenticator, interaction),
	}

	return &OktaClient{
		creds:    creds,
		BaseURL:  base,
		client:   httpClient,
		userAuth: &types.OktaUserAuthn{},
		devices:  devices,
	}, nil
}

// AuthenticateUser runs the full authn transaction. On return without error
// a session token is available from GetSessionToken.
func (o *OktaClient) AuthenticateUser() error {
	payload, err := json.Marshal(map[string]string{
		"username": o.creds.Username,
		"password": o.creds.Password,
	})
	if err != nil {
		return err
	}

	log.Debug("Posting first call to authenticate the user")
	authnURL, err := o.BaseURL.Parse("/api/v1/authn")
	if err != nil {
		return err
	}
	if err = o.post(authnURL.String(), payload, o.userAuth); err != nil {
		return err
	}

	switch o.userAuth.Status {
	case "LOCKED_OUT":
		return fmt.Errorf("authentication for %s: %w", o.creds.Username, types.ErrAccountLocked)
	case "MFA_REQUIRED":
		log.Info("Requesting MFA. Please complete two-factor authentication with your second device")
		if err = o.challengeMFA(); err != nil {
			return err
		}
	}

	if o.userAuth.Status == "LOCKED_OUT" {
		return fmt.Errorf("authentication for %s: %w", o.creds.Username, types.ErrAccountLocked)
	}
	if o.userAuth.Status != "SUCCESS" {
		return fmt.Errorf("authentication ended in status %q (factor result %q): %w",
			o.userAuth.Status, o.userAuth.FactorResult, types.ErrUnexpectedStatus)
	}
	if o.userAuth.SessionToken == "" {
		return fmt.Errorf("authentication succeeded but no session token present: %w", types.ErrUnexpectedStatus)
	}
	return nil
}

// GetSessionToken returns the session token of a completed transaction.
func (o *OktaClient) GetSessionToken() string {
	return o.userAuth.SessionToken
}

// challengeMFA walks the offered factors in priority order and drives the
// first one that is both recognized and available. Unsupported factors and
// missing hardware are skipped; any other failure is fatal.
func (o *OktaClient) challengeMFA() error {
	factors := mfa.Sort(o.userAuth.Embedded.Factors, o.creds.FactorPriorities)
	for _, factor := range factors {
		device := o.deviceFor(factor)
		if device == nil {
			log.Debugf("No device supports factor %s/%s, skipping", factor.Provider, factor.FactorType)
			continue
		}
		device.SetFactor(factor)
		log.Debugf("Verifying with factor %s/%s", factor.Provider, factor.FactorType)

		err := o.verifyLoop(device)
		if errors.Is(err, types.ErrDeviceUnavailable) || errors.Is(err, types.ErrUnsupportedFactor) {
			log.Debugf("Factor %s unavailable (%s), trying next", factor.FactorType, err)
			continue
		}
		return err
	}
	return fmt.Errorf("exhausted %d offered factors: %w", len(factors), types.ErrNoSupportedFactor)
}

func (o *OktaClient) deviceFor(factor types.OktaUserAuthnFactor) mfa.Device {
	for _, device := range o.devices {
		if device.Supported(factor) == nil {
			return device
		}
	}
	return nil
}

// verifyLoop alternates between the device and Okta until the transaction
// leaves its challenge state. Every post must carry the state token of the
// most recent response, which the device reads from the authn record it is
// handed.
func (o *OktaClient) verifyLoop(device mfa.Device) error {
	for inChallenge(o.userAuth) {
		verifyURL, payload, err := device.Verify(*o.userAuth)
		if err != nil {
			return err
		}
		if err = o.post(verifyURL, payload, o.userAuth); err != nil {
			return err
		}
	}
	return nil
}

// inChallenge reports whether the transaction still expects verification
// traffic. A factor result other than WAITING or CHALLENGE is terminal even
// when the status is still MFA_CHALLENGE.
func inChallenge(authn *types.OktaUserAuthn) bool {
	if authn.Status == "MFA_REQUIRED" {
		return true
	}
	if authn.Status != "MFA_CHALLENGE" {
		return false
	}
	switch authn.FactorResult {
	case "", "WAITING", "CHALLENGE":
		return true
	}
	return false
}

func (o *OktaClient) post(rawURL string, payload []byte, into *types.OktaUserAuthn) error {
	req, err := http.NewRequest(http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header = http.Header{
		"Accept":        []string{"application/json"},
		"Content-Type":  []string{"application/json"},
		"Cache-Control": []string{"no-cache"},
	}
	log.Debug("POST ", rawURL)

	res, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%v: %w", err, types.ErrTransport)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		if errResp, perr := parseOktaError(res); perr == nil {
			return fmt.Errorf("okta returned %d (%s: %s): %w",
				res.StatusCode, errResp.ErrorCode, errResp.ErrorSummary, types.ErrTransport)
		}
		return fmt.Errorf("okta returned %d: %w", res.StatusCode, types.ErrTransport)
	}

	// decode into a zero record so fields absent from this response can't
	// carry over from the previous step
	var fresh types.OktaUserAuthn
	if err := json.NewDecoder(res.Body).Decode(&fresh); err != nil {
		return err
	}
	*into = fresh
	return nil
}

func parseOktaError(res *http.Response) (*types.OktaErrorResponse, error) {
	var errResp types.OktaErrorResponse
	if err := json.NewDecoder(res.Body).Decode(&errResp); err != nil {
		log.Debug("parsing okta error body: ", err)
		return nil, err
	}
	return &errResp, nil
}
