package mfa

import (
	"encoding/base64"
	"fmt"
	"time"

	u2fhost "github.com/marshallbrekka/go-u2fhost"
	log "github.com/sirupsen/logrus"

	"github.com/openconnect-tools/gp-okta/lib/client/types"
)

const (
	assertionTimeout = 25 * time.Second
	touchInterval    = 250 * time.Millisecond
)

// Interaction is everything the hardware-key flow may need to ask of the
// user. The terminal implementation lives in package lib; tests swap in
// their own.
type Interaction interface {
	// PromptPresence is called once when the authenticator is waiting for
	// a touch.
	PromptPresence()

	// ConfirmRetry is called when no device is plugged in. Returning
	// false falls back to the next factor.
	ConfirmRetry() bool
}

// AssertionRequest asks an authenticator to sign a webauthn challenge.
// Challenge and KeyHandles use the websafe unpadded base64 encoding that the
// Okta API and the FIDO wire format share.
type AssertionRequest struct {
	Challenge  string
	RPId       string
	KeyHandles []string
}

// Assertion is a signed challenge. All three fields are websafe unpadded
// base64.
type Assertion struct {
	AuthenticatorData string
	ClientData        string
	SignatureData     string
}

// Authenticator abstracts the local FIDO2 hardware so the webauthn device
// can be tested without a key plugged in.
type Authenticator interface {
	// Present reports whether any compatible device is connected.
	Present() bool

	// Assert signs the challenge with the first device and key handle that
	// accept it, blocking until the user touches the key or the attempt
	// times out.
	Assert(req AssertionRequest, interaction Interaction) (*Assertion, error)
}

// U2FHostAuthenticator talks to USB HID authenticators through go-u2fhost,
// using the webauthn flavor of the authenticate request.
type U2FHostAuthenticator struct{}

func (a *U2FHostAuthenticator) Present() bool {
	return len(u2fhost.Devices()) > 0
}

func (a *U2FHostAuthenticator) Assert(req AssertionRequest, interaction Interaction) (*Assertion, error) {
	devices := u2fhost.Devices()
	if len(devices) == 0 {
		return nil, types.ErrDeviceUnavailable
	}

	openDevices := []u2fhost.Device{}
	for i, device := range devices {
		if err := device.Open(); err != nil {
			log.Warnf("Failed opening device: %s", err)
			continue
		}
		openDevices = append(openDevices, u2fhost.Device(devices[i]))
		defer func(i int) {
			devices[i].Close()
		}(i)
	}
	if len(openDevices) == 0 {
		return nil, types.ErrDeviceUnavailable
	}

	requests := authenticateRequests(req)

	prompted := false
	timeout := time.After(assertionTimeout)
	interval := time.NewTicker(touchInterval)
	defer interval.Stop()

	for {
		select {
		case <-timeout:
			return nil, fmt.Errorf("no touch within %s: %w", assertionTimeout, types.ErrDeviceUnavailable)
		case <-interval.C:
			for _, device := range openDevices {
				for _, request := range requests {
					response, err := device.Authenticate(request)
					if err == nil {
						return assertionFromResponse(response)
					}
					switch err.(type) {
					case *u2fhost.TestOfUserPresenceRequiredError:
						if !prompted {
							interaction.PromptPresence()
							prompted = true
						}
					case *u2fhost.BadKeyHandleError:
						// this key doesn't know the handle, try the next
					default:
						log.Debugf("Authenticate error: %s", err)
					}
				}
			}
		}
	}
}

// authenticateRequests expands an assertion request into one webauthn
// authenticate request per allowed key handle. In webauthn mode the library
// hashes AppId into the rpIdHash, so it must be the bare relying party id;
// the facet is the full origin.
func authenticateRequests(req AssertionRequest) []*u2fhost.AuthenticateRequest {
	requests := make([]*u2fhost.AuthenticateRequest, 0, len(req.KeyHandles))
	for _, handle := range req.KeyHandles {
		requests = append(requests, &u2fhost.AuthenticateRequest{
			Challenge: req.Challenge,
			AppId:     req.RPId,
			Facet:     "https://" + req.RPId,
			KeyHandle: handle,
			WebAuthn:  true,
		})
	}
	return requests
}

// assertionFromResponse normalizes a webauthn authenticate response to the
// websafe encoding the Assertion contract promises. The library returns
// authenticatorData and signatureData as standard padded base64 and only
// clientData websafe.
func assertionFromResponse(response *u2fhost.AuthenticateResponse) (*Assertion, error) {
	authenticatorData, err := stdToWebsafe(response.AuthenticatorData)
	if err != nil {
		return nil, fmt.Errorf("normalizing authenticatorData: %w", err)
	}
	signatureData, err := stdToWebsafe(response.SignatureData)
	if err != nil {
		return nil, fmt.Errorf("normalizing signatureData: %w", err)
	}
	return &Assertion{
		AuthenticatorData: authenticatorData,
		ClientData:        response.ClientData,
		SignatureData:     signatureData,
	}, nil
}

func stdToWebsafe(value string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("decoding standard base64 value: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// websafeToStd re-encodes a websafe unpadded base64 value as standard padded
// base64, round-tripping through the raw bytes so the result is exactly what
// the authenticator produced.
func websafeToStd(value string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("decoding websafe value: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
