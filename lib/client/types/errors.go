package types

import "errors"

// Sentinel errors shared by the client and its factor implementations.
// Callers match with errors.Is; wrapped messages carry the detail.
var (
	// ErrTransport covers any non-2xx response from Okta or the gateway.
	ErrTransport = errors.New("request failed")

	// ErrProtocolViolation means a response was missing a field or form
	// the flow cannot proceed without.
	ErrProtocolViolation = errors.New("response missing an expected field")

	// ErrUnsupportedFactor marks a factor type this client does not
	// implement. Negotiation skips it and moves on.
	ErrUnsupportedFactor = errors.New("factor type not supported")

	// ErrNoSupportedFactor means every offered factor was exhausted
	// without completing a challenge.
	ErrNoSupportedFactor = errors.New("no supported authentication factors")

	// ErrAccountLocked corresponds to the LOCKED_OUT authn status.
	ErrAccountLocked = errors.New("locked out of Okta")

	// ErrUnexpectedStatus is returned for any terminal authn status other
	// than SUCCESS or LOCKED_OUT.
	ErrUnexpectedStatus = errors.New("unexpected authentication status")

	// ErrDeviceUnavailable means no usable hardware authenticator was
	// found. Negotiation falls back to the next factor.
	ErrDeviceUnavailable = errors.New("no usable hardware authenticator")

	// ErrUserCancelled means the user declined to continue a prompt.
	ErrUserCancelled = errors.New("cancelled by user")
)
