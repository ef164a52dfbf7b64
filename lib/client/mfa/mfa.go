// Package mfa implements the per-factor challenge sub-protocols of the Okta
// authn API. Each factor type is a Device; the client drives whichever device
// claims the factor until the authn transaction reaches a terminal status.
package mfa

import (
	"sort"

	"github.com/openconnect-tools/gp-okta/lib/client/types"
)

// Input supplies out-of-band codes from the user (SMS codes, OTP codes).
type Input interface {
	CodeSupplier(factor Config) (string, error)
}

// Config describes one factor offered by Okta along with the endpoint used
// to verify it.
type Config struct {
	Provider   string
	FactorType string
	VendorName string
	Id         string
	VerifyURL  string
}

// Device drives one factor type to completion.
type Device interface {
	// Supported returns nil if this device can handle the factor.
	Supported(factor types.OktaUserAuthnFactor) error

	// SetFactor tells the device which offered factor it is verifying.
	SetFactor(factor types.OktaUserAuthnFactor)

	// Verify inspects the latest authn response and produces the URL and
	// request body for the next verification call. The client posts the
	// payload and calls Verify again while the transaction is still in a
	// challenge state, so stateful sub-protocols (push polling, webauthn
	// challenge/assertion) are expressed as successive Verify calls.
	Verify(authResp types.OktaUserAuthn) (string, []byte, error)
}

// Sort orders factors descending by priority, looking each factor type up in
// priorities (absent types rank 0). The sort is stable so factors with equal
// priority keep Okta's original ordering, which keeps negotiation
// deterministic.
func Sort(factors []types.OktaUserAuthnFactor, priorities map[string]int) []types.OktaUserAuthnFactor {
	sorted := make([]types.OktaUserAuthnFactor, len(factors))
	copy(sorted, factors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return priorities[sorted[i].FactorType] > priorities[sorted[j].FactorType]
	})
	return sorted
}
