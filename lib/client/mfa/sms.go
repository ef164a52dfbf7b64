package mfa

import (
	"encoding/json"
	"fmt"

	"github.com/openconnect-tools/gp-okta/lib/client/types"
)

// SMSDevice is called twice: once to have Okta send the code, then once with
// the code the user received.
type SMSDevice struct {
	userInput Input
	factor    Config

	codeRequested bool
}

func NewSMSDevice(input Input) *SMSDevice {
	return &SMSDevice{userInput: input}
}

func (d *SMSDevice) SetFactor(factor types.OktaUserAuthnFactor) {
	d.factor = configFromFactor(factor)
}

func (d *SMSDevice) Supported(factor types.OktaUserAuthnFactor) error {
	if factor.FactorType == "sms" {
		return nil
	}
	return fmt.Errorf("sms doesn't support %s: %w", factor.FactorType, types.ErrUnsupportedFactor)
}

func (d *SMSDevice) Verify(authResp types.OktaUserAuthn) (string, []byte, error) {
	var code string
	if d.codeRequested {
		var err error
		code, err = d.userInput.CodeSupplier(d.factor)
		if err != nil {
			return "", nil, err
		}
	} else {
		d.codeRequested = true
	}

	payload, err := json.Marshal(types.OktaStateToken{
		StateToken: authResp.StateToken,
		PassCode:   code,
	})
	if err != nil {
		return "", nil, err
	}
	return d.factor.VerifyURL, payload, nil
}
