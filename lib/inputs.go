package lib

import (
	"fmt"

	"github.com/openconnect-tools/gp-okta/lib/client/mfa"
)

// TerminalInputs supplies MFA codes by prompting on the terminal.
type TerminalInputs struct{}

func (TerminalInputs) CodeSupplier(factor mfa.Config) (string, error) {
	if factor.FactorType == "sms" {
		return Prompt("SMS code", false)
	}
	return Prompt(fmt.Sprintf("One-time code for %s (%s)", factor.Provider, factor.VendorName), false)
}

// TerminalInteraction answers hardware-key prompts interactively.
type TerminalInteraction struct{}

func (TerminalInteraction) PromptPresence() {
	fmt.Println("Touch your hardware token to confirm user presence")
}

func (TerminalInteraction) ConfirmRetry() bool {
	return Confirm("Continue with webauthn MFA?")
}
