package mfa

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/openconnect-tools/gp-okta/lib/client/types"
)

const (
	// DefaultPushInterval and DefaultPushMaxPolls bound the push polling
	// loop. The Okta push transaction has no server-side signal that the
	// user will never answer, so the client has to give up on its own.
	DefaultPushInterval = 3 * time.Second
	DefaultPushMaxPolls = 20
)

// PushDevice polls the verify endpoint until the user approves or rejects
// the push notification on their phone.
type PushDevice struct {
	factor Config

	poll        backoff.BackOff
	challenged  bool
	answerShown bool
}

func NewPushDevice() *PushDevice {
	return &PushDevice{
		poll: backoff.WithMaxRetries(
			backoff.NewConstantBackOff(DefaultPushInterval), DefaultPushMaxPolls),
	}
}

func (d *PushDevice) SetFactor(factor types.OktaUserAuthnFactor) {
	d.factor = configFromFactor(factor)
}

func (d *PushDevice) Supported(factor types.OktaUserAuthnFactor) error {
	if factor.FactorType == "push" {
		return nil
	}
	return fmt.Errorf("push doesn't support %s: %w", factor.FactorType, types.ErrUnsupportedFactor)
}

// Verify issues the push challenge on its first call, then paces the polling
// loop: every later call sleeps one interval before asking Okta again, and
// fails once the retry budget is spent.
func (d *PushDevice) Verify(authResp types.OktaUserAuthn) (string, []byte, error) {
	if d.challenged {
		d.showAnswer(authResp)
		next := d.poll.NextBackOff()
		if next == backoff.Stop {
			return "", nil, fmt.Errorf("push verification timed out waiting for approval: %w", types.ErrUnexpectedStatus)
		}
		time.Sleep(next)
	} else {
		d.challenged = true
		log.Info("Sending push notification...")
	}

	payload, err := json.Marshal(types.OktaStateToken{StateToken: authResp.StateToken})
	if err != nil {
		return "", nil, err
	}
	return d.factor.VerifyURL, payload, nil
}

// showAnswer surfaces the number-matching answer embedded in the first
// WAITING poll. Informational only; drivers answer on the phone.
func (d *PushDevice) showAnswer(authResp types.OktaUserAuthn) {
	if d.answerShown {
		return
	}
	if answer := authResp.Embedded.Factor.Embedded.Challenge.CorrectAnswer; answer != 0 {
		fmt.Printf("Correct answer is: %d\n", answer)
		d.answerShown = true
	}
}

func configFromFactor(factor types.OktaUserAuthnFactor) Config {
	return Config{
		Provider:   factor.Provider,
		FactorType: factor.FactorType,
		VendorName: factor.VendorName,
		Id:         factor.Id,
		VerifyURL:  factor.Links.Verify.Href,
	}
}
