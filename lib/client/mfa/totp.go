package mfa

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openconnect-tools/gp-okta/lib/client/types"
)

const totpStep = 30 * time.Second

// TOTPDevice handles the whole token family ("token", "token:software:totp",
// "token:hardware", ...). When a shared secret is configured and the factor
// is the software TOTP variant the code is computed locally; in every other
// case the user is prompted for it.
type TOTPDevice struct {
	userInput Input
	factor    Config

	// secret is the base32 TOTP seed, empty when not configured.
	secret string

	now func() time.Time
}

// NewTOTPDevice builds a token device. A nil clock means the wall clock;
// tests pass a fixed one.
func NewTOTPDevice(input Input, secret string, now func() time.Time) *TOTPDevice {
	if now == nil {
		now = time.Now
	}
	return &TOTPDevice{userInput: input, secret: secret, now: now}
}

func (d *TOTPDevice) SetFactor(factor types.OktaUserAuthnFactor) {
	d.factor = configFromFactor(factor)
}

func (d *TOTPDevice) Supported(factor types.OktaUserAuthnFactor) error {
	if factor.FactorType == "token" || strings.HasPrefix(factor.FactorType, "token:") {
		return nil
	}
	return fmt.Errorf("token doesn't support %s: %w", factor.FactorType, types.ErrUnsupportedFactor)
}

func (d *TOTPDevice) Verify(authResp types.OktaUserAuthn) (string, []byte, error) {
	var code string
	var err error

	if d.factor.FactorType == "token:software:totp" && d.secret != "" {
		code, err = TOTP(d.secret, d.now())
		if err != nil {
			return "", nil, err
		}
		log.Debug("Computed TOTP code locally")
	} else {
		code, err = d.userInput.CodeSupplier(d.factor)
		if err != nil {
			return "", nil, err
		}
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

// TOTP computes the RFC 6238 six digit code for a base32 secret at the given
// time, using the standard 30 second step.
func TOTP(secret string, at time.Time) (string, error) {
	normalized := strings.ToUpper(strings.TrimRight(secret, "="))
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized)
	if err != nil {
		return "", fmt.Errorf("decoding TOTP secret: %w", err)
	}

	counter := uint64(at.Unix() / int64(totpStep.Seconds()))
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(buf)
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0xf
	binCode := int64(sum[offset]&0x7f)<<24 |
		int64(sum[offset+1])<<16 |
		int64(sum[offset+2])<<8 |
		int64(sum[offset+3])

	return fmt.Sprintf("%06d", binCode%1000000), nil
}
