package lib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[common]
gateway = vpn.example.com
username = john
password-cmd = pass show vpn
totp-key = GEZDGNBVGY3TQOJQ
sudo = true
openconnect-args = --timestamp --no-dtls

[factor-priority]
sms = 3
push = -1
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "vpn.example.com", cfg.Gateway)
	assert.Equal(t, "john", cfg.Username)
	assert.Equal(t, "pass show vpn", cfg.PasswordCmd)
	assert.Equal(t, "GEZDGNBVGY3TQOJQ", cfg.TOTPKey)
	assert.True(t, cfg.Sudo)
	assert.Equal(t, []string{"--timestamp", "--no-dtls"}, cfg.OpenConnectArgs)
	assert.Equal(t, map[string]int{"sms": 3, "push": -1}, cfg.FactorPriorities)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Gateway)
}

func TestLoadConfigBadPriority(t *testing.T) {
	path := writeConfig(t, "[factor-priority]\nsms = high\n")

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestMergeFlagsWin(t *testing.T) {
	cfg := &Config{
		Gateway:          "vpn.example.com",
		Username:         "john",
		FactorPriorities: map[string]int{"sms": 3},
		OpenConnectArgs:  []string{"--timestamp"},
	}

	cfg.Merge(&Config{
		Username:         "jane",
		FactorPriorities: map[string]int{"sms": 5, "push": 2},
		OpenConnectArgs:  []string{"--no-dtls"},
	})

	assert.Equal(t, "vpn.example.com", cfg.Gateway)
	assert.Equal(t, "jane", cfg.Username)
	assert.Equal(t, map[string]int{"sms": 5, "push": 2}, cfg.FactorPriorities)
	// file args first, flag args appended
	assert.Equal(t, []string{"--timestamp", "--no-dtls"}, cfg.OpenConnectArgs)
}

func TestEffectivePrioritiesDefaults(t *testing.T) {
	cfg := &Config{FactorPriorities: map[string]int{}}

	pri := cfg.EffectivePriorities()
	assert.Equal(t, 0, pri["token:software:totp"])
	assert.Equal(t, 1, pri["push"])
}

func TestEffectivePrioritiesTOTPKeyPromotesTOTP(t *testing.T) {
	cfg := &Config{TOTPKey: "GEZDGNBVGY3TQOJQ", FactorPriorities: map[string]int{}}

	pri := cfg.EffectivePriorities()
	assert.Equal(t, 2, pri["token:software:totp"])
}

func TestEffectivePrioritiesOverridesWin(t *testing.T) {
	cfg := &Config{
		TOTPKey:          "GEZDGNBVGY3TQOJQ",
		FactorPriorities: map[string]int{"token:software:totp": 0, "sms": 9},
	}

	pri := cfg.EffectivePriorities()
	assert.Equal(t, 0, pri["token:software:totp"])
	assert.Equal(t, 9, pri["sms"])
	assert.Equal(t, 1, pri["push"])
}

func TestRunSecretCommand(t *testing.T) {
	out, err := RunSecretCommand("echo s3cret", "Password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", out)
}

func TestRunSecretCommandFirstLineWins(t *testing.T) {
	out, err := RunSecretCommand("printf 'line1\\nline2\\n'", "Password")
	require.NoError(t, err)
	assert.Equal(t, "line1", out)
}

func TestRunSecretCommandFailure(t *testing.T) {
	_, err := RunSecretCommand("exit 4", "Password")
	assert.Error(t, err)
}

func TestRunSecretCommandEmptyOutput(t *testing.T) {
	_, err := RunSecretCommand("true", "Password")
	assert.Error(t, err)
}
