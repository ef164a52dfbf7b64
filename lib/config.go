package lib

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	ini "gopkg.in/ini.v1"
)

const totpFactorType = "token:software:totp"

// Config is the merged configuration for one run: ini file first, command
// line flags over it.
type Config struct {
	Gateway     string
	Username    string
	Password    string
	PasswordCmd string
	TOTPKey     string
	TOTPKeyCmd  string
	Sudo        bool

	// FactorPriorities holds explicit overrides only; EffectivePriorities
	// folds in the defaults.
	FactorPriorities map[string]int

	// OpenConnectArgs are passed through to the VPN client verbatim.
	OpenConnectArgs []string
}

// DefaultConfigPath is ~/.config/gp-okta/config, used when --config is not
// given. A missing file is not an error.
func DefaultConfigPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, ".config", "gp-okta", "config"), nil
}

// LoadConfig reads the ini file at path. An empty path or absent file yields
// an empty config.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{FactorPriorities: map[string]int{}}
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	log.Debugf("Parsing config file %s", path)
	file, err := ini.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing config file %q", path)
	}

	common := file.Section("common")
	cfg.Gateway = common.Key("gateway").String()
	cfg.Username = common.Key("username").String()
	cfg.Password = common.Key("password").String()
	cfg.PasswordCmd = common.Key("password-cmd").String()
	cfg.TOTPKey = common.Key("totp-key").String()
	cfg.TOTPKeyCmd = common.Key("totp-key-cmd").String()
	cfg.Sudo = common.Key("sudo").MustBool(false)
	if args := common.Key("openconnect-args").String(); args != "" {
		cfg.OpenConnectArgs = strings.Fields(args)
	}

	if file.HasSection("factor-priority") {
		for _, key := range file.Section("factor-priority").Keys() {
			priority, err := key.Int()
			if err != nil {
				return nil, errors.Wrapf(err, "factor-priority %q", key.Name())
			}
			cfg.FactorPriorities[key.Name()] = priority
		}
	}
	return cfg, nil
}

// Merge lays flag values over the file config. Pass-through args accumulate
// instead of replacing, file args first.
func (c *Config) Merge(flags *Config) {
	if flags.Gateway != "" {
		c.Gateway = flags.Gateway
	}
	if flags.Username != "" {
		c.Username = flags.Username
	}
	if flags.Password != "" {
		c.Password = flags.Password
	}
	if flags.PasswordCmd != "" {
		c.PasswordCmd = flags.PasswordCmd
	}
	if flags.TOTPKey != "" {
		c.TOTPKey = flags.TOTPKey
	}
	if flags.TOTPKeyCmd != "" {
		c.TOTPKeyCmd = flags.TOTPKeyCmd
	}
	if flags.Sudo {
		c.Sudo = true
	}
	for factorType, priority := range flags.FactorPriorities {
		c.FactorPriorities[factorType] = priority
	}
	c.OpenConnectArgs = append(c.OpenConnectArgs, flags.OpenConnectArgs...)
}

// EffectivePriorities merges the default factor ranking with the configured
// overrides. The software TOTP factor outranks push only when a shared
// secret is available to answer it without prompting.
func (c *Config) EffectivePriorities() map[string]int {
	priorities := map[string]int{
		totpFactorType: 0,
		"push":         1,
	}
	if c.TOTPKey != "" {
		priorities[totpFactorType] = 2
	}
	for factorType, priority := range c.FactorPriorities {
		priorities[factorType] = priority
	}
	return priorities
}

// RunSecretCommand executes a configured helper command ("password-cmd",
// "totp-key-cmd") and returns the first line of its stdout.
func RunSecretCommand(cmdline string, what string) (string, error) {
	cmd := exec.Command("sh", "-c", cmdline)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Errorf("%s command failed: %s", what, err)
		if stderr.Len() > 0 {
			log.Error(stderr.String())
		}
		return "", errors.Wrapf(err, "%s command", what)
	}

	lines := strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
	if lines[0] == "" {
		return "", errors.Errorf("%s command produced no output", what)
	}
	if len(lines) > 1 {
		log.Warnf("%s command produced more than one line of output, using the first one", what)
	}
	return lines[0], nil
}
