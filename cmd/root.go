package cmd

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"

	"github.com/alessio/shellescape"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/net/publicsuffix"

	"github.com/openconnect-tools/gp-okta/lib"
	"github.com/openconnect-tools/gp-okta/lib/client"
	"github.com/openconnect-tools/gp-okta/lib/client/mfa"
	"github.com/openconnect-tools/gp-okta/lib/keyrings/oktacreds"
	"github.com/openconnect-tools/gp-okta/lib/saml"
	"github.com/openconnect-tools/gp-okta/lib/supervisor"
)

const httpTimeout = 60 * time.Second

// Errors returned from frontend commands
var (
	ErrNoGateway        = errors.New("no gateway provided")
	ErrTooManyArguments = errors.New("too many arguments")
)

// global flags
var (
	debug      bool
	backend    string
	configFile string

	flagUsername    string
	flagPassword    string
	flagPasswordCmd string
	flagTOTPKey     string
	flagTOTPKeyCmd  string
	flagSudo        bool
	flagPriorities  map[string]int
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:           "gp-okta [flags] <gateway> [-- <openconnect args>]",
	Short:         "gp-okta connects to a GlobalProtect VPN gateway with Okta credentials",
	Example:       "  gp-okta vpn.example.com -- --timestamp",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          connectRun,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.WarnLevel)
		}

		// Load backend from env var if not set as a flag
		if !cmd.Flags().Lookup("backend").Changed {
			if backendFromEnv, ok := os.LookupEnv("GP_OKTA_BACKEND"); ok {
				backend = backendFromEnv
			}
		}
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	RootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "", "keyring backend to use")
	RootCmd.Flags().StringVar(&configFile, "config", "", "config file (default ~/.config/gp-okta/config)")
	RootCmd.Flags().StringVar(&flagUsername, "username", "", "Okta username")
	RootCmd.Flags().StringVar(&flagPassword, "password", "", "Okta password")
	RootCmd.Flags().StringVar(&flagPasswordCmd, "password-cmd", "", "command whose first line of output is the Okta password")
	RootCmd.Flags().StringVar(&flagTOTPKey, "totp-key", "", "shared TOTP secret for token:software:totp")
	RootCmd.Flags().StringVar(&flagTOTPKeyCmd, "totp-key-cmd", "", "command whose first line of output is the TOTP secret")
	RootCmd.Flags().BoolVar(&flagSudo, "sudo", false, "run openconnect through sudo")
	RootCmd.Flags().StringToIntVar(&flagPriorities, "factor-priority", nil, "factor type priority override, e.g. sms=3")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once from main.
func Execute(version string) {
	RootCmd.Version = version
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func connectRun(cmd *cobra.Command, args []string) error {
	gatewayArgs, passthrough := splitAtDash(cmd, args)
	if len(gatewayArgs) > 1 {
		return ErrTooManyArguments
	}

	cfg, err := loadMergedConfig(gatewayArgs, passthrough)
	if err != nil {
		return err
	}
	if cfg.Gateway == "" {
		return ErrNoGateway
	}

	if cfg.TOTPKeyCmd != "" {
		if cfg.TOTPKey, err = lib.RunSecretCommand(cfg.TOTPKeyCmd, "TOTP"); err != nil {
			return err
		}
	}

	httpClient, err := newHTTPClient()
	if err != nil {
		return err
	}

	flow := saml.NewFlow(httpClient, cfg.Gateway)
	samlReqURL, err := flow.Prelogin()
	if err != nil {
		return err
	}

	domain, err := saml.Domain(samlReqURL)
	if err != nil {
		return err
	}
	log.Debugf("Identity provider: %s", domain)

	username, password, err := resolveCredentials(cfg, domain)
	if err != nil {
		return err
	}

	oktaClient, err := client.NewOktaClient(client.OktaCredential{
		Domain:           domain,
		Username:         username,
		Password:         password,
		TOTPSecret:       cfg.TOTPKey,
		FactorPriorities: cfg.EffectivePriorities(),
	}, httpClient, lib.TerminalInputs{}, &mfa.U2FHostAuthenticator{}, lib.TerminalInteraction{})
	if err != nil {
		return err
	}

	respURL, fields, err := flow.Authenticate(oktaClient, samlReqURL)
	if err != nil {
		return err
	}

	cred, err := flow.Complete(respURL, fields)
	if err != nil {
		return err
	}

	command, commandArgs := openconnectCommand(cfg, cred)
	log.Debugf("Running %s", shellescape.QuoteCommand(append([]string{command}, commandArgs...)))

	sup := &supervisor.Supervisor{Command: command, Args: commandArgs}
	code, err := sup.Run(func(stdin io.Writer) error {
		_, werr := io.WriteString(stdin, cred.PreloginCookie)
		return werr
	})
	if err != nil {
		return err
	}
	os.Exit(code)
	return nil
}

// splitAtDash separates positional args from the openconnect pass-through
// part after --.
func splitAtDash(cmd *cobra.Command, args []string) ([]string, []string) {
	dashIx := cmd.ArgsLenAtDash()
	if dashIx == -1 {
		return args, nil
	}
	return args[:dashIx], args[dashIx:]
}

func loadMergedConfig(gatewayArgs, passthrough []string) (*lib.Config, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = lib.DefaultConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg, err := lib.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	flagCfg := &lib.Config{
		Username:         flagUsername,
		Password:         flagPassword,
		PasswordCmd:      flagPasswordCmd,
		TOTPKey:          flagTOTPKey,
		TOTPKeyCmd:       flagTOTPKeyCmd,
		Sudo:             flagSudo,
		FactorPriorities: flagPriorities,
		OpenConnectArgs:  passthrough,
	}
	if len(gatewayArgs) == 1 {
		flagCfg.Gateway = gatewayArgs[0]
	}
	cfg.Merge(flagCfg)
	return cfg, nil
}

// resolveCredentials settles the username and password from, in order:
// config, helper command, OS keyring, interactive prompt.
func resolveCredentials(cfg *lib.Config, domain string) (string, string, error) {
	username := cfg.Username
	password := cfg.Password

	if password == "" && cfg.PasswordCmd != "" {
		var err error
		if password, err = lib.RunSecretCommand(cfg.PasswordCmd, "Password"); err != nil {
			return "", "", err
		}
	}

	if username == "" || password == "" {
		kr := &oktacreds.Keyring{BackendType: backend, FilePasswordFunc: keyringFilePassword}
		if creds, err := kr.Get(domain); err == nil {
			if username == "" {
				username = creds.Username
			}
			if password == "" {
				password = creds.Password
			}
		} else {
			log.Debugf("No keyring credentials for %s: %s", domain, err)
		}
	}

	var err error
	if username == "" {
		if username, err = lib.Prompt("Username", false); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		if password, err = lib.Prompt("Password", true); err != nil {
			return "", "", err
		}
	}
	return username, password, nil
}

func keyringFilePassword(prompt string) (string, error) {
	return lib.Prompt(prompt, true)
}

// newHTTPClient builds the client shared by the Okta and gateway calls: one
// cookie jar for both sides, and client-initiated TLS renegotiation allowed
// because some GlobalProtect gateways require it.
func newHTTPClient() (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSHandshakeTimeout: httpTimeout,
			TLSClientConfig: &tls.Config{
				Renegotiation: tls.RenegotiateOnceAsClient,
			},
		},
		Timeout: httpTimeout,
		Jar:     jar,
	}, nil
}

// openconnectCommand assembles the VPN client invocation. The prelogin
// cookie is deliberately absent: it travels over stdin.
func openconnectCommand(cfg *lib.Config, cred *saml.GatewayCredential) (string, []string) {
	args := []string{
		cfg.Gateway,
		"--protocol=gp",
		"--user=" + cred.Username,
		"--usergroup=gateway:prelogin-cookie",
		"--passwd-on-stdin",
	}
	args = append(args, cfg.OpenConnectArgs...)

	if cfg.Sudo {
		return "sudo", append([]string{"openconnect"}, args...)
	}
	return "openconnect", args
}
