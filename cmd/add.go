package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openconnect-tools/gp-okta/lib"
	"github.com/openconnect-tools/gp-okta/lib/keyrings/oktacreds"
)

var ErrFailedToSetCredentials = errors.New("failed to set credentials in your keyring")

// addCmd represents the add command
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "add your Okta credentials to the keyring",
	RunE:  add,
}

func init() {
	RootCmd.AddCommand(addCmd)
}

func add(cmd *cobra.Command, args []string) error {
	domain, err := lib.Prompt("Okta domain (e.g. example.okta.com)", false)
	if err != nil {
		return err
	}

	username, err := lib.Prompt("Okta username", false)
	if err != nil {
		return err
	}

	password, err := lib.Prompt("Okta password", true)
	if err != nil {
		return err
	}

	kr := &oktacreds.Keyring{BackendType: backend, FilePasswordFunc: keyringFilePassword}
	if err := kr.Put(domain, oktacreds.Creds{Username: username, Password: password}); err != nil {
		return ErrFailedToSetCredentials
	}

	fmt.Printf("Added credentials for user %s\n", username)
	return nil
}
