// Package oktacreds stores Okta credentials in the OS keychain so the
// password doesn't have to live in the config file.
package oktacreds

import (
	"encoding/json"
	"fmt"

	"github.com/99designs/keyring"
	log "github.com/sirupsen/logrus"
)

// changing any of these will break keyring compatibility
const (
	keyringServiceName             = "gp-okta"
	keyringLibSecretCollectionName = "gp-okta"
	keyringFileDir                 = "~/.gp-okta/"
)

// Creds is what gets serialized into the keyring, one entry per Okta domain.
type Creds struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Keyring struct {
	BackendType      string
	FilePasswordFunc func(prompt string) (string, error)

	keyring keyring.Keyring
}

// Open may be called implicitly by Put/Get. After Open, BackendType and
// FilePasswordFunc must not be changed.
func (k *Keyring) Open() error {
	var allowedBackends []keyring.BackendType
	if k.BackendType != "" {
		allowedBackends = append(allowedBackends, keyring.BackendType(k.BackendType))
	}

	kr, err := keyring.Open(keyring.Config{
		AllowedBackends:          allowedBackends,
		KeychainTrustApplication: true,
		ServiceName:              keyringServiceName,
		LibSecretCollectionName:  keyringLibSecretCollectionName,
		FileDir:                  keyringFileDir,
		FilePasswordFunc:         k.FilePasswordFunc,
	})
	if err != nil {
		return err
	}
	k.keyring = kr
	return nil
}

func (k *Keyring) Put(domain string, creds Creds) error {
	if k.keyring == nil {
		if err := k.Open(); err != nil {
			return fmt.Errorf("opening keyring: %w", err)
		}
	}
	encoded, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshalling creds: %w", err)
	}

	return k.keyring.Set(keyring.Item{
		Key:   domain,
		Data:  encoded,
		Label: fmt.Sprintf("Okta credentials (%s)", domain),
	})
}

func (k *Keyring) Get(domain string) (Creds, error) {
	if k.keyring == nil {
		if err := k.Open(); err != nil {
			return Creds{}, fmt.Errorf("opening keyring: %w", err)
		}
	}

	item, err := k.keyring.Get(domain)
	if err != nil {
		return Creds{}, fmt.Errorf("getting %s from keyring: %w", domain, err)
	}

	var creds Creds
	if err = json.Unmarshal(item.Data, &creds); err != nil {
		return Creds{}, fmt.Errorf("unmarshalling okta creds: %w", err)
	}

	log.Debugf("Loaded keyring credentials for %s", domain)
	return creds, nil
}
