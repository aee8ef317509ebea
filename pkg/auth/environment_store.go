package auth

import (
	"os"
	"time"
)

const (
	envToken = "DSCRAPER_TOKEN"
	envAgent = "DSCRAPER_AGENT"
)

// EnvironmentStore is a read-only store over DSCRAPER_TOKEN
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(*Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment token under the requested name, or
// "default" when name is empty
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	token := os.Getenv(envToken)
	if token == "" {
		return nil, ErrCredentialsNotFound
	}
	if name == "" {
		name = "default"
	}
	return &Account{
		Name:         name,
		Token:        token,
		Agent:        os.Getenv(envAgent),
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if the token variable is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(string) bool {
	return os.Getenv(envToken) != ""
}
