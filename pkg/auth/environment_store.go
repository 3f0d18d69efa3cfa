package auth

import (
	"os"
	"time"
)

// APIKeyEnv is the environment variable holding the Magic Eden API key
const APIKeyEnv = "MAGIC_EDEN_API_KEY"

// EnvironmentStore implements CredentialStore as a read-only view of
// APIKeyEnv
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve returns the key from the environment under any name
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	key := os.Getenv(APIKeyEnv)
	if key == "" {
		return nil, ErrCredentialsNotFound
	}

	if name == "" {
		name = DefaultName
	}

	return &Credential{
		Name:         name,
		APIKey:       key,
		LastModified: time.Time{},
	}, nil
}

// List returns a single credential if the variable is set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if the variable is set
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv(APIKeyEnv) != ""
}
