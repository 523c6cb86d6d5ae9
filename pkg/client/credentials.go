package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Credentials is the token pair stored after a successful login. The
// CLI analog of the browser keeping the token in local storage.
type Credentials struct {
	ServerURL    string    `json:"server_url"`
	Username     string    `json:"username"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ObtainedAt   time.Time `json:"obtained_at"`
}

// CredentialStore reads and writes the credentials file.
type CredentialStore struct {
	path string
}

// DefaultCredentialStore stores credentials under the user config dir
// (~/.config/agrisense/credentials on Linux).
func DefaultCredentialStore() (*CredentialStore, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("locate config dir: %w", err)
	}
	return NewCredentialStore(filepath.Join(configDir, "agrisense", "credentials")), nil
}

// NewCredentialStore creates a store backed by the given file path.
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// Load returns the stored credentials, or nil if none are stored.
func (s *CredentialStore) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return &creds, nil
}

// Save writes the credentials with owner-only permissions.
func (s *CredentialStore) Save(creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Clear removes the stored credentials.
func (s *CredentialStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

// Path returns the credentials file location.
func (s *CredentialStore) Path() string {
	return s.path
}
