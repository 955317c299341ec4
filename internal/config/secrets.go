package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	secretOpenAIKey = "openai_api_key"
	secretAPIToken  = "api_token"
)

// ErrSecretNotFound is returned when the secret store has no value for a key.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore keeps credentials outside the plain config file.
type SecretStore interface {
	Get(account string) (string, error)
	Set(account, value string) error
}

// fileSecrets is a JSON map of account to value, readable only by the owner.
type fileSecrets struct {
	path string
}

// NewSecretStore returns the secret store at $XDG_DATA_HOME/simkit/secrets.json.
func NewSecretStore() SecretStore {
	return fileSecrets{path: filepath.Join(defaultDataDir(), "secrets.json")}
}

func (s fileSecrets) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}
	secrets := map[string]string{}
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}

func (s fileSecrets) Get(account string) (string, error) {
	secrets, err := s.read()
	if err != nil {
		return "", err
	}
	v, ok := secrets[account]
	if !ok {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func (s fileSecrets) Set(account, value string) error {
	secrets, err := s.read()
	if err != nil {
		return err
	}
	secrets[account] = value

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, out, 0o600)
}

// GetAPIToken returns the bearer token guarding the HTTP API, generating and
// storing a random one on first use. SIMKIT_API_TOKEN takes precedence.
func GetAPIToken(s SecretStore) (string, error) {
	if tok := os.Getenv("SIMKIT_API_TOKEN"); tok != "" {
		return tok, nil
	}
	tok, err := s.Get(secretAPIToken)
	if err == nil && tok != "" {
		return tok, nil
	}
	if err != nil && !errors.Is(err, ErrSecretNotFound) {
		return "", err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating API token: %w", err)
	}
	tok = hex.EncodeToString(buf)
	if err := s.Set(secretAPIToken, tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}
