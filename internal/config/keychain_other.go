//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Without a system keychain, secrets are kept in secrets.json in the data
// dir, keyed by account: {"llm_api_key": "...", "server_token": "..."}.
// The file belongs to partsbin alone, so the service name is not stored.
func secretsFilePath() string {
	return filepath.Join(defaultDataDir(), "secrets.json")
}

func readSecrets(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	secrets := map[string]string{}
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return secrets, nil
}

func keychainGet(_, account string) ([]byte, error) {
	path := secretsFilePath()
	secrets, err := readSecrets(path)
	if err != nil {
		return nil, fmt.Errorf("secrets file not available: %w", err)
	}
	v, ok := secrets[account]
	if !ok {
		return nil, fmt.Errorf("%s not set in %s", account, path)
	}
	return []byte(v), nil
}

// keychainSet stores value for account. An empty value removes it.
func keychainSet(_, account, value string) error {
	path := secretsFilePath()
	secrets, err := readSecrets(path)
	if errors.Is(err, fs.ErrNotExist) {
		secrets, err = map[string]string{}, nil
	}
	if err != nil {
		return err
	}
	if value == "" {
		delete(secrets, account)
	} else {
		secrets[account] = value
	}
	return writeJSONFile(path, secrets)
}
