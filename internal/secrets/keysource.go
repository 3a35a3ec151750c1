package secrets

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// PassphraseEnv overrides the machine-id derived key.
const PassphraseEnv = "INVENTRACK_SECRETS_PASSPHRASE"

const (
	machineIDPath = "/etc/machine-id"
	keyDomain     = "inventrack-secrets-v1"
	appDirName    = "inventrack"
	storeFileName = ".secrets"
)

var errEmptyMachineID = errors.New("secrets: machine-id is empty")

// Hooks for tests.
var (
	keySourceReadFile      = os.ReadFile
	keySourceUserConfigDir = os.UserConfigDir
	keySourceMkdirAll      = os.MkdirAll
)

// DefaultKeySource derives the 32-byte file key. A non-empty PassphraseEnv
// wins; otherwise the machine id is used so the file only opens on this host.
func DefaultKeySource() ([]byte, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return DeriveKeyFromPassphrase(pass), nil
	}
	id, err := machineID()
	if err != nil {
		return nil, err
	}
	return DeriveKeyFromPassphrase(id), nil
}

func machineID() (string, error) {
	raw, err := keySourceReadFile(machineIDPath)
	if err != nil {
		return "", fmt.Errorf("secrets: no key material (export %s or provide %s): %w", PassphraseEnv, machineIDPath, err)
	}
	line, _, _ := bytes.Cut(raw, []byte("\n"))
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return "", errEmptyMachineID
	}
	return string(line), nil
}

// DeriveKeyFromPassphrase hashes passphrase into an AES-256 key.
func DeriveKeyFromPassphrase(passphrase string) []byte {
	sum := sha256.Sum256([]byte(keyDomain + passphrase))
	return sum[:]
}

// SecretsDir returns the per-user inventrack config directory, creating it
// owner-only when missing.
func SecretsDir() (string, error) {
	base, err := keySourceUserConfigDir()
	if err != nil {
		return "", fmt.Errorf("secrets: locate config dir: %w", err)
	}
	dir := filepath.Join(base, appDirName)
	if err := keySourceMkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("secrets: create %s: %w", dir, err)
	}
	return dir, nil
}

// DefaultSecretsPath is where the CLI and the server keep provider keys.
func DefaultSecretsPath() (string, error) {
	dir, err := SecretsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, storeFileName), nil
}
