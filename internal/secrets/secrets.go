// Package secrets keeps model API keys out of the config file.
package secrets

import (
	"errors"
	"os"
	"strings"
)

// Manager stores and retrieves secrets by name.
type Manager interface {
	// Get returns ErrNotFound when name is unset or empty.
	Get(name string) (string, error)
	// Set overwrites any existing value.
	Set(name, value string) error
	// Delete succeeds when name does not exist.
	Delete(name string) error
	// Names lists stored secret names, sorted.
	Names() ([]string, error)
}

// ErrNotFound is returned when a secret is not found.
var ErrNotFound = errors.New("secrets: not found")

// getenv is os.Getenv; tests may replace it.
var getenv = os.Getenv

// EnvName returns the environment variable consulted for name, so
// "openai_api_key" falls back to OPENAI_API_KEY.
func EnvName(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

// Lookup returns a getter that reads m first and falls back to the
// environment. A nil m reads only the environment.
func Lookup(m Manager) func(name string) (string, error) {
	return func(name string) (string, error) {
		if m != nil {
			v, err := m.Get(name)
			if err == nil {
				return v, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return "", err
			}
		}
		if v := strings.TrimSpace(getenv(EnvName(name))); v != "" {
			return v, nil
		}
		return "", ErrNotFound
	}
}
