package secrets

import (
	"errors"
	"testing"
)

type mapManager map[string]string

func (m mapManager) Get(name string) (string, error) {
	if v, ok := m[name]; ok {
		return v, nil
	}
	return "", ErrNotFound
}
func (m mapManager) Set(name, value string) error { m[name] = value; return nil }
func (m mapManager) Delete(name string) error     { delete(m, name); return nil }
func (m mapManager) Names() ([]string, error)     { return nil, nil }

type brokenManager struct{ mapManager }

func (brokenManager) Get(string) (string, error) { return "", errors.New("decrypt failed") }

func TestEnvName(t *testing.T) {
	tests := map[string]string{
		"openai_api_key": "OPENAI_API_KEY",
		"gemini_api_key": "GEMINI_API_KEY",
		"turso-token":    "TURSO_TOKEN",
		"a.b":            "A_B",
	}
	for in, want := range tests {
		if got := EnvName(in); got != want {
			t.Errorf("EnvName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLookup_ShouldPreferStoreThenEnvironment(t *testing.T) {
	orig := getenv
	t.Cleanup(func() { getenv = orig })
	getenv = func(k string) string {
		if k == "GEMINI_API_KEY" {
			return " env-gemini "
		}
		return ""
	}
	get := Lookup(mapManager{"openai_api_key": "stored-openai"})

	if v, err := get("openai_api_key"); err != nil || v != "stored-openai" {
		t.Errorf("openai = %q, %v", v, err)
	}
	if v, err := get("gemini_api_key"); err != nil || v != "env-gemini" {
		t.Errorf("gemini = %q, %v", v, err)
	}
	if _, err := get("openrouter_api_key"); !errors.Is(err, ErrNotFound) {
		t.Errorf("openrouter err = %v, want ErrNotFound", err)
	}
}

func TestLookup_WhenStoreFails_ShouldNotFallBack(t *testing.T) {
	orig := getenv
	t.Cleanup(func() { getenv = orig })
	getenv = func(string) string { return "env-value" }

	if _, err := Lookup(brokenManager{})("openai_api_key"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected the store error, got %v", err)
	}
}

func TestLookup_WhenManagerNil_ShouldReadEnvironmentOnly(t *testing.T) {
	orig := getenv
	t.Cleanup(func() { getenv = orig })
	getenv = func(k string) string {
		if k == "OPENAI_API_KEY" {
			return "sk-env"
		}
		return ""
	}
	if v, err := Lookup(nil)("openai_api_key"); err != nil || v != "sk-env" {
		t.Errorf("got %q, %v", v, err)
	}
}
