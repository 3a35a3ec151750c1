package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"inventrack/internal/domain"
)

// DefaultPath is used when INVENTRACK_CONFIG is unset.
const DefaultPath = "inventrack.yaml"

// marshalIndent and writeFile are used by WriteDefault and Save; tests may replace to force errors.
var (
	marshalIndent = json.MarshalIndent
	marshalYAML   = yaml.Marshal
	writeFile     = os.WriteFile
)

// PathFromEnv returns INVENTRACK_CONFIG or DefaultPath.
func PathFromEnv() string {
	if p := strings.TrimSpace(os.Getenv("INVENTRACK_CONFIG")); p != "" {
		return p
	}
	return DefaultPath
}

// Defaults returns the configuration used for any field left unset.
func Defaults() domain.Config {
	return domain.Config{
		Gateway: domain.GatewayConfig{
			Port:                   8080,
			ExchangeTimeoutSeconds: 60,
			AllowedOrigins:         []string{},
		},
		Agents: domain.AgentsConfig{
			Provider:          "local",
			DefaultModel:      "gemini-2.5-flash",
			MaxSteps:          8,
			TokenizerEncoding: "cl100k_base",
		},
		Database:  domain.DatabaseConfig{URL: "file:inventrack.db"},
		Scheduler: domain.SchedulerConfig{LowStockCron: "*/30 * * * *"},
		Infra:     domain.InfraConfig{LogFormat: "text", LogLevel: "info"},
		Retry: domain.RetryConfig{
			MaxRetries:     3,
			InitialBackoff: 500,
			MaxBackoff:     30000,
			Multiplier:     2,
		},
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func encode(path string, cfg *domain.Config) ([]byte, error) {
	if isYAML(path) {
		return marshalYAML(cfg)
	}
	return marshalIndent(cfg, "", "  ")
}

// WriteDefault writes the default Config to path as YAML or JSON by extension.
func WriteDefault(path string) error {
	cfg := Defaults()
	data, err := encode(path, &cfg)
	if err != nil {
		return err
	}
	return writeFile(path, data, 0644)
}

// Load reads path (YAML or JSON by extension), fills unset fields from
// Defaults, applies environment overrides and validates the result.
func Load(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	var c domain.Config
	if isYAML(path) {
		err = yaml.Unmarshal(data, &c)
	} else {
		err = json.Unmarshal(data, &c)
	}
	if err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	ApplyDefaults(&c)
	ApplyEnv(&c)
	if err := Validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadOrDefault loads path, or returns Defaults with environment overrides
// when the file does not exist.
func LoadOrDefault(path string) (*domain.Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	d := Defaults()
	ApplyEnv(&d)
	if err := Validate(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ApplyDefaults fills zero-valued fields of cfg from Defaults.
func ApplyDefaults(cfg *domain.Config) {
	d := Defaults()
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = d.Gateway.Port
	}
	if cfg.Gateway.ExchangeTimeoutSeconds <= 0 {
		cfg.Gateway.ExchangeTimeoutSeconds = d.Gateway.ExchangeTimeoutSeconds
	}
	if cfg.Agents.Provider == "" {
		cfg.Agents.Provider = d.Agents.Provider
	}
	if cfg.Agents.DefaultModel == "" {
		cfg.Agents.DefaultModel = d.Agents.DefaultModel
	}
	if cfg.Agents.MaxSteps <= 0 {
		cfg.Agents.MaxSteps = d.Agents.MaxSteps
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = d.Database.URL
	}
	if cfg.Infra.LogFormat == "" {
		cfg.Infra.LogFormat = d.Infra.LogFormat
	}
	if cfg.Infra.LogLevel == "" {
		cfg.Infra.LogLevel = d.Infra.LogLevel
	}
	if cfg.Retry.InitialBackoff <= 0 {
		cfg.Retry.InitialBackoff = d.Retry.InitialBackoff
	}
	if cfg.Retry.MaxBackoff <= 0 {
		cfg.Retry.MaxBackoff = d.Retry.MaxBackoff
	}
	if cfg.Retry.Multiplier <= 0 {
		cfg.Retry.Multiplier = d.Retry.Multiplier
	}
}

// ApplyEnv overrides selected fields from INVENTRACK_* environment variables.
func ApplyEnv(cfg *domain.Config) {
	if v := os.Getenv("INVENTRACK_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("INVENTRACK_PROVIDER"); v != "" {
		cfg.Agents.Provider = v
	}
	if v := os.Getenv("INVENTRACK_MODEL"); v != "" {
		cfg.Agents.DefaultModel = v
	}
	if v := os.Getenv("INVENTRACK_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = p
		}
	}
	if v := os.Getenv("INVENTRACK_LOG_LEVEL"); v != "" {
		cfg.Infra.LogLevel = v
	}
}

// Validate reports the first invalid field of cfg.
func Validate(cfg *domain.Config) error {
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		return fmt.Errorf("config: gateway.port %d out of range", cfg.Gateway.Port)
	}
	if _, err := ParseLevel(cfg.Infra.LogLevel); err != nil {
		return fmt.Errorf("config: infra.logLevel: %w", err)
	}
	switch cfg.Infra.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: infra.logFormat must be text or json, got %q", cfg.Infra.LogFormat)
	}
	if cfg.Retry.MaxRetries < 0 {
		return errors.New("config: retry.maxRetries must be >= 0")
	}
	if cfg.Agents.ContextTokens < 0 {
		return errors.New("config: agents.contextTokens must be >= 0")
	}
	return nil
}

// Save writes cfg to path as YAML or JSON by extension.
func Save(path string, cfg *domain.Config) error {
	if cfg == nil {
		return fmt.Errorf("config save: nil config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config save mkdir: %w", err)
	}
	data, err := encode(path, cfg)
	if err != nil {
		return fmt.Errorf("config save marshal: %w", err)
	}
	if err := writeFile(path, data, 0644); err != nil {
		return fmt.Errorf("config save write: %w", err)
	}
	return nil
}
