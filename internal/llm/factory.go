package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inventrack/internal/domain"
	"inventrack/internal/retry"
)

// defaultCooldownDuration is the time a rate-limited key stays in cooldown.
const defaultCooldownDuration = 60 * time.Second

// SecretGetter returns a secret by name. Used to resolve API keys.
type SecretGetter func(name string) (string, error)

// SecretName returns the secret holding the API key for provider, or ""
// when the provider needs none.
func SecretName(provider string) string {
	switch provider {
	case "openai", "openrouter", "gemini":
		return provider + "_api_key"
	}
	return ""
}

// NewChatModel returns the ChatModel for the given agents config, wrapped with
// retry logic when retryCfg allows retries. Provider may be "local",
// "openai", "openrouter", "ollama" or "gemini"; empty means "local".
func NewChatModel(ctx context.Context, agents *domain.AgentsConfig, getSecret SecretGetter, retryCfg *domain.RetryConfig) (domain.ChatModel, error) {
	base, err := newBaseModel(ctx, agents, getSecret)
	if err != nil {
		return nil, err
	}
	return wrapWithRetry(base, retryCfg), nil
}

func newBaseModel(ctx context.Context, agents *domain.AgentsConfig, getSecret SecretGetter) (domain.ChatModel, error) {
	if agents == nil {
		return NewLocalModel(""), nil
	}
	provider := agents.Provider
	if provider == "" {
		provider = "local"
	}
	switch provider {
	case "local":
		return NewLocalModel(""), nil
	case "openai":
		return resolveKeyedModel("openai", SecretName("openai"), getSecret, func(key string) (domain.ChatModel, error) {
			return NewOpenAIModel(key, agents.DefaultModel, agents.BaseURL), nil
		})
	case "openrouter":
		return resolveKeyedModel("openrouter", SecretName("openrouter"), getSecret, func(key string) (domain.ChatModel, error) {
			return NewOpenAIModel(key, agents.DefaultModel, orDefault(agents.BaseURL, openRouterBaseURL)), nil
		})
	case "ollama":
		return NewOpenAIModel("ollama", agents.DefaultModel, orDefault(agents.BaseURL, ollamaBaseURL)), nil
	case "gemini":
		return resolveKeyedModel("gemini", SecretName("gemini"), getSecret, func(key string) (domain.ChatModel, error) {
			m, err := NewGeminiModel(ctx, key, agents.DefaultModel)
			if err != nil {
				return nil, err
			}
			return m, nil
		})
	default:
		return nil, fmt.Errorf("unknown model provider %q (use: local, openai, openrouter, ollama, gemini)", provider)
	}
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// splitKeys splits a raw secret value by commas, trims whitespace, and filters empty entries.
func splitKeys(raw string) []string {
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

// resolveKeyedModel fetches the secret and returns a single model for one key
// or a KeyPoolModel for several comma-separated keys.
func resolveKeyedModel(providerName, secretName string, getSecret SecretGetter, makeModel func(key string) (domain.ChatModel, error)) (domain.ChatModel, error) {
	if getSecret == nil {
		return nil, fmt.Errorf("%s provider: no secret source configured", providerName)
	}
	raw, err := getSecret(secretName)
	if err != nil {
		return nil, fmt.Errorf("%s provider: %w", providerName, err)
	}
	keys := splitKeys(raw)
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s provider: API key not set (store with: inventrack secrets set %s <key>)", providerName, secretName)
	}
	models := make([]domain.ChatModel, len(keys))
	for i, k := range keys {
		m, err := makeModel(k)
		if err != nil {
			return nil, fmt.Errorf("%s provider: %w", providerName, err)
		}
		models[i] = m
	}
	if len(models) == 1 {
		return models[0], nil
	}
	pool, err := NewKeyPool(keys, defaultCooldownDuration)
	if err != nil {
		return nil, fmt.Errorf("%s key pool: %w", providerName, err)
	}
	kpm, err := NewKeyPoolModel(pool, models)
	if err != nil {
		return nil, fmt.Errorf("%s key pool: %w", providerName, err)
	}
	return kpm, nil
}

// NewFallbackModels creates models for each fallback entry. Entries that
// fail to build are logged and skipped.
func NewFallbackModels(ctx context.Context, logger *slog.Logger, fallbacks []domain.FallbackConfig, getSecret SecretGetter, retryCfg *domain.RetryConfig) []domain.ChatModel {
	if logger == nil {
		logger = slog.Default()
	}
	var models []domain.ChatModel
	for _, fb := range fallbacks {
		cfg := &domain.AgentsConfig{Provider: fb.Provider, DefaultModel: fb.DefaultModel, BaseURL: fb.BaseURL}
		m, err := NewChatModel(ctx, cfg, getSecret, retryCfg)
		if err != nil {
			logger.Warn("fallback model skipped", "provider", fb.Provider, "error", err)
			continue
		}
		models = append(models, m)
	}
	return models
}

// wrapWithRetry decorates a model with retry logic when config is supplied.
func wrapWithRetry(model domain.ChatModel, rc *domain.RetryConfig) domain.ChatModel {
	if rc == nil || rc.MaxRetries <= 0 {
		return model
	}
	cfg := retry.Config{
		MaxRetries:     rc.MaxRetries,
		InitialBackoff: time.Duration(rc.InitialBackoff) * time.Millisecond,
		MaxBackoff:     time.Duration(rc.MaxBackoff) * time.Millisecond,
		Multiplier:     float64(rc.Multiplier),
	}
	if err := cfg.Validate(); err != nil {
		cfg = retry.DefaultConfig()
		cfg.MaxRetries = rc.MaxRetries
	}
	return retry.NewRetryableModel(model, cfg)
}
