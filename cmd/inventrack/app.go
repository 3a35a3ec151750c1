package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"inventrack/internal/agent"
	"inventrack/internal/config"
	"inventrack/internal/db"
	"inventrack/internal/domain"
	"inventrack/internal/inventory"
	"inventrack/internal/llm"
	"inventrack/internal/secrets"
	"inventrack/internal/tokenizer"
	"inventrack/internal/tooling"
	"inventrack/internal/window"
)

// Function variables for dependency injection in tests.
var (
	loadConfig  = config.LoadOrDefault
	openStore   = db.OpenStore
	openSecrets = func() (secrets.Manager, error) { return secrets.DefaultManager() }
	newModel    = buildModel
)

// app is the wired core shared by serve and chat.
type app struct {
	cfg     *domain.Config
	logger  *slog.Logger
	level   *slog.LevelVar
	store   *inventory.SQLStore
	conn    *sql.DB
	service *inventory.Service
	agent   *agent.Agent
}

// loadApp loads the config and builds a logger writing to logOut.
func loadApp(path string, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	logger, level := config.NewLogger(cfg.Infra, logOut)
	return &app{cfg: cfg, logger: logger, level: level}, nil
}

// openData connects the store and the inventory service.
func (a *app) openData(ctx context.Context) error {
	store, conn, err := openStore(ctx, a.cfg.Database.URL)
	if err != nil {
		return err
	}
	a.store, a.conn = store, conn
	a.service = inventory.NewService(store, inventory.WithLogger(a.logger))
	return nil
}

// openAgent builds the model chain and the agent over the full tool registry.
// openData must have run.
func (a *app) openAgent(ctx context.Context) error {
	model, err := newModel(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	opts := []agent.Option{
		agent.WithLogger(a.logger),
		agent.WithMaxSteps(a.cfg.Agents.MaxSteps),
	}
	if enc := a.cfg.Agents.TokenizerEncoding; enc != "" {
		tk, err := tokenizer.NewTikToken(enc)
		if err != nil {
			a.logger.Warn("tokenizer unavailable, prompt sizes not logged", "encoding", enc, "error", err)
		} else {
			opts = append(opts, agent.WithTokenizer(tk))
			if n := a.cfg.Agents.ContextTokens; n > 0 {
				opts = append(opts, agent.WithHistoryFitter(window.New(tk, n)))
			}
		}
	}
	a.agent = agent.New(model, tooling.NewInventoryRegistry(a.service), opts...)
	return nil
}

func (a *app) Close() error {
	if a.conn == nil {
		return nil
	}
	return a.conn.Close()
}

// buildModel returns the configured provider with its fallbacks behind a
// failover chain. Keys come from the secrets file, then the environment.
func buildModel(ctx context.Context, cfg *domain.Config, logger *slog.Logger) (domain.ChatModel, error) {
	var mgr secrets.Manager
	if m, err := openSecrets(); err != nil {
		logger.Debug("secrets file unavailable, using environment", "error", err)
	} else {
		mgr = m
	}
	get := secrets.Lookup(mgr)
	primary, err := llm.NewChatModel(ctx, &cfg.Agents, get, &cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	fallbacks := llm.NewFallbackModels(ctx, logger, cfg.Agents.Fallbacks, get, &cfg.Retry)
	return llm.NewFailover(logger, primary, fallbacks...), nil
}
