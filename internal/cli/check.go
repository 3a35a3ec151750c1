// Package cli implements the operator health check behind `inventrack check`.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"inventrack/internal/config"
	"inventrack/internal/db"
	"inventrack/internal/domain"
	"inventrack/internal/llm"
	"inventrack/internal/scheduler"
	"inventrack/internal/secrets"
	"inventrack/internal/security"
)

const dbCheckTimeout = 5 * time.Second

// Function variables for dependency injection in tests.
var (
	configLoad         = config.Load
	configWriteDefault = config.WriteDefault
	dbConnect          = db.Connect
	secretsPath        = secrets.DefaultSecretsPath
	checkPrivateFile   = security.CheckPrivateFile
	requireNonRoot     = security.RequireNonRoot
	chmod              = os.Chmod
	secretLookup       = func() func(string) (string, error) {
		m, err := secrets.DefaultManager()
		if err != nil {
			return secrets.Lookup(nil)
		}
		return secrets.Lookup(m)
	}
)

// CheckOptions holds options for the check command.
type CheckOptions struct {
	// ConfigPath defaults to config.PathFromEnv.
	ConfigPath string
	// Fix writes a default config when missing and tightens the secrets
	// file mode.
	Fix bool
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name    string
	Status  string // "pass", "warn", "fail"
	Message string
}

type checker struct {
	opts    CheckOptions
	stdout  io.Writer
	stderr  io.Writer
	results []CheckResult
}

func (c *checker) add(name, status, format string, args ...any) {
	c.results = append(c.results, CheckResult{Name: name, Status: status, Message: fmt.Sprintf(format, args...)})
}

// RunCheck verifies config, database, model keys, the low-stock schedule and
// the secrets file. Returns 1 when any check fails.
func RunCheck(ctx context.Context, opts CheckOptions, stdout, stderr io.Writer) int {
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.PathFromEnv()
	}
	c := &checker{opts: opts, stdout: stdout, stderr: stderr}

	fmt.Fprintf(stdout, "Running inventrack checks...\n\n")
	cfg := c.checkConfig()
	if cfg != nil {
		c.checkDatabase(ctx, cfg.Database.URL)
		c.checkModels(cfg.Agents)
		c.checkSchedule(cfg.Scheduler.LowStockCron)
	}
	c.checkSecretsFile()
	c.checkUser()
	return c.summary()
}

func (c *checker) checkConfig() *domain.Config {
	path := c.opts.ConfigPath
	cfg, err := configLoad(path)
	switch {
	case err == nil:
		c.add("Config", "pass", "loaded %s (port %d)", path, cfg.Gateway.Port)
		return cfg
	case !errors.Is(err, os.ErrNotExist):
		c.add("Config", "fail", "%v", err)
		return nil
	}
	if !c.opts.Fix {
		c.add("Config", "warn", "no config at %s, using defaults (run with --fix to write one)", path)
		d := config.Defaults()
		config.ApplyEnv(&d)
		return &d
	}
	fmt.Fprintf(c.stdout, "  [FIX] writing default config to %s\n", path)
	if err := configWriteDefault(path); err != nil {
		fmt.Fprintf(c.stderr, "  failed to write default config: %v\n", err)
		c.add("Config", "fail", "could not write %s", path)
		return nil
	}
	cfg, err = configLoad(path)
	if err != nil {
		c.add("Config", "fail", "%v", err)
		return nil
	}
	c.add("Config", "pass", "wrote default config to %s", path)
	return cfg
}

func (c *checker) checkDatabase(ctx context.Context, url string) {
	ctx, cancel := context.WithTimeout(ctx, dbCheckTimeout)
	defer cancel()
	conn, err := dbConnect(ctx, url)
	if err != nil {
		c.add("Database", "fail", "%s: %v", redactURL(url), err)
		return
	}
	conn.Close()
	c.add("Database", "pass", "connected to %s", redactURL(url))
}

func (c *checker) checkModels(agents domain.AgentsConfig) {
	get := secretLookup()
	provider := agents.Provider
	if provider == "" {
		provider = "local"
	}
	c.checkKey("Model", "fail", provider, agents.DefaultModel, get)
	for _, fb := range agents.Fallbacks {
		c.checkKey("Fallback", "warn", fb.Provider, fb.DefaultModel, get)
	}
}

func (c *checker) checkKey(name, missing, provider, model string, get func(string) (string, error)) {
	secret := llm.SecretName(provider)
	if secret == "" {
		c.add(name, "pass", "%s/%s needs no API key", provider, model)
		return
	}
	v, err := get(secret)
	if err != nil || strings.TrimSpace(v) == "" {
		c.add(name, missing, "%s: no API key (inventrack secrets set %s, or export %s)", provider, secret, secrets.EnvName(secret))
		return
	}
	c.add(name, "pass", "%s/%s key present", provider, model)
}

func (c *checker) checkSchedule(spec string) {
	if spec == "" {
		c.add("Scheduler", "warn", "low-stock scan disabled (scheduler.lowStockCron is empty)")
		return
	}
	if err := scheduler.ValidateSpec(spec); err != nil {
		c.add("Scheduler", "fail", "%v", err)
		return
	}
	c.add("Scheduler", "pass", "low-stock scan %q", spec)
}

func (c *checker) checkSecretsFile() {
	path, err := secretsPath()
	if err != nil {
		c.add("Secrets", "warn", "%v", err)
		return
	}
	err = checkPrivateFile(path)
	if err == nil {
		c.add("Secrets", "pass", "%s is private", path)
		return
	}
	if !errors.Is(err, security.ErrWorldReadable) || !c.opts.Fix {
		c.add("Secrets", "fail", "%v", err)
		return
	}
	fmt.Fprintf(c.stdout, "  [FIX] chmod 600 %s\n", path)
	if err := chmod(path, 0600); err != nil {
		fmt.Fprintf(c.stderr, "  chmod failed: %v\n", err)
		c.add("Secrets", "fail", "%s is readable by other users", path)
		return
	}
	c.add("Secrets", "pass", "restricted %s to owner", path)
}

func (c *checker) checkUser() {
	if err := requireNonRoot(); err != nil {
		c.add("User", "warn", "running as root; serve will refuse to start")
		return
	}
	c.add("User", "pass", "not running as root")
}

func (c *checker) summary() int {
	fmt.Fprintf(c.stdout, "\n--- Check Summary ---\n")
	var pass, warn, fail int
	for _, r := range c.results {
		icon := "✓"
		switch r.Status {
		case "fail":
			icon = "✗"
			fail++
		case "warn":
			icon = "⚠"
			warn++
		default:
			pass++
		}
		fmt.Fprintf(c.stdout, "  %s %-10s %s\n", icon, r.Name, r.Message)
	}
	fmt.Fprintf(c.stdout, "\n%d passed, %d warnings, %d failed\n", pass, warn, fail)
	if fail > 0 {
		return 1
	}
	return 0
}

// redactURL drops the query string, which may carry an auth token.
func redactURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i] + "?…"
	}
	return u
}
