package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"inventrack/internal/cli"
	"inventrack/internal/config"
	"inventrack/internal/security"
)

// buildMeta holds version and build metadata (injectable via ldflags).
type buildMeta struct {
	Version string
	GoOS    string
	GoArch  string
}

func newBuildMeta(version, goos, goarch string) buildMeta {
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return buildMeta{Version: version, GoOS: goos, GoArch: goarch}
}

func (m buildMeta) String() string {
	return fmt.Sprintf("inventrack %s %s/%s", m.Version, m.GoOS, m.GoArch)
}

func newRootCommand(bm buildMeta) *cobra.Command {
	root := &cobra.Command{
		Use:           "inventrack",
		Short:         "Inventory assistant",
		Long:          "Inventrack answers inventory questions through a role-aware, tool-calling assistant.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), bm.String())
				return nil
			}
			return cmd.Help()
		},
	}
	root.Flags().BoolP("version", "V", false, "print version and build metadata")
	root.PersistentFlags().StringP("config", "c", "", "config file (default $INVENTRACK_CONFIG or inventrack.yaml)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version and build metadata",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), bm.String())
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket gateway and the low-stock scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, bm)
		},
	}
	root.AddCommand(serveCmd)

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}
	chatCmd.Flags().String("token", "", "session token (default $INVENTRACK_TOKEN)")
	chatCmd.Flags().StringP("message", "m", "", "send one message and exit")
	root.AddCommand(chatCmd)

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	})
	root.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Load demo categories, products and stock movements into an empty database",
		Args:  cobra.NoArgs,
		RunE:  runSeed,
	})

	root.AddCommand(newUsersCommand())
	root.AddCommand(newSecretsCommand())

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check config, database, model keys and schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fix, _ := cmd.Flags().GetBool("fix")
			code := runCheck(cmd.Context(), cli.CheckOptions{ConfigPath: configPath(cmd), Fix: fix}, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if code != 0 {
				return exitCodeErr(code)
			}
			return nil
		},
	}
	checkCmd.Flags().Bool("fix", false, "write default config if missing and restrict the secrets file")
	root.AddCommand(checkCmd)

	return root
}

// runCheck is cli.RunCheck; tests replace it.
var runCheck = cli.RunCheck

// configPath returns --config, falling back to INVENTRACK_CONFIG.
func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	return config.PathFromEnv()
}

func getVersion() string {
	if version != "" {
		return version
	}
	b, err := os.ReadFile("VERSION")
	if err != nil {
		return "dev"
	}
	return strings.TrimSpace(string(b))
}

// version is set at build time via ldflags, e.g.:
//
//	go build -ldflags "-X main.version=1.0.0" -o inventrack ./cmd/inventrack
var version string

// exitCodeErr carries an exit code for the process. When returned from a command, runApp exits with that code.
type exitCodeErr int

func (e exitCodeErr) Error() string { return fmt.Sprintf("exit %d", int(e)) }
func (e exitCodeErr) ExitCode() int { return int(e) }

// stderr is where runApp reports errors; tests replace it.
var stderr interface{ Write([]byte) (int, error) } = os.Stderr

// runApp runs the root command with the given args and returns the exit code (0, 1, or 2).
func runApp(args []string) int {
	bm := newBuildMeta(version, "", "")
	if bm.Version == "" {
		bm.Version = getVersion()
	}
	root := newRootCommand(bm)
	root.SetArgs(args[1:])
	if err := root.Execute(); err != nil {
		if errors.Is(err, security.ErrRunningAsRoot) {
			fmt.Fprintln(stderr, err)
			return 2
		}
		var ec interface{ ExitCode() int }
		if errors.As(err, &ec) {
			return ec.ExitCode()
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}
