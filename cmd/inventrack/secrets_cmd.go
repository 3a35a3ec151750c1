package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"inventrack/internal/secrets"
)

func newSecretsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "secrets", Short: "Store or retrieve API keys (encrypted, not in config)"}
	set := &cobra.Command{
		Use:   "set <name> [value]",
		Short: "Store a secret; the value is read from stdin when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runSecretsSet,
	}
	get := &cobra.Command{Use: "get <name>", Short: "Print a secret", Args: cobra.ExactArgs(1), RunE: runSecretsGet}
	del := &cobra.Command{Use: "delete <name>", Short: "Remove a secret", Args: cobra.ExactArgs(1), RunE: runSecretsDelete}
	list := &cobra.Command{Use: "list", Short: "List stored secret names", Args: cobra.NoArgs, RunE: runSecretsList}
	cmd.AddCommand(set, get, del, list)
	return cmd
}

func runSecretsSet(cmd *cobra.Command, args []string) error {
	m, err := openSecrets()
	if err != nil {
		return err
	}
	value := ""
	if len(args) == 2 {
		value = args[1]
	} else {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		value = strings.TrimSpace(string(b))
	}
	if value == "" {
		return fmt.Errorf("secret %q: empty value", args[0])
	}
	if err := m.Set(args[0], value); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

func runSecretsGet(cmd *cobra.Command, args []string) error {
	m, err := openSecrets()
	if err != nil {
		return err
	}
	value, err := m.Get(args[0])
	if errors.Is(err, secrets.ErrNotFound) {
		return fmt.Errorf("secret %q not found", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runSecretsDelete(cmd *cobra.Command, args []string) error {
	m, err := openSecrets()
	if err != nil {
		return err
	}
	return m.Delete(args[0])
}

func runSecretsList(cmd *cobra.Command, _ []string) error {
	m, err := openSecrets()
	if err != nil {
		return err
	}
	names, err := m.Names()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(cmd.OutOrStdout(), n)
	}
	return nil
}
