package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"inventrack/internal/auth"
	"inventrack/internal/domain"
	"inventrack/internal/inventory"
)

// timeNow is the clock for seeding and chat messages; tests replace it.
var timeNow = time.Now

// operator is the identity CLI administration runs as. It owns no profile,
// so it can change every user's role.
var operator = auth.Identity{UserID: "cli", Email: "operator@localhost", Role: domain.RoleAdmin}

// withStore loads the config, opens the store and runs fn.
func withStore(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := loadApp(configPath(cmd), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if err := a.openData(cmd.Context()); err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(a *app) error {
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", redactDSN(a.cfg.Database.URL))
		return nil
	})
}

func runSeed(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(a *app) error {
		n, err := a.store.Seed(cmd.Context(), timeNow())
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "database already has products, nothing seeded")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products with 90 days of movements\n", n)
		return nil
	})
}

func newUsersCommand() *cobra.Command {
	users := &cobra.Command{Use: "users", Short: "Manage user profiles and roles"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE:  runUsersList,
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a profile and print its session token",
		Args:  cobra.NoArgs,
		RunE:  runUsersAdd,
	}
	add.Flags().String("email", "", "email address (required)")
	add.Flags().String("name", "", "full name")
	add.Flags().String("role", string(domain.RoleViewer), "admin, manager or viewer")
	_ = add.MarkFlagRequired("email")

	setRole := &cobra.Command{
		Use:   "set-role <user-id> <role>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE:  runUsersSetRole,
	}

	rotate := &cobra.Command{
		Use:   "rotate-token <user-id>",
		Short: "Issue a new session token, revoking the old one",
		Args:  cobra.ExactArgs(1),
		RunE:  runUsersRotateToken,
	}

	users.AddCommand(list, add, setRole, rotate)
	return users
}

func runUsersList(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(a *app) error {
		profiles, err := a.store.ListProfiles(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tCREATED")
		for _, p := range profiles {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Email, p.FullName, p.Role, p.CreatedAt.Format(time.DateOnly))
		}
		return tw.Flush()
	})
}

func parseRoleFlag(s string) (domain.Role, error) {
	role := domain.Role(strings.ToLower(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q (use admin, manager or viewer)", inventory.ErrInvalidRole, s)
	}
	return role, nil
}

func runUsersAdd(cmd *cobra.Command, _ []string) error {
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	roleFlag, _ := cmd.Flags().GetString("role")
	role, err := parseRoleFlag(roleFlag)
	if err != nil {
		return err
	}
	token, err := auth.NewToken()
	if err != nil {
		return err
	}
	return withStore(cmd, func(a *app) error {
		p, err := a.store.CreateProfile(cmd.Context(), inventory.Profile{FullName: name, Email: email, Role: role}, auth.HashToken(token))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s, %s)\ntoken: %s\n", p.ID, p.Email, p.Role, token)
		fmt.Fprintln(cmd.ErrOrStderr(), "The token is shown once; store it now.")
		return nil
	})
}

func runUsersSetRole(cmd *cobra.Command, args []string) error {
	role, err := parseRoleFlag(args[1])
	if err != nil {
		return err
	}
	return withStore(cmd, func(a *app) error {
		p, err := a.store.SetUserRole(cmd.Context(), operator, args[0], role)
		if errors.Is(err, inventory.ErrNotFound) {
			return fmt.Errorf("no user with id %q", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", p.Email, p.Role)
		return nil
	})
}

func runUsersRotateToken(cmd *cobra.Command, args []string) error {
	token, err := auth.NewToken()
	if err != nil {
		return err
	}
	return withStore(cmd, func(a *app) error {
		if err := a.store.RotateToken(cmd.Context(), args[0], auth.HashToken(token)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "token: %s\n", token)
		return nil
	})
}

// redactDSN hides the query string, which may carry an auth token.
func redactDSN(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
