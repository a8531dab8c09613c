package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dukerupert/katalog/internal/model"
	"github.com/dukerupert/katalog/internal/store"
	"github.com/spf13/cobra"
)

func lookupUser(users *store.UserStore, email string) (*model.User, error) {
	u, err := users.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("no user with email %s", email)
	}
	return u, nil
}

func adminsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admins",
		Short: "Manage the admin allow-list",
	}
	cmd.AddCommand(
		adminsSetCommand(e, "grant", "Allow an account into the admin UI", true),
		adminsSetCommand(e, "revoke", "Remove an account's admin access", false),
		adminsListCommand(e),
	)
	return cmd
}

// adminsSetCommand writes the account's admin flag. Signed-in browsers pick
// the change up on their next page load.
func adminsSetCommand(e *env, use, short string, isAdmin bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " EMAIL",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			u, err := lookupUser(store.NewUserStore(db), args[0])
			if err != nil {
				return err
			}
			if err := store.NewAdminStore(db).Set(u.ID, isAdmin); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: admin=%t\n", u.Email, isAdmin)
			return nil
		},
	}
}

func adminsListCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List admin records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			admins, err := store.NewAdminStore(db).List()
			if err != nil {
				return err
			}
			users := store.NewUserStore(db)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EMAIL\tADMIN\tUSER ID")
			for _, a := range admins {
				email := "?"
				if u, err := users.GetByID(a.UserID); err == nil && u != nil {
					email = u.Email
				}
				fmt.Fprintf(tw, "%s\t%t\t%s\n", email, a.IsAdmin, a.UserID)
			}
			return tw.Flush()
		},
	}
}
