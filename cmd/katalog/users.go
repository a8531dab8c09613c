package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dukerupert/katalog/internal/auth"
	"github.com/dukerupert/katalog/internal/store"
	"github.com/spf13/cobra"
)

func usersCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage sign-in accounts",
	}
	cmd.AddCommand(usersAddCommand(e), usersListCommand(e), usersPasswordCommand(e))
	return cmd
}

func usersAddCommand(e *env) *cobra.Command {
	var name, password string
	var makeAdmin bool
	cmd := &cobra.Command{
		Use:   "add EMAIL",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--password is required")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			users := store.NewUserStore(db)
			existing, err := users.GetByEmail(args[0])
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("user %s already exists", existing.Email)
			}

			u, err := users.Create(args[0], name, hash)
			if err != nil {
				return err
			}
			if makeAdmin {
				if err := store.NewAdminStore(db).Set(u.ID, true); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().BoolVar(&makeAdmin, "admin", false, "grant admin access")
	return cmd
}

func usersListCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			users, err := store.NewUserStore(db).List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EMAIL\tNAME\tID")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Email, u.Name, u.ID)
			}
			return tw.Flush()
		},
	}
}

func usersPasswordCommand(e *env) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "passwd EMAIL",
		Short: "Set a new password and end the account's sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--password is required")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			u, err := lookupUser(store.NewUserStore(db), args[0])
			if err != nil {
				return err
			}
			if err := store.NewUserStore(db).UpdatePassword(u.ID, hash); err != nil {
				return err
			}
			if err := store.NewSessionStore(db).DeleteByUser(u.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password")
	return cmd
}
