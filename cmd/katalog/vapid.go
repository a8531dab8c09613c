package main

import (
	"fmt"

	"github.com/dukerupert/katalog/internal/push"
	"github.com/spf13/cobra"
)

func vapidCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vapid",
		Short: "Web Push key management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Print a new VAPID key pair as environment variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "KATALOG_VAPID_PUBLIC_KEY=%s\nKATALOG_VAPID_PRIVATE_KEY=%s\n", pub, priv)
			return nil
		},
	})
	return cmd
}
