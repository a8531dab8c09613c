package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/dukerupert/katalog/internal/backup"
	"github.com/dukerupert/katalog/internal/docstore"
	"github.com/dukerupert/katalog/internal/store"
	"github.com/spf13/cobra"
)

func exportCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Encrypted catalog exports to S3-compatible storage",
	}
	cmd.AddCommand(exportRunCommand(e), exportListCommand(e), exportRestoreCommand(e))
	return cmd
}

func exportManager(e *env, docs *docstore.Store, exports *store.ExportStore) *backup.Manager {
	return backup.NewManager(exportConfig(e), docs, exports, nil, e.logger.With("component", "export"))
}

func exportRunCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Export the catalog now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			docs := docstore.New(db, nil, e.logger)
			mgr := exportManager(e, docs, store.NewExportStore(db))
			rec, err := mgr.Run(cmd.Context())
			if err != nil {
				return err
			}
			if err := mgr.Cleanup(cmd.Context()); err != nil {
				e.logger.Warn("export cleanup", "error", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export %d: %s (%d documents, %d bytes)\n", rec.ID, rec.S3Key, rec.Documents, rec.SizeBytes)
			return nil
		},
	}
}

func exportListCommand(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			exports, err := store.NewExportStore(db).List(limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tDOCUMENTS\tKEY")
			for _, x := range exports {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", x.ID, x.CreatedAt.Format("2006-01-02 15:04"), x.Status, x.Documents, x.S3Key)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of exports to show")
	return cmd
}

func exportRestoreCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "restore ID",
		Short: "Write an export's documents back into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid export id %q", args[0])
			}

			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			docs := docstore.New(db, nil, e.logger)
			n, err := exportManager(e, docs, store.NewExportStore(db)).Restore(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d documents from export %d\n", n, id)
			return nil
		},
	}
}
