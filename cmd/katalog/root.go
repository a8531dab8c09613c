package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukerupert/katalog/internal/config"
	"github.com/dukerupert/katalog/internal/database"
	"github.com/dukerupert/katalog/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// env is the state shared by all commands once flags and config are read.
type env struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
}

func (e *env) openDB() (*sql.DB, error) {
	db, err := database.Open(e.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", e.cfg.DBPath, err)
	}
	return db, nil
}

func rootCommand() *cobra.Command {
	e := &env{v: config.New()}
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "katalog",
		Short:         "Admin catalog of items, regions and requests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./katalog.yaml if present)")
	flags.String("db", "", "SQLite database path")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	_ = e.v.BindPFlag("db_path", flags.Lookup("db"))
	_ = e.v.BindPFlag("log_level", flags.Lookup("log-level"))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := config.ReadFile(e.v, configFile); err != nil {
			return err
		}
		cfg, err := config.Load(e.v)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		e.cfg = cfg
		e.logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
		return nil
	}

	rootCmd.AddCommand(
		serveCommand(e),
		usersCommand(e),
		adminsCommand(e),
		exportCommand(e),
		vapidCommand(),
	)
	return rootCmd
}
