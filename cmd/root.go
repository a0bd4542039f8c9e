package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/igcseprep/internal/config"
	"github.com/abhisek/igcseprep/internal/logger"
	"github.com/abhisek/igcseprep/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "igcseprep",
	Short: "IGCSE study content platform",
	Long: "igcseprep serves the study API and runs the content pipeline: " +
		"AI generation of quizzes, flashcards and exam papers, batch runs, scraping and exam assembly.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if l, _ := cmd.Flags().GetString("log-level"); l != "" {
			level = l
		}
		logger.Configure(logger.Config{Level: logger.LogLevel(level), Pretty: cfg.Log.Pretty})
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides the configured database)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(examCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the file named by --config once per process.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if loaded != nil {
		return loaded, nil
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.Database.Driver = store.DriverSQLite
		cfg.Database.DSN = p
	}
	loaded = cfg
	return cfg, nil
}

var loaded *config.Config

// storeOptions resolves the backend. An empty SQLite DSN means the default
// per-user database file.
func storeOptions(cfg *config.Config) (store.Options, error) {
	opts := store.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	switch opts.Driver {
	case store.DriverPostgres:
		opts.DSN = cfg.PostgresDSN()
	default:
		if opts.DSN == "" {
			p, err := store.DefaultDBPath()
			if err != nil {
				return opts, fmt.Errorf("resolve database path: %w", err)
			}
			opts.DSN = p
		} else if err := store.EnsureDir(opts.DSN); err != nil {
			return opts, err
		}
	}
	return opts, nil
}
