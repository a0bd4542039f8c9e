package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/igcseprep/internal/api"
	"github.com/abhisek/igcseprep/internal/auth"
	"github.com/abhisek/igcseprep/internal/generation"
	"github.com/abhisek/igcseprep/internal/ingest"
	"github.com/abhisek/igcseprep/internal/logger"
	"github.com/abhisek/igcseprep/internal/monitoring"
	"github.com/abhisek/igcseprep/internal/scheduler"
	"github.com/abhisek/igcseprep/internal/selection"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		withScheduler, _ := cmd.Flags().GetBool("scheduler")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.cfg.RequireJWTSecret(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		gen, err := a.needGenerator(ctx)
		if err != nil {
			return err
		}
		bg, err := a.batchGenerator(ctx)
		if err != nil {
			return err
		}
		arch, err := a.needArchive(ctx)
		if err != nil {
			return err
		}

		deps := api.Deps{
			Store:       a.store,
			Auth:        auth.NewService(a.cfg.Auth, a.store),
			Generation:  generation.NewService(gen, a.store),
			Selection:   selection.NewService(a.store),
			Batch:       bg,
			Validator:   ingest.NewValidator(ingest.ValidatorConfigFrom(a.cfg.Ingest), a.store),
			Processor:   ingest.NewProcessor(gen, a.store),
			Metrics:     monitoring.NewCollector(a.store, monitoring.Config{QualityThreshold: a.cfg.Batch.QualityThreshold}),
			BaseContext: ctx,
		}
		if a.cfg.Ingest.FirecrawlAPIKey != "" {
			fc, err := ingest.NewFirecrawlClient(a.cfg.Ingest)
			if err != nil {
				return err
			}
			deps.Collector = ingest.NewCollector(fc, a.store, arch)
		} else {
			logger.Warn().Msg("FIRECRAWL_API_KEY not set; scraping endpoints are disabled")
		}

		if withScheduler {
			sched, err := scheduler.New(scheduler.ConfigFrom(a.cfg.Scheduler), bg, a.store, arch)
			if err != nil {
				return err
			}
			go func() {
				if err := sched.Start(ctx); err != nil {
					logger.Error().Err(err).Msg("scheduler exited")
				}
			}()
		}

		api.SetMode(a.cfg.Server.Mode)
		srv := api.NewServer(a.cfg.Server, api.NewRouter(api.NewHandler(deps)))
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Opening the store applies migrations.
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		fmt.Printf("Database is up to date (%s).\n", a.store.Dialect())
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("scheduler", false, "Also run the batch generation schedule in-process")
}
