package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abhisek/igcseprep/internal/monitoring"
	"github.com/abhisek/igcseprep/internal/store"
	"github.com/abhisek/igcseprep/internal/ui/theme"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database, generation and quality metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		mc := monitoring.NewCollector(a.store, monitoring.Config{QualityThreshold: a.cfg.Batch.QualityThreshold})
		m, err := mc.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		raw, err := a.store.RawContent().CountByStatus(cmd.Context())
		if err != nil {
			return err
		}

		sys := m.System
		fmt.Println(theme.Section("System",
			theme.KV("Database", fmt.Sprintf("%s %s", sys.DBDriver, theme.Check(sys.DBOK))),
			theme.KV("Go", sys.GoVersion),
		))

		g := m.Generation
		lastRun := theme.Hint.Render("never")
		if g.LastRunAt != nil {
			lastRun = fmt.Sprintf("%s (%s)", humanize.Time(*g.LastRunAt), g.LastRunStatus)
		}
		fmt.Println(theme.Section("Generation",
			theme.KV("Questions today", humanize.Comma(int64(g.QuestionsToday))),
			theme.KV("Questions total", humanize.Comma(int64(g.QuestionsTotal))),
			theme.KV("LLM calls today", fmt.Sprintf("%d (%.0f%% ok)", g.LLMCallsToday, g.LLMSuccessRate*100)),
			theme.KV("Tokens today", humanize.Comma(int64(g.TokensToday))),
			theme.KV("Avg latency", (time.Duration(g.AvgLatencyMs)*time.Millisecond).Round(time.Millisecond)),
			theme.KV("Failed runs", g.FailedRunsToday),
			theme.KV("Last run", lastRun),
		))

		q := m.Quality
		below := fmt.Sprintf("%.0f%%", q.BelowThreshold*100)
		if q.BelowThreshold > 0.2 {
			below = theme.Bad.Render(below)
		}
		fmt.Println(theme.Section(fmt.Sprintf("Quality (last %d days)", q.Days),
			theme.KV("Scored", q.Count),
			theme.KV("Mean / median", fmt.Sprintf("%.2f / %.2f", q.Mean, q.Median)),
			theme.KV("P10 / P90", fmt.Sprintf("%.2f / %.2f", q.P10, q.P90)),
			theme.KV("Below threshold", below),
		))

		fmt.Println(theme.Section("Raw content",
			theme.KV("Pending", raw[store.RawPending]),
			theme.KV("Validated", raw[store.RawValidated]),
			theme.KV("Rejected", raw[store.RawRejected]),
			theme.KV("Processed", raw[store.RawProcessed]),
			theme.KV("Failed", raw[store.RawFailed]),
		))
		return nil
	},
}
