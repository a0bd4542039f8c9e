package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abhisek/igcseprep/internal/batch"
	"github.com/abhisek/igcseprep/internal/scheduler"
	"github.com/abhisek/igcseprep/internal/store"
	"github.com/abhisek/igcseprep/internal/ui/theme"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Batch question generation across topics",
}

var batchNeedsCmd = &cobra.Command{
	Use:   "needs",
	Short: "List topics that need more questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		maxTopics, _ := cmd.Flags().GetInt("max-topics")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		// Needs analysis does not call the model.
		bg := batch.New(a.store, nil, batch.ConfigFrom(a.cfg.Batch))
		needs, err := bg.AnalyzeNeeds(cmd.Context(), subject, maxTopics)
		if err != nil {
			return err
		}
		if len(needs) == 0 {
			fmt.Println("Every topic has enough questions.")
			return nil
		}
		fmt.Println(theme.Header.Render(fmt.Sprintf("%-8s  %-20s  %-36s  %6s  %6s", "Priority", "Subject", "Topic", "Have", "Need")))
		fmt.Println(theme.Divider(86))
		for _, n := range needs {
			prio := theme.Warn.Render(fmt.Sprintf("%-8s", n.Priority))
			if n.Priority == batch.PriorityHigh {
				prio = theme.Bad.Render(fmt.Sprintf("%-8s", n.Priority))
			}
			fmt.Printf("%s  %-20s  %-36s  %6d  %6d\n",
				prio, truncate(n.SubjectName, 20), truncate(n.TopicTitle, 36), n.QuestionCount, n.Needed)
		}
		return nil
	},
}

var batchRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate questions for the topics that need them",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		maxTopics, _ := cmd.Flags().GetInt("max-topics")
		perTopic, _ := cmd.Flags().GetInt("per-topic")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		bg, err := a.batchGenerator(ctx)
		if err != nil {
			return err
		}

		res, err := bg.Run(ctx, batch.RunOptions{
			Subject:           subject,
			MaxTopics:         maxTopics,
			QuestionsPerTopic: perTopic,
			Kind:              store.RunManual,
		})
		if err != nil {
			return err
		}
		printBatchResult(res)
		return nil
	},
}

var batchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's generation count and the last run",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := batch.New(a.store, nil, batch.ConfigFrom(a.cfg.Batch)).Status(cmd.Context())
		if err != nil {
			return err
		}
		lines := []string{
			theme.KV("Generated today", fmt.Sprintf("%d / %d", st.GeneratedToday, st.DailyCap)),
			theme.KV("Remaining", st.Remaining),
		}
		if r := st.LastRun; r != nil {
			lines = append(lines,
				theme.KV("Last run", fmt.Sprintf("%s (%s, %s)", r.ID, r.Kind, humanize.Time(r.StartedAt))),
				theme.KV("Last status", r.Status),
				theme.KV("Last questions", r.QuestionsGenerated),
			)
		}
		fmt.Println(theme.Section("Batch status", lines...))
		return nil
	},
}

func printBatchResult(res *batch.Result) {
	lines := []string{
		theme.KV("Run", res.RunID),
		theme.KV("Topics", fmt.Sprintf("%d (%d ok, %d failed)", res.TopicsProcessed, res.Successful, res.Failed)),
		theme.KV("Questions", res.QuestionsGenerated),
		theme.KV("Avg quality", fmt.Sprintf("%.2f", res.AverageQuality)),
		theme.KV("Duration", res.Duration.Round(time.Second)),
	}
	if res.LimitReached {
		lines = append(lines, theme.Warn.Render("Daily limit reached; remaining topics were skipped."))
	}
	fmt.Println(theme.Section("Batch run finished", lines...))
	for _, e := range res.Errors {
		fmt.Println(theme.Bad.Render("  " + e))
	}
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Scheduled batch generation",
}

var scheduleRunOnceCmd = &cobra.Command{
	Use:   "run-once",
	Short: "Run one scheduled batch now",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		return withScheduler(cmd, func(s *scheduler.Scheduler) error {
			sum, err := s.RunOnce(cmd.Context(), subject)
			if err != nil {
				return err
			}
			if sum.Result != nil {
				printBatchResult(sum.Result)
			}
			if sum.Error != "" {
				return fmt.Errorf("scheduled run for %s failed: %s", sum.Subject, sum.Error)
			}
			return nil
		})
	},
}

var scheduleStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(cmd, func(s *scheduler.Scheduler) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return s.Start(ctx)
		})
	},
}

var scheduleNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next scheduled runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("count")
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		s, err := scheduler.New(scheduler.ConfigFrom(cfg.Scheduler), nil, nil, nil)
		if err != nil {
			return err
		}
		at := time.Now()
		for range n {
			at = s.NextRun(at)
			fmt.Printf("%s  %-20s  %s\n", at.Format("Mon 2006-01-02 15:04"), s.SubjectFor(at), theme.Hint.Render(humanize.Time(at)))
		}
		return nil
	},
}

func withScheduler(cmd *cobra.Command, fn func(*scheduler.Scheduler) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	bg, err := a.batchGenerator(cmd.Context())
	if err != nil {
		return err
	}
	arch, err := a.needArchive(cmd.Context())
	if err != nil {
		return err
	}
	s, err := scheduler.New(scheduler.ConfigFrom(a.cfg.Scheduler), bg, a.store, arch)
	if err != nil {
		return err
	}
	return fn(s)
}

func init() {
	for _, c := range []*cobra.Command{batchNeedsCmd, batchRunCmd} {
		c.Flags().String("subject", "", "Only topics of this subject (name or id)")
		c.Flags().Int("max-topics", 0, "Limit the number of topics")
	}
	batchRunCmd.Flags().Int("per-topic", 0, "Questions per topic (default: computed from need)")
	batchCmd.AddCommand(batchNeedsCmd)
	batchCmd.AddCommand(batchRunCmd)
	batchCmd.AddCommand(batchStatusCmd)

	scheduleRunOnceCmd.Flags().String("subject", "", "Subject to run (default: the rotation's pick, once per period)")
	scheduleNextCmd.Flags().IntP("count", "n", 5, "Number of upcoming runs to show")
	scheduleCmd.AddCommand(scheduleRunOnceCmd)
	scheduleCmd.AddCommand(scheduleStartCmd)
	scheduleCmd.AddCommand(scheduleNextCmd)
}
