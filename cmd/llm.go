package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abhisek/igcseprep/internal/llm"
	"github.com/abhisek/igcseprep/internal/store"
	"github.com/abhisek/igcseprep/internal/ui/theme"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect LLM request/response events",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		events, err := a.store.Events().QueryLLMEvents(cmd.Context(), store.QueryOpts{Limit: limit, Purpose: purpose})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No LLM events found.")
			return nil
		}

		fmt.Println(theme.Header.Render(fmt.Sprintf("%-5s  %-14s  %-18s  %-28s  %7s  %7s  %7s  %s",
			"ID", "When", "Purpose", "Model", "In", "Out", "Ms", "OK")))
		fmt.Println(theme.Divider(104))
		for _, e := range events {
			fmt.Printf("%-5d  %-14s  %-18s  %-28s  %7s  %7s  %7d  %s\n",
				e.ID,
				truncate(humanize.Time(e.Timestamp), 14),
				truncate(e.Purpose, 18),
				truncate(e.Model, 28),
				humanize.Comma(int64(e.InputTokens)),
				humanize.Comma(int64(e.OutputTokens)),
				e.LatencyMs,
				theme.Check(e.Success),
			)
		}
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "View full request/response for an LLM event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.store.Events().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event %d: %w", id, err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}

		lines := []string{
			theme.KV("Time", e.Timestamp.Local().Format("2006-01-02 15:04:05")),
			theme.KV("Provider", e.Provider),
			theme.KV("Model", e.Model),
			theme.KV("Purpose", e.Purpose),
			theme.KV("Tokens", fmt.Sprintf("%d in / %d out", e.InputTokens, e.OutputTokens)),
			theme.KV("Latency", fmt.Sprintf("%dms", e.LatencyMs)),
			theme.KV("Success", theme.Check(e.Success)),
		}
		if e.ErrorMessage != "" {
			lines = append(lines, theme.KV("Error", theme.Bad.Render(e.ErrorMessage)))
		}
		fmt.Println(theme.Section(fmt.Sprintf("LLM event %d", e.ID), lines...))

		for _, part := range []struct{ title, body string }{
			{"REQUEST", e.RequestBody},
			{"RESPONSE", e.ResponseBody},
		} {
			fmt.Println()
			fmt.Println(theme.Header.Render(part.title))
			fmt.Println(theme.Divider(60))
			if part.body == "" {
				fmt.Println(theme.Hint.Render("(not captured)"))
				continue
			}
			fmt.Println(part.body)
		}
		return nil
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated LLM token usage and estimated cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		usage, err := a.store.Events().LLMUsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}
		if len(usage) == 0 {
			fmt.Println("No LLM usage recorded yet.")
			return nil
		}

		fmt.Println(theme.Title.Render("Usage by purpose"))
		fmt.Println(theme.Header.Render(fmt.Sprintf("%-20s  %6s  %10s  %10s  %10s  %8s",
			"Purpose", "Calls", "Input", "Output", "Total", "Avg Ms")))
		fmt.Println(theme.Divider(76))

		var totalCalls, totalIn, totalOut int
		for _, u := range usage {
			fmt.Printf("%-20s  %6d  %10s  %10s  %10s  %8d\n",
				truncate(u.Purpose, 20), u.Calls,
				humanize.Comma(int64(u.InputTokens)),
				humanize.Comma(int64(u.OutputTokens)),
				humanize.Comma(int64(u.InputTokens+u.OutputTokens)),
				u.AvgLatencyMs)
			totalCalls += u.Calls
			totalIn += u.InputTokens
			totalOut += u.OutputTokens
		}
		fmt.Println(theme.Divider(76))
		fmt.Printf("%-20s  %6d  %10s  %10s  %10s\n", "TOTAL", totalCalls,
			humanize.Comma(int64(totalIn)), humanize.Comma(int64(totalOut)), humanize.Comma(int64(totalIn+totalOut)))

		models, err := a.store.Events().LLMUsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}
		if len(models) == 0 {
			return nil
		}

		fmt.Println()
		fmt.Println(theme.Title.Render("Estimated cost (USD)"))
		fmt.Println(theme.Header.Render(fmt.Sprintf("%-32s  %6s  %10s  %10s  %10s",
			"Model", "Calls", "Input", "Output", "Cost")))
		fmt.Println(theme.Divider(76))

		var totalCost float64
		var unknown []string
		for _, m := range models {
			cost := "?"
			if c, ok := llm.EstimateCost(m.Model, m.InputTokens, m.OutputTokens); ok {
				totalCost += c
				cost = formatCost(c)
			} else {
				unknown = append(unknown, m.Model)
			}
			fmt.Printf("%-32s  %6d  %10s  %10s  %10s\n",
				truncate(m.Model, 32), m.Calls,
				humanize.Comma(int64(m.InputTokens)), humanize.Comma(int64(m.OutputTokens)), cost)
		}
		fmt.Println(theme.Divider(76))
		label := "TOTAL"
		if len(unknown) > 0 {
			label = "TOTAL (partial)"
		}
		fmt.Printf("%-32s  %6s  %10s  %10s  %10s\n", label, "", "", "", formatCost(totalCost))
		if len(unknown) > 0 {
			fmt.Println(theme.Hint.Render("\nPricing unavailable for: " + strings.Join(unknown, ", ")))
		}
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose (e.g. quiz-gen, exam-gen, content-extract)")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
