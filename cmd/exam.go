package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/igcseprep/internal/selection"
	"github.com/abhisek/igcseprep/internal/ui/theme"
)

var examCmd = &cobra.Command{
	Use:   "exam",
	Short: "Assemble exam papers from the question bank",
}

var examSelectCmd = &cobra.Command{
	Use:   "select",
	Short: "Pick bank questions that add up to a target mark total",
	RunE: func(cmd *cobra.Command, args []string) error {
		var req selection.PaperRequest
		req.SubjectID, _ = cmd.Flags().GetString("subject")
		req.TopicIDs, _ = cmd.Flags().GetStringSlice("topic")
		req.TargetMarks, _ = cmd.Flags().GetInt("marks")
		req.Tolerance, _ = cmd.Flags().GetInt("tolerance")
		req.MaxQuestions, _ = cmd.Flags().GetInt("max-questions")
		req.DifficultyFocus, _ = cmd.Flags().GetInt("difficulty")
		req.TopicSpread, _ = cmd.Flags().GetBool("spread")
		req.Seed, _ = cmd.Flags().GetInt64("seed")
		req.Title, _ = cmd.Flags().GetString("title")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		svc := selection.NewService(a.store)
		build := svc.BuildPaper
		if dryRun {
			build = svc.Preview
		}
		paper, res, err := build(cmd.Context(), req)
		if err != nil {
			return err
		}

		id := paper.ID
		if dryRun {
			id = theme.Hint.Render("(not saved)")
		}
		fmt.Println(theme.Section(paper.Title,
			theme.KV("Paper", id),
			theme.KV("Marks", fmt.Sprintf("%d of %d %s", res.TotalMarks, res.Target, theme.Check(res.Exact))),
			theme.KV("Duration", fmt.Sprintf("%d min", paper.DurationMinutes)),
		))
		for _, q := range paper.Questions {
			fmt.Printf("%3d. [%2d marks, d%d] %s\n", q.Order, q.Marks, q.DifficultyLevel, truncate(q.QuestionText, 70))
		}
		return nil
	},
}

func init() {
	f := examSelectCmd.Flags()
	f.String("subject", "", "Subject id")
	f.StringSlice("topic", nil, "Restrict to these topic ids")
	f.Int("marks", 0, "Target total marks")
	f.Int("tolerance", 0, "Accept totals this many marks below the target")
	f.Int("max-questions", 0, "Cap on the number of questions")
	f.Int("difficulty", 0, "Prefer questions near this difficulty (1-5)")
	f.Bool("spread", false, "Spread questions across topics")
	f.Int64("seed", 0, "Shuffle seed for a reproducible paper")
	f.String("title", "", "Paper title")
	f.Bool("dry-run", false, "Show the selection without saving")
	_ = examSelectCmd.MarkFlagRequired("subject")
	_ = examSelectCmd.MarkFlagRequired("marks")

	examCmd.AddCommand(examSelectCmd)
}
