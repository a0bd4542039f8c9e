package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/generation"
	"github.com/abhisek/igcseprep/internal/llm"
	"github.com/abhisek/igcseprep/internal/ui/theme"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate study content for one topic",
}

var generateQuizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Generate and save a quiz",
	RunE: func(cmd *cobra.Command, args []string) error {
		topicID, _ := cmd.Flags().GetString("topic")
		count, _ := cmd.Flags().GetInt("count")
		difficulty, _ := cmd.Flags().GetInt("difficulty")
		quizType, _ := cmd.Flags().GetString("type")
		publish, _ := cmd.Flags().GetBool("publish")

		a, svc, err := generationService(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		quiz, res, err := svc.GenerateAndSaveQuiz(cmd.Context(), generation.QuizRequest{
			TopicID:    topicID,
			Count:      count,
			Difficulty: difficulty,
			QuizType:   content.QuizType(quizType),
			Publish:    publish,
		})
		if err != nil {
			return err
		}
		lines := []string{
			theme.KV("Quiz", quiz.ID),
			theme.KV("Title", quiz.Title),
			theme.KV("Questions", len(quiz.Questions)),
			theme.KV("Rejected", len(res.Rejected)),
			theme.KV("Avg quality", fmt.Sprintf("%.2f", res.AverageQuality())),
			theme.KV("Published", theme.Check(quiz.Published)),
		}
		lines = append(lines, usageLines(res.Model, res.Usage)...)
		fmt.Println(theme.Section("Quiz generated", lines...))
		for _, r := range res.Rejected {
			fmt.Println(theme.Hint.Render("  rejected: " + r.Reason))
		}
		return nil
	},
}

var generateFlashcardsCmd = &cobra.Command{
	Use:   "flashcards",
	Short: "Generate and save flashcards",
	RunE: func(cmd *cobra.Command, args []string) error {
		topicID, _ := cmd.Flags().GetString("topic")
		count, _ := cmd.Flags().GetInt("count")

		a, svc, err := generationService(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		cards, res, err := svc.GenerateAndSaveFlashcards(cmd.Context(), generation.FlashcardRequest{TopicID: topicID, Count: count})
		if err != nil {
			return err
		}
		lines := []string{
			theme.KV("Saved", len(cards)),
			theme.KV("Duplicates", res.Dropped),
		}
		lines = append(lines, usageLines(res.Model, res.Usage)...)
		fmt.Println(theme.Section("Flashcards generated", lines...))
		for _, c := range cards {
			fmt.Printf("  %s %s\n", theme.Header.Render(c.Front), theme.Subtitle.Render(c.Back))
		}
		return nil
	},
}

var generateExamCmd = &cobra.Command{
	Use:   "exam",
	Short: "Generate and save an exam paper",
	RunE: func(cmd *cobra.Command, args []string) error {
		topicID, _ := cmd.Flags().GetString("topic")
		marks, _ := cmd.Flags().GetInt("marks")
		duration, _ := cmd.Flags().GetInt("duration")

		a, svc, err := generationService(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		paper, res, err := svc.GenerateAndSaveExamPaper(cmd.Context(), generation.ExamRequest{
			TopicID:         topicID,
			TargetMarks:     marks,
			DurationMinutes: duration,
		})
		if err != nil {
			return err
		}
		within := theme.Check(res.Accepted)
		lines := []string{
			theme.KV("Paper", paper.ID),
			theme.KV("Title", paper.Title),
			theme.KV("Marks", fmt.Sprintf("%d (target %d) %s", paper.TotalMarks, marks, within)),
			theme.KV("Questions", len(paper.Questions)),
			theme.KV("Duration", fmt.Sprintf("%d min", paper.DurationMinutes)),
			theme.KV("Attempts", res.Attempts),
		}
		lines = append(lines, usageLines(res.Model, res.Usage)...)
		fmt.Println(theme.Section("Exam paper generated", lines...))
		return nil
	},
}

func generationService(cmd *cobra.Command) (*app, *generation.Service, error) {
	a, err := openApp(cmd)
	if err != nil {
		return nil, nil, err
	}
	gen, err := a.needGenerator(cmd.Context())
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, generation.NewService(gen, a.store), nil
}

func usageLines(model string, u llm.Usage) []string {
	lines := []string{
		theme.KV("Model", model),
		theme.KV("Tokens", fmt.Sprintf("%s in / %s out",
			humanize.Comma(int64(u.InputTokens)), humanize.Comma(int64(u.OutputTokens)))),
	}
	if cost, ok := llm.EstimateCost(model, u.InputTokens, u.OutputTokens); ok {
		lines = append(lines, theme.KV("Est. cost", formatCost(cost)))
	}
	return lines
}

func init() {
	for _, c := range []*cobra.Command{generateQuizCmd, generateFlashcardsCmd, generateExamCmd} {
		c.Flags().String("topic", "", "Topic id")
		_ = c.MarkFlagRequired("topic")
	}
	generateQuizCmd.Flags().Int("count", 10, "Number of questions")
	generateQuizCmd.Flags().Int("difficulty", 0, "Difficulty 1-5 (default: the topic's)")
	generateQuizCmd.Flags().String("type", string(content.QuizPractice), "Quiz type: practice or mock_exam")
	generateQuizCmd.Flags().Bool("publish", false, "Publish the quiz immediately")
	generateFlashcardsCmd.Flags().Int("count", 10, "Number of flashcards")
	generateExamCmd.Flags().Int("marks", 50, "Target total marks")
	generateExamCmd.Flags().Int("duration", 0, "Duration in minutes (default: derived from marks)")

	generateCmd.AddCommand(generateQuizCmd)
	generateCmd.AddCommand(generateFlashcardsCmd)
	generateCmd.AddCommand(generateExamCmd)
}
