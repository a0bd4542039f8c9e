package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/llm"
	"github.com/abhisek/igcseprep/internal/logger"
)

const defaultTargetMarks = 50

type examQuestionOutput struct {
	QuestionText  string `json:"question_text"`
	Marks         int    `json:"marks"`
	AnswerText    string `json:"answer_text"`
	Explanation   string `json:"explanation"`
	QuestionOrder int    `json:"question_order"`
	QuestionType  string `json:"question_type"`
}

type examOutput struct {
	Title           string               `json:"title"`
	Instructions    string               `json:"instructions"`
	DurationMinutes int                  `json:"duration_minutes"`
	TotalMarks      int                  `json:"total_marks"`
	Questions       []examQuestionOutput `json:"questions"`
}

// GenerateExamPaper asks for a paper with up to ExamAttempts tries. An
// attempt is accepted once its mark total is within ExamTolerance of the
// target; otherwise the closest attempt is returned with Accepted false.
// The paper total is always the sum of its question marks.
func (g *LLMGenerator) GenerateExamPaper(ctx context.Context, topic content.TopicInfo, opts ExamOptions) (*ExamResult, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeExamGen)
	start := g.now()

	target := opts.TargetMarks
	if target <= 0 {
		target = defaultTargetMarks
	}
	duration := opts.DurationMinutes
	if duration <= 0 {
		duration = defaultDuration(target)
	}
	tolerance := int(math.Round(float64(target) * g.config.ExamTolerance))

	log := logger.WithField("topic_id", topic.ID)
	res := &ExamResult{Model: g.provider.ModelID()}
	var (
		best    *content.ExamPaper
		bestGap = math.MaxInt
		lastErr error
	)

	for attempt := 1; attempt <= g.config.ExamAttempts; attempt++ {
		res.Attempts = attempt
		paper, err := g.examAttempt(ctx, topic, target, duration, res)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("generate exam paper: %w", err)
			}
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Msg("exam attempt failed")
			continue
		}
		gap := absInt(paper.TotalMarks - target)
		if gap < bestGap {
			best, bestGap = paper, gap
		}
		if gap <= tolerance {
			res.Accepted = true
			break
		}
		log.Warn().
			Int("attempt", attempt).
			Int("marks", paper.TotalMarks).
			Int("target", target).
			Msg("exam paper outside tolerance")
	}

	if best == nil {
		if lastErr == nil {
			lastErr = errors.New("no usable questions")
		}
		return nil, fmt.Errorf("generate exam paper after %d attempts: %w", res.Attempts, lastErr)
	}
	res.Paper = *best
	res.Duration = g.now().Sub(start)
	log.Info().
		Int("marks", best.TotalMarks).
		Int("target", target).
		Bool("accepted", res.Accepted).
		Int("attempt", res.Attempts).
		Msg("exam paper generated")
	return res, nil
}

func (g *LLMGenerator) examAttempt(ctx context.Context, topic content.TopicInfo, target, duration int, res *ExamResult) (*content.ExamPaper, error) {
	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      examSystemPrompt,
		Messages:    llm.UserPrompt(buildExamPrompt(topic, target, duration)),
		Schema:      ExamSchema,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	})
	if err != nil {
		return nil, err
	}
	res.Usage.Add(resp.Usage)
	res.Model = g.model(resp)

	var out examOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("parse exam response: %w", err)
	}

	paper := &content.ExamPaper{
		SubjectID:        topic.SubjectID,
		TopicID:          topic.ID,
		Title:            strings.TrimSpace(out.Title),
		Description:      strings.TrimSpace(out.Instructions),
		DurationMinutes:  duration,
		GenerationMethod: g.config.Method,
		GenerationModel:  res.Model,
	}
	if paper.Title == "" {
		paper.Title = fmt.Sprintf("IGCSE %s: %s", topic.SubjectName, topic.Title)
	}

	for _, q := range out.Questions {
		eq := content.ExamQuestion{
			SubjectID:       topic.SubjectID,
			TopicID:         topic.ID,
			QuestionText:    strings.TrimSpace(q.QuestionText),
			QuestionType:    content.QuestionType(strings.ToLower(strings.TrimSpace(q.QuestionType))),
			Marks:           q.Marks,
			DifficultyLevel: content.ClampDifficulty(topic.DifficultyLevel),
			ModelAnswer:     strings.TrimSpace(q.AnswerText),
			MarkingScheme:   strings.TrimSpace(q.Explanation),
		}
		if eq.QuestionText == "" || eq.ModelAnswer == "" || eq.Marks < 1 {
			continue
		}
		if err := content.ValidateExamQuestion(&eq); err != nil {
			continue
		}
		eq.Order = len(paper.Questions) + 1
		paper.Questions = append(paper.Questions, eq)
	}
	if len(paper.Questions) == 0 {
		return nil, errors.New("exam response had no usable questions")
	}
	paper.TotalMarks = paper.SumMarks()
	return paper, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
