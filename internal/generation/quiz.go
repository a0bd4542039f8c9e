package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/llm"
	"github.com/abhisek/igcseprep/internal/logger"
)

const defaultQuizCount = 10

// questionOutput is one raw question from the LLM before validation.
type questionOutput struct {
	QuestionText    string            `json:"question_text"`
	QuestionType    string            `json:"question_type"`
	Options         map[string]string `json:"options"`
	CorrectAnswer   string            `json:"correct_answer"`
	Explanation     string            `json:"explanation"`
	DifficultyLevel int               `json:"difficulty_level"`
	Points          int               `json:"points"`
	Tags            []string          `json:"tags"`
	Topic           string            `json:"topic,omitempty"`
}

type quizOutput struct {
	Questions []questionOutput `json:"questions"`
}

func (o questionOutput) toQuestion(defaultDifficulty int) content.QuizQuestion {
	qt := content.QuestionType(strings.ToLower(strings.TrimSpace(o.QuestionType)))
	if qt == "" {
		qt = content.MultipleChoice
	}
	opts := o.Options
	if qt != content.MultipleChoice {
		opts = nil
	}
	difficulty := o.DifficultyLevel
	if difficulty == 0 {
		difficulty = defaultDifficulty
	}
	points := o.Points
	if points <= 0 {
		points = 1
	}
	return content.QuizQuestion{
		QuestionText:    strings.TrimSpace(o.QuestionText),
		QuestionType:    qt,
		Options:         opts,
		CorrectAnswer:   strings.TrimSpace(o.CorrectAnswer),
		Explanation:     strings.TrimSpace(o.Explanation),
		DifficultyLevel: content.ClampDifficulty(difficulty),
		Points:          points,
		Tags:            o.Tags,
	}
}

// GenerateQuiz requests opts.Count questions in batches of at most
// QuestionsPerCall. Invalid questions are dropped; a batch where nothing
// survives is retried once before moving on, so the result may hold fewer
// questions than requested.
func (g *LLMGenerator) GenerateQuiz(ctx context.Context, topic content.TopicInfo, opts QuizOptions) (*QuizResult, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeQuizGen)
	start := g.now()

	count := opts.Count
	if count <= 0 {
		count = defaultQuizCount
	}
	per := g.config.QuestionsPerCall
	batches := (count + per - 1) / per

	log := logger.WithField("topic_id", topic.ID)
	res := &QuizResult{Model: g.provider.ModelID()}
	avoid := append([]string(nil), opts.Avoid...)
	seen := make(map[string]bool, len(avoid))
	for _, a := range avoid {
		seen[normalizeText(a)] = true
	}

	for b := 0; b < batches && len(res.Questions) < count; b++ {
		n := min(per, count-len(res.Questions))
		var accepted []content.QuizQuestion
		for attempt := 1; attempt <= 2; attempt++ {
			prompt := buildQuizPrompt(topic, n, opts, avoid, g.config.MaxAvoid)
			batch, rejected, err := g.quizBatch(ctx, topic, prompt, res)
			if err != nil {
				if len(res.Questions) > 0 && ctx.Err() == nil {
					log.Warn().Err(err).Int("batch", b+1).Int("accepted", len(res.Questions)).
						Msg("quiz batch failed, returning partial result")
					res.Duration = g.now().Sub(start)
					return res, nil
				}
				return nil, fmt.Errorf("generate quiz batch %d: %w", b+1, err)
			}
			res.Rejected = append(res.Rejected, rejected...)
			for _, q := range batch {
				key := normalizeText(q.QuestionText)
				if seen[key] {
					res.Rejected = append(res.Rejected, Rejection{QuestionText: q.QuestionText, Validator: "dedup", Reason: "duplicate question"})
					continue
				}
				seen[key] = true
				accepted = append(accepted, q)
			}
			if len(accepted) > 0 {
				break
			}
			log.Debug().Int("batch", b+1).Int("attempt", attempt).Msg("no questions survived validation")
		}
		for _, q := range accepted {
			if len(res.Questions) == count {
				break
			}
			q.DisplayOrder = len(res.Questions) + 1
			res.Questions = append(res.Questions, q)
			avoid = append(avoid, q.QuestionText)
		}
	}

	res.Duration = g.now().Sub(start)
	log.Info().
		Int("requested", count).
		Int("accepted", len(res.Questions)).
		Int("rejected", len(res.Rejected)).
		Int("calls", res.Calls).
		Msg("quiz generated")
	return res, nil
}

// quizBatch runs one LLM call and the validator chain over its output.
func (g *LLMGenerator) quizBatch(ctx context.Context, topic content.TopicInfo, prompt string, res *QuizResult) ([]content.QuizQuestion, []Rejection, error) {
	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      quizSystemPrompt,
		Messages:    llm.UserPrompt(prompt),
		Schema:      QuizSchema,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	})
	res.Calls++
	if err != nil {
		return nil, nil, err
	}
	res.Usage.Add(resp.Usage)
	res.Model = g.model(resp)

	var out quizOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, nil, fmt.Errorf("parse quiz response: %w", err)
	}

	now := g.now().UTC()
	var (
		accepted []content.QuizQuestion
		rejected []Rejection
	)
	for _, raw := range out.Questions {
		q := raw.toQuestion(topic.DifficultyLevel)
		q.GenerationMethod = g.config.Method
		q.GenerationModel = res.Model
		q.GeneratedAt = &now
		if verr := g.validate(&q, topic); verr != nil {
			rejected = append(rejected, Rejection{QuestionText: q.QuestionText, Validator: verr.Validator, Reason: verr.Message})
			continue
		}
		accepted = append(accepted, q)
	}
	return accepted, rejected, nil
}

func (g *LLMGenerator) validate(q *content.QuizQuestion, topic content.TopicInfo) *ValidationError {
	for _, v := range g.config.Validators {
		if verr := v.Validate(q, topic); verr != nil {
			return verr
		}
	}
	return nil
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
