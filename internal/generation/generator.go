// Package generation produces quizzes, exam papers and flashcards for a
// topic by prompting an LLM provider and validating what comes back.
package generation

import (
	"context"
	"time"

	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/llm"
)

// Generator creates learning content for a topic.
type Generator interface {
	GenerateQuiz(ctx context.Context, topic content.TopicInfo, opts QuizOptions) (*QuizResult, error)
	GenerateExamPaper(ctx context.Context, topic content.TopicInfo, opts ExamOptions) (*ExamResult, error)
	GenerateFlashcards(ctx context.Context, topic content.TopicInfo, opts FlashcardOptions) (*FlashcardResult, error)
}

// QuizOptions controls a quiz generation request.
type QuizOptions struct {
	Count int
	// Difficulty overrides the topic difficulty when non-zero.
	Difficulty    int
	QuestionTypes []content.QuestionType
	// Avoid lists existing question texts the model must not duplicate.
	Avoid []string
}

// Rejection records a generated question that failed validation.
type Rejection struct {
	QuestionText string `json:"question_text"`
	Validator    string `json:"validator"`
	Reason       string `json:"reason"`
}

type QuizResult struct {
	Questions []content.QuizQuestion `json:"questions"`
	Rejected  []Rejection            `json:"rejected,omitempty"`
	Usage     llm.Usage              `json:"usage"`
	Model     string                 `json:"model"`
	Calls     int                    `json:"calls"`
	Duration  time.Duration          `json:"duration"`
}

// AverageQuality is the mean quality score of the accepted questions.
func (r *QuizResult) AverageQuality() float64 {
	n, total := 0, 0.0
	for _, q := range r.Questions {
		if q.QualityScore != nil {
			total += *q.QualityScore
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// ExamOptions controls an exam paper request.
type ExamOptions struct {
	// TargetMarks defaults to 50.
	TargetMarks int
	// DurationMinutes defaults to 60 for short papers and 90 otherwise.
	DurationMinutes int
}

type ExamResult struct {
	Paper content.ExamPaper `json:"paper"`
	// Accepted reports whether the paper total landed within tolerance of
	// the target. When false the closest attempt is returned.
	Accepted bool          `json:"accepted"`
	Attempts int           `json:"attempts"`
	Usage    llm.Usage     `json:"usage"`
	Model    string        `json:"model"`
	Duration time.Duration `json:"duration"`
}

type FlashcardOptions struct {
	Count int
	Avoid []string
}

type FlashcardResult struct {
	Flashcards []content.Flashcard `json:"flashcards"`
	Dropped    int                 `json:"dropped"`
	Usage      llm.Usage           `json:"usage"`
	Model      string              `json:"model"`
	Duration   time.Duration       `json:"duration"`
}

// LLMGenerator implements Generator using an LLM provider.
type LLMGenerator struct {
	provider llm.Provider
	config   Config
	now      func() time.Time
}

var _ Generator = (*LLMGenerator)(nil)

// New creates a new LLMGenerator with the given provider and config.
func New(provider llm.Provider, cfg Config) *LLMGenerator {
	cfg.normalize()
	return &LLMGenerator{provider: provider, config: cfg, now: time.Now}
}

// Config returns the effective configuration.
func (g *LLMGenerator) Config() Config { return g.config }

func (g *LLMGenerator) model(resp *llm.Response) string {
	if resp != nil && resp.Model != "" {
		return resp.Model
	}
	return g.provider.ModelID()
}
