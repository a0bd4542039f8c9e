package generation

import (
	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/quality"
)

// Config controls the behavior of the LLMGenerator.
type Config struct {
	// Validators run in order on every generated quiz question; the first
	// failure rejects the question.
	Validators []Validator

	// Method is recorded on generated content, e.g. "gemini".
	Method content.GenerationMethod

	MaxTokens   int
	Temperature float64

	// QuestionsPerCall caps the questions requested in one LLM call.
	QuestionsPerCall int

	// MaxAvoid is the number of existing question texts listed in the
	// prompt as "do not duplicate".
	MaxAvoid int

	// ExamAttempts is how many papers are requested before settling for
	// the closest one.
	ExamAttempts int

	// ExamTolerance is the accepted relative distance from the target
	// marks, e.g. 0.2 for 20%.
	ExamTolerance float64

	// ChunkTokens is the approximate token budget for one chunk of raw
	// content passed to FromContent.
	ChunkTokens int

	// Quality configures the quality checker used for scoring.
	Quality quality.Config
}

// DefaultConfig returns a Config with the standard validator chain.
func DefaultConfig() Config {
	qc := quality.DefaultConfig()
	return Config{
		Validators:       DefaultValidators(qc),
		Method:           content.MethodMock,
		MaxTokens:        4000,
		Temperature:      0.7,
		QuestionsPerCall: 5,
		MaxAvoid:         20,
		ExamAttempts:     3,
		ExamTolerance:    0.2,
		ChunkTokens:      3000,
		Quality:          qc,
	}
}

// DefaultValidators is the structural check followed by the quality check.
func DefaultValidators(qc quality.Config) []Validator {
	return []Validator{
		&StructuralValidator{},
		NewQualityValidator(qc),
	}
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Validators == nil {
		c.Validators = DefaultValidators(c.Quality)
	}
	if c.Method == "" {
		c.Method = def.Method
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.QuestionsPerCall <= 0 {
		c.QuestionsPerCall = def.QuestionsPerCall
	}
	if c.MaxAvoid <= 0 {
		c.MaxAvoid = def.MaxAvoid
	}
	if c.ExamAttempts <= 0 {
		c.ExamAttempts = def.ExamAttempts
	}
	if c.ExamTolerance <= 0 {
		c.ExamTolerance = def.ExamTolerance
	}
	if c.ChunkTokens <= 0 {
		c.ChunkTokens = def.ChunkTokens
	}
}
