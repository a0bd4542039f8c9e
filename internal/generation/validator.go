package generation

import (
	"fmt"
	"strings"

	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/quality"
)

// Validator checks a generated quiz question.
// Implementations should be stateless and safe for concurrent use.
type Validator interface {
	// Name returns a short identifier for logging, e.g. "structural".
	Name() string

	// Validate returns nil if the question passes. It may normalize the
	// question in place (answer case, quality score).
	Validate(q *content.QuizQuestion, topic content.TopicInfo) *ValidationError
}

// ValidationError describes why a question failed validation.
type ValidationError struct {
	Validator string
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// StructuralValidator enforces the storage rules: required fields, known
// question type, an answer key matching an option, sane ranges.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(q *content.QuizQuestion, _ content.TopicInfo) *ValidationError {
	if q.QuestionType == content.MultipleChoice {
		q.CorrectAnswer = strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
	}
	if err := content.ValidateQuizQuestion(q); err != nil {
		return &ValidationError{Validator: v.Name(), Message: err.Error()}
	}
	return nil
}

// QualityValidator rejects questions with error or critical quality issues
// and records the quality score on the ones that pass.
type QualityValidator struct {
	checker *quality.Checker
}

func NewQualityValidator(cfg quality.Config) *QualityValidator {
	return &QualityValidator{checker: quality.New(cfg)}
}

func (v *QualityValidator) Name() string { return "quality" }

func (v *QualityValidator) Validate(q *content.QuizQuestion, _ content.TopicInfo) *ValidationError {
	r := v.checker.CheckQuestion(*q)
	score := r.Score
	q.QualityScore = &score
	if !r.Valid {
		msgs := make([]string, 0, len(r.Issues))
		for _, i := range r.Blocking() {
			msgs = append(msgs, i.String())
		}
		return &ValidationError{Validator: v.Name(), Message: strings.Join(msgs, "; ")}
	}
	return nil
}
