package content

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func v() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// FieldErrors maps a JSON-ish field name to a readable message.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for k, msg := range f {
		parts = append(parts, k+": "+msg)
	}
	return "invalid content: " + strings.Join(parts, "; ")
}

func (f FieldErrors) add(field, msg string) { f[field] = msg }

// structErrors runs tag validation and converts failures to FieldErrors.
func structErrors(s any) FieldErrors {
	out := FieldErrors{}
	err := v().Struct(s)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.add("_", err.Error())
		return out
	}
	for _, fe := range verrs {
		out.add(fe.Field(), describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return "failed " + fe.Tag()
	}
}

func orNil(f FieldErrors) error {
	if len(f) == 0 {
		return nil
	}
	return f
}

// ValidateQuizQuestion checks the structural rules every stored quiz
// question must satisfy.
func ValidateQuizQuestion(q *QuizQuestion) error {
	errs := structErrors(q)
	switch q.QuestionType {
	case MultipleChoice:
		if len(q.Options) < 2 {
			errs.add("Options", "multiple choice needs at least 2 options")
		} else if _, ok := q.Options[strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))]; !ok {
			errs.add("CorrectAnswer", "must be one of the option keys")
		}
	case TrueFalse, ShortAnswer, Essay:
	default:
		errs.add("QuestionType", fmt.Sprintf("unknown question type %q", q.QuestionType))
	}
	return orNil(errs)
}

// ValidateExamQuestion defaults the question type and checks bank rules.
func ValidateExamQuestion(q *ExamQuestion) error {
	if q.QuestionType == "" {
		q.QuestionType = Structured
	}
	errs := structErrors(q)
	if q.Order < 0 {
		errs.add("Order", "must not be negative")
	}
	return orNil(errs)
}

// ValidateExamPaper checks a paper and each of its questions. The stated
// total must equal the sum of question marks.
func ValidateExamPaper(p *ExamPaper) error {
	errs := structErrors(p)
	if len(p.Questions) == 0 {
		errs.add("Questions", "paper has no questions")
	}
	for i := range p.Questions {
		if err := ValidateExamQuestion(&p.Questions[i]); err != nil {
			errs.add(fmt.Sprintf("Questions[%d]", i), err.Error())
		}
		if p.Questions[i].Order < 1 {
			errs.add(fmt.Sprintf("Questions[%d].Order", i), "must be >= 1")
		}
	}
	if sum := p.SumMarks(); sum != p.TotalMarks {
		errs.add("TotalMarks", fmt.Sprintf("total %d does not match question marks %d", p.TotalMarks, sum))
	}
	return orNil(errs)
}

// ValidateFlashcard checks a flashcard.
func ValidateFlashcard(f *Flashcard) error {
	errs := structErrors(f)
	if strings.TrimSpace(f.Front) == "" {
		errs.add("Front", "is required")
	}
	if strings.TrimSpace(f.Back) == "" {
		errs.add("Back", "is required")
	}
	return orNil(errs)
}

// ValidDifficulty reports whether d is within the 1-5 scale.
func ValidDifficulty(d int) bool {
	return d >= MinDifficulty && d <= MaxDifficulty
}

// ClampDifficulty forces d into the 1-5 scale, mapping zero to 3.
func ClampDifficulty(d int) int {
	switch {
	case d == 0:
		return 3
	case d < MinDifficulty:
		return MinDifficulty
	case d > MaxDifficulty:
		return MaxDifficulty
	}
	return d
}
