package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMCQ() QuizQuestion {
	return QuizQuestion{
		QuestionText:    "Which organelle produces ATP in the cell?",
		QuestionType:    MultipleChoice,
		Options:         map[string]string{"A": "Nucleus", "B": "Mitochondria", "C": "Ribosome", "D": "Vacuole"},
		CorrectAnswer:   "B",
		Explanation:     "Mitochondria carry out aerobic respiration.",
		DifficultyLevel: 2,
		Points:          1,
	}
}

func TestValidateQuizQuestion(t *testing.T) {
	q := validMCQ()
	assert.NoError(t, ValidateQuizQuestion(&q))

	q.CorrectAnswer = "E"
	err := ValidateQuizQuestion(&q)
	require.Error(t, err)
	fe, ok := err.(FieldErrors)
	require.True(t, ok)
	assert.Contains(t, fe, "CorrectAnswer")

	q = validMCQ()
	q.DifficultyLevel = 9
	q.Points = 0
	fe = ValidateQuizQuestion(&q).(FieldErrors)
	assert.Contains(t, fe, "DifficultyLevel")
	assert.Contains(t, fe, "Points")

	q = validMCQ()
	q.QuestionType = "riddle"
	assert.Error(t, ValidateQuizQuestion(&q))
}

func TestValidateExamPaper_TotalMustMatch(t *testing.T) {
	p := ExamPaper{
		SubjectID:       "s1",
		Title:           "Biology Paper",
		DurationMinutes: 60,
		TotalMarks:      7,
		Questions: []ExamQuestion{
			{QuestionText: "Describe the process of osmosis in plant cells.", Marks: 2, DifficultyLevel: 2, ModelAnswer: "Water moves across a membrane.", Order: 1},
			{QuestionText: "Explain how enzymes are affected by temperature.", Marks: 5, DifficultyLevel: 3, ModelAnswer: "Rate rises then denatures.", Order: 2},
		},
	}
	require.NoError(t, ValidateExamPaper(&p))
	assert.Equal(t, Structured, p.Questions[0].QuestionType)

	p.TotalMarks = 10
	fe := ValidateExamPaper(&p).(FieldErrors)
	assert.Contains(t, fe, "TotalMarks")

	p.TotalMarks = 7
	p.Questions[1].Order = 0
	fe = ValidateExamPaper(&p).(FieldErrors)
	assert.Contains(t, fe, "Questions[1].Order")
}

func TestValidateExamQuestion_Order(t *testing.T) {
	q := ExamQuestion{
		QuestionText:    "Explain why ionic compounds conduct when molten.",
		Marks:           3,
		DifficultyLevel: 3,
		ModelAnswer:     "Ions become free to move and carry charge.",
	}
	require.NoError(t, ValidateExamQuestion(&q), "bank questions have no order yet")
	assert.Equal(t, Structured, q.QuestionType)

	q.Order = -1
	fe := ValidateExamQuestion(&q).(FieldErrors)
	assert.Equal(t, "must not be negative", fe["Order"])
}

func TestValidateFlashcard(t *testing.T) {
	f := Flashcard{TopicID: "t", Front: "  ", Back: "b", DifficultyLevel: 1}
	fe := ValidateFlashcard(&f).(FieldErrors)
	assert.Contains(t, fe, "Front")
}

func TestClampDifficulty(t *testing.T) {
	assert.Equal(t, 3, ClampDifficulty(0))
	assert.Equal(t, 1, ClampDifficulty(-2))
	assert.Equal(t, 5, ClampDifficulty(8))
	assert.Equal(t, 4, ClampDifficulty(4))
	assert.True(t, ValidDifficulty(5))
	assert.False(t, ValidDifficulty(6))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "cell-structure-and-function", Slugify("Cell Structure & Function"))
	assert.Equal(t, "ph-scale", Slugify("  pH scale!  "))
}
