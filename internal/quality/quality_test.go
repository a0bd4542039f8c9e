package quality

import (
	"math"
	"strings"
	"testing"

	"github.com/abhisek/igcseprep/internal/content"
)

func goodMCQ() content.QuizQuestion {
	return content.QuizQuestion{
		QuestionText: "Which organelle is the site of aerobic respiration in a cell?",
		QuestionType: content.MultipleChoice,
		Options: map[string]string{
			"A": "Nucleus",
			"B": "Mitochondrion",
			"C": "Ribosome",
			"D": "Cell membrane",
		},
		CorrectAnswer: "B",
		Explanation:   "Mitochondria release energy from glucose; this explains why muscle cells contain many of them.",
	}
}

func hasIssue(r Report, sev Severity, field string) bool {
	for _, i := range r.Issues {
		if i.Severity == sev && i.Field == field {
			return true
		}
	}
	return false
}

func TestCheckQuestion_Clean(t *testing.T) {
	r := New(Config{}).CheckQuestion(goodMCQ())
	if !r.Valid {
		t.Fatalf("expected valid, issues: %v", r.Issues)
	}
	if r.Score != 1.0 {
		t.Errorf("Score = %v, want 1.0 (issues %v)", r.Score, r.Issues)
	}
}

func TestCheckQuestion_Cases(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *content.QuizQuestion)
		sev    Severity
		field  string
		valid  bool
	}{
		{"empty text", func(q *content.QuizQuestion) { q.QuestionText = "  " }, SeverityCritical, "question_text", false},
		{"short text", func(q *content.QuizQuestion) { q.QuestionText = "What is ATP?" }, SeverityError, "question_text", false},
		{"long text", func(q *content.QuizQuestion) { q.QuestionText = "Explain " + strings.Repeat("x", 600) + "?" }, SeverityWarning, "question_text", true},
		{"no question mark", func(q *content.QuizQuestion) { q.QuestionText = "The organelle responsible for respiration in cells" }, SeverityWarning, "question_text", true},
		{"poor phrase", func(q *content.QuizQuestion) { q.QuestionText = "This is a placeholder question about cells?" }, SeverityError, "question_text", false},
		{"lowercase start", func(q *content.QuizQuestion) { q.QuestionText = "which organelle is the site of respiration?" }, SeverityWarning, "question_text", true},
		{"answer not label", func(q *content.QuizQuestion) { q.CorrectAnswer = "E" }, SeverityCritical, "correct_answer", false},
		{"too few options", func(q *content.QuizQuestion) { delete(q.Options, "D") }, SeverityError, "options", false},
		{"duplicate options", func(q *content.QuizQuestion) { q.Options["C"] = "nucleus" }, SeverityError, "options", false},
		{"short option", func(q *content.QuizQuestion) { q.Options["C"] = "RNA"[:2] }, SeverityWarning, "options", true},
		{"short explanation", func(q *content.QuizQuestion) { q.Explanation = "Explain: energy." }, SeverityWarning, "explanation", true},
		{"no academic vocabulary", func(q *content.QuizQuestion) {
			q.Explanation = "Mitochondria release energy from glucose in all living cells."
		}, SeverityInfo, "academic_quality", true},
	}
	c := New(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := goodMCQ()
			q.Options = map[string]string{"A": "Nucleus", "B": "Mitochondrion", "C": "Ribosome", "D": "Cell membrane"}
			tt.mutate(&q)
			r := c.CheckQuestion(q)
			if !hasIssue(r, tt.sev, tt.field) {
				t.Errorf("missing %s issue on %s; got %v", tt.sev, tt.field, r.Issues)
			}
			if r.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v", r.Valid, tt.valid)
			}
			if r.Score >= 1.0 {
				t.Errorf("Score = %v, want < 1", r.Score)
			}
		})
	}
}

func TestCheckQuestion_TrueFalse(t *testing.T) {
	q := content.QuizQuestion{
		QuestionText:  "Is the mitochondrion the site of aerobic respiration?",
		QuestionType:  content.TrueFalse,
		CorrectAnswer: "True",
		Explanation:   "Aerobic respiration takes place in mitochondria, as the question describes.",
	}
	c := New(DefaultConfig())
	if r := c.CheckQuestion(q); !r.Valid {
		t.Fatalf("expected valid: %v", r.Issues)
	}
	q.CorrectAnswer = "yes"
	if r := c.CheckQuestion(q); r.Valid || !hasIssue(r, SeverityError, "correct_answer") {
		t.Fatalf("expected error on answer, got %+v", r)
	}
}

func TestScoreClampsAtZero(t *testing.T) {
	q := content.QuizQuestion{QuestionType: content.MultipleChoice}
	r := New(DefaultConfig()).CheckQuestion(q)
	if r.Score != 0 {
		t.Errorf("Score = %v, want 0", r.Score)
	}
	if r.Valid {
		t.Error("expected invalid")
	}
}

func TestPenalties(t *testing.T) {
	r := newReport([]Issue{
		{Severity: SeverityWarning},
		{Severity: SeverityInfo},
	})
	if math.Abs(r.Score-0.85) > 1e-9 {
		t.Errorf("Score = %v, want 0.85", r.Score)
	}
	if !r.Valid {
		t.Error("warnings and info should not invalidate")
	}
	if len(r.Blocking()) != 0 {
		t.Error("expected no blocking issues")
	}
}

func examQuestion(marks int) content.ExamQuestion {
	return content.ExamQuestion{
		QuestionText: "Explain how the structure of a leaf is adapted for photosynthesis.",
		Marks:        marks,
		ModelAnswer:  "Large surface area, thin, many chloroplasts in palisade cells, stomata for gas exchange.",
	}
}

func TestCheckExamQuestion(t *testing.T) {
	c := New(DefaultConfig())
	if r := c.CheckExamQuestion(examQuestion(4)); !r.Valid || r.Score != 1 {
		t.Fatalf("expected clean report, got %+v", r)
	}
	r := c.CheckExamQuestion(examQuestion(25))
	if r.Valid || !hasIssue(r, SeverityError, "marks") {
		t.Errorf("expected marks error, got %+v", r)
	}
	q := examQuestion(2)
	q.ModelAnswer = "Chloroplasts."
	r = c.CheckExamQuestion(q)
	if !r.Valid || !hasIssue(r, SeverityWarning, "model_answer") {
		t.Errorf("expected model answer warning, got %+v", r)
	}
}

func TestCheckExamPaper(t *testing.T) {
	c := New(DefaultConfig())

	empty := c.CheckExamPaper(content.ExamPaper{})
	if empty.Valid || empty.Score != 0 || !hasIssue(empty, SeverityCritical, "questions") {
		t.Fatalf("empty paper: %+v", empty)
	}

	p := content.ExamPaper{TotalMarks: 6, Questions: []content.ExamQuestion{examQuestion(2), examQuestion(4)}}
	if r := c.CheckExamPaper(p); !r.Valid || r.Score != 1 {
		t.Fatalf("clean paper: %+v", r)
	}

	p.TotalMarks = 10
	r := c.CheckExamPaper(p)
	if r.Valid || !hasIssue(r, SeverityError, "total_marks") {
		t.Fatalf("expected mismatch, got %+v", r)
	}
	if math.Abs(r.Score-0.9) > 1e-9 {
		t.Errorf("Score = %v, want 0.9", r.Score)
	}

	p.TotalMarks = 27
	p.Questions = append(p.Questions, examQuestion(21))
	r = c.CheckExamPaper(p)
	if !hasIssue(r, SeverityError, "questions[2].marks") {
		t.Errorf("expected prefixed question issue, got %v", r.Issues)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Report{{Valid: true, Score: 1}, {Valid: false, Score: 0.5}})
	if s.Count != 2 || s.Valid != 1 || s.AverageScore != 0.75 {
		t.Errorf("Summary = %+v", s)
	}
	if z := Summarize(nil); z.Count != 0 || z.AverageScore != 0 {
		t.Errorf("empty summary = %+v", z)
	}
}
