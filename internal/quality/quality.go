// Package quality scores generated quiz and exam questions against the
// checks an IGCSE reviewer would apply by hand.
package quality

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/abhisek/igcseprep/internal/content"
)

// Severity ranks an issue. Error and critical issues make a question invalid.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

func (s Severity) penalty() float64 {
	switch s {
	case SeverityCritical:
		return 0.3
	case SeverityError:
		return 0.2
	case SeverityWarning:
		return 0.1
	case SeverityInfo:
		return 0.05
	}
	return 0
}

func (s Severity) blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Issue is a single finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Field, i.Message)
}

// Report is the outcome of checking one question or paper.
type Report struct {
	Valid  bool    `json:"valid"`
	Score  float64 `json:"score"`
	Issues []Issue `json:"issues,omitempty"`
}

// Blocking returns the error and critical issues.
func (r Report) Blocking() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity.blocking() {
			out = append(out, i)
		}
	}
	return out
}

func newReport(issues []Issue) Report {
	score := 1.0
	valid := true
	for _, i := range issues {
		score -= i.Severity.penalty()
		if i.Severity.blocking() {
			valid = false
		}
	}
	return Report{Valid: valid, Score: clamp(score), Issues: issues}
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Config holds the length thresholds.
type Config struct {
	MinQuestionLength    int
	MaxQuestionLength    int
	MinExplanationLength int
	MaxExplanationLength int
	OptionsCount         int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinQuestionLength:    20,
		MaxQuestionLength:    500,
		MinExplanationLength: 30,
		MaxExplanationLength: 1000,
		OptionsCount:         4,
	}
}

var (
	poorPhrases = []string{
		"i don't know", "not sure", "maybe", "probably", "i think",
		"lorem ipsum", "placeholder", "test question",
	}
	instructionVerbs = []string{"calculate", "determine", "find", "show", "explain", "describe"}
	academicTerms    = []string{
		"analyze", "analyse", "evaluate", "compare", "contrast", "explain", "describe",
		"calculate", "determine", "identify", "classify", "interpret",
	}
	optionLabels = []string{"A", "B", "C", "D"}
)

// Checker runs the question and paper checks. The zero value is not usable;
// call New.
type Checker struct {
	cfg Config
}

// New returns a Checker. Zero thresholds take their defaults.
func New(cfg Config) *Checker {
	def := DefaultConfig()
	if cfg.MinQuestionLength <= 0 {
		cfg.MinQuestionLength = def.MinQuestionLength
	}
	if cfg.MaxQuestionLength <= 0 {
		cfg.MaxQuestionLength = def.MaxQuestionLength
	}
	if cfg.MinExplanationLength <= 0 {
		cfg.MinExplanationLength = def.MinExplanationLength
	}
	if cfg.MaxExplanationLength <= 0 {
		cfg.MaxExplanationLength = def.MaxExplanationLength
	}
	if cfg.OptionsCount <= 0 {
		cfg.OptionsCount = def.OptionsCount
	}
	return &Checker{cfg: cfg}
}

// CheckQuestion scores a quiz question.
func (c *Checker) CheckQuestion(q content.QuizQuestion) Report {
	var issues []Issue
	issues = append(issues, c.checkText(q.QuestionText)...)
	switch q.QuestionType {
	case content.MultipleChoice:
		issues = append(issues, c.checkOptions(q.Options, q.CorrectAnswer)...)
	case content.TrueFalse:
		if a := strings.ToLower(strings.TrimSpace(q.CorrectAnswer)); a != "true" && a != "false" {
			issues = append(issues, Issue{SeverityError, "correct_answer", fmt.Sprintf("true/false answer %q must be true or false", q.CorrectAnswer)})
		}
	}
	if strings.TrimSpace(q.CorrectAnswer) == "" {
		issues = append(issues, Issue{SeverityCritical, "correct_answer", "correct answer is missing"})
	}
	issues = append(issues, c.checkExplanation(q.Explanation)...)
	issues = append(issues, academic(q.QuestionText, q.Explanation)...)
	return newReport(issues)
}

func (c *Checker) checkText(text string) []Issue {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Issue{{SeverityCritical, "question_text", "question text is empty"}}
	}
	var issues []Issue
	n := utf8.RuneCountInString(text)
	if n < c.cfg.MinQuestionLength {
		issues = append(issues, Issue{SeverityError, "question_text", fmt.Sprintf("too short (%d chars, minimum %d)", n, c.cfg.MinQuestionLength)})
	}
	if n > c.cfg.MaxQuestionLength {
		issues = append(issues, Issue{SeverityWarning, "question_text", fmt.Sprintf("very long (%d chars, maximum %d)", n, c.cfg.MaxQuestionLength)})
	}
	lower := strings.ToLower(text)
	if !strings.HasSuffix(text, "?") && !containsAny(lower, instructionVerbs) {
		issues = append(issues, Issue{SeverityWarning, "question_text", "should end with a question mark or be a clear instruction"})
	}
	for _, p := range poorPhrases {
		if strings.Contains(lower, p) {
			issues = append(issues, Issue{SeverityError, "question_text", fmt.Sprintf("contains poor quality phrase %q", p)})
		}
	}
	if r, _ := utf8.DecodeRuneInString(text); unicode.IsLetter(r) && !unicode.IsUpper(r) {
		issues = append(issues, Issue{SeverityWarning, "question_text", "should start with a capital letter"})
	}
	return issues
}

func (c *Checker) checkOptions(options map[string]string, answer string) []Issue {
	if len(options) == 0 {
		return []Issue{{SeverityCritical, "options", "multiple choice question has no options"}}
	}
	var issues []Issue
	if len(options) < c.cfg.OptionsCount {
		issues = append(issues, Issue{SeverityError, "options", fmt.Sprintf("only %d options, need %d", len(options), c.cfg.OptionsCount)})
	}
	want := optionLabels
	if len(options) < len(want) {
		want = want[:len(options)]
	}
	for _, l := range want {
		if _, ok := options[l]; !ok {
			issues = append(issues, Issue{SeverityError, "options", fmt.Sprintf("missing option label %q", l)})
		}
	}
	if _, ok := options[strings.TrimSpace(answer)]; !ok {
		issues = append(issues, Issue{SeverityCritical, "correct_answer", fmt.Sprintf("answer %q is not an option label", answer)})
	}
	seen := make(map[string]bool, len(options))
	dup := false
	for _, l := range slices.Sorted(maps.Keys(options)) {
		text := strings.TrimSpace(options[l])
		key := strings.ToLower(text)
		if seen[key] {
			dup = true
		}
		seen[key] = true
		if utf8.RuneCountInString(text) < 3 {
			issues = append(issues, Issue{SeverityWarning, "options", fmt.Sprintf("option %s is too short", l)})
		}
	}
	if dup {
		issues = append(issues, Issue{SeverityError, "options", "duplicate option texts"})
	}
	return issues
}

func (c *Checker) checkExplanation(text string) []Issue {
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	switch {
	case n == 0:
		return []Issue{{SeverityWarning, "explanation", "explanation is missing"}}
	case n < c.cfg.MinExplanationLength:
		return []Issue{{SeverityWarning, "explanation", fmt.Sprintf("too short (%d chars, minimum %d)", n, c.cfg.MinExplanationLength)}}
	case n > c.cfg.MaxExplanationLength:
		return []Issue{{SeverityWarning, "explanation", fmt.Sprintf("very long (%d chars, maximum %d)", n, c.cfg.MaxExplanationLength)}}
	}
	return nil
}

func academic(parts ...string) []Issue {
	if containsAny(strings.ToLower(strings.Join(parts, " ")), academicTerms) {
		return nil
	}
	return []Issue{{SeverityInfo, "academic_quality", "no academic vocabulary (analyse, evaluate, explain, ...)"}}
}

// CheckExamQuestion scores a question from an exam paper or the bank.
func (c *Checker) CheckExamQuestion(q content.ExamQuestion) Report {
	var issues []Issue
	text := strings.TrimSpace(q.QuestionText)
	if utf8.RuneCountInString(text) < 30 {
		issues = append(issues, Issue{SeverityError, "question_text", "exam question text is too short"})
	}
	if q.Marks < 1 || q.Marks > 20 {
		issues = append(issues, Issue{SeverityError, "marks", fmt.Sprintf("invalid marks allocation %d", q.Marks)})
	}
	if utf8.RuneCountInString(strings.TrimSpace(q.ModelAnswer)) < 20 {
		issues = append(issues, Issue{SeverityWarning, "model_answer", "model answer is too short"})
	}
	issues = append(issues, academic(q.QuestionText, q.ModelAnswer)...)
	return newReport(issues)
}

// CheckExamPaper scores a paper. The score is the mean question score minus
// 0.1 for every blocking issue.
func (c *Checker) CheckExamPaper(p content.ExamPaper) Report {
	if len(p.Questions) == 0 {
		return Report{Issues: []Issue{{SeverityCritical, "questions", "exam paper has no questions"}}}
	}
	var issues []Issue
	if sum := p.SumMarks(); sum != p.TotalMarks {
		issues = append(issues, Issue{SeverityError, "total_marks", fmt.Sprintf("marks mismatch: questions sum to %d, paper states %d", sum, p.TotalMarks)})
	}
	total := 0.0
	for i, q := range p.Questions {
		r := c.CheckExamQuestion(q)
		total += r.Score
		for _, is := range r.Issues {
			issues = append(issues, Issue{
				Severity: is.Severity,
				Field:    fmt.Sprintf("questions[%d].%s", i, is.Field),
				Message:  fmt.Sprintf("question %d: %s", i+1, is.Message),
			})
		}
	}
	blocking := 0
	for _, is := range issues {
		if is.Severity.blocking() {
			blocking++
		}
	}
	score := total/float64(len(p.Questions)) - 0.1*float64(blocking)
	return Report{Valid: blocking == 0, Score: clamp(score), Issues: issues}
}

// Summary aggregates many reports.
type Summary struct {
	Count        int     `json:"count"`
	Valid        int     `json:"valid"`
	AverageScore float64 `json:"average_score"`
}

func Summarize(reports []Report) Summary {
	s := Summary{Count: len(reports)}
	if len(reports) == 0 {
		return s
	}
	total := 0.0
	for _, r := range reports {
		if r.Valid {
			s.Valid++
		}
		total += r.Score
	}
	s.AverageScore = total / float64(len(reports))
	return s
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
