package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/llm"
)

func examJSON(marks ...int) string {
	out := examOutput{Title: "IGCSE Chemistry: Chemical Bonding", Instructions: "Answer ALL questions.", DurationMinutes: 60}
	for i, m := range marks {
		out.Questions = append(out.Questions, examQuestionOutput{
			QuestionText:  fmt.Sprintf("Explain, with a diagram, how bonding works in compound number %d.", i+1),
			Marks:         m,
			AnswerText:    "Shared pair of electrons between non-metal atoms; one mark per correct point.",
			Explanation:   "Award marks for correct terminology.",
			QuestionOrder: i + 1,
			QuestionType:  "structured",
		})
		out.TotalMarks += m
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func TestGenerateExamPaper_AcceptsWithinTolerance(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Text: examJSON(2, 2, 2, 2)},       // 8, outside 20±4
		llm.MockResponse{Text: examJSON(2, 2, 2, 2, 5, 5)}, // 18, inside
	)
	res, err := newTestGenerator(mock).GenerateExamPaper(context.Background(), testTopic, ExamOptions{TargetMarks: 20})
	if err != nil {
		t.Fatalf("GenerateExamPaper: %v", err)
	}
	if !res.Accepted || res.Attempts != 2 {
		t.Fatalf("Accepted = %v Attempts = %d, want true and 2", res.Accepted, res.Attempts)
	}
	p := res.Paper
	if p.TotalMarks != 18 || p.SumMarks() != 18 {
		t.Errorf("TotalMarks = %d, want 18", p.TotalMarks)
	}
	if p.DurationMinutes != 60 {
		t.Errorf("DurationMinutes = %d, want 60", p.DurationMinutes)
	}
	if p.SubjectID != testTopic.SubjectID || p.TopicID != testTopic.ID {
		t.Errorf("paper ids = %q/%q", p.SubjectID, p.TopicID)
	}
	for i, q := range p.Questions {
		if q.Order != i+1 {
			t.Errorf("question %d Order = %d", i, q.Order)
		}
		if q.QuestionType != content.Structured {
			t.Errorf("question %d type = %q", i, q.QuestionType)
		}
	}
	if err := content.ValidateExamPaper(&p); err != nil {
		t.Errorf("generated paper fails validation: %v", err)
	}

	prompt := mock.Calls[0].Messages[0].Content
	if !strings.Contains(prompt, `"marks": 5`) || !strings.Contains(prompt, "Total marks: 20") {
		t.Errorf("prompt lacks distribution: %s", prompt)
	}
}

func TestGenerateExamPaper_KeepsClosestAttempt(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Text: examJSON(2, 2, 2, 2, 2)},                // 10
		llm.MockResponse{Text: examJSON(10, 10, 10)},                   // 30
		llm.MockResponse{Text: examJSON(2, 2, 5, 5)},                   // 14
		llm.MockResponse{Text: examJSON(2, 2, 2, 2, 2, 2, 2, 2, 2, 2)}, // unused
	)
	res, err := newTestGenerator(mock).GenerateExamPaper(context.Background(), testTopic, ExamOptions{TargetMarks: 20})
	if err != nil {
		t.Fatalf("GenerateExamPaper: %v", err)
	}
	if res.Accepted {
		t.Error("expected Accepted=false")
	}
	if res.Attempts != 3 || mock.CallCount() != 3 {
		t.Errorf("attempts = %d calls = %d, want 3", res.Attempts, mock.CallCount())
	}
	if res.Paper.TotalMarks != 14 {
		t.Errorf("TotalMarks = %d, want 14", res.Paper.TotalMarks)
	}
}

func TestGenerateExamPaper_SkipsFailedAttempts(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Err: &llm.ErrInvalidResponse{}},
		llm.MockResponse{Text: examJSON(10, 10, 10, 10, 5, 5)},
	)
	res, err := newTestGenerator(mock).GenerateExamPaper(context.Background(), testTopic, ExamOptions{})
	if err != nil {
		t.Fatalf("GenerateExamPaper: %v", err)
	}
	if !res.Accepted || res.Paper.TotalMarks != 50 {
		t.Errorf("Accepted = %v TotalMarks = %d", res.Accepted, res.Paper.TotalMarks)
	}
	if res.Paper.DurationMinutes != 90 {
		t.Errorf("DurationMinutes = %d, want 90", res.Paper.DurationMinutes)
	}
}

func TestGenerateExamPaper_AllAttemptsFail(t *testing.T) {
	mock := llm.NewMockProvider()
	_, err := newTestGenerator(mock).GenerateExamPaper(context.Background(), testTopic, ExamOptions{TargetMarks: 20})
	if err == nil {
		t.Fatal("expected error")
	}
	if mock.CallCount() != 3 {
		t.Errorf("calls = %d, want 3", mock.CallCount())
	}
}

func TestMarkDistribution(t *testing.T) {
	tests := []struct {
		target int
		want   int
	}{
		{20, 20},
		{10, 20},
		{50, 50},
		{40, 40},
		{70, 70},
	}
	for _, tt := range tests {
		if got := distributionTotal(markDistribution(tt.target)); got != tt.want {
			t.Errorf("markDistribution(%d) totals %d, want %d", tt.target, got, tt.want)
		}
	}
}
