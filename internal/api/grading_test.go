package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/abhisek/igcseprep/internal/api/dto"
	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/content"
)

func TestAnswerMatches(t *testing.T) {
	mc := content.QuizQuestion{
		QuestionType:  content.MultipleChoice,
		Options:       map[string]string{"A": "Sodium  chloride", "B": "Water"},
		CorrectAnswer: "a",
	}
	short := content.QuizQuestion{QuestionType: content.ShortAnswer, CorrectAnswer: "Photosynthesis"}

	tests := []struct {
		name  string
		q     content.QuizQuestion
		given string
		want  bool
	}{
		{"key", mc, "A", true},
		{"key padded", mc, "  a ", true},
		{"option text", mc, "sodium chloride", true},
		{"wrong option", mc, "B", false},
		{"wrong text", mc, "water", false},
		{"blank", mc, "   ", false},
		{"short answer case", short, "PHOTOSYNTHESIS", true},
		{"short answer wrong", short, "respiration", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := answerMatches(tt.q, tt.given); got != tt.want {
				t.Errorf("answerMatches(%q) = %v, want %v", tt.given, got, tt.want)
			}
		})
	}
}

func TestGradeQuiz(t *testing.T) {
	quiz := &content.Quiz{Questions: []content.QuizQuestion{
		{ID: "q1", QuestionType: content.TrueFalse, CorrectAnswer: "True", Points: 3, Explanation: "because"},
		{ID: "q2", QuestionType: content.TrueFalse, CorrectAnswer: "False"},
	}}

	score, maxScore, results := gradeQuiz(quiz, map[string]string{"q1": "true"}, false)
	if score != 3 || maxScore != 4 {
		t.Fatalf("score %d/%d, want 3/4", score, maxScore)
	}
	if len(results) != 2 || !results[0].Correct || results[1].Correct {
		t.Fatalf("results = %+v", results)
	}
	if results[0].CorrectAnswer != "" {
		t.Error("answer key leaked without reveal")
	}

	_, _, results = gradeQuiz(quiz, nil, true)
	if results[0].CorrectAnswer != "True" || results[0].Explanation != "because" {
		t.Errorf("reveal missing key: %+v", results[0])
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   dto.ErrorCode
	}{
		{"not found", apperrors.NotFound("quiz not found"), http.StatusNotFound, dto.ErrorCodeResourceNotFound},
		{"wrapped conflict", fmt.Errorf("save: %w", apperrors.ErrConflict), http.StatusConflict, dto.ErrorCodeResourceAlreadyExists},
		{"validation", apperrors.Validation("bad", map[string]string{"x": "y"}), http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{"expired", apperrors.Wrap(apperrors.ErrTokenExpired, errors.New("exp")), http.StatusUnauthorized, dto.ErrorCodeExpiredToken},
		{"limit", apperrors.ErrDailyLimitReached, http.StatusTooManyRequests, dto.ErrorCodeDailyLimit},
		{"generation", apperrors.New(apperrors.ErrGeneration, "nothing valid"), http.StatusBadGateway, dto.ErrorCodeGenerationFailed},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, dto.ErrorCodeInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, detail := describeError(tt.err)
			if status != tt.status || detail.Code != tt.code {
				t.Errorf("got %d %s, want %d %s", status, detail.Code, tt.status, tt.code)
			}
		})
	}

	_, detail := describeError(apperrors.New(apperrors.ErrGeneration, "nothing valid"))
	if detail.Message != "nothing valid" {
		t.Errorf("message = %q", detail.Message)
	}
}
