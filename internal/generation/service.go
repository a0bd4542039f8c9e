package generation

import (
	"context"
	"fmt"

	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/store"
)

// recentQuestionLimit bounds how many stored questions feed the avoid list.
const recentQuestionLimit = 50

// Service generates content for stored topics and persists the result.
type Service struct {
	gen   Generator
	store *store.Store
}

func NewService(gen Generator, st *store.Store) *Service {
	return &Service{gen: gen, store: st}
}

type QuizRequest struct {
	TopicID       string                 `json:"topic_id" binding:"required"`
	Count         int                    `json:"count" binding:"omitempty,min=1,max=50"`
	Difficulty    int                    `json:"difficulty" binding:"omitempty,min=1,max=5"`
	QuizType      content.QuizType       `json:"quiz_type" binding:"omitempty,oneof=practice mock_exam"`
	QuestionTypes []content.QuestionType `json:"question_types"`
	Title         string                 `json:"title"`
	Publish       bool                   `json:"publish"`
}

// GenerateAndSaveQuiz generates questions for the topic, avoiding ones
// already stored, and saves them as a new quiz.
func (s *Service) GenerateAndSaveQuiz(ctx context.Context, req QuizRequest) (*content.Quiz, *QuizResult, error) {
	topic, err := s.store.Topics().GetInfo(ctx, req.TopicID)
	if err != nil {
		return nil, nil, err
	}
	avoid, err := s.store.Quizzes().RecentQuestionTexts(ctx, req.TopicID, recentQuestionLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("load recent questions: %w", err)
	}

	res, err := s.gen.GenerateQuiz(ctx, *topic, QuizOptions{
		Count:         req.Count,
		Difficulty:    req.Difficulty,
		QuestionTypes: req.QuestionTypes,
		Avoid:         avoid,
	})
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrGeneration, err)
	}
	quiz, err := s.SaveQuiz(ctx, *topic, res.Questions, req)
	if err != nil {
		return nil, res, err
	}
	return quiz, res, nil
}

// SaveQuiz stores questions as a quiz for topic. Mock exams get a time
// limit of two minutes per question and hide answers.
func (s *Service) SaveQuiz(ctx context.Context, topic content.TopicInfo, questions []content.QuizQuestion, req QuizRequest) (*content.Quiz, error) {
	if len(questions) == 0 {
		return nil, apperrors.New(apperrors.ErrGeneration, "no valid questions were generated")
	}
	quizType := req.QuizType
	if quizType == "" {
		quizType = content.QuizPractice
	}
	difficulty := req.Difficulty
	if difficulty == 0 {
		difficulty = topic.DifficultyLevel
	}
	title := req.Title
	if title == "" {
		kind := "Practice Quiz"
		if quizType == content.QuizMockExam {
			kind = "Mock Exam"
		}
		title = fmt.Sprintf("%s: %s", topic.Title, kind)
	}

	quiz := &content.Quiz{
		TopicID:          topic.ID,
		Title:            title,
		Description:      fmt.Sprintf("Generated questions on %s (%s)", topic.Title, topic.SubjectName),
		QuizType:         quizType,
		DifficultyLevel:  difficulty,
		ShowAnswers:      quizType == content.QuizPractice,
		Published:        req.Publish,
		GenerationMethod: questions[0].GenerationMethod,
		GenerationModel:  questions[0].GenerationModel,
		Questions:        questions,
	}
	if quizType == content.QuizMockExam {
		quiz.TimeLimitMinutes = 2 * len(questions)
		quiz.RandomizeQuestions = true
	}
	if err := s.store.Quizzes().Create(ctx, quiz); err != nil {
		return nil, fmt.Errorf("save quiz: %w", err)
	}
	return quiz, nil
}

type ExamRequest struct {
	TopicID         string `json:"topic_id" binding:"required"`
	TargetMarks     int    `json:"target_marks" binding:"omitempty,min=5,max=200"`
	DurationMinutes int    `json:"duration_minutes" binding:"omitempty,min=10,max=300"`
}

// GenerateAndSaveExamPaper generates a paper and stores it with its
// questions added to the bank.
func (s *Service) GenerateAndSaveExamPaper(ctx context.Context, req ExamRequest) (*content.ExamPaper, *ExamResult, error) {
	topic, err := s.store.Topics().GetInfo(ctx, req.TopicID)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.gen.GenerateExamPaper(ctx, *topic, ExamOptions{
		TargetMarks:     req.TargetMarks,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrGeneration, err)
	}
	paper := res.Paper
	if err := s.store.ExamPapers().Create(ctx, &paper); err != nil {
		return nil, res, fmt.Errorf("save exam paper: %w", err)
	}
	return &paper, res, nil
}

type FlashcardRequest struct {
	TopicID string `json:"topic_id" binding:"required"`
	Count   int    `json:"count" binding:"omitempty,min=1,max=50"`
}

// GenerateAndSaveFlashcards generates cards that do not repeat the topic's
// existing fronts and stores them.
func (s *Service) GenerateAndSaveFlashcards(ctx context.Context, req FlashcardRequest) ([]content.Flashcard, *FlashcardResult, error) {
	topic, err := s.store.Topics().GetInfo(ctx, req.TopicID)
	if err != nil {
		return nil, nil, err
	}
	existing, err := s.store.Flashcards().ListByTopic(ctx, req.TopicID)
	if err != nil {
		return nil, nil, fmt.Errorf("load flashcards: %w", err)
	}
	fronts := make([]string, len(existing))
	for i, f := range existing {
		fronts[i] = f.Front
	}

	res, err := s.gen.GenerateFlashcards(ctx, *topic, FlashcardOptions{Count: req.Count, Avoid: fronts})
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrGeneration, err)
	}
	if len(res.Flashcards) == 0 {
		return nil, res, apperrors.New(apperrors.ErrGeneration, "no new flashcards were generated")
	}
	if err := s.store.Flashcards().CreateMany(ctx, res.Flashcards); err != nil {
		return nil, res, fmt.Errorf("save flashcards: %w", err)
	}
	return res.Flashcards, res, nil
}
