package selection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/logger"
	"github.com/abhisek/igcseprep/internal/store"
)

// PaperRequest describes a paper to assemble from the bank.
type PaperRequest struct {
	SubjectID       string   `json:"subject_id" binding:"required"`
	TopicIDs        []string `json:"topic_ids"`
	TargetMarks     int      `json:"target_marks" binding:"required,min=1,max=300"`
	Tolerance       int      `json:"tolerance" binding:"omitempty,min=0"`
	MaxQuestions    int      `json:"max_questions" binding:"omitempty,min=1"`
	DifficultyFocus int      `json:"difficulty_focus" binding:"omitempty,min=1,max=5"`
	MinDifficulty   int      `json:"min_difficulty" binding:"omitempty,min=1,max=5"`
	MaxDifficulty   int      `json:"max_difficulty" binding:"omitempty,min=1,max=5"`
	ExcludeIDs      []string `json:"exclude_ids"`
	TopicSpread     bool     `json:"topic_spread"`
	DurationMinutes int      `json:"duration_minutes" binding:"omitempty,min=10"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	// Seed fixes the shuffle; zero picks one from the clock.
	Seed int64 `json:"seed"`
}

// Service builds exam papers from stored bank questions.
type Service struct {
	store *store.Store
	now   func() time.Time
}

func NewService(st *store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// Preview selects questions without saving a paper.
func (s *Service) Preview(ctx context.Context, req PaperRequest) (*content.ExamPaper, Result, error) {
	subject, err := s.store.Subjects().Get(ctx, req.SubjectID)
	if err != nil {
		return nil, Result{}, err
	}
	pool, err := s.store.ExamQuestions().Candidates(ctx, store.CandidateFilter{
		SubjectID:     req.SubjectID,
		TopicIDs:      req.TopicIDs,
		MinDifficulty: req.MinDifficulty,
		MaxDifficulty: req.MaxDifficulty,
		ExcludeIDs:    req.ExcludeIDs,
	})
	if err != nil {
		return nil, Result{}, err
	}

	seed := req.Seed
	if seed == 0 {
		seed = s.now().UnixNano()
	}
	res, err := Select(pool, Criteria{
		TargetMarks:     req.TargetMarks,
		Tolerance:       req.Tolerance,
		MaxQuestions:    req.MaxQuestions,
		DifficultyFocus: req.DifficultyFocus,
		TopicSpread:     req.TopicSpread,
		Seed:            seed,
	})
	if err != nil {
		var unreachable *ErrTargetUnreachable
		switch {
		case errors.Is(err, ErrEmptyPool):
			return nil, Result{}, apperrors.Wrap(apperrors.ErrNotFound, err)
		case errors.Is(err, ErrInvalidCriteria):
			return nil, Result{}, apperrors.Wrap(apperrors.ErrValidation, err)
		case errors.As(err, &unreachable):
			return nil, Result{}, apperrors.Wrap(apperrors.ErrValidation, err).
				WithDetail("best_total", unreachable.Best).
				WithDetail("candidates", len(pool))
		}
		return nil, Result{}, err
	}

	paper := &content.ExamPaper{
		SubjectID:        req.SubjectID,
		Title:            req.Title,
		Description:      req.Description,
		DurationMinutes:  req.DurationMinutes,
		TotalMarks:       res.TotalMarks,
		GenerationMethod: content.MethodManual,
		GenerationModel:  "bank-selection",
		Questions:        make([]content.ExamQuestion, len(res.Questions)),
	}
	if len(req.TopicIDs) == 1 {
		paper.TopicID = req.TopicIDs[0]
	}
	if paper.Title == "" {
		paper.Title = fmt.Sprintf("IGCSE %s Practice Paper (%d marks)", subject.Name, res.TotalMarks)
	}
	if paper.DurationMinutes == 0 {
		paper.DurationMinutes = 60
		if res.TotalMarks > 20 {
			paper.DurationMinutes = 90
		}
	}
	for i, q := range res.Questions {
		q.Order = i + 1
		paper.Questions[i] = q
	}
	return paper, res, nil
}

// BuildPaper selects questions and stores the paper with its ordered
// question links.
func (s *Service) BuildPaper(ctx context.Context, req PaperRequest) (*content.ExamPaper, Result, error) {
	paper, res, err := s.Preview(ctx, req)
	if err != nil {
		return nil, res, err
	}
	if err := s.store.ExamPapers().Create(ctx, paper); err != nil {
		return nil, res, fmt.Errorf("save exam paper: %w", err)
	}
	logger.Info().
		Str("paper_id", paper.ID).
		Str("subject_id", paper.SubjectID).
		Int("marks", res.TotalMarks).
		Int("target", res.Target).
		Int("questions", len(paper.Questions)).
		Msg("exam paper assembled")
	return paper, res, nil
}
