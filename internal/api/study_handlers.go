package api

import (
	"github.com/gin-gonic/gin"

	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/spacedrep"
	"github.com/abhisek/igcseprep/internal/store"
)

func (h *Handler) ListTopicFlashcards(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.Store.Topics().Get(ctx, c.Param("id")); err != nil {
		HandleAPIError(c, err)
		return
	}
	cards, err := h.Store.Flashcards().ListByTopic(ctx, c.Param("id"))
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, cards, "")
}

type reviewRequest struct {
	// Quality is the SM-2 recall grade.
	Quality *int `json:"quality" binding:"required,min=0,max=5"`
}

type reviewResponse struct {
	Review          spacedrep.ReviewState  `json:"review"`
	Status          spacedrep.ReviewStatus `json:"status"`
	DaysUntilReview int                    `json:"days_until_review"`
}

// ReviewFlashcard applies an SM-2 grade to the learner's state for a card.
func (h *Handler) ReviewFlashcard(c *gin.Context) {
	var req reviewRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	cardID := c.Param("id")
	if _, err := h.Store.Flashcards().Get(ctx, cardID); err != nil {
		HandleAPIError(c, err)
		return
	}

	now := h.now().UTC()
	state := spacedrep.NewState(cardID, now)
	prev, err := h.Store.Progress().GetFlashcardReview(ctx, userID(c), cardID)
	switch {
	case err == nil:
		state = *prev
	case !store.IsNotFound(err):
		HandleAPIError(c, err)
		return
	}

	next, err := spacedrep.Review(state, *req.Quality, now)
	if err != nil {
		HandleAPIError(c, apperrors.Wrap(apperrors.ErrValidation, err))
		return
	}
	if err := h.Store.Progress().UpsertFlashcardReview(ctx, userID(c), next); err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, reviewResponse{
		Review:          next,
		Status:          next.Status(now),
		DaysUntilReview: next.DaysUntilReview(now),
	}, "review recorded")
}

func (h *Handler) DueFlashcards(c *gin.Context) {
	var q limitQuery
	if !bindQuery(c, &q) {
		return
	}
	due, err := h.Store.Progress().DueFlashcards(c.Request.Context(), userID(c), h.now(), q.or(20))
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, due, "")
}

type paperListQuery struct {
	SubjectID string `form:"subject_id"`
}

func (h *Handler) ListExamPapers(c *gin.Context) {
	var q paperListQuery
	if !bindQuery(c, &q) {
		return
	}
	papers, err := h.Store.ExamPapers().List(c.Request.Context(), q.SubjectID)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, papers, "")
}

func (h *Handler) GetExamPaper(c *gin.Context) {
	p, err := h.Store.ExamPapers().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, p, "")
}

func (h *Handler) DeleteExamPaper(c *gin.Context) {
	if err := h.Store.ExamPapers().Delete(c.Request.Context(), c.Param("id")); err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, nil, "exam paper deleted")
}

type examQuestionsRequest struct {
	Questions []content.ExamQuestion `json:"questions" binding:"required,min=1,max=200"`
}

// CreateExamQuestions adds questions to the bank. Every question must name
// an existing subject.
func (h *Handler) CreateExamQuestions(c *gin.Context) {
	var req examQuestionsRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	subjects := map[string]bool{}
	for i := range req.Questions {
		q := &req.Questions[i]
		q.ID, q.Order = "", 0
		if q.SubjectID == "" {
			HandleAPIError(c, apperrors.Validation("invalid content", map[string]string{"subject_id": "is required"}))
			return
		}
		if err := content.ValidateExamQuestion(q); err != nil {
			HandleAPIError(c, contentError(err))
			return
		}
		if !subjects[q.SubjectID] {
			if _, err := h.Store.Subjects().Get(ctx, q.SubjectID); err != nil {
				HandleAPIError(c, err)
				return
			}
			subjects[q.SubjectID] = true
		}
	}
	if err := h.Store.ExamQuestions().CreateMany(ctx, req.Questions); err != nil {
		HandleAPIError(c, err)
		return
	}
	created(c, req.Questions, "exam questions added")
}
