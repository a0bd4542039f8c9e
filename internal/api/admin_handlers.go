package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/igcseprep/internal/api/dto"
	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/batch"
	"github.com/abhisek/igcseprep/internal/generation"
	"github.com/abhisek/igcseprep/internal/ingest"
	"github.com/abhisek/igcseprep/internal/llm"
	"github.com/abhisek/igcseprep/internal/logger"
	"github.com/abhisek/igcseprep/internal/selection"
	"github.com/abhisek/igcseprep/internal/store"
)

func (h *Handler) GenerateQuiz(c *gin.Context) {
	var req generation.QuizRequest
	if !bindJSON(c, &req) {
		return
	}
	quiz, res, err := h.Generation.GenerateAndSaveQuiz(c.Request.Context(), req)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	created(c, gin.H{
		"quiz":            quiz,
		"rejected":        res.Rejected,
		"usage":           res.Usage,
		"model":           res.Model,
		"average_quality": res.AverageQuality(),
	}, "quiz generated")
}

func (h *Handler) GenerateFlashcards(c *gin.Context) {
	var req generation.FlashcardRequest
	if !bindJSON(c, &req) {
		return
	}
	cards, res, err := h.Generation.GenerateAndSaveFlashcards(c.Request.Context(), req)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	created(c, gin.H{
		"flashcards": cards,
		"dropped":    res.Dropped,
		"usage":      res.Usage,
		"model":      res.Model,
	}, "flashcards generated")
}

func (h *Handler) GenerateExamPaper(c *gin.Context) {
	var req generation.ExamRequest
	if !bindJSON(c, &req) {
		return
	}
	paper, res, err := h.Generation.GenerateAndSaveExamPaper(c.Request.Context(), req)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	created(c, gin.H{
		"paper":    paper,
		"accepted": res.Accepted,
		"attempts": res.Attempts,
		"usage":    res.Usage,
		"model":    res.Model,
	}, "exam paper generated")
}

// SelectExamPaper assembles and stores a paper from the question bank.
func (h *Handler) SelectExamPaper(c *gin.Context) {
	var req selection.PaperRequest
	if !bindJSON(c, &req) {
		return
	}
	paper, res, err := h.Selection.BuildPaper(c.Request.Context(), req)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	created(c, gin.H{
		"paper":        paper,
		"total_marks":  res.TotalMarks,
		"target_marks": res.Target,
		"exact":        res.Exact,
	}, "exam paper assembled")
}

type batchRunRequest struct {
	Subject           string `json:"subject"`
	MaxTopics         int    `json:"max_topics" binding:"omitempty,min=1,max=200"`
	QuestionsPerTopic int    `json:"questions_per_topic" binding:"omitempty,min=1,max=50"`
}

// RunBatch starts a batch run in the background and answers with its id
// once the run is recorded.
func (h *Handler) RunBatch(c *gin.Context) {
	var req batchRunRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	started := make(chan string, 1)
	failed := make(chan error, 1)
	go func() {
		res, err := h.Batch.Run(h.BaseContext, batch.RunOptions{
			Subject:           req.Subject,
			MaxTopics:         req.MaxTopics,
			QuestionsPerTopic: req.QuestionsPerTopic,
			Kind:              store.RunManual,
			OnStart:           func(id string) { started <- id },
		})
		if err != nil {
			failed <- err
			return
		}
		logger.Info().
			Str("run_id", res.RunID).
			Int("questions", res.QuestionsGenerated).
			Msg("background batch run finished")
	}()

	select {
	case id := <-started:
		c.JSON(http.StatusAccepted, dto.NewSuccessResponse(gin.H{"run_id": id}, "batch run started"))
	case err := <-failed:
		HandleAPIError(c, err)
	case <-c.Request.Context().Done():
		HandleAPIError(c, c.Request.Context().Err())
	}
}

type needsQuery struct {
	Subject   string `form:"subject"`
	MaxTopics int    `form:"max_topics" binding:"omitempty,min=1,max=500"`
}

func (h *Handler) BatchNeeds(c *gin.Context) {
	var q needsQuery
	if !bindQuery(c, &q) {
		return
	}
	needs, err := h.Batch.AnalyzeNeeds(c.Request.Context(), q.Subject, q.MaxTopics)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, needs, "")
}

func (h *Handler) BatchStatus(c *gin.Context) {
	st, err := h.Batch.Status(c.Request.Context())
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, st, "")
}

func (h *Handler) ListRuns(c *gin.Context) {
	var q limitQuery
	if !bindQuery(c, &q) {
		return
	}
	runs, err := h.Store.Runs().List(c.Request.Context(), q.or(20))
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, runs, "")
}

type scrapeRequest struct {
	URL             string   `json:"url" binding:"required,url"`
	SourceType      string   `json:"source_type" binding:"omitempty,max=50"`
	Subject         string   `json:"subject"`
	SyllabusCode    string   `json:"syllabus_code"`
	DifficultyLevel int      `json:"difficulty_level" binding:"omitempty,min=1,max=5"`
	IncludePatterns []string `json:"include_patterns"`
	ExcludePatterns []string `json:"exclude_patterns"`
}

func (h *Handler) Scrape(c *gin.Context) {
	var req scrapeRequest
	if !bindJSON(c, &req) {
		return
	}
	if h.Collector == nil {
		HandleAPIError(c, apperrors.BadRequest("scraping is not configured: set FIRECRAWL_API_KEY"))
		return
	}
	rc, err := h.Collector.ScrapeSource(c.Request.Context(), ingest.Source{
		URL:             req.URL,
		SourceType:      req.SourceType,
		Subject:         req.Subject,
		SyllabusCode:    req.SyllabusCode,
		DifficultyLevel: req.DifficultyLevel,
		IncludePatterns: req.IncludePatterns,
		ExcludePatterns: req.ExcludePatterns,
	})
	if err != nil {
		HandleAPIError(c, scrapeError(err))
		return
	}
	created(c, rc, "content collected")
}

func scrapeError(err error) error {
	var se *ingest.ScrapeError
	switch {
	case errors.Is(err, ingest.ErrDuplicate):
		return apperrors.Wrap(apperrors.ErrConflict, err)
	case errors.Is(err, ingest.ErrFiltered):
		return apperrors.Wrap(apperrors.ErrBadRequest, err)
	case errors.Is(err, ingest.ErrNoContent):
		return apperrors.Wrap(apperrors.ErrValidation, err)
	case errors.As(err, &se):
		return apperrors.Wrap(apperrors.ErrBadRequest, err).WithDetail("upstream_status", se.StatusCode)
	}
	return err
}

func (h *Handler) ValidateContent(c *gin.Context) {
	var q limitQuery
	if !bindQuery(c, &q) {
		return
	}
	stats, err := h.Validator.ValidatePending(c.Request.Context(), q.or(50))
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, stats, "validation finished")
}

func (h *Handler) ProcessContent(c *gin.Context) {
	var q limitQuery
	if !bindQuery(c, &q) {
		return
	}
	stats, err := h.Processor.ProcessValidated(c.Request.Context(), q.or(10))
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, stats, "processing finished")
}

func (h *Handler) MetricsSnapshot(c *gin.Context) {
	m, err := h.Metrics.Snapshot(c.Request.Context())
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, m, "")
}

type modelCost struct {
	store.ModelUsage
	EstimatedCostUSD *float64 `json:"estimated_cost_usd,omitempty"`
}

func (h *Handler) LLMUsage(c *gin.Context) {
	ctx := c.Request.Context()
	byPurpose, err := h.Store.Events().LLMUsageByPurpose(ctx)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	byModel, err := h.Store.Events().LLMUsageByModel(ctx)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	last24h, err := h.Store.Events().GenerationStats(ctx, h.now().Add(-24*time.Hour))
	if err != nil {
		HandleAPIError(c, err)
		return
	}

	models := make([]modelCost, len(byModel))
	total := 0.0
	for i, m := range byModel {
		models[i] = modelCost{ModelUsage: m}
		if cost, known := llm.EstimateCost(m.Model, m.InputTokens, m.OutputTokens); known {
			models[i].EstimatedCostUSD = &cost
			total += cost
		}
	}
	ok(c, gin.H{
		"by_purpose":               byPurpose,
		"by_model":                 models,
		"last_24h":                 last24h,
		"estimated_total_cost_usd": total,
	}, "")
}
