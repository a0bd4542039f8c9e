package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/igcseprep/internal/api/dto"
	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/store"
)

type quizListQuery struct {
	TopicID string `form:"topic_id"`
	pageQuery
}

// ListQuizzes shows drafts to admins only.
func (h *Handler) ListQuizzes(c *gin.Context) {
	var q quizListQuery
	if !bindQuery(c, &q) {
		return
	}
	quizzes, total, err := h.Store.Quizzes().List(c.Request.Context(), store.QuizFilter{
		TopicID:       q.TopicID,
		PublishedOnly: !isAdmin(c),
		Page:          q.page(),
	})
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(quizzes, dto.NewPagination(q.Page, q.PageSize, total)))
}

// visibleQuiz loads a quiz the caller may see.
func (h *Handler) visibleQuiz(c *gin.Context) (*content.Quiz, bool) {
	quiz, err := h.Store.Quizzes().Get(c.Request.Context(), c.Param("id"))
	if err == nil && !quiz.Published && !isAdmin(c) {
		err = apperrors.NotFound("quiz not found")
	}
	if err != nil {
		HandleAPIError(c, err)
		return nil, false
	}
	return quiz, true
}

func (h *Handler) GetQuiz(c *gin.Context) {
	quiz, found := h.visibleQuiz(c)
	if !found {
		return
	}
	if !isAdmin(c) && !quiz.ShowAnswers {
		redactAnswers(quiz)
	}
	ok(c, quiz, "")
}

func redactAnswers(q *content.Quiz) {
	for i := range q.Questions {
		q.Questions[i].CorrectAnswer = ""
		q.Questions[i].Explanation = ""
	}
}

type publishRequest struct {
	Published *bool `json:"published"`
}

func (h *Handler) PublishQuiz(c *gin.Context) {
	var req publishRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	published := req.Published == nil || *req.Published
	if err := h.Store.Quizzes().SetPublished(c.Request.Context(), c.Param("id"), published); err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, gin.H{"id": c.Param("id"), "published": published}, "quiz updated")
}

func (h *Handler) DeleteQuiz(c *gin.Context) {
	if err := h.Store.Quizzes().Delete(c.Request.Context(), c.Param("id")); err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, nil, "quiz deleted")
}

type attemptRequest struct {
	// Answers maps question id to the learner's answer.
	Answers map[string]string `json:"answers" binding:"required"`
}

type answerResult struct {
	QuestionID    string `json:"question_id"`
	Given         string `json:"given"`
	Correct       bool   `json:"correct"`
	Points        int    `json:"points"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
	Explanation   string `json:"explanation,omitempty"`
}

type attemptResponse struct {
	Attempt  *store.QuizAttempt   `json:"attempt"`
	Progress *store.TopicProgress `json:"progress"`
	Results  []answerResult       `json:"results"`
}

// SubmitAttempt scores the answers and folds the result into the learner's
// topic progress.
func (h *Handler) SubmitAttempt(c *gin.Context) {
	var req attemptRequest
	if !bindJSON(c, &req) {
		return
	}
	quiz, found := h.visibleQuiz(c)
	if !found {
		return
	}
	if len(quiz.Questions) == 0 {
		HandleAPIError(c, apperrors.BadRequest("quiz has no questions"))
		return
	}

	score, maxScore, results := gradeQuiz(quiz, req.Answers, quiz.ShowAnswers || isAdmin(c))
	attempt := &store.QuizAttempt{
		UserID:   userID(c),
		QuizID:   quiz.ID,
		TopicID:  quiz.TopicID,
		Score:    score,
		MaxScore: maxScore,
		Answers:  req.Answers,
	}
	progress, err := h.Store.Progress().RecordQuizAttempt(c.Request.Context(), attempt)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	created(c, attemptResponse{Attempt: attempt, Progress: progress, Results: results}, "attempt recorded")
}

// gradeQuiz awards a question's points when the answer matches its key, or
// for multiple choice the text of the correct option, ignoring case.
func gradeQuiz(q *content.Quiz, answers map[string]string, reveal bool) (score, maxScore int, results []answerResult) {
	results = make([]answerResult, 0, len(q.Questions))
	for _, qq := range q.Questions {
		points := max(qq.Points, 1)
		maxScore += points
		given := answers[qq.ID]
		r := answerResult{QuestionID: qq.ID, Given: given, Correct: answerMatches(qq, given)}
		if r.Correct {
			r.Points = points
			score += points
		}
		if reveal {
			r.CorrectAnswer = qq.CorrectAnswer
			r.Explanation = qq.Explanation
		}
		results = append(results, r)
	}
	return score, maxScore, results
}

func answerMatches(q content.QuizQuestion, given string) bool {
	given = normalizeAnswer(given)
	if given == "" {
		return false
	}
	if given == normalizeAnswer(q.CorrectAnswer) {
		return true
	}
	if q.QuestionType == content.MultipleChoice {
		key := strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
		if text, ok := q.Options[key]; ok && normalizeAnswer(text) == given {
			return true
		}
	}
	return false
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func (h *Handler) ListProgress(c *gin.Context) {
	progress, err := h.Store.Progress().ListUserProgress(c.Request.Context(), userID(c))
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, progress, "")
}

func (h *Handler) GetTopicProgress(c *gin.Context) {
	p, err := h.Store.Progress().GetTopicProgress(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, p, "")
}
