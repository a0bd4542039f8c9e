package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/igcseprep/internal/api/dto"
	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/store"
)

type subjectRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Code        string `json:"code" binding:"max=20"`
	Description string `json:"description"`
}

func (h *Handler) ListSubjects(c *gin.Context) {
	subjects, err := h.Store.Subjects().List(c.Request.Context())
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, subjects, "")
}

func (h *Handler) GetSubject(c *gin.Context) {
	s, err := h.Store.Subjects().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, s, "")
}

func (h *Handler) CreateSubject(c *gin.Context) {
	var req subjectRequest
	if !bindJSON(c, &req) {
		return
	}
	s := &content.Subject{Name: strings.TrimSpace(req.Name), Code: req.Code, Description: req.Description}
	if err := h.Store.Subjects().Create(c.Request.Context(), s); err != nil {
		HandleAPIError(c, err)
		return
	}
	created(c, s, "subject created")
}

func (h *Handler) UpdateSubject(c *gin.Context) {
	var req subjectRequest
	if !bindJSON(c, &req) {
		return
	}
	s := &content.Subject{ID: c.Param("id"), Name: strings.TrimSpace(req.Name), Code: req.Code, Description: req.Description}
	if err := h.Store.Subjects().Update(c.Request.Context(), s); err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, s, "subject updated")
}

func (h *Handler) DeleteSubject(c *gin.Context) {
	if err := h.Store.Subjects().Delete(c.Request.Context(), c.Param("id")); err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, nil, "subject deleted")
}

func (h *Handler) ListChapters(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.Store.Subjects().Get(ctx, c.Param("id")); err != nil {
		HandleAPIError(c, err)
		return
	}
	chapters, err := h.Store.Chapters().ListBySubject(ctx, c.Param("id"))
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, chapters, "")
}

type chapterRequest struct {
	SubjectID    string `json:"subject_id" binding:"required"`
	Title        string `json:"title" binding:"required,max=200"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"display_order" binding:"omitempty,min=0"`
}

func (r chapterRequest) chapter(id string) *content.Chapter {
	return &content.Chapter{
		ID:           id,
		SubjectID:    r.SubjectID,
		Title:        strings.TrimSpace(r.Title),
		Description:  r.Description,
		DisplayOrder: r.DisplayOrder,
	}
}

func (h *Handler) CreateChapter(c *gin.Context) {
	var req chapterRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.Store.Subjects().Get(ctx, req.SubjectID); err != nil {
		HandleAPIError(c, err)
		return
	}
	ch := req.chapter("")
	if err := h.Store.Chapters().Create(ctx, ch); err != nil {
		HandleAPIError(c, err)
		return
	}
	created(c, ch, "chapter created")
}

func (h *Handler) UpdateChapter(c *gin.Context) {
	var req chapterRequest
	if !bindJSON(c, &req) {
		return
	}
	ch := req.chapter(c.Param("id"))
	if err := h.Store.Chapters().Update(c.Request.Context(), ch); err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, ch, "chapter updated")
}

func (h *Handler) DeleteChapter(c *gin.Context) {
	if err := h.Store.Chapters().Delete(c.Request.Context(), c.Param("id")); err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, nil, "chapter deleted")
}

type topicListQuery struct {
	SubjectID string `form:"subject_id"`
	ChapterID string `form:"chapter_id"`
	pageQuery
}

func (h *Handler) ListTopics(c *gin.Context) {
	var q topicListQuery
	if !bindQuery(c, &q) {
		return
	}
	topics, total, err := h.Store.Topics().List(c.Request.Context(), store.TopicFilter{
		SubjectID: q.SubjectID,
		ChapterID: q.ChapterID,
		Page:      q.page(),
	})
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(topics, dto.NewPagination(q.Page, q.PageSize, total)))
}

func (h *Handler) GetTopic(c *gin.Context) {
	t, err := h.Store.Topics().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, t, "")
}

type topicRequest struct {
	SubjectID          string   `json:"subject_id" binding:"required"`
	ChapterID          string   `json:"chapter_id"`
	Title              string   `json:"title" binding:"required,max=200"`
	Description        string   `json:"description"`
	SyllabusCode       string   `json:"syllabus_code" binding:"max=20"`
	DifficultyLevel    int      `json:"difficulty_level" binding:"omitempty,min=1,max=5"`
	LearningObjectives []string `json:"learning_objectives"`
	DisplayOrder       int      `json:"display_order" binding:"omitempty,min=0"`
}

func (r topicRequest) topic(id string) *content.Topic {
	return &content.Topic{
		ID:                 id,
		SubjectID:          r.SubjectID,
		ChapterID:          r.ChapterID,
		Title:              strings.TrimSpace(r.Title),
		Description:        r.Description,
		SyllabusCode:       r.SyllabusCode,
		DifficultyLevel:    content.ClampDifficulty(r.DifficultyLevel),
		LearningObjectives: r.LearningObjectives,
		DisplayOrder:       r.DisplayOrder,
	}
}

func (h *Handler) CreateTopic(c *gin.Context) {
	var req topicRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.Store.Subjects().Get(ctx, req.SubjectID); err != nil {
		HandleAPIError(c, err)
		return
	}
	t := req.topic("")
	if err := h.Store.Topics().Create(ctx, t); err != nil {
		HandleAPIError(c, err)
		return
	}
	created(c, t, "topic created")
}

func (h *Handler) UpdateTopic(c *gin.Context) {
	var req topicRequest
	if !bindJSON(c, &req) {
		return
	}
	t := req.topic(c.Param("id"))
	if err := h.Store.Topics().Update(c.Request.Context(), t); err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, t, "topic updated")
}

func (h *Handler) DeleteTopic(c *gin.Context) {
	if err := h.Store.Topics().Delete(c.Request.Context(), c.Param("id")); err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, nil, "topic deleted")
}
