// Package api serves the REST interface over gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/igcseprep/internal/api/dto"
	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/auth"
	"github.com/abhisek/igcseprep/internal/batch"
	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/generation"
	"github.com/abhisek/igcseprep/internal/ingest"
	"github.com/abhisek/igcseprep/internal/monitoring"
	"github.com/abhisek/igcseprep/internal/selection"
	"github.com/abhisek/igcseprep/internal/store"
)

// Deps are the services the handlers call. Collector may be nil when no
// scraping backend is configured.
type Deps struct {
	Store      *store.Store
	Auth       *auth.Service
	Generation *generation.Service
	Selection  *selection.Service
	Batch      *batch.Generator
	Collector  *ingest.Collector
	Validator  *ingest.Validator
	Processor  *ingest.Processor
	Metrics    *monitoring.Collector
	// BaseContext outlives requests; background runs use it.
	BaseContext context.Context
}

type Handler struct {
	Deps
	now func() time.Time
}

func NewHandler(d Deps) *Handler {
	if d.BaseContext == nil {
		d.BaseContext = context.Background()
	}
	return &Handler{Deps: d, now: time.Now}
}

type pageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (q pageQuery) page() store.Page {
	return store.Page{Page: q.Page, PageSize: q.PageSize}
}

type limitQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

func (q limitQuery) or(def int) int {
	if q.Limit == 0 {
		return def
	}
	return q.Limit
}

func ok(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data, message))
}

func created(c *gin.Context, data any, message string) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data, message))
}

// bindJSON binds the body and writes the error response on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		HandleAPIError(c, bindError(err))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		HandleAPIError(c, bindError(err))
		return false
	}
	return true
}

// contentError turns content.FieldErrors into a validation error.
func contentError(err error) error {
	var fe content.FieldErrors
	if errors.As(err, &fe) {
		return apperrors.Validation("invalid content", fe)
	}
	return err
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, dto.APIResponse{
			Success:   false,
			Data:      gin.H{"status": "degraded", "database": err.Error()},
			Error:     dto.NewErrorDetail(dto.ErrorCodeInternalServer, "database unreachable"),
			Timestamp: time.Now().UTC(),
		})
		return
	}
	ok(c, gin.H{"status": "ok", "database": "ok", "dialect": h.Store.Dialect()}, "")
}
