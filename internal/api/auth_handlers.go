package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/igcseprep/internal/api/dto"
	"github.com/abhisek/igcseprep/internal/auth"
	"github.com/abhisek/igcseprep/internal/content"
)

type sessionResponse struct {
	User   *content.User   `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	u, pair, err := h.Auth.Register(c.Request.Context(), req)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(sessionResponse{User: u, Tokens: pair}, "registered"))
}

func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	u, pair, err := h.Auth.Login(c.Request.Context(), req)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, sessionResponse{User: u, Tokens: pair}, "logged in")
}

func (h *Handler) Refresh(c *gin.Context) {
	var req auth.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}
	pair, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, pair, "token refreshed")
}

func (h *Handler) Logout(c *gin.Context) {
	var req auth.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, nil, "logged out")
}

func (h *Handler) Me(c *gin.Context) {
	u, err := h.Auth.Me(c.Request.Context(), userID(c))
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	ok(c, u, "")
}
