package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/abhisek/igcseprep/internal/api/dto"
	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/auth"
	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/logger"
)

const (
	headerRequestID = "X-Request-ID"

	ctxRequestID = "request_id"
	ctxUserID    = "user_id"
	ctxEmail     = "email"
	ctxRole      = "role"
)

// RequestID propagates an incoming X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// AccessLog writes one structured line per request.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := logger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			ev = logger.Error()
		case status >= http.StatusBadRequest:
			ev = logger.Warn()
		}
		ev.Str("request_id", c.GetString(ctxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("user_id", c.GetString(ctxUserID)).
			Msg("http request")
	}
}

// Recovery turns panics into a 500 envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error().
			Str("request_id", c.GetString(ctxRequestID)).
			Interface("panic", recovered).
			Msg("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			dto.NewErrorResponse(dto.NewErrorDetail(dto.ErrorCodeInternalServer, "internal server error")))
	})
}

// JWTAuth requires a valid Bearer access token and stores its claims in
// the context.
func JWTAuth(jwt *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			HandleAPIError(c, err)
			return
		}
		claims, err := jwt.ValidateToken(token)
		if err != nil {
			HandleAPIError(c, err)
			return
		}
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxRole, string(claims.Role))
		c.Next()
	}
}

// RoleRequired rejects callers whose token role is not in roles.
func RoleRequired(roles ...content.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := content.Role(c.GetString(ctxRole))
		if !slices.Contains(roles, role) {
			HandleAPIError(c, apperrors.Forbidden("insufficient role"))
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) string { return c.GetString(ctxUserID) }

func isAdmin(c *gin.Context) bool {
	return content.Role(c.GetString(ctxRole)) == content.RoleAdmin
}
