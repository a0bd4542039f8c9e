package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/abhisek/igcseprep/internal/api/dto"
	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/logger"
)

type errorMapping struct {
	target  error
	status  int
	code    dto.ErrorCode
	message string
}

// Order matters: the first sentinel the error matches wins.
var errorMappings = []errorMapping{
	{apperrors.ErrNotFound, http.StatusNotFound, dto.ErrorCodeResourceNotFound, "resource not found"},
	{apperrors.ErrConflict, http.StatusConflict, dto.ErrorCodeResourceAlreadyExists, "resource already exists"},
	{apperrors.ErrValidation, http.StatusBadRequest, dto.ErrorCodeValidationFailed, "validation failed"},
	{apperrors.ErrBadRequest, http.StatusBadRequest, dto.ErrorCodeBadRequest, "bad request"},
	{apperrors.ErrInvalidCredentials, http.StatusUnauthorized, dto.ErrorCodeInvalidCredentials, "invalid credentials"},
	{apperrors.ErrTokenExpired, http.StatusUnauthorized, dto.ErrorCodeExpiredToken, "token expired"},
	{apperrors.ErrTokenRevoked, http.StatusUnauthorized, dto.ErrorCodeRevokedToken, "token revoked"},
	{apperrors.ErrTokenInvalid, http.StatusUnauthorized, dto.ErrorCodeInvalidToken, "invalid token"},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, dto.ErrorCodeUnauthorized, "authentication required"},
	{apperrors.ErrForbidden, http.StatusForbidden, dto.ErrorCodeForbidden, "permission denied"},
	{apperrors.ErrDailyLimitReached, http.StatusTooManyRequests, dto.ErrorCodeDailyLimit, "daily generation limit reached"},
	{apperrors.ErrGeneration, http.StatusBadGateway, dto.ErrorCodeGenerationFailed, "content generation failed"},
}

// HandleAPIError writes the error envelope for err and aborts the request.
func HandleAPIError(c *gin.Context, err error) {
	status, detail := describeError(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).
			Str("request_id", c.GetString(ctxRequestID)).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(detail))
}

func describeError(err error) (int, *dto.ErrorDetail) {
	var ce *apperrors.CustomError
	hasCustom := errors.As(err, &ce)

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		detail := dto.NewErrorDetail(m.code, m.message)
		if hasCustom {
			if ce.Message != "" {
				detail.Message = ce.Message
			}
			if ce.Code != "" {
				detail.Code = dto.ErrorCode(ce.Code)
			}
			detail.WithDetails(ce.Details)
		}
		return m.status, detail
	}
	return http.StatusInternalServerError, dto.NewErrorDetail(dto.ErrorCodeInternalServer, "internal server error")
}

// bindError converts a gin binding failure into a validation error with
// one entry per offending field.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		return apperrors.Validation("invalid request body", fields)
	}
	return apperrors.Wrap(apperrors.ErrBadRequest, fmt.Errorf("malformed request: %w", err))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}
