// Package dto holds the JSON envelope shared by every API response.
package dto

import "time"

type ErrorCode string

const (
	ErrorCodeInvalidCredentials ErrorCode = "AUTH_001"
	ErrorCodeInvalidToken       ErrorCode = "AUTH_005"
	ErrorCodeExpiredToken       ErrorCode = "AUTH_006"
	ErrorCodeRevokedToken       ErrorCode = "AUTH_007"
	ErrorCodeUnauthorized       ErrorCode = "AUTH_008"
	ErrorCodeForbidden          ErrorCode = "AUTH_009"

	ErrorCodeResourceNotFound      ErrorCode = "RES_001"
	ErrorCodeResourceAlreadyExists ErrorCode = "RES_002"

	ErrorCodeValidationFailed ErrorCode = "VAL_001"
	ErrorCodeBadRequest       ErrorCode = "VAL_002"

	ErrorCodeInternalServer   ErrorCode = "SRV_001"
	ErrorCodeGenerationFailed ErrorCode = "SRV_003"
	ErrorCodeDailyLimit       ErrorCode = "SRV_004"
)

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func NewErrorDetail(code ErrorCode, message string) *ErrorDetail {
	return &ErrorDetail{Code: code, Message: message}
}

// WithDetails merges details into the error.
func (e *ErrorDetail) WithDetails(details map[string]any) *ErrorDetail {
	if len(details) == 0 {
		return e
	}
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

type PaginationInfo struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
}

// NewPagination computes the page count for total items.
func NewPagination(page, pageSize, total int) *PaginationInfo {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page < 1 {
		page = 1
	}
	return &PaginationInfo{
		CurrentPage: page,
		PageSize:    pageSize,
		TotalItems:  total,
		TotalPages:  (total + pageSize - 1) / pageSize,
	}
}

// APIResponse is the envelope of every response body.
type APIResponse struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message,omitempty"`
	Data       any             `json:"data,omitempty"`
	Error      *ErrorDetail    `json:"error,omitempty"`
	Pagination *PaginationInfo `json:"pagination,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

func NewSuccessResponse(data any, message string) APIResponse {
	return APIResponse{Success: true, Message: message, Data: data, Timestamp: time.Now().UTC()}
}

func NewPaginatedResponse(data any, p *PaginationInfo) APIResponse {
	return APIResponse{Success: true, Data: data, Pagination: p, Timestamp: time.Now().UTC()}
}

func NewErrorResponse(e *ErrorDetail) APIResponse {
	return APIResponse{Success: false, Error: e, Timestamp: time.Now().UTC()}
}
