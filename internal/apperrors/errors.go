package apperrors

import "errors"

var (
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("resource already exists")
	ErrValidation = errors.New("validation failed")
	ErrBadRequest = errors.New("bad request")
	ErrInternal   = errors.New("internal error")

	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("permission denied")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token revoked")

	ErrGeneration        = errors.New("content generation failed")
	ErrDailyLimitReached = errors.New("daily generation limit reached")
)

// CustomError carries a user-facing message and optional details on top of
// one of the sentinel errors above.
type CustomError struct {
	Err error
	// Cause is the underlying failure, kept reachable for errors.Is/As.
	Cause   error
	Message string
	Code    string
	Details map[string]any
}

func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *CustomError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Err != nil {
		out = append(out, e.Err)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// New creates a CustomError wrapping err with a message.
func New(err error, message string) *CustomError {
	return &CustomError{Err: err, Message: message}
}

// Wrap classifies cause under the sentinel err. The message is the cause's.
func Wrap(err, cause error) *CustomError {
	return &CustomError{Err: err, Cause: cause, Message: cause.Error()}
}

// WithCode sets an application error code such as "RES_001".
func (e *CustomError) WithCode(code string) *CustomError {
	e.Code = code
	return e
}

// WithDetail adds one key to Details.
func (e *CustomError) WithDetail(key string, value any) *CustomError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func NotFound(message string) error   { return New(ErrNotFound, message) }
func Conflict(message string) error   { return New(ErrConflict, message) }
func BadRequest(message string) error { return New(ErrBadRequest, message) }
func Forbidden(message string) error  { return New(ErrForbidden, message) }

// Validation builds a validation error with per-field messages.
func Validation(message string, fields map[string]string) error {
	ce := New(ErrValidation, message)
	for k, v := range fields {
		ce.WithDetail(k, v)
	}
	return ce
}

// Is reports whether err matches target or any of the others.
func Is(err, target error, others ...error) bool {
	if errors.Is(err, target) {
		return true
	}
	for _, o := range others {
		if errors.Is(err, o) {
			return true
		}
	}
	return false
}
