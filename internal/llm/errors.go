package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrRateLimit indicates the provider returned a rate limit error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the LLM returned content that could not be
// repaired into JSON conforming to the requested schema. Content holds the
// original model text.
type ErrInvalidResponse struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down or unreachable.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded indicates the response was truncated at MaxTokens
// and could not be repaired.
type ErrMaxTokensExceeded struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrMaxTokensExceeded) Error() string {
	return "LLM response truncated: max tokens exceeded"
}

func (e *ErrMaxTokensExceeded) Unwrap() error { return e.Err }

// ErrContentBlocked indicates the provider refused the request or withheld
// the answer, e.g. a safety filter on a biology prompt. Resending the same
// prompt gets the same answer.
type ErrContentBlocked struct {
	Reason string
	Err    error
}

func (e *ErrContentBlocked) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM content blocked (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("LLM content blocked (%s)", e.Reason)
}

func (e *ErrContentBlocked) Unwrap() error { return e.Err }

// IsContentBlocked reports whether err is, or wraps, an *ErrContentBlocked.
func IsContentBlocked(err error) bool {
	var cb *ErrContentBlocked
	return errors.As(err, &cb)
}

// IsRateLimit reports whether err is, or wraps, an *ErrRateLimit.
func IsRateLimit(err error) bool {
	var rl *ErrRateLimit
	return errors.As(err, &rl)
}

// IsUnavailable reports whether err is, or wraps, an *ErrProviderUnavailable.
func IsUnavailable(err error) bool {
	var u *ErrProviderUnavailable
	return errors.As(err, &u)
}

// IsInvalidResponse reports whether the model output was unusable, either
// malformed or truncated.
func IsInvalidResponse(err error) bool {
	var inv *ErrInvalidResponse
	var mt *ErrMaxTokensExceeded
	return errors.As(err, &inv) || errors.As(err, &mt)
}
