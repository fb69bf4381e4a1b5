package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage is returned when a Redis key does not exist.
	RedisNotFoundMessage = "redis key not found"
)

// Kind classifies an AppError for turn-level handling.
type Kind string

const (
	KindUnknown            Kind = ""
	KindValidation         Kind = "validation"
	KindToolExecution      Kind = "tool_execution"
	KindToolNotFound       Kind = "tool_not_found"
	KindRetryLimitExceeded Kind = "retry_limit_exceeded"
	KindForcedToolUsage    Kind = "forced_tool_usage_unsatisfied"
	KindResponseGuard      Kind = "response_guard_rejection"
	KindCompletion         Kind = "completion"
	KindConfig             Kind = "config"
	KindRedis              Kind = "redis"
)

// AppError wraps an underlying error with a kind, an HTTP status and a safe message.
type AppError struct {
	Kind    Kind
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewKind creates a classified AppError.
func NewKind(kind Kind, err error, status int, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Validation reports a missing or malformed slot. The message is user-facing.
func Validation(slot, message string) *AppError {
	return NewKind(KindValidation, fmt.Errorf("slot %q", slot), http.StatusUnprocessableEntity, message)
}

// ToolExecution wraps a failure calling the tool provider.
func ToolExecution(tool string, err error) *AppError {
	return NewKind(KindToolExecution, err, http.StatusBadGateway, "tool "+tool+" failed")
}

// ToolNotFound reports a tool name the catalog does not know.
func ToolNotFound(tool string) *AppError {
	return NewKind(KindToolNotFound, nil, http.StatusNotFound, "tool "+tool+" not found")
}

// RetryLimitExceeded is turn-fatal: the tool loop did not converge.
func RetryLimitExceeded(limit int) *AppError {
	return NewKind(KindRetryLimitExceeded, nil, http.StatusInternalServerError,
		fmt.Sprintf("tool loop exceeded %d iterations", limit))
}

// ForcedToolUsage is turn-fatal: a policy required a tool and none succeeded twice.
func ForcedToolUsage(policy string) *AppError {
	return NewKind(KindForcedToolUsage, nil, http.StatusInternalServerError,
		"policy "+policy+" requires a tool result and none was produced")
}

// Completion wraps a completion service failure.
func Completion(err error) *AppError {
	return NewKind(KindCompletion, err, http.StatusBadGateway, "completion service failed")
}

// Config wraps a configuration problem detected at load time.
func Config(err error) *AppError {
	return NewKind(KindConfig, err, http.StatusInternalServerError, "invalid configuration")
}

// KindOf returns the Kind of the first AppError in err's chain.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return t.Kind != KindUnknown && t.Kind == e.Kind
	}
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return errors.As(e.Err, target)
}
