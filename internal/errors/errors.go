package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
)

// ErrorType represents different types of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeExternal   ErrorType = "external_api"
	ErrorTypeInternal   ErrorType = "internal"
)

// AppError represents an application error with additional context
type AppError struct {
	Type     ErrorType
	Message  string
	Code     string
	Internal error
	Context  map[string]interface{}
	Source   string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the internal error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return errors.Is(e.Internal, target)
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// LogFields returns structured logging fields
func (e *AppError) LogFields() []interface{} {
	fields := []interface{}{
		"error_type", e.Type,
		"error_code", e.Code,
		"error_message", e.Message,
		"source", e.Source,
	}

	if e.Internal != nil {
		fields = append(fields, "internal_error", e.Internal.Error())
	}

	for k, v := range e.Context {
		fields = append(fields, k, v)
	}

	return fields
}

// New creates a new AppError
func New(errorType ErrorType, code, message string) *AppError {
	_, file, line, _ := runtime.Caller(1)
	source := fmt.Sprintf("%s:%d", file, line)

	return &AppError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Source:  source,
		Context: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error into AppError
func Wrap(err error, errorType ErrorType, code, message string) *AppError {
	_, file, line, _ := runtime.Caller(1)
	source := fmt.Sprintf("%s:%d", file, line)

	return &AppError{
		Type:     errorType,
		Code:     code,
		Message:  message,
		Internal: err,
		Source:   source,
		Context:  make(map[string]interface{}),
	}
}

// ConflictIssue classifies why a requested ingredient cannot be granted.
type ConflictIssue string

const (
	IssueUnknown      ConflictIssue = "unknown"
	IssueInsufficient ConflictIssue = "insufficient"
)

// Conflict is one structured reason an allocation request was refused.
type Conflict struct {
	Ingredient string        `json:"ingredient"`
	Requested  float64       `json:"requested"`
	Available  float64       `json:"available"`
	Unit       string        `json:"unit"`
	Issue      ConflictIssue `json:"issue"`
}

// ConflictError is the only expected failure of an allocation. It carries the
// full conflict list so callers handle one failure shape; unknown ingredients
// are conflict items, not a separate error type.
type ConflictError struct {
	PlanID    uint
	Conflicts []Conflict
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %d ingredient(s) cannot be allocated for plan %d", len(e.Conflicts), e.PlanID)
}

// AsConflict extracts a ConflictError from an error chain.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsNotFound reports whether err is a not_found AppError.
func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsValidation reports whether err is a validation AppError.
func IsValidation(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeValidation
	}
	return false
}

// Handler provides error handling strategies
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a new error handler
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// Handle processes an error according to its type
func (h *Handler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	if ce, ok := AsConflict(err); ok {
		h.logger.WarnContext(ctx, "Allocation conflict", "plan_id", ce.PlanID, "conflicts", len(ce.Conflicts))
		return
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		h.handleAppError(ctx, appErr)
	} else {
		h.handleGenericError(ctx, err)
	}
}

// handleAppError handles AppError instances
func (h *Handler) handleAppError(ctx context.Context, err *AppError) {
	switch err.Type {
	case ErrorTypeValidation, ErrorTypeConflict, ErrorTypeNotFound:
		h.logger.WarnContext(ctx, "Expected error", err.LogFields()...)
	case ErrorTypeDatabase, ErrorTypeExternal, ErrorTypeInternal:
		h.logger.ErrorContext(ctx, "Critical error", err.LogFields()...)
	default:
		h.logger.ErrorContext(ctx, "Unknown error type", err.LogFields()...)
	}
}

// handleGenericError handles generic errors
func (h *Handler) handleGenericError(ctx context.Context, err error) {
	h.logger.ErrorContext(ctx, "Unhandled error", "error", err.Error())
}

// Predefined errors
var (
	ErrPlanNotFound       = New(ErrorTypeNotFound, "PLAN_NOT_FOUND", "Meal plan not found")
	ErrAssignmentNotFound = New(ErrorTypeNotFound, "ASSIGNMENT_NOT_FOUND", "Meal assignment not found")
	ErrSessionNotFound    = New(ErrorTypeNotFound, "SESSION_NOT_FOUND", "Session not found")
	ErrPlanExists         = New(ErrorTypeConflict, "PLAN_EXISTS", "A plan already exists for this owner and week")
	ErrUnknownIngredient  = New(ErrorTypeNotFound, "UNKNOWN_INGREDIENT", "Ingredient is not in the plan's pool")
	ErrInsufficient       = New(ErrorTypeConflict, "INSUFFICIENT_QUANTITY", "Requested quantity exceeds remaining")
	ErrDatabaseError      = New(ErrorTypeDatabase, "DB_ERROR", "Database operation failed")
	ErrExternalAPI        = New(ErrorTypeExternal, "EXTERNAL_API", "External API error")
	ErrInternalServer     = New(ErrorTypeInternal, "INTERNAL", "Internal server error")
)

// Convenience functions for common errors
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, "VALIDATION", message)
}

func NewDatabaseError(err error) *AppError {
	return Wrap(err, ErrorTypeDatabase, "DB_ERROR", "Database operation failed")
}

func NewExternalAPIError(err error, api string) *AppError {
	return Wrap(err, ErrorTypeExternal, "EXTERNAL_API", fmt.Sprintf("%s API error", api)).
		WithContext("api", api)
}

func NewInternalError(err error) *AppError {
	return Wrap(err, ErrorTypeInternal, "INTERNAL", "Internal server error")
}

func NewUnknownIngredientError(name string) *AppError {
	return New(ErrorTypeNotFound, "UNKNOWN_INGREDIENT", fmt.Sprintf("Ingredient %q is not in the plan's pool", name)).
		WithContext("ingredient", name)
}

func NewInsufficientError(name string, requested, available float64) *AppError {
	return New(ErrorTypeConflict, "INSUFFICIENT_QUANTITY", fmt.Sprintf("Requested %v of %q but only %v remains", requested, name, available)).
		WithContext("ingredient", name).
		WithContext("requested", requested).
		WithContext("available", available)
}
