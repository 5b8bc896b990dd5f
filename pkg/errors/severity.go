// Package errors provides severity-aware error types.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// CompareError is a structured error with context.
type CompareError struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	EntityID string   `json:"entity_id,omitempty"`
	Field    string   `json:"field,omitempty"`
	Err      error    `json:"-"`
}

func (e *CompareError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("[%s] %s: %s (entity: %s)", e.Severity, e.Code, e.Message, e.EntityID)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

func (e *CompareError) Unwrap() error {
	return e.Err
}

// Is matches any CompareError carrying the same code, so sentinels like
// ErrInvalidEntity work with errors.Is.
func (e *CompareError) Is(target error) bool {
	t, ok := target.(*CompareError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes
const (
	ErrCodeInvalidEntity   = "INVALID_ENTITY"
	ErrCodeUnknownView     = "UNKNOWN_VIEW"
	ErrCodeUnknownTierSet  = "UNKNOWN_TIER_SET"
	ErrCodeSelectionLimit  = "SELECTION_LIMIT"
	ErrCodeSourceFailure   = "SOURCE_FAILURE"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodePolicyViolation = "POLICY_VIOLATION"
)

// Sentinels for errors.Is.
var (
	ErrInvalidEntity  = &CompareError{Code: ErrCodeInvalidEntity}
	ErrUnknownView    = &CompareError{Code: ErrCodeUnknownView}
	ErrUnknownTierSet = &CompareError{Code: ErrCodeUnknownTierSet}
	ErrSelectionLimit = &CompareError{Code: ErrCodeSelectionLimit}
	ErrSourceFailure  = &CompareError{Code: ErrCodeSourceFailure}
	ErrNotFound       = &CompareError{Code: ErrCodeNotFound}
)

// NewInvalidEntityError creates an error for a structurally invalid entity.
func NewInvalidEntityError(field, entityID, reason string) *CompareError {
	return &CompareError{
		Code:     ErrCodeInvalidEntity,
		Message:  fmt.Sprintf("invalid entity: %s", reason),
		Severity: SeverityError,
		EntityID: entityID,
		Field:    field,
	}
}

// NewUnknownViewError creates an error for an unsupported comparison view.
func NewUnknownViewError(view string) *CompareError {
	return &CompareError{
		Code:     ErrCodeUnknownView,
		Message:  fmt.Sprintf("unknown comparison view: %q", view),
		Severity: SeverityError,
	}
}

// NewUnknownTierSetError creates an error for an unregistered tier set name.
func NewUnknownTierSetError(name string) *CompareError {
	return &CompareError{
		Code:     ErrCodeUnknownTierSet,
		Message:  fmt.Sprintf("unknown tier set: %q", name),
		Severity: SeverityError,
	}
}

// NewSelectionLimitError creates an error for a selection exceeding its cap.
func NewSelectionLimitError(limit, requested int) *CompareError {
	return &CompareError{
		Code:     ErrCodeSelectionLimit,
		Message:  fmt.Sprintf("selection of %d entities exceeds the limit of %d", requested, limit),
		Severity: SeverityWarning,
	}
}

// NewSourceFailureError wraps a failed entity fetch.
func NewSourceFailureError(source string, err error) *CompareError {
	return &CompareError{
		Code:     ErrCodeSourceFailure,
		Message:  fmt.Sprintf("entity source %s failed: %v", source, err),
		Severity: SeverityError,
		Err:      err,
	}
}

// NewNotFoundError creates an error for a missing record.
func NewNotFoundError(kind, id string) *CompareError {
	return &CompareError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s not found", kind),
		Severity: SeverityError,
		EntityID: id,
	}
}

// CodeOf returns the code of the first CompareError in err's chain, or "".
func CodeOf(err error) string {
	var ce *CompareError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
