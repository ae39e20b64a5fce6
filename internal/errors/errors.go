package errors

import "fmt"

// ErrorCode represents a Strata error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrBudgetInfeasible ErrorCode = "BUDGET_INFEASIBLE" // 422
	ErrTemplateInvalid  ErrorCode = "TEMPLATE_INVALID"  // 422
	ErrCancelled        ErrorCode = "CANCELLED"         // 499
	ErrInternal         ErrorCode = "INTERNAL"          // 500
)

// StrataError represents a structured error with code, status, and details.
type StrataError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *StrataError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *StrataError {
	return &StrataError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a run cannot be found.
func NewNotFound(identifier string) *StrataError {
	return &StrataError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("run not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewBudgetInfeasible creates a 422 error for when fixed, non-truncatable
// content alone exceeds the declared budget. This is a configuration error:
// the pipeline cannot safely guess what to drop from invariant content.
func NewBudgetInfeasible(layer string, cost, budget int) *StrataError {
	return &StrataError{
		Code:    ErrBudgetInfeasible,
		Status:  422,
		Message: fmt.Sprintf("%s layer alone costs %d token units, exceeding the global budget of %d", layer, cost, budget),
		Details: map[string]any{"layer": layer, "token_cost": cost, "budget": budget},
	}
}

// NewTemplateInvalid creates a 422 error for a malformed artifact template.
func NewTemplateInvalid(name, reason string) *StrataError {
	return &StrataError{
		Code:    ErrTemplateInvalid,
		Status:  422,
		Message: fmt.Sprintf("template %q is invalid: %s", name, reason),
		Details: map[string]any{"template": name, "reason": reason},
	}
}

// NewCancelled creates a 499 error for a context-cancelled operation.
func NewCancelled(op string) *StrataError {
	return &StrataError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("operation cancelled: %s", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *StrataError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &StrataError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a StrataError with the given code.
func Is(err error, code ErrorCode) bool {
	if sErr, ok := err.(*StrataError); ok {
		return sErr.Code == code
	}
	return false
}
