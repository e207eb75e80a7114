package equation

import "fmt"

// Error codes for the equation package
const (
	ErrCodeResolution      = 1
	ErrCodeDegenerate      = 2
	ErrCodeUnknownOperator = 3
	ErrCodeEvaluation      = 4
	ErrCodeDivisionByZero  = 5
	ErrCodeMissingOperand  = 6
	ErrCodeConstantTable   = 7
)

// LabelError is a structured error type for label construction and replay
type LabelError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *LabelError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("equation: [%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("equation: [%d] %s", e.Code, e.Message)
}

// Is reports whether target carries the same code, so detailed errors match the sentinels below.
func (e *LabelError) Is(target error) bool {
	t, ok := target.(*LabelError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func NewError(code int, message string, details ...string) error {
	err := &LabelError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

func errorf(sentinel error, format string, args ...interface{}) error {
	le := sentinel.(*LabelError)
	return NewError(le.Code, le.Message, fmt.Sprintf(format, args...))
}

// Predefined errors
var (
	ErrResolution      = NewError(ErrCodeResolution, "operand cannot be resolved")
	ErrDegenerate      = NewError(ErrCodeDegenerate, "step uses the same operand twice")
	ErrUnknownOperator = NewError(ErrCodeUnknownOperator, "unknown operator")
	ErrEvaluation      = NewError(ErrCodeEvaluation, "label replay failed")
	ErrDivisionByZero  = NewError(ErrCodeDivisionByZero, "division by zero")
	ErrMissingOperand  = NewError(ErrCodeMissingOperand, "operand value missing")
	ErrConstantTable   = NewError(ErrCodeConstantTable, "invalid constant table")
)
