package lineage

import (
	"context"
	"errors"
	"fmt"
)

type ErrorCode string

const (
	BadRequest          ErrorCode = "bad-request"
	NotAvailable        ErrorCode = "not-available"
	NotFound            ErrorCode = "not-found"
	NotSpent            ErrorCode = "not-spent"            // answer: the coin has no children yet
	NoParent            ErrorCode = "no-parent"            // answer: reward or genesis coin
	MalformedCondition  ErrorCode = "malformed-condition"  // condition arity or argument encoding
	InconsistentSpend   ErrorCode = "inconsistent-spend"   // unexpected condition combination
	EvaluationFailed    ErrorCode = "evaluation-error"     // spend could not be evaluated
	LedgerInconsistency ErrorCode = "ledger-inconsistency" // e.g. missing parent record
	Timeout             ErrorCode = "timeout"
	UnknownError        ErrorCode = "unknown-error"
)

type ErrorInfo struct {
	Code    ErrorCode // machine-readble ErrorCode enumeration
	Message string    // human-readable message
	Err     error     // underlying cause, if any
}

func (e *ErrorInfo) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ErrorInfo) Unwrap() error {
	return e.Err
}

func NewErr(code ErrorCode, format string, args ...any) error {
	return &ErrorInfo{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapErr attaches a code and message to an underlying error.
func WrapErr(code ErrorCode, err error, format string, args ...any) error {
	return &ErrorInfo{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func IsNotFoundError(err error) bool {
	return IsError(err, NotFound)
}

func IsNotSpentError(err error) bool {
	return IsError(err, NotSpent)
}

func IsNoParentError(err error) bool {
	return IsError(err, NoParent)
}

// IsError reports whether the outermost ErrorInfo in err's chain has ofType.
func IsError(err error, ofType ErrorCode) bool {
	return CodeOf(err) == ofType
}

// CodeOf returns the ErrorCode of err. Context deadlines map to Timeout;
// errors without an ErrorInfo are UnknownError.
func CodeOf(err error) ErrorCode {
	var e *ErrorInfo
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return UnknownError
}

// IsAnswer is true for the codes that are legitimate empty answers
// rather than failures.
func IsAnswer(err error) bool {
	code := CodeOf(err)
	return code == NotSpent || code == NoParent
}
