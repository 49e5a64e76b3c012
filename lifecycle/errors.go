package lifecycle

import "errors"

const ReasonNotFound = "not_found"

// PolicyError is a rejection of the attempted operation by lifecycle
// policy: wrong role, missing reason, invalid transition, bad input.
// It is never retried and never triggers the fallback path.
type PolicyError struct {
	Code    string
	Message string
}

func (e *PolicyError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func Rejection(code, message string) *PolicyError {
	return &PolicyError{Code: code, Message: message}
}

// IsPolicy reports whether err is (or wraps) a PolicyError.
func IsPolicy(err error) bool {
	var pe *PolicyError
	return errors.As(err, &pe)
}

// Reject builds a PolicyError with the user-facing message for a reason
// code, so both persistence paths word rejections identically.
func Reject(code string) *PolicyError {
	return &PolicyError{Code: code, Message: Describe(code)}
}

func Describe(code string) string {
	switch code {
	case ReasonRequired:
		return "a reason is required for this action"
	case ReasonRoleNotAllowed:
		return "your role cannot perform this transition"
	case ReasonNotCompleted:
		return "only completed sessions can be rated"
	case ReasonAlreadyRated:
		return "this session has already been rated"
	case ReasonNotFound:
		return "record not found"
	default:
		return "this transition is not allowed"
	}
}
