package doc

import "fmt"

// Validation error codes. Surfaced to callers with the failing operation's
// index so a human client can retry just the bad edit.
const (
	CodeUnknownBlock      = "UNKNOWN_BLOCK"
	CodeUnknownSlot       = "UNKNOWN_SLOT"
	CodeUnknownVariant    = "UNKNOWN_VARIANT"
	CodeUnknownToken      = "UNKNOWN_TOKEN"
	CodeBadOrder          = "BAD_ORDER"
	CodeDuplicateBlock    = "DUPLICATE_BLOCK"
	CodeBadValue          = "BAD_VALUE"
	CodeSectionTypeChange = "SECTION_TYPE_CHANGE"
	CodeBadOperation      = "BAD_OPERATION"
)

// ValidationError rejects a whole patch batch: one operation referenced
// something the current document does not have. Often a race between a stale
// AI proposal and a fresher human edit, so the message names the exact target.
type ValidationError struct {
	OpIndex int
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("op %d: %s: %s", e.OpIndex, e.Code, e.Message)
}

func validationErr(code, format string, args ...any) *ValidationError {
	return &ValidationError{OpIndex: -1, Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvariantViolation means the document model caught an impossible state that
// the patch engine's own validation should have made unreachable. It is a bug,
// not a user error: never handled locally, always surfaced loudly.
type InvariantViolation struct {
	Message string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Message
}
