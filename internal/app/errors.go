package app

import "fmt"

// DomainError is the one error shape the HTTP layer maps to a response.
// Code carries the machine-readable taxonomy (VERSION_CONFLICT, FORBIDDEN,
// per-op validation codes); Details carries structured context such as the
// index of the operation that sank a batch.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
