package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")

	ErrValidation         = errors.New("validation failed")
	ErrFetch              = errors.New("train search failed")
	ErrSubmission         = errors.New("booking submission failed")
	ErrNoSession          = errors.New("no active session identity")
	ErrInvalidTransition  = errors.New("invalid step transition")
	ErrWorkflowClosed     = errors.New("workflow closed")
	ErrReadOnly           = errors.New("booking draft is read-only")
	ErrSubmissionInFlight = errors.New("booking submission already in flight")
	ErrSuperseded         = errors.New("search superseded by a newer query")
)

// ValidationError blocks a transition. Fields maps an owner ("payment",
// "passenger 2", ...) to the names of its missing or invalid fields.
type ValidationError struct {
	Step    string
	Message string
	Fields  map[string][]string
}

func NewValidationError(step, msg string) *ValidationError {
	return &ValidationError{Step: step, Message: msg, Fields: map[string][]string{}}
}

func (e *ValidationError) Add(owner, field string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[owner] = append(e.Fields[owner], field)
}

func (e *ValidationError) HasFields() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	owners := make([]string, 0, len(e.Fields))
	for o := range e.Fields {
		owners = append(owners, o)
	}
	sort.Strings(owners)
	parts := make([]string, 0, len(owners))
	for _, o := range owners {
		parts = append(parts, fmt.Sprintf("%s: %s", o, strings.Join(e.Fields[o], ", ")))
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// FetchError is a recoverable train search failure. The query that failed
// can be reissued unchanged.
type FetchError struct {
	Query string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("train search %s: %v", e.Query, e.Cause)
}

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

func (e *FetchError) Unwrap() error { return e.Cause }

// SubmissionError is a failed create-booking attempt. It is never retried
// automatically.
type SubmissionError struct {
	Reason string
	Cause  error
}

func (e *SubmissionError) Error() string {
	if e.Cause == nil {
		return "booking submission: " + e.Reason
	}
	return fmt.Sprintf("booking submission: %s: %v", e.Reason, e.Cause)
}

func (e *SubmissionError) Is(target error) bool { return target == ErrSubmission }

func (e *SubmissionError) Unwrap() error { return e.Cause }
