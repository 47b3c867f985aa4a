package apperrors

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrLookup             = errors.New("lookup error")
	ErrTranscription      = errors.New("transcription error")
	ErrAnalysis           = errors.New("analysis error")
	ErrPersistence        = errors.New("persistence error")
	ErrCoachingGeneration = errors.New("coaching generation error")

	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Error ties an underlying failure to one of the kinds above.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap returns nil when err is nil.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// New builds a kind-tagged error from a message.
func New(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

var kinds = []error{
	ErrValidation,
	ErrLookup,
	ErrTranscription,
	ErrAnalysis,
	ErrPersistence,
	ErrCoachingGeneration,
}

// Kind returns the taxonomy bucket of err, or nil if it has none.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
