package organize

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrExtraction   = errors.New("extraction failure")
	ErrResolution   = errors.New("resolution failure")
	ErrMetadata     = errors.New("metadata not found")
	ErrPlanning     = errors.New("path planning failure")
	ErrBusy         = errors.New("busy")
	ErrFilesystem   = errors.New("filesystem failure")
	ErrPathLocked   = errors.New("path locked")
	ErrNotFound     = errors.New("result not found")
	ErrInvalidInput = errors.New("invalid request")
)

// Error is a terminal organization failure. Message is the text recorded on
// the result.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// messageOf returns the text to record for err.
func messageOf(err error) string {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Message
	}
	return err.Error()
}
