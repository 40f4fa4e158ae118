package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrNoImage        = errors.New("no image at that position")
	// ErrSaveInProgress rejects a save while another save of the session is running.
	ErrSaveInProgress = errors.New("a save of this session is already in progress")
)

// ValidationError rejects a save before anything is sent. Message is shown to the
// provider as is.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }
