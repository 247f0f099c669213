package types

import "errors"

// Poll definition failures, one per validation rule. The messages are shown
// to the teacher verbatim through the error event.
var (
	ErrQuestionRequired = errors.New("poll question cannot be empty")
	ErrNotEnoughOptions = errors.New("poll needs at least two options")
	ErrOptionEmpty      = errors.New("poll options cannot be empty")
	ErrDuplicateOptions = errors.New("poll options must be unique")
	ErrTimerOutOfRange  = errors.New("poll timer must be between 10 and 300 seconds")
	ErrBadCorrectIndex  = errors.New("correct option index must point at one of the options")
)
