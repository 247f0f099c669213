package session

import "errors"

// Domain errors relayed verbatim to the offending connection as an error
// event. None of them are fatal; the client may resend.
var (
	ErrNotTeacher          = errors.New("only a teacher can perform this action")
	ErrPollInProgress      = errors.New("a poll is already in progress")
	ErrPollMismatch        = errors.New("no active poll matches the submitted answer")
	ErrNotRegistered       = errors.New("you are not registered in this session")
	ErrAlreadyVoted        = errors.New("you have already voted in this poll")
	ErrOptionOutOfRange    = errors.New("option index is out of range for this poll")
	ErrRegistrationInvalid = errors.New("name and session id are required")
)
