package interfaces

import "pollroom/pkg/types"

// PollSession is the inbound surface of the session core. The websocket
// gateway decodes frames and calls exactly one of these per event; a non-nil
// error is relayed to the originating connection as an error event and is
// never fatal.
type PollSession interface {
	SignUpTeacher(handle, name string)
	RegisterStudent(handle, name, sessionID string) error
	Kick(handle, sessionID string) error
	Disconnect(handle string)

	CreatePoll(handle string, def types.PollDefinition) error
	SubmitAnswer(handle string, answer types.AnswerSubmission) error
	EndPoll(handle string) error
	CloseSession(handle string) error

	CurrentPoll(handle string)
	History(handle string)
	BroadcastRoster()
	SendChat(handle, text string)
}

// SessionReader exposes read-only snapshots for the HTTP surface.
type SessionReader interface {
	Roster() []types.RosterEntry
	ActivePoll() *types.Poll
	HistorySnapshot() []types.HistoryEntry
	Stats() types.SessionStats
}
