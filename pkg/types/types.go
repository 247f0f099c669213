package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Role tags the identity a connection currently holds. Every connection
// starts unregistered and is promoted by a teacher_signup or
// register_student event; a connection holds exactly one role at a time,
// so the later promotion wins.
type Role string

const (
	RoleUnregistered Role = "unregistered"
	RoleTeacher      Role = "teacher"
	RoleStudent      Role = "student"
)

// Inbound event names (client -> server).
const (
	EventTeacherSignup   = "teacher_signup"
	EventRegisterStudent = "register_student"
	EventCreatePoll      = "create_poll"
	EventSubmitAnswer    = "submit_answer"
	EventEndPoll         = "end_poll"
	EventCloseSession    = "close_session"
	EventGetPollHistory  = "get_poll_history"
	EventGetCurrentPoll  = "get_current_poll"
	EventGetParticipants = "get_participants"
	EventKickParticipant = "kick_participant"
)

// Outbound event names (server -> client).
const (
	EventTeacherSignedUp   = "teacher_signed_up"
	EventStudentRegistered = "student_registered"
	EventKickedOut         = "kicked_out"
	EventParticipants      = "participants"
	EventNewPoll           = "new_poll"
	EventPollResults       = "poll_results"
	EventPollEnded         = "poll_ended"
	EventPollHistory       = "poll_history"
	EventSessionClosed     = "session_closed"
	EventError             = "error"
)

// EventChatMessage flows in both directions: inbound it carries a bare string,
// outbound a ChatMessage payload.
const EventChatMessage = "chat_message"

// Poll timer and option constraints, in seconds.
const (
	MinPollOptions      = 2
	MinPollTimerSeconds = 10
	MaxPollTimerSeconds = 300
)

// Envelope frames every websocket message. Data stays raw until the event
// name selects a payload shape.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound frame before encoding.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Poll is the single active question together with its running tally.
// Votes is index-aligned with Options. ID and StartTime are epoch
// milliseconds; IDs are unique and strictly increasing within a process.
type Poll struct {
	ID           int64    `json:"id"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	Timer        float64  `json:"timer"`
	Votes        []int    `json:"votes"`
	CorrectIndex int      `json:"correctIndex"`
	StartTime    int64    `json:"startTime"`
}

// Snapshot returns a deep copy safe to hand outside the owning lock.
func (p *Poll) Snapshot() *Poll {
	if p == nil {
		return nil
	}
	cpy := *p
	cpy.Options = append([]string(nil), p.Options...)
	cpy.Votes = append([]int(nil), p.Votes...)
	return &cpy
}

// Duration converts the timer into a time.Duration.
func (p *Poll) Duration() time.Duration {
	return time.Duration(p.Timer * float64(time.Second))
}

// Archive converts the poll into its immutable history form.
func (p *Poll) Archive() HistoryEntry {
	return HistoryEntry{
		Question:     p.Question,
		Options:      append([]string(nil), p.Options...),
		Votes:        append([]int(nil), p.Votes...),
		CorrectIndex: p.CorrectIndex,
	}
}

// HistoryEntry is the immutable record of a concluded poll.
type HistoryEntry struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	Votes        []int    `json:"votes"`
	CorrectIndex int      `json:"correctIndex"`
}

// Clone returns a deep copy of the entry.
func (e HistoryEntry) Clone() HistoryEntry {
	e.Options = append([]string(nil), e.Options...)
	e.Votes = append([]int(nil), e.Votes...)
	return e
}

// RosterEntry is one line of the participant roster broadcast to clients.
type RosterEntry struct {
	Name      string `json:"name"`
	SessionID string `json:"sessionId"`
}

// PollDefinition is the raw create_poll payload. Timer and CorrectIndex are
// decoded as JSON numbers so malformed values surface as validation errors
// with a proper message instead of opaque decode failures.
type PollDefinition struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	Timer        float64  `json:"timer"`
	CorrectIndex float64  `json:"correctIndex"`
}

// Poll builds a fresh Poll from a validated definition: trimmed text, a
// zeroed tally sized to the options, and the provided identity and start.
func (d PollDefinition) Poll(id int64, startedAt time.Time) *Poll {
	options := make([]string, len(d.Options))
	for i, option := range d.Options {
		options[i] = strings.TrimSpace(option)
	}
	return &Poll{
		ID:           id,
		Question:     strings.TrimSpace(d.Question),
		Options:      options,
		Timer:        d.Timer,
		Votes:        make([]int, len(options)),
		CorrectIndex: int(d.CorrectIndex),
		StartTime:    startedAt.UnixMilli(),
	}
}

// AnswerSubmission is the submit_answer payload.
type AnswerSubmission struct {
	PollID      int64  `json:"pollId"`
	OptionIndex int    `json:"optionIndex"`
	SessionID   string `json:"sessionId"`
}

// StudentRegistration is the register_student payload.
type StudentRegistration struct {
	Name      string `json:"name"`
	SessionID string `json:"sessionId"`
}

// TeacherSignup is the teacher_signup payload.
type TeacherSignup struct {
	Name string `json:"name"`
}

// TeacherIdentity is the teacher_signed_up payload.
type TeacherIdentity struct {
	TeacherID string `json:"teacherId"`
}

// PollResults is the poll_results payload broadcast after every accepted
// answer and on timer expiry.
type PollResults struct {
	PollID int64 `json:"pollId"`
	Votes  []int `json:"votes"`
}

// ChatMessage is the outbound chat_message payload.
type ChatMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// SessionStats is a point-in-time summary served by the health and stats
// endpoints.
type SessionStats struct {
	Teachers       int  `json:"teachers"`
	Participants   int  `json:"participants"`
	BannedTokens   int  `json:"bannedTokens"`
	PollActive     bool `json:"pollActive"`
	PollsConcluded int  `json:"pollsConcluded"`
}
