package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pollroom/pkg/interfaces"
	"pollroom/pkg/metrics"
	"pollroom/pkg/types"
)

// connection is the identity record for one live connection handle. The role
// tags which fields are meaningful: a teacher carries its assigned id, a
// student carries its session token and vote flag. A handle with no record is
// unregistered, and a later signup or registration replaces the record
// wholesale, so every handle holds exactly one role at a time.
type connection struct {
	role     types.Role
	id       string // teacher identity
	name     string
	token    string // student session token
	hasVoted bool   // refers to the active poll, reset when a new poll starts
}

// Core owns all session state: the identity records, the exclusion list,
// the active poll with its tally and timer, and the chat relay. Every entry
// point serializes on a single mutex, so the state machine behaves as if
// single-threaded no matter how many connections are live. Outbound events
// go through the Notifier and are fire-and-forget.
type Core struct {
	mu sync.Mutex

	conns   map[string]*connection // connection handle -> identity record
	order   []string               // student handles in registration order
	byToken map[string]string      // session token -> connection handle
	banned  map[string]struct{}    // kicked session tokens

	active  *types.Poll
	pending *pollTimer
	lastID  int64

	history  interfaces.HistoryLog
	notifier interfaces.Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewCore creates a session core wired to the given notifier and history log.
func NewCore(notifier interfaces.Notifier, history interfaces.HistoryLog, log *zap.Logger) *Core {
	if log == nil {
		log = zap.NewNop()
	}
	return &Core{
		conns:    make(map[string]*connection),
		order:    make([]string, 0),
		byToken:  make(map[string]string),
		banned:   make(map[string]struct{}),
		history:  history,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// SignUpTeacher assigns a fresh teacher identity to the connection and tells
// the caller about it. It always succeeds; multiple simultaneous teacher
// connections are allowed. A handle registered as a student leaves the
// roster when it becomes a teacher.
func (c *Core) SignUpTeacher(handle, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasStudent := c.removeStudentLocked(handle)

	t := &connection{role: types.RoleTeacher, id: uuid.New().String(), name: name}
	c.conns[handle] = t

	c.log.Info("teacher signed up",
		zap.String("teacher_id", t.id),
		zap.String("name", t.name))
	c.notifier.TellOne(handle, types.Event{
		Event: types.EventTeacherSignedUp,
		Data:  types.TeacherIdentity{TeacherID: t.id},
	})
	if wasStudent {
		c.broadcastRosterLocked()
	}
}

// RegisterStudent adds a student under the given session token. A banned
// token gets a targeted kicked_out instead of a registration; a token already
// registered on another connection silently supersedes that stale
// registration, whose handle is treated as unregistered from here on.
func (c *Core) RegisterStudent(handle, name, sessionID string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(sessionID) == "" {
		return ErrRegistrationInvalid
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, blocked := c.banned[sessionID]; blocked {
		c.log.Info("registration blocked for kicked token",
			zap.String("session_id", sessionID))
		c.notifier.TellOne(handle, types.Event{Event: types.EventKickedOut})
		return nil
	}

	// A handle re-registering under a new token releases its old token
	// first. A teacher record on the handle is replaced outright below.
	c.removeStudentLocked(handle)

	if stale, ok := c.byToken[sessionID]; ok && stale != handle {
		c.removeStudentLocked(stale)
	}

	c.conns[handle] = &connection{role: types.RoleStudent, name: name, token: sessionID}
	c.byToken[sessionID] = handle
	c.order = append(c.order, handle)
	metrics.RegisteredParticipants.Set(float64(len(c.order)))

	c.log.Info("student registered",
		zap.String("name", name),
		zap.String("session_id", sessionID))
	c.notifier.TellOne(handle, types.Event{
		Event: types.EventStudentRegistered,
		Data:  types.StudentRegistration{Name: name, SessionID: sessionID},
	})
	c.broadcastRosterLocked()
	return nil
}

// Kick bans a session token and removes its live student, if any. The token
// stays banned even when nobody is connected with it, so later registration
// attempts are rejected. Teacher-only.
//
// Unlike Disconnect, a kick does not re-check poll completion: a poll left
// fully answered by the removal lingers until the timer fires, the teacher
// ends it, or the next CreatePoll archives it.
func (c *Core) Kick(handle, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roleLocked(handle) != types.RoleTeacher {
		return ErrNotTeacher
	}

	c.banned[sessionID] = struct{}{}

	target, ok := c.byToken[sessionID]
	if !ok {
		c.log.Info("token banned without live participant",
			zap.String("session_id", sessionID))
		return nil
	}

	c.notifier.TellOne(target, types.Event{Event: types.EventKickedOut})
	name := c.conns[target].name
	c.removeStudentLocked(target)

	c.log.Info("participant kicked",
		zap.String("name", name),
		zap.String("session_id", sessionID))
	c.broadcastRosterLocked()
	return nil
}

// Disconnect drops whatever identity the handle holds. Student departures
// update the roster and can complete a partially-voted poll; teardown is a
// normal lifecycle event, never an error.
func (c *Core) Disconnect(handle string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.conns[handle]
	if !ok {
		return
	}

	if r.role == types.RoleTeacher {
		delete(c.conns, handle)
		c.log.Info("teacher disconnected", zap.String("teacher_id", r.id))
		return
	}

	c.removeStudentLocked(handle)
	c.log.Info("participant disconnected", zap.String("name", r.name))
	c.broadcastRosterLocked()
	c.finishPollIfCompleteLocked()
}

// BroadcastRoster sends the current participant list to every connection.
func (c *Core) BroadcastRoster() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.broadcastRosterLocked()
}

// SendChat relays a chat line to everyone. The sender name comes from the
// handle's identity record, with a fallback label for unregistered
// connections. Chat is best-effort pass-through with no validation or limits.
func (c *Core) SendChat(handle, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sender := "anonymous"
	if r, ok := c.conns[handle]; ok {
		sender = r.name
	}

	c.notifier.TellAll(types.Event{
		Event: types.EventChatMessage,
		Data:  types.ChatMessage{Sender: sender, Text: text},
	})
}

// Roster returns the participant list in registration order.
func (c *Core) Roster() []types.RosterEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rosterLocked()
}

// ActivePoll returns a snapshot of the poll in progress, or nil.
func (c *Core) ActivePoll() *types.Poll {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active.Snapshot()
}

// HistorySnapshot returns all concluded polls, oldest first.
func (c *Core) HistorySnapshot() []types.HistoryEntry {
	return c.history.Snapshot()
}

// Stats summarizes the session for the health and stats endpoints.
func (c *Core) Stats() types.SessionStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return types.SessionStats{
		Teachers:       c.countLocked(types.RoleTeacher),
		Participants:   len(c.order),
		BannedTokens:   len(c.banned),
		PollActive:     c.active != nil,
		PollsConcluded: c.history.Len(),
	}
}

// roleLocked resolves the tagged role a handle currently holds. Every
// permission gate goes through this one resolver instead of probing the
// record map directly.
func (c *Core) roleLocked(handle string) types.Role {
	if r, ok := c.conns[handle]; ok {
		return r.role
	}
	return types.RoleUnregistered
}

func (c *Core) countLocked(role types.Role) int {
	n := 0
	for _, r := range c.conns {
		if r.role == role {
			n++
		}
	}
	return n
}

// removeStudentLocked deletes a student record together with its token and
// order bookkeeping. Reports whether the handle held a student record.
func (c *Core) removeStudentLocked(handle string) bool {
	r, ok := c.conns[handle]
	if !ok || r.role != types.RoleStudent {
		return false
	}
	delete(c.conns, handle)
	delete(c.byToken, r.token)
	c.removeFromOrderLocked(handle)
	metrics.RegisteredParticipants.Set(float64(len(c.order)))
	return true
}

func (c *Core) removeFromOrderLocked(handle string) {
	for i, h := range c.order {
		if h == handle {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Core) rosterLocked() []types.RosterEntry {
	roster := make([]types.RosterEntry, 0, len(c.order))
	for _, handle := range c.order {
		r, ok := c.conns[handle]
		if !ok || r.role != types.RoleStudent {
			continue
		}
		roster = append(roster, types.RosterEntry{Name: r.name, SessionID: r.token})
	}
	return roster
}

func (c *Core) broadcastRosterLocked() {
	c.notifier.TellAll(types.Event{
		Event: types.EventParticipants,
		Data:  c.rosterLocked(),
	})
}
