package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pollroom/internal/history"
	"pollroom/pkg/types"
)

// fakeNotifier records every event the core emits.
type fakeNotifier struct {
	mu    sync.Mutex
	toAll []types.Event
	toOne []targetedEvent
}

type targetedEvent struct {
	handle string
	event  types.Event
}

func (f *fakeNotifier) TellAll(event types.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toAll = append(f.toAll, event)
}

func (f *fakeNotifier) TellOne(handle string, event types.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toOne = append(f.toOne, targetedEvent{handle: handle, event: event})
}

// broadcastNames returns the names of all broadcast events in emission order.
func (f *fakeNotifier) broadcastNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.toAll))
	for i, ev := range f.toAll {
		names[i] = ev.Event
	}
	return names
}

// sentTo returns the names of events targeted at the given handle, in order.
func (f *fakeNotifier) sentTo(handle string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, te := range f.toOne {
		if te.handle == handle {
			names = append(names, te.event.Event)
		}
	}
	return names
}

// lastBroadcast returns the most recent broadcast with the given name.
func (f *fakeNotifier) lastBroadcast(name string) (types.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.toAll) - 1; i >= 0; i-- {
		if f.toAll[i].Event == name {
			return f.toAll[i], true
		}
	}
	return types.Event{}, false
}

// lastSentTo returns the most recent event with the given name targeted at
// the handle.
func (f *fakeNotifier) lastSentTo(handle, name string) (types.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.toOne) - 1; i >= 0; i-- {
		if f.toOne[i].handle == handle && f.toOne[i].event.Event == name {
			return f.toOne[i].event, true
		}
	}
	return types.Event{}, false
}

func (f *fakeNotifier) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toAll = nil
	f.toOne = nil
}

func newTestCore() (*Core, *fakeNotifier) {
	notifier := &fakeNotifier{}
	return NewCore(notifier, history.NewLog(), zap.NewNop()), notifier
}

func TestSignUpTeacherAssignsIdentity(t *testing.T) {
	core, notifier := newTestCore()

	core.SignUpTeacher("conn-t", "Ms. Rivera")

	require.Len(t, notifier.toOne, 1)
	sent := notifier.toOne[0]
	assert.Equal(t, "conn-t", sent.handle)
	assert.Equal(t, types.EventTeacherSignedUp, sent.event.Event)

	identity, ok := sent.event.Data.(types.TeacherIdentity)
	require.True(t, ok)
	assert.NotEmpty(t, identity.TeacherID)
	assert.Equal(t, 1, core.Stats().Teachers)
}

func TestSignUpTeacherAllowsMultiple(t *testing.T) {
	core, notifier := newTestCore()

	core.SignUpTeacher("conn-a", "first")
	core.SignUpTeacher("conn-b", "second")

	assert.Equal(t, 2, core.Stats().Teachers)

	first, ok := notifier.toOne[0].event.Data.(types.TeacherIdentity)
	require.True(t, ok)
	second, ok := notifier.toOne[1].event.Data.(types.TeacherIdentity)
	require.True(t, ok)
	assert.NotEqual(t, first.TeacherID, second.TeacherID)
}

func TestRoleFollowsLatestPromotion(t *testing.T) {
	core, _ := newTestCore()

	// A student who signs up as a teacher leaves the roster and gains
	// teacher permissions.
	require.NoError(t, core.RegisterStudent("conn-1", "alice", "tok-1"))
	core.SignUpTeacher("conn-1", "alice")

	assert.Empty(t, core.Roster())
	assert.Equal(t, 1, core.Stats().Teachers)
	require.NoError(t, core.CreatePoll("conn-1", validDefinition()))
	require.NoError(t, core.EndPoll("conn-1"))

	// Registering as a student hands those permissions back.
	require.NoError(t, core.RegisterStudent("conn-1", "alice", "tok-1"))

	assert.Equal(t, 0, core.Stats().Teachers)
	require.Len(t, core.Roster(), 1)
	assert.ErrorIs(t, core.CreatePoll("conn-1", validDefinition()), ErrNotTeacher)
}

func TestRegisterStudentAddsToRoster(t *testing.T) {
	core, notifier := newTestCore()

	require.NoError(t, core.RegisterStudent("conn-1", "alice", "tok-1"))

	assert.Equal(t, []string{types.EventStudentRegistered}, notifier.sentTo("conn-1"))

	roster, ok := notifier.lastBroadcast(types.EventParticipants)
	require.True(t, ok)
	entries, ok := roster.Data.([]types.RosterEntry)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, types.RosterEntry{Name: "alice", SessionID: "tok-1"}, entries[0])
}

func TestRegisterStudentRejectsEmptyInput(t *testing.T) {
	core, notifier := newTestCore()

	assert.ErrorIs(t, core.RegisterStudent("conn-1", "", "tok-1"), ErrRegistrationInvalid)
	assert.ErrorIs(t, core.RegisterStudent("conn-1", "   ", "tok-1"), ErrRegistrationInvalid)
	assert.ErrorIs(t, core.RegisterStudent("conn-1", "alice", ""), ErrRegistrationInvalid)
	assert.ErrorIs(t, core.RegisterStudent("conn-1", "alice", "  "), ErrRegistrationInvalid)

	assert.Empty(t, notifier.broadcastNames())
	assert.Empty(t, core.Roster())
}

func TestRegisterStudentTrimsName(t *testing.T) {
	core, _ := newTestCore()

	require.NoError(t, core.RegisterStudent("conn-1", "  alice  ", "tok-1"))

	roster := core.Roster()
	require.Len(t, roster, 1)
	assert.Equal(t, "alice", roster[0].Name)
}

func TestRosterKeepsRegistrationOrder(t *testing.T) {
	core, _ := newTestCore()

	require.NoError(t, core.RegisterStudent("conn-1", "alice", "tok-1"))
	require.NoError(t, core.RegisterStudent("conn-2", "bob", "tok-2"))
	require.NoError(t, core.RegisterStudent("conn-3", "carol", "tok-3"))

	roster := core.Roster()
	require.Len(t, roster, 3)
	assert.Equal(t, "alice", roster[0].Name)
	assert.Equal(t, "bob", roster[1].Name)
	assert.Equal(t, "carol", roster[2].Name)
}

func TestReRegistrationSupersedesOldHandle(t *testing.T) {
	core, notifier := newTestCore()
	core.SignUpTeacher("conn-t", "teacher")

	require.NoError(t, core.RegisterStudent("conn-old", "alice", "tok-1"))
	require.NoError(t, core.RegisterStudent("conn-2", "bob", "tok-2"))

	// Same token arrives on a new connection, as after a page refresh.
	require.NoError(t, core.RegisterStudent("conn-new", "alice", "tok-1"))

	roster := core.Roster()
	require.Len(t, roster, 2)
	assert.Equal(t, "bob", roster[0].Name)
	assert.Equal(t, "alice", roster[1].Name)

	// The superseded handle heard nothing beyond its own registration.
	assert.Equal(t, []string{types.EventStudentRegistered}, notifier.sentTo("conn-old"))

	// Its later actions count as unregistered.
	require.NoError(t, core.CreatePoll("conn-t", validDefinition()))
	poll := core.ActivePoll()
	err := core.SubmitAnswer("conn-old", types.AnswerSubmission{
		PollID: poll.ID, OptionIndex: 0, SessionID: "tok-1",
	})
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestKickRequiresTeacher(t *testing.T) {
	core, _ := newTestCore()
	require.NoError(t, core.RegisterStudent("conn-1", "alice", "tok-1"))

	assert.ErrorIs(t, core.Kick("conn-1", "tok-1"), ErrNotTeacher)
	assert.Len(t, core.Roster(), 1)
}

func TestKickRemovesAndBlocksReRegistration(t *testing.T) {
	core, notifier := newTestCore()
	core.SignUpTeacher("conn-t", "teacher")
	require.NoError(t, core.RegisterStudent("conn-1", "alice", "tok-1"))

	require.NoError(t, core.Kick("conn-t", "tok-1"))

	assert.Contains(t, notifier.sentTo("conn-1"), types.EventKickedOut)
	assert.Empty(t, core.Roster())
	assert.Equal(t, 1, core.Stats().BannedTokens)

	// The token cannot come back until the session closes.
	notifier.reset()
	require.NoError(t, core.RegisterStudent("conn-9", "alice", "tok-1"))
	assert.Equal(t, []string{types.EventKickedOut}, notifier.sentTo("conn-9"))
	assert.Empty(t, core.Roster())
}

func TestKickUnknownTokenStillBans(t *testing.T) {
	core, notifier := newTestCore()
	core.SignUpTeacher("conn-t", "teacher")

	require.NoError(t, core.Kick("conn-t", "tok-ghost"))

	// No live participant, so no roster churn.
	assert.Empty(t, notifier.broadcastNames())

	require.NoError(t, core.RegisterStudent("conn-1", "ghost", "tok-ghost"))
	assert.Equal(t, []string{types.EventKickedOut}, notifier.sentTo("conn-1"))
	assert.Empty(t, core.Roster())
}

func TestDisconnectParticipantUpdatesRoster(t *testing.T) {
	core, notifier := newTestCore()
	require.NoError(t, core.RegisterStudent("conn-1", "alice", "tok-1"))
	require.NoError(t, core.RegisterStudent("conn-2", "bob", "tok-2"))
	notifier.reset()

	core.Disconnect("conn-1")

	roster, ok := notifier.lastBroadcast(types.EventParticipants)
	require.True(t, ok)
	entries, ok := roster.Data.([]types.RosterEntry)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].Name)
}

func TestDisconnectTeacherIsSilent(t *testing.T) {
	core, notifier := newTestCore()
	core.SignUpTeacher("conn-t", "teacher")
	notifier.reset()

	core.Disconnect("conn-t")

	assert.Empty(t, notifier.broadcastNames())
	assert.Equal(t, 0, core.Stats().Teachers)
}

func TestDisconnectUnknownHandleIsNoOp(t *testing.T) {
	core, notifier := newTestCore()

	core.Disconnect("conn-ghost")

	assert.Empty(t, notifier.broadcastNames())
	assert.Empty(t, notifier.toOne)
}

func TestChatResolvesSenderNames(t *testing.T) {
	core, notifier := newTestCore()
	core.SignUpTeacher("conn-t", "Ms. Rivera")
	require.NoError(t, core.RegisterStudent("conn-1", "alice", "tok-1"))

	core.SendChat("conn-1", "hello")
	core.SendChat("conn-t", "welcome everyone")
	core.SendChat("conn-ghost", "can anyone hear me")

	var messages []types.ChatMessage
	for _, ev := range notifier.toAll {
		if ev.Event != types.EventChatMessage {
			continue
		}
		msg, ok := ev.Data.(types.ChatMessage)
		require.True(t, ok)
		messages = append(messages, msg)
	}

	require.Len(t, messages, 3)
	assert.Equal(t, types.ChatMessage{Sender: "alice", Text: "hello"}, messages[0])
	assert.Equal(t, "Ms. Rivera", messages[1].Sender)
	assert.Equal(t, "anonymous", messages[2].Sender)
}

func TestBroadcastRosterOnDemand(t *testing.T) {
	core, notifier := newTestCore()
	require.NoError(t, core.RegisterStudent("conn-1", "alice", "tok-1"))
	notifier.reset()

	core.BroadcastRoster()

	roster, ok := notifier.lastBroadcast(types.EventParticipants)
	require.True(t, ok)
	entries, ok := roster.Data.([]types.RosterEntry)
	require.True(t, ok)
	assert.Len(t, entries, 1)
}
