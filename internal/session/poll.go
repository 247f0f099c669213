package session

import (
	"time"

	"go.uber.org/zap"

	"pollroom/pkg/metrics"
	"pollroom/pkg/types"
)

// pollTimer is the one pending close task for the active poll. The poll id
// lets a fire that lost the race against cancellation detect that it is
// stale.
type pollTimer struct {
	timer  *time.Timer
	pollID int64
}

// CreatePoll starts a new poll. Preconditions in order: the caller is a
// teacher; any active poll is fully answered (partial tallies are never
// discarded to make room, use EndPoll instead); the definition passes
// validation. A fully answered predecessor is archived without a poll_ended
// broadcast since new_poll supersedes it.
func (c *Core) CreatePoll(handle string, def types.PollDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roleLocked(handle) != types.RoleTeacher {
		return ErrNotTeacher
	}

	if c.active != nil && !c.allAnsweredLocked() {
		return ErrPollInProgress
	}

	if err := def.Validate(); err != nil {
		return err
	}

	if c.active != nil {
		c.archiveActiveLocked()
	}

	now := c.now()
	poll := def.Poll(c.nextPollIDLocked(now), now)

	for _, r := range c.conns {
		if r.role == types.RoleStudent {
			r.hasVoted = false
		}
	}

	c.active = poll
	metrics.PollsCreated.Inc()
	c.log.Info("poll created",
		zap.Int64("poll_id", poll.ID),
		zap.Int("options", len(poll.Options)),
		zap.Float64("timer_seconds", poll.Timer))

	c.notifier.TellAll(types.Event{Event: types.EventNewPoll, Data: poll.Snapshot()})
	c.armTimerLocked(poll)
	return nil
}

// SubmitAnswer records one vote. Gates in order: an active poll with a
// matching id, a participant record for the caller, no prior vote, an option
// index within bounds. The updated tally is broadcast after every accepted
// vote; the vote that completes the roster also closes the poll.
func (c *Core) SubmitAnswer(handle string, answer types.AnswerSubmission) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || c.active.ID != answer.PollID {
		return ErrPollMismatch
	}

	r, ok := c.conns[handle]
	if !ok || r.role != types.RoleStudent {
		return ErrNotRegistered
	}

	if r.hasVoted {
		return ErrAlreadyVoted
	}

	if answer.OptionIndex < 0 || answer.OptionIndex >= len(c.active.Options) {
		return ErrOptionOutOfRange
	}

	r.hasVoted = true
	c.active.Votes[answer.OptionIndex]++
	metrics.AnswersRecorded.Inc()

	c.log.Debug("answer recorded",
		zap.Int64("poll_id", c.active.ID),
		zap.Int("option", answer.OptionIndex))

	c.notifier.TellAll(types.Event{Event: types.EventPollResults, Data: c.resultsLocked()})
	c.finishPollIfCompleteLocked()
	return nil
}

// EndPoll is the teacher's manual close. Ending with nothing active is a
// no-op: no history append, no broadcast.
func (c *Core) EndPoll(handle string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roleLocked(handle) != types.RoleTeacher {
		return ErrNotTeacher
	}

	if c.active == nil {
		return nil
	}

	c.log.Info("poll ended",
		zap.Int64("poll_id", c.active.ID),
		zap.String("reason", "manual"))
	c.archiveActiveLocked()
	c.notifier.TellAll(types.Event{Event: types.EventPollEnded})
	return nil
}

// CloseSession resets the session: everyone is told session_closed, then
// participants, the token index, and the exclusion list are cleared, so
// kicked tokens may register again. An active poll is archived without its
// own poll_ended since session_closed supersedes it. Teachers stay signed up
// and the history log is kept.
func (c *Core) CloseSession(handle string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roleLocked(handle) != types.RoleTeacher {
		return ErrNotTeacher
	}

	c.notifier.TellAll(types.Event{Event: types.EventSessionClosed})

	if c.active != nil {
		c.archiveActiveLocked()
	}

	for h, r := range c.conns {
		if r.role == types.RoleStudent {
			delete(c.conns, h)
		}
	}
	c.order = c.order[:0]
	c.byToken = make(map[string]string)
	c.banned = make(map[string]struct{})
	metrics.RegisteredParticipants.Set(0)

	c.log.Info("session closed",
		zap.Int("polls_archived", c.history.Len()))
	return nil
}

// CurrentPoll re-sends the active poll to the caller only, supporting
// reconnects and page refreshes. No-op when idle.
func (c *Core) CurrentPoll(handle string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return
	}
	c.notifier.TellOne(handle, types.Event{
		Event: types.EventNewPoll,
		Data:  c.active.Snapshot(),
	})
}

// History sends the full archive of concluded polls to the caller only.
func (c *Core) History(handle string) {
	c.notifier.TellOne(handle, types.Event{
		Event: types.EventPollHistory,
		Data:  c.history.Snapshot(),
	})
}

// allAnsweredLocked reports whether every registered student has voted. An
// empty roster never counts as fully answered, so a poll with no students
// closes only by timer or manual end.
func (c *Core) allAnsweredLocked() bool {
	if len(c.order) == 0 {
		return false
	}
	for _, r := range c.conns {
		if r.role == types.RoleStudent && !r.hasVoted {
			return false
		}
	}
	return true
}

// finishPollIfCompleteLocked closes the active poll once the current roster
// has fully answered it, whether the last gap was filled by a vote or by a
// departure.
func (c *Core) finishPollIfCompleteLocked() {
	if c.active == nil || !c.allAnsweredLocked() {
		return
	}

	c.log.Info("poll ended",
		zap.Int64("poll_id", c.active.ID),
		zap.String("reason", "all_voted"))
	c.archiveActiveLocked()
	c.notifier.TellAll(types.Event{Event: types.EventPollEnded})
}

// archiveActiveLocked cancels the pending timer and moves the active poll
// into history. Callers choose which closing events to broadcast.
func (c *Core) archiveActiveLocked() {
	c.stopTimerLocked()
	c.history.Append(c.active.Archive())
	c.active = nil
}

func (c *Core) resultsLocked() types.PollResults {
	return types.PollResults{
		PollID: c.active.ID,
		Votes:  append([]int(nil), c.active.Votes...),
	}
}

// nextPollIDLocked derives a millisecond id that stays strictly increasing
// even when two polls start within the same millisecond.
func (c *Core) nextPollIDLocked(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return id
}

func (c *Core) armTimerLocked(poll *types.Poll) {
	c.stopTimerLocked()

	pollID := poll.ID
	c.pending = &pollTimer{
		pollID: pollID,
		timer: time.AfterFunc(poll.Duration(), func() {
			c.expirePoll(pollID)
		}),
	}
}

func (c *Core) stopTimerLocked() {
	if c.pending == nil {
		return
	}
	c.pending.timer.Stop()
	c.pending = nil
}

// expirePoll runs when the poll timer fires. A fire that lost the race
// against cancellation or replacement finds a different (or no) active poll
// id and backs off, which prevents the double-close. Timer expiry is the one
// close path that broadcasts the final tally before poll_ended, since no vote
// preceded it.
func (c *Core) expirePoll(pollID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || c.active.ID != pollID {
		return
	}

	c.log.Info("poll ended",
		zap.Int64("poll_id", pollID),
		zap.String("reason", "timer"))
	c.notifier.TellAll(types.Event{Event: types.EventPollResults, Data: c.resultsLocked()})
	c.archiveActiveLocked()
	c.notifier.TellAll(types.Event{Event: types.EventPollEnded})
}
