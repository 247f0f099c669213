package types

import (
	"math"
	"strings"
)

// Validate checks a poll definition rule by rule and reports the first
// failure. The order is part of the contract: question, option count, option
// text, option uniqueness, timer range, correct index.
func (d PollDefinition) Validate() error {
	if strings.TrimSpace(d.Question) == "" {
		return ErrQuestionRequired
	}
	if len(d.Options) < MinPollOptions {
		return ErrNotEnoughOptions
	}

	seen := make(map[string]struct{}, len(d.Options))
	for _, option := range d.Options {
		trimmed := strings.TrimSpace(option)
		if trimmed == "" {
			return ErrOptionEmpty
		}
		seen[trimmed] = struct{}{}
	}
	if len(seen) != len(d.Options) {
		return ErrDuplicateOptions
	}

	if d.Timer < MinPollTimerSeconds || d.Timer > MaxPollTimerSeconds {
		return ErrTimerOutOfRange
	}

	if d.CorrectIndex != math.Trunc(d.CorrectIndex) {
		return ErrBadCorrectIndex
	}
	if idx := int(d.CorrectIndex); idx < 0 || idx >= len(d.Options) {
		return ErrBadCorrectIndex
	}

	return nil
}
