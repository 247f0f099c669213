package history

import (
	"sync"

	"pollroom/pkg/types"
)

// Log is an in-memory, append-only archive of concluded polls. Entries
// survive session resets and are only lost when the process exits.
type Log struct {
	mu      sync.RWMutex
	entries []types.HistoryEntry
}

// NewLog creates an empty poll archive.
func NewLog() *Log {
	return &Log{
		entries: make([]types.HistoryEntry, 0),
	}
}

// Append records a concluded poll. Entries are kept in conclusion order.
func (l *Log) Append(entry types.HistoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
}

// Snapshot returns a copy of all archived polls, oldest first. Mutating
// the returned slice does not affect the archive.
func (l *Log) Snapshot() []types.HistoryEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.HistoryEntry, len(l.entries))
	for i, entry := range l.entries {
		out[i] = entry.Clone()
	}
	return out
}

// Len reports the number of archived polls.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.entries)
}
