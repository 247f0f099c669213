package interfaces

import "pollroom/pkg/types"

// HistoryLog is the append-only archive of concluded polls. Entries are
// ordered by close time and survive only for the lifetime of the process.
type HistoryLog interface {
	Append(entry types.HistoryEntry)
	Snapshot() []types.HistoryEntry
	Len() int
}
