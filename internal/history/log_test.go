package history

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollroom/pkg/types"
)

func sampleEntry(question string) types.HistoryEntry {
	return types.HistoryEntry{
		Question:     question,
		Options:      []string{"yes", "no"},
		Votes:        []int{3, 1},
		CorrectIndex: 0,
	}
}

func TestLogAppendPreservesOrder(t *testing.T) {
	log := NewLog()
	log.Append(sampleEntry("first"))
	log.Append(sampleEntry("second"))
	log.Append(sampleEntry("third"))

	snapshot := log.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "first", snapshot[0].Question)
	assert.Equal(t, "second", snapshot[1].Question)
	assert.Equal(t, "third", snapshot[2].Question)
	assert.Equal(t, 3, log.Len())
}

func TestLogSnapshotIsDetached(t *testing.T) {
	log := NewLog()
	log.Append(sampleEntry("detached"))

	snapshot := log.Snapshot()
	require.Len(t, snapshot, 1)

	snapshot[0].Question = "mutated"
	snapshot[0].Options[0] = "mutated"
	snapshot[0].Votes[0] = 99

	fresh := log.Snapshot()
	require.Len(t, fresh, 1)
	assert.Equal(t, "detached", fresh[0].Question)
	assert.Equal(t, "yes", fresh[0].Options[0])
	assert.Equal(t, 3, fresh[0].Votes[0])
}

func TestLogEmptySnapshot(t *testing.T) {
	log := NewLog()

	snapshot := log.Snapshot()
	assert.NotNil(t, snapshot)
	assert.Empty(t, snapshot)
	assert.Equal(t, 0, log.Len())
}

func TestLogConcurrentAppend(t *testing.T) {
	log := NewLog()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				log.Append(sampleEntry("concurrent"))
				log.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, log.Len())
}
