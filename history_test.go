package smartedit

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryKeepsTenMostRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	h := NewHistoryRecorder(OpenConfigStore(path, nil), nil)

	for i := 1; i <= 15; i++ {
		h.Record(HistoryEntry{Command: fmt.Sprintf("command %d", i), Label: LabelExecute})
	}

	entries := OpenConfigStore(path, nil).Snapshot().LastCommands
	require.Len(t, entries, MaxHistory)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("command %d", 15-i), e.Command)
	}
}

func TestHistoryRecordFillsIdentity(t *testing.T) {
	h := NewHistoryRecorder(OpenConfigStore(filepath.Join(t.TempDir(), "config.json"), nil), nil)
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("X", 3600))
	h.now = func() time.Time { return now }

	a := h.Record(HistoryEntry{Command: "a", Label: LabelEdit, Length: 42})
	b := h.Record(HistoryEntry{Command: "b", Label: LabelFallback})

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, now.Equal(a.Timestamp))
	assert.Equal(t, time.UTC, a.Timestamp.Location())

	entries := h.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Command)
	assert.Equal(t, 42, entries[1].Length)
}

func TestHistoryPersistFailureIsSwallowed(t *testing.T) {
	// A directory in place of the config file makes every save fail.
	dir := t.TempDir()
	h := NewHistoryRecorder(OpenConfigStore(dir, nil), nil)

	entry := h.Record(HistoryEntry{Command: "still recorded"})
	assert.NotEmpty(t, entry.ID)
	require.Len(t, h.Entries(), 1)
}
