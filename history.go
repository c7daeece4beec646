package smartedit

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const MaxHistory = 10

type HistoryRecorder struct {
	store  *ConfigStore
	now    func() time.Time
	logger *zap.Logger
}

func NewHistoryRecorder(store *ConfigStore, logger *zap.Logger) *HistoryRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryRecorder{store: store, now: time.Now, logger: logger}
}

// Record prepends entry and keeps the newest MaxHistory entries. A failed
// persist is logged only; the in-memory history stays authoritative.
func (h *HistoryRecorder) Record(entry HistoryEntry) HistoryEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = h.now().UTC()
	}

	err := h.store.Update(func(c *Config) {
		entries := make([]HistoryEntry, 0, MaxHistory)
		entries = append(entries, entry)
		entries = append(entries, c.LastCommands...)
		if len(entries) > MaxHistory {
			entries = entries[:MaxHistory]
		}
		c.LastCommands = entries
	})
	if err != nil {
		h.logger.Error("Failed to persist history", zap.Error(err))
	}
	return entry
}

func (h *HistoryRecorder) Entries() []HistoryEntry {
	return h.store.Snapshot().LastCommands
}
