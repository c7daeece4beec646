package smartedit

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSummary(t *testing.T) {
	size := 12
	out := FormatSummary(Result{
		Summary: "Did things",
		FilesAffected: []AffectedFile{
			{Action: AffectedCreated, Filename: "new.go", Size: &size},
			{Action: AffectedUpdated, Filename: "old.go"},
			{Action: AffectedDeleted, Filename: "gone.go"},
		},
		ActionsCount: 5,
		Degraded:     true,
		Rejected:     []RejectedAction{{Action: "create", Filename: "../x", Reason: "path escapes target folder"}},
		Failed:       []FailedAction{{Action: "update", Filename: "f.go", Error: "disk full"}},
	})

	for _, want := range []string{
		"Did things", "fallback template",
		"Created:", "new.go", "(12 bytes)",
		"Updated:", "old.go",
		"Deleted:", "gone.go",
		"Rejected:", "../x: path escapes target folder",
		"Failed:", "f.go: disk full",
		"3 of 5 actions applied",
	} {
		assert.Contains(t, out, want)
	}
}

func TestFormatSummaryPreview(t *testing.T) {
	out := FormatSummary(Result{
		ActionsCount:  1,
		FilesAffected: []AffectedFile{},
		Preview:       []ActionPreview{{Action: "update", Filename: "a.txt", Exists: true, Diff: "-old\n+new\n"}},
	})
	assert.Contains(t, out, "update a.txt")
	assert.Contains(t, out, "+new")
	assert.NotContains(t, out, "Created:")
	assert.Contains(t, out, "0 of 1 actions applied")
}

func TestFormatHistory(t *testing.T) {
	assert.Contains(t, FormatHistory(nil), "No history yet")

	out := FormatHistory([]HistoryEntry{
		{Command: "add a page", Label: LabelExecute, Summary: "Created index.html", FilesAffected: 1, Timestamp: time.Now()},
		{Command: "tidy", Label: LabelEdit, Length: 99, Timestamp: time.Now()},
	})
	assert.Contains(t, out, "add a page")
	assert.Contains(t, out, "Created index.html (1 files)")
	assert.Contains(t, out, "99 chars")
}

func TestFormatBackups(t *testing.T) {
	assert.Contains(t, FormatBackups(nil), "No backups")
	out := FormatBackups([]BackupInfo{{Name: "a.backup.2024-01-01T00-00-00-000Z.txt", Size: 3, Timestamp: time.Now()}})
	assert.Contains(t, out, "a.backup.2024-01-01T00-00-00-000Z.txt")
	assert.Contains(t, out, "(3 bytes)")
}

func TestTUIRun(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTUI(&buf, false)

	err := ui.Run("Thinking", func() error {
		time.Sleep(250 * time.Millisecond)
		return errors.New("done")
	})
	assert.EqualError(t, err, "done")
	assert.Contains(t, buf.String(), "Thinking")

	buf.Reset()
	quiet := NewTUI(&buf, true)
	assert.NoError(t, quiet.Run("Thinking", func() error { return nil }))
	assert.Empty(t, buf.String())
}
