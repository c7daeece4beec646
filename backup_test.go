package smartedit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestBackupName(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC)

	assert.Equal(t, "b.backup.2024-01-02T03-04-05-678Z.txt", BackupName("a/b.txt", ts))
	assert.Equal(t, "Makefile.backup.2024-01-02T03-04-05-678Z", BackupName("Makefile", ts))
	assert.Equal(t, "archive.tar.backup.2024-01-02T03-04-05-678Z.gz", BackupName("archive.tar.gz", ts))

	local := ts.In(time.FixedZone("X", 5*3600))
	assert.Equal(t, BackupName("b.txt", ts), BackupName("b.txt", local))
}

func TestParseBackupStamp(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC)
	got, ok := parseBackupStamp("2024-01-02T03-04-05-678Z")
	require.True(t, ok)
	assert.True(t, ts.Equal(got))

	_, ok = parseBackupStamp("not-a-stamp")
	assert.False(t, ok)
}

func TestBackupCopiesBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b.txt")
	writeFile(t, path, "X")

	m := NewBackupManager(0, nil)
	m.now = fixedClock(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	dest, err := m.Backup(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a", "backups", "b.backup.2024-01-02T03-04-05-000Z.txt"), dest)
	assert.Equal(t, "X", readFile(t, dest))
	assert.Equal(t, "X", readFile(t, path))
}

func TestBackupSameMillisecondNeverOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	m := NewBackupManager(0, nil)
	m.now = fixedClock(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	writeFile(t, path, "one")
	first, err := m.Backup(path)
	require.NoError(t, err)

	writeFile(t, path, "two")
	second, err := m.Backup(path)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "one", readFile(t, first))
	assert.Equal(t, "two", readFile(t, second))
	assert.Contains(t, second, "2024-01-02T03-04-05-001Z")
}

// A 240 byte name is legal, but its backup name is over the 255 byte limit.
func longFilename() string {
	return strings.Repeat("a", 236) + ".txt"
}

func TestBackupNameTooLongFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), longFilename())
	writeFile(t, path, "content")
	m := NewBackupManager(0, nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.Backup(path)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "write backup")
	case <-time.After(5 * time.Second):
		t.Fatal("Backup did not return")
	}
	assert.Empty(t, backupsOf(t, filepath.Dir(path)))
}

func TestExecutorUpdateWithUnbackableNameReleasesLock(t *testing.T) {
	root := t.TempDir()
	name := longFilename()
	writeFile(t, filepath.Join(root, name), "X")
	plan := validated(t, root, DefaultSettings(), FileAction{Kind: ActionUpdate, Filename: name, Content: strPtr("Y")})
	require.Len(t, plan.Actions, 1)

	locks := NewPathLocks()
	r, err := NewPathResolver(root)
	require.NoError(t, err)
	res := NewExecutor(r, DefaultSettings(), locks, nil).Execute(context.Background(), plan)

	require.Len(t, res.Failed, 1)
	assert.Empty(t, res.FilesAffected)
	assert.Equal(t, "X", readFile(t, filepath.Join(root, name)))
	assert.Equal(t, 0, locks.size())
}

func TestBackupMissingOriginal(t *testing.T) {
	m := NewBackupManager(0, nil)
	_, err := m.Backup(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBackupRetention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	writeFile(t, path, "v")

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewBackupManager(3, nil)
	m.now = func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}

	for i := 0; i < 5; i++ {
		_, err := m.Backup(path)
		require.NoError(t, err)
	}

	list, err := m.List(path)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].Timestamp.After(list[1].Timestamp))
	assert.True(t, list[1].Timestamp.After(list[2].Timestamp))
	assert.True(t, list[0].Timestamp.Equal(ts))
}

func TestBackupListIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	writeFile(t, path, "v")
	writeFile(t, filepath.Join(dir, "g.txt"), "w")
	writeFile(t, filepath.Join(dir, "backups", "notes.md"), "")

	m := NewBackupManager(0, nil)
	_, err := m.Backup(path)
	require.NoError(t, err)
	_, err = m.Backup(filepath.Join(dir, "g.txt"))
	require.NoError(t, err)

	list, err := m.List(path)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].Size)

	none, err := m.List(filepath.Join(t.TempDir(), "x.txt"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFileManagerRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewBackupManager(0, nil)
	m.now = func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
	fm := NewFileManager()

	writeFile(t, path, "first")
	older, err := m.Backup(path)
	require.NoError(t, err)
	writeFile(t, path, "second")
	_, err = m.Backup(path)
	require.NoError(t, err)
	writeFile(t, path, "third")

	restored, saved, err := fm.Restore(path, "", m)
	require.NoError(t, err)
	assert.Equal(t, "second", readFile(t, path))
	assert.NotEmpty(t, saved)
	assert.Equal(t, "third", readFile(t, saved))
	assert.NotEmpty(t, restored.Name)

	_, _, err = fm.Restore(path, filepath.Base(older), m)
	require.NoError(t, err)
	assert.Equal(t, "first", readFile(t, path))

	_, _, err = fm.Restore(path, "nope.backup.txt", m)
	assert.ErrorIs(t, err, ErrNoBackup)
}

func TestFileManagerRestoreWithoutBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	_, _, err := NewFileManager().Restore(path, "", NewBackupManager(0, nil))
	assert.ErrorIs(t, err, ErrNoBackup)
}
