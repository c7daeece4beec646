package smartedit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	BackupDirName   = "backups"
	backupInfix     = ".backup."
	backupTimestamp = "2006-01-02T15:04:05.000Z07:00"

	maxBackupCollisions = 1000
)

type BackupInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
}

type BackupManager struct {
	maxBackups int
	now        func() time.Time
	logger     *zap.Logger
}

func NewBackupManager(maxBackups int, logger *zap.Logger) *BackupManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupManager{maxBackups: maxBackups, now: time.Now, logger: logger}
}

// BackupName builds "<base>.backup.<ISO-8601 with ':' and '.' as '-'><ext>".
func BackupName(filename string, ts time.Time) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(ts.UTC().Format(backupTimestamp))
	return stem + backupInfix + stamp + ext
}

func backupDir(path string) string {
	return filepath.Join(filepath.Dir(path), BackupDirName)
}

// Backup copies the current bytes of path into the colocated backups
// directory and returns the backup path.
func (m *BackupManager) Backup(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read original: %w", err)
	}

	dir := backupDir(path)
	if err := CreateDirs(dir); err != nil {
		return "", err
	}

	ts := m.now().UTC().Truncate(time.Millisecond)
	var dest string
	for attempt := 0; ; attempt++ {
		dest = filepath.Join(dir, BackupName(path, ts))
		err = writeExclusive(dest, content)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) || attempt >= maxBackupCollisions {
			return "", fmt.Errorf("write backup: %w", err)
		}
		ts = ts.Add(time.Millisecond)
	}
	m.logger.Debug("Backed up file", zap.String("path", path), zap.String("backup", dest))

	if m.maxBackups > 0 {
		m.prune(path)
	}
	return dest, nil
}

// writeExclusive fails with os.ErrExist instead of replacing an existing file.
func writeExclusive(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	_, err = f.Write(content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
	}
	return err
}

// List returns the backups of path, newest first.
func (m *BackupManager) List(path string) ([]BackupInfo, error) {
	dir := backupDir(path)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + backupInfix

	var out []BackupInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		ts, ok := parseBackupStamp(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext))
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BackupInfo{Name: name, Path: filepath.Join(dir, name), Timestamp: ts, Size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *BackupManager) prune(path string) {
	backups, err := m.List(path)
	if err != nil || len(backups) <= m.maxBackups {
		return
	}
	for _, b := range backups[m.maxBackups:] {
		if err := os.Remove(b.Path); err != nil {
			m.logger.Warn("Failed to prune backup", zap.String("backup", b.Path), zap.Error(err))
			continue
		}
		m.logger.Debug("Pruned backup", zap.String("backup", b.Path))
	}
}

// parseBackupStamp reverses the separator substitution of BackupName:
// 2024-01-02T03-04-05-678Z.
func parseBackupStamp(s string) (time.Time, bool) {
	date, clock, ok := strings.Cut(s, "T")
	if !ok {
		return time.Time{}, false
	}
	parts := strings.Split(strings.TrimSuffix(clock, "Z"), "-")
	if len(parts) != 4 || !strings.HasSuffix(clock, "Z") {
		return time.Time{}, false
	}
	ts, err := time.Parse(backupTimestamp, fmt.Sprintf("%sT%s:%s:%s.%sZ", date, parts[0], parts[1], parts[2], parts[3]))
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
