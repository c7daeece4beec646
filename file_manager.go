package smartedit

import (
	"fmt"
	"os"
	"path/filepath"
)

type FileManager struct{}

func NewFileManager() *FileManager {
	return &FileManager{}
}

func (m *FileManager) Write(path string, content string) error {
	if err := CreateDirs(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

func (m *FileManager) Remove(path string) error {
	return os.Remove(path)
}

// Restore puts the bytes of a backup back in place of path. An empty name
// picks the newest backup. The current content, if any, is backed up first
// so a restore can itself be undone.
func (m *FileManager) Restore(path, name string, backups *BackupManager) (restored BackupInfo, saved string, err error) {
	list, err := backups.List(path)
	if err != nil {
		return BackupInfo{}, "", err
	}
	if len(list) == 0 {
		return BackupInfo{}, "", fmt.Errorf("%w for %s", ErrNoBackup, filepath.Base(path))
	}

	restored = list[0]
	if name != "" {
		found := false
		for _, b := range list {
			if b.Name == name {
				restored, found = b, true
				break
			}
		}
		if !found {
			return BackupInfo{}, "", fmt.Errorf("%w: %s", ErrNoBackup, name)
		}
	}

	content, err := os.ReadFile(restored.Path)
	if err != nil {
		return BackupInfo{}, "", fmt.Errorf("read backup: %w", err)
	}

	exists, err := fileExists(path)
	if err != nil {
		return BackupInfo{}, "", err
	}
	if exists {
		if saved, err = backups.Backup(path); err != nil {
			return BackupInfo{}, "", err
		}
	}

	if err := m.Write(path, string(content)); err != nil {
		return BackupInfo{}, saved, err
	}
	return restored, saved, nil
}
