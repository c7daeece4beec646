package smartedit

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

func GetFileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// PathResolver maps AI supplied filenames into the target folder and refuses
// anything that would land outside of it.
type PathResolver struct {
	root string
}

func NewPathResolver(root string) (*PathResolver, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ErrNoTargetFolder
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("could not resolve target folder: %w", err)
	}
	return &PathResolver{root: abs}, nil
}

func (r *PathResolver) Root() string { return r.root }

func (r *PathResolver) Resolve(name string) (string, error) {
	if err := validateRelativePath(name); err != nil {
		return "", err
	}

	joined := filepath.Join(r.root, name)
	rel, err := filepath.Rel(r.root, joined)
	if err != nil {
		return "", err
	}
	// "..." and "..foo" are legal names, only a leading ".." segment escapes.
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, name)
	}

	within, err := isWithinDirReal(r.root, joined)
	if err != nil {
		return "", err
	}
	if !within {
		return "", fmt.Errorf("%w: %s resolves through a symlink", ErrPathEscape, name)
	}
	return joined, nil
}

// Rel is the slash separated name of path inside the root.
func (r *PathResolver) Rel(path string) string {
	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func validateRelativePath(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsRune(name, '\x00') {
		return ErrInvalidPath
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return fmt.Errorf("%w: %s", ErrAbsolutePath, name)
	}
	if filepath.VolumeName(name) != "" {
		return fmt.Errorf("%w: %s", ErrAbsolutePath, name)
	}
	return nil
}

// resolveExisting follows symlinks for the longest existing prefix of path
// and re-attaches the missing suffix.
func resolveExisting(path string) (string, error) {
	current := path
	var missing []string
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}

func isWithinDirReal(base, target string) (bool, error) {
	b, err := resolveExisting(base)
	if err != nil {
		return false, err
	}
	t, err := resolveExisting(target)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(b, t)
	if err != nil {
		return false, err
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)), nil
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", path)
	}
	return true, nil
}

func CreateDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory '%s': %w", dir, err)
		}
	}
	return nil
}

// listFolder returns up to limit regular file names directly under dir.
func listFolder(dir string, limit int) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
		if len(names) == limit {
			break
		}
	}
	return names
}
