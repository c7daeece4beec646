package smartedit

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		*cfg = CLIConfig{}
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLIOfflineCommands(t *testing.T) {
	clearOptionsEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	root := filepath.Join(dir, "site")
	writeFile(t, filepath.Join(root, "index.html"), "v1")
	config := filepath.Join(dir, "state.json")

	out, err := runCLI(t, "--config", config, "set-folder", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Target folder: "+root)

	out, err = runCLI(t, "--config", config, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No history yet")

	out, err = runCLI(t, "--config", config, "backups", "index.html")
	require.NoError(t, err)
	assert.Contains(t, out, "No backups")

	_, err = runCLI(t, "--config", config, "restore", "index.html")
	assert.ErrorIs(t, err, ErrNoBackup)
}

func TestCLICompletionRejectsUnknownShell(t *testing.T) {
	_, err := runCLI(t, "--completion", "tcsh")
	assert.ErrorContains(t, err, "unsupported shell")
}
