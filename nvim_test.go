package smartedit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNvimAddress(t *testing.T) {
	t.Setenv("NVIM", "")
	t.Setenv("NVIM_LISTEN_ADDRESS", "")
	assert.Empty(t, NvimAddress())

	t.Setenv("NVIM_LISTEN_ADDRESS", "/tmp/legacy.sock")
	assert.Equal(t, "/tmp/legacy.sock", NvimAddress())

	t.Setenv("NVIM", "/tmp/nvim.sock")
	assert.Equal(t, "/tmp/nvim.sock", NvimAddress())
}

func TestNewNvimNotifierErrors(t *testing.T) {
	_, err := NewNvimNotifier("", nil)
	assert.Error(t, err)

	_, err = NewNvimNotifier(filepath.Join(t.TempDir(), "missing.sock"), nil)
	assert.Error(t, err)
}
