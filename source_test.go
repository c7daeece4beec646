package smartedit

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceProviderArgs(t *testing.T) {
	sp := &SourceProvider{clipboard: func() (string, error) { return "clip", nil }}
	got, err := sp.GetContent([]string{"make", "a", "page"})
	require.NoError(t, err)
	assert.Equal(t, "make a page", got)
}

func TestSourceProviderStdin(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	_, err = w.WriteString("  from pipe\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	sp := &SourceProvider{stdin: r, clipboard: func() (string, error) { return "clip", nil }}
	got, err := sp.GetContent(nil)
	require.NoError(t, err)
	assert.Equal(t, "from pipe", got)
}

func TestSourceProviderClipboard(t *testing.T) {
	sp := &SourceProvider{clipboard: func() (string, error) { return " clip ", nil }}
	got, err := sp.GetContent([]string{"  "})
	require.NoError(t, err)
	assert.Equal(t, "clip", got)

	sp.clipboard = func() (string, error) { return "", nil }
	_, err = sp.GetContent(nil)
	assert.ErrorIs(t, err, ErrEmptySource)

	boom := errors.New("no clipboard")
	sp.clipboard = func() (string, error) { return "", boom }
	_, err = sp.GetContent(nil)
	assert.ErrorIs(t, err, boom)
}
