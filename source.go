package smartedit

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
)

var ErrEmptySource = errors.New("nothing to read: pass text as arguments, pipe it, or copy it to the clipboard")

// SourceProvider finds the text a CLI command works on: arguments first,
// then piped stdin, then the clipboard.
type SourceProvider struct {
	stdin     *os.File
	clipboard func() (string, error)
}

func NewSourceProvider() *SourceProvider {
	return &SourceProvider{stdin: os.Stdin, clipboard: clipboard.ReadAll}
}

func (sp *SourceProvider) GetContent(args []string) (string, error) {
	if text := strings.TrimSpace(strings.Join(args, " ")); text != "" {
		return text, nil
	}

	if sp.stdin != nil {
		stat, err := sp.stdin.Stat()
		if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
			c, err := io.ReadAll(sp.stdin)
			if err != nil {
				return "", err
			}
			if text := strings.TrimSpace(string(c)); text != "" {
				return text, nil
			}
		}
	}

	c, err := sp.clipboard()
	if err != nil {
		return "", err
	}
	if text := strings.TrimSpace(c); text != "" {
		return text, nil
	}
	return "", ErrEmptySource
}
