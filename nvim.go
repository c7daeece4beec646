package smartedit

import (
	"errors"
	"os"
	"sync"

	"github.com/neovim/go-client/nvim"
	"go.uber.org/zap"
)

// NvimNotifier asks a running Neovim to reload buffers whose files were
// rewritten on disk.
type NvimNotifier struct {
	mu     sync.Mutex
	v      *nvim.Nvim
	logger *zap.Logger
}

// NvimAddress is the socket of the editor this process runs under, if any.
func NvimAddress() string {
	for _, key := range []string{"NVIM", "NVIM_LISTEN_ADDRESS"} {
		if addr := os.Getenv(key); addr != "" {
			return addr
		}
	}
	return ""
}

func NewNvimNotifier(addr string, logger *zap.Logger) (*NvimNotifier, error) {
	if addr == "" {
		return nil, errors.New("no neovim address")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	v, err := nvim.Dial(addr)
	if err != nil {
		return nil, err
	}
	return &NvimNotifier{v: v, logger: logger}, nil
}

func (n *NvimNotifier) FilesChanged(paths []string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	escaped := make([]string, len(paths))
	b := n.v.NewBatch()
	for i, p := range paths {
		b.Call("fnameescape", &escaped[i], p)
	}
	if err := b.Execute(); err != nil {
		n.logger.Debug("Neovim refresh failed", zap.Error(err))
		return
	}

	b = n.v.NewBatch()
	for _, p := range escaped {
		// Buffers that are not open make checktime fail; silence those.
		b.Command("silent! checktime " + p)
	}
	if err := b.Execute(); err != nil {
		n.logger.Debug("Neovim refresh failed", zap.Error(err))
	}
}

func (n *NvimNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.v.Close()
}
