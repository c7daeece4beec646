package smartedit

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	createdStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	updatedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	deletedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	rejectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

type spinner struct {
	frames []string
	index  int
}

func newSpinner() spinner { return spinner{frames: []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}} }
func (s *spinner) tick()   { s.index = (s.index + 1) % len(s.frames) }
func (s spinner) View() string { return s.frames[s.index] }

// TUI shows a spinner on out while a slow call runs.
type TUI struct {
	out         io.Writer
	noAnimation bool
	spinner     spinner
	mu          sync.Mutex
}

func NewTUI(out io.Writer, noAnimation bool) *TUI {
	return &TUI{out: out, noAnimation: noAnimation, spinner: newSpinner()}
}

func (t *TUI) Run(label string, fn func() error) error {
	if t.noAnimation {
		return fn()
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				t.render(label)
			}
		}
	}()

	err := fn()
	close(done)
	<-stopped
	fmt.Fprint(t.out, "\r\x1b[K")
	return err
}

func (t *TUI) render(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spinner.tick()
	fmt.Fprintf(t.out, "\r%s %s\x1b[K", t.spinner.View(), label)
}

func FormatSummary(r Result) string {
	var b strings.Builder
	if r.Summary != "" {
		b.WriteString(headerStyle.Render(r.Summary) + "\n")
	}
	if r.Degraded {
		b.WriteString(rejectedStyle.Render("AI response unusable, applied fallback template") + "\n")
	}
	b.WriteString("\n")

	group := map[string][]string{}
	for _, f := range r.FilesAffected {
		line := f.Filename
		if f.Size != nil {
			line = fmt.Sprintf("%s %s", f.Filename, dimStyle.Render(fmt.Sprintf("(%d bytes)", *f.Size)))
		}
		group[f.Action] = append(group[f.Action], line)
	}

	renderList := func(title string, style lipgloss.Style, list []string) {
		if len(list) == 0 {
			return
		}
		b.WriteString(style.Render(title) + "\n")
		for _, f := range list {
			b.WriteString(fmt.Sprintf("  %s\n", f))
		}
	}

	renderList("Created:", createdStyle, group[AffectedCreated])
	renderList("Updated:", updatedStyle, group[AffectedUpdated])
	renderList("Deleted:", deletedStyle, group[AffectedDeleted])

	var rejected, failed []string
	for _, a := range r.Rejected {
		rejected = append(rejected, fmt.Sprintf("%s %s: %s", a.Action, a.Filename, a.Reason))
	}
	for _, a := range r.Failed {
		failed = append(failed, fmt.Sprintf("%s %s: %s", a.Action, a.Filename, a.Error))
	}
	renderList("Rejected:", rejectedStyle, rejected)
	renderList("Failed:", errorStyle, failed)

	for _, p := range r.Preview {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s %s", p.Action, p.Filename)) + "\n")
		b.WriteString(p.Diff)
	}

	fmt.Fprintf(&b, "%s\n", dimStyle.Render(fmt.Sprintf("%d of %d actions applied", len(r.FilesAffected), r.ActionsCount)))
	return b.String()
}

func FormatHistory(entries []HistoryEntry) string {
	if len(entries) == 0 {
		return dimStyle.Render("No history yet") + "\n"
	}
	var b strings.Builder
	for _, e := range entries {
		detail := e.Summary
		if e.Label == LabelEdit {
			detail = fmt.Sprintf("%d chars", e.Length)
		}
		fmt.Fprintf(&b, "%s %s %s\n  %s\n",
			dimStyle.Render(e.Timestamp.Local().Format("2006-01-02 15:04:05")),
			headerStyle.Render(e.Label),
			e.Command,
			dimStyle.Render(fmt.Sprintf("%s (%d files)", detail, e.FilesAffected)))
	}
	return b.String()
}

func FormatBackups(list []BackupInfo) string {
	if len(list) == 0 {
		return dimStyle.Render("No backups") + "\n"
	}
	var b strings.Builder
	for _, info := range list {
		fmt.Fprintf(&b, "%s  %s %s\n",
			dimStyle.Render(info.Timestamp.Local().Format("2006-01-02 15:04:05.000")),
			info.Name,
			dimStyle.Render(fmt.Sprintf("(%d bytes)", info.Size)))
	}
	return b.String()
}
