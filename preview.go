package smartedit

import (
	"errors"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Preview describes what Execute would do, without touching the disk.
func (e *Executor) Preview(plan ValidatedPlan) []ActionPreview {
	out := make([]ActionPreview, 0, len(plan.Actions))
	for _, a := range plan.Actions {
		p := ActionPreview{Action: string(a.Kind), Filename: a.Filename}

		old, err := os.ReadFile(a.Path)
		p.Exists = err == nil
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			p.Diff = "unreadable: " + err.Error()
			out = append(out, p)
			continue
		}

		switch a.Kind {
		case ActionCreate, ActionUpdate:
			p.Diff = lineDiff(string(old), *a.Content)
		case ActionDelete:
			if p.Exists {
				p.Diff = lineDiff(string(old), "")
			}
		}
		out = append(out, p)
	}
	return out
}

// lineDiff renders a line level diff with "+", "-" and " " prefixes.
func lineDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteString("\n")
			}
		}
	}
	return out.String()
}
