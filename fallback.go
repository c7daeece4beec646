package smartedit

import (
	"fmt"
	"html"
	"strings"
)

const fallbackReason = "fallback creation"

type FallbackTemplate struct {
	Name     string
	Filename string
	Render   func(command string) string
}

type FallbackRule struct {
	Keywords []string
	Template FallbackTemplate
}

// FallbackRules is the keyword → template table used when a completion
// cannot be decoded. First matching rule wins.
type FallbackRules struct {
	Rules   []FallbackRule
	Default FallbackTemplate
}

var (
	PythonTemplate = FallbackTemplate{Name: "python", Filename: "main.py", Render: renderPython}
	HTMLTemplate   = FallbackTemplate{Name: "html", Filename: "index.html", Render: renderHTML}
)

func DefaultFallbackRules() *FallbackRules {
	return &FallbackRules{
		Rules: []FallbackRule{
			{Keywords: []string{"python", ".py"}, Template: PythonTemplate},
			{Keywords: []string{"html", "web", "page"}, Template: HTMLTemplate},
		},
		Default: HTMLTemplate,
	}
}

func (f *FallbackRules) Classify(command string) FallbackTemplate {
	lower := strings.ToLower(command)
	for _, r := range f.Rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Template
			}
		}
	}
	return f.Default
}

func (f *FallbackRules) Plan(_ string, cmd Command) (*ActionPlan, error) {
	t := f.Classify(cmd.Text)
	content := t.Render(cmd.Text)
	return &ActionPlan{
		Summary: fmt.Sprintf("Created %s from the %s template", t.Filename, t.Name),
		Actions: []FileAction{{
			Kind:     ActionCreate,
			Filename: t.Filename,
			Content:  &content,
			Reason:   fallbackReason,
		}},
	}, nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func renderPython(command string) string {
	var b strings.Builder
	b.WriteString("#!/usr/bin/env python3\n")
	fmt.Fprintf(&b, "# %s\n\n\n", oneLine(command))
	b.WriteString("def main():\n")
	b.WriteString("    print(\"Hello, World!\")\n\n\n")
	b.WriteString("if __name__ == \"__main__\":\n")
	b.WriteString("    main()\n")
	return b.String()
}

func renderHTML(command string) string {
	title := html.EscapeString(oneLine(command))
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString("<html lang=\"en\">\n<head>\n")
	b.WriteString("    <meta charset=\"UTF-8\">\n")
	b.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&b, "    <title>%s</title>\n", title)
	b.WriteString("    <style>\n")
	b.WriteString("        body { font-family: sans-serif; max-width: 40rem; margin: 3rem auto; padding: 0 1rem; }\n")
	b.WriteString("    </style>\n")
	b.WriteString("</head>\n<body>\n")
	b.WriteString("    <h1>Hello, World!</h1>\n")
	fmt.Fprintf(&b, "    <p>%s</p>\n", title)
	b.WriteString("</body>\n</html>\n")
	return b.String()
}
