package smartedit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	cmd := Command{Text: "create a hello world python script", TargetFolder: "/work/site"}

	p := BuildPrompt(cmd, []string{"index.html", "style.css"})
	assert.Contains(t, p, "User command: create a hello world python script")
	assert.Contains(t, p, "Target folder: /work/site")
	assert.Contains(t, p, "Existing files: index.html, style.css")
	for _, field := range []string{`"summary"`, `"actions"`, `"action"`, `"filename"`, `"content"`, `"reason"`} {
		assert.Contains(t, p, field)
	}
	assert.Equal(t, p, BuildPrompt(cmd, []string{"index.html", "style.css"}))

	assert.Contains(t, BuildPrompt(cmd, nil), "Existing files: (none)")
}

func TestBuildEditPrompt(t *testing.T) {
	p := BuildEditPrompt(EditContext{Filename: "app.js", Code: "let a = 1;", Instruction: "use const"})
	assert.Contains(t, p, "Update the code in file app.js")
	assert.Contains(t, p, "Return ONLY the updated code.")
	assert.Contains(t, p, "Existing Code:\nlet a = 1;")
	assert.Contains(t, p, "Prompt: use const")
}
