package smartedit

import (
	"fmt"
	"strings"
)

const folderListingLimit = 50

// EditContext carries the file for single-file edit mode.
type EditContext struct {
	Filename    string
	Code        string
	Instruction string
}

// BuildPrompt renders the instruction for turning cmd into an action plan.
// existing lists files already present in the target folder.
func BuildPrompt(cmd Command, existing []string) string {
	var b strings.Builder
	b.WriteString("You are an AI file manager. Translate the user's command into file operations inside the target folder.\n\n")

	b.WriteString("Respond with ONLY a JSON object of this exact shape, no prose and no markdown:\n")
	b.WriteString(`{
  "summary": "one sentence describing what will be done",
  "actions": [
    {
      "action": "create" | "update" | "delete",
      "filename": "path relative to the target folder",
      "content": "the complete file content (omit for delete)",
      "reason": "why this change is needed"
    }
  ]
}`)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Target folder: %s\n", cmd.TargetFolder)
	if len(existing) > 0 {
		fmt.Fprintf(&b, "Existing files: %s\n", strings.Join(existing, ", "))
	} else {
		b.WriteString("Existing files: (none)\n")
	}
	fmt.Fprintf(&b, "User command: %s\n\n", cmd.Text)

	b.WriteString("Rules:\n")
	b.WriteString("- Write complete, working files. Never use placeholders such as \"...\" or \"rest of code here\".\n")
	b.WriteString("- Give every file the extension that matches its language.\n")
	b.WriteString("- \"update\" replaces the whole file, so include the full new content.\n")
	b.WriteString("- Filenames are relative to the target folder; never use absolute paths or \"..\".\n")
	b.WriteString("- List actions in the order they must be applied.\n")
	return b.String()
}

// BuildEditPrompt renders the single-file edit instruction.
func BuildEditPrompt(edit EditContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a code editor AI. Update the code in file %s based on the user prompt. Return ONLY the updated code.\n\n", edit.Filename)
	fmt.Fprintf(&b, "Existing Code:\n%s\n\n", edit.Code)
	fmt.Fprintf(&b, "Prompt: %s", edit.Instruction)
	return b.String()
}
