package smartedit

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type CodeBlock struct {
	Lang    string
	Content string
}

func ExtractCodeBlocks(source []byte) ([]CodeBlock, error) {
	var blocks []CodeBlock
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var block CodeBlock
		if fenced.Info != nil {
			block.Lang = strings.ToLower(strings.TrimSpace(string(fenced.Info.Text(source))))
		}

		var content bytes.Buffer
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			content.Write(line.Value(source))
		}
		block.Content = content.String()

		blocks = append(blocks, block)
		return ast.WalkSkipChildren, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return nil, err
	}
	return blocks, nil
}

// StripFences returns the body of the first fenced block that carries JSON,
// or the trimmed input when the completion was not fenced.
func StripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.Contains(trimmed, "```") && !strings.Contains(trimmed, "~~~") {
		return trimmed
	}

	blocks, err := ExtractCodeBlocks([]byte(trimmed))
	if err != nil || len(blocks) == 0 {
		return trimmed
	}

	for _, b := range blocks {
		body := strings.TrimSpace(b.Content)
		if b.Lang == "json" || strings.HasPrefix(body, "{") {
			return body
		}
	}
	return strings.TrimSpace(blocks[0].Content)
}
