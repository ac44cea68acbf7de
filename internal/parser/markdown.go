package parser

import (
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"guideline-rag/internal/models"
)

// extractMarkdown parses the document into an AST and walks it for plain
// text. Thematic breaks (---) split the document into pages so large
// guideline conversions keep usable page provenance.
func extractMarkdown(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(text.NewReader(data))

	var pages []models.Page
	var current strings.Builder
	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			pages = append(pages, models.Page{Number: len(pages) + 1, Text: current.String()})
		}
		current.Reset()
	}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if node.Kind() == ast.KindThematicBreak {
			flush()
			continue
		}
		block := blockText(node, data)
		if block != "" {
			current.WriteString(block)
			current.WriteString("\n\n")
		}
	}
	flush()
	return pages, nil
}

// blockText collects the raw text of a block node's inline children.
func blockText(node ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.HardLineBreak() || t.SoftLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.ListItem:
			sb.WriteString("\n• ")
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
