package parser_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guideline-rag/internal/parser"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractPages_Text(t *testing.T) {
	path := writeFile(t, "guide.txt", "Refer adults with haemoptysis urgently.\n")

	pages, err := parser.ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "haemoptysis")
}

func TestExtractPages_EmptyText(t *testing.T) {
	path := writeFile(t, "empty.txt", "   \n\t\n")

	pages, err := parser.ExtractPages(path)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestExtractPages_Markdown(t *testing.T) {
	path := writeFile(t, "guide.md", `# Lung cancer

Refer people aged 40 and over with unexplained haemoptysis.

- persistent cough
- weight loss

---

# Colorectal cancer

Offer a referral for rectal bleeding.
`)

	pages, err := parser.ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "Lung cancer")
	assert.Contains(t, pages[0].Text, "unexplained haemoptysis")
	assert.Contains(t, pages[0].Text, "• persistent cough")
	assert.NotContains(t, pages[0].Text, "#", "markdown syntax is stripped")

	assert.Equal(t, 2, pages[1].Number)
	assert.Contains(t, pages[1].Text, "rectal bleeding")
}

func TestExtractPages_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "guide.xyz", "data")

	_, err := parser.ExtractPages(path)
	assert.ErrorContains(t, err, "unsupported file format")
}

func TestExtractPages_MissingFile(t *testing.T) {
	_, err := parser.ExtractPages(filepath.Join(t.TempDir(), "absent.pdf"))
	assert.Error(t, err)
}
