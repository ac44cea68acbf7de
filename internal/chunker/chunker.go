package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"guideline-rag/internal/models"
)

const (
	defaultTargetSize   = 1200
	defaultOverlapSize  = 200
	defaultMinParagraph = 20
	defaultIDPrefix     = "ng12"

	fallbackSectionTitle = "NG12 Guidelines"
	maxTitleLineLen      = 100
)

// Config tunes the chunking behaviour. Zero values fall back to the
// defaults used for the NG12 corpus.
type Config struct {
	TargetSize   int
	OverlapSize  int
	MinParagraph int
	IDPrefix     string
}

// Chunker splits raw page text into overlapping, size-bounded, section-aware
// chunks with stable identifiers and character offsets.
type Chunker struct {
	cfg Config
}

var (
	ligatureReplacer = strings.NewReplacer(
		"ﬁ", "fi",
		"ﬂ", "fl",
		"’", "'",
		"“", `"`,
		"”", `"`,
	)

	reBoilerplate = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^\s*NICE guideline.*$`),
		regexp.MustCompile(`(?i)Page \d+ of \d+`),
	}

	reHorizontalWS = regexp.MustCompile(`[ \t]+`)

	// Section title patterns, in priority order. Exactly one rule wins.
	reNumberedHeading  = regexp.MustCompile(`(?m)^(\d+\.?\d*[ \t]+[A-Z][^.\n]{10,60})`)
	reAllCapsHeading   = regexp.MustCompile(`(?m)^([A-Z][A-Z ]{5,40})$`)
	reRecommendation   = regexp.MustCompile(`(Recommendation \d+\.?\d*)`)
	reClinicalQuestion = regexp.MustCompile(`(Clinical question \d+\.?\d*)`)

	reParagraphSplit = regexp.MustCompile("\n\\s*\n|\n\\s*[•·▪▫]\\s*")
)

func New(cfg Config) *Chunker {
	if cfg.TargetSize <= 0 {
		cfg.TargetSize = defaultTargetSize
	}
	if cfg.OverlapSize <= 0 {
		cfg.OverlapSize = defaultOverlapSize
	}
	if cfg.MinParagraph <= 0 {
		cfg.MinParagraph = defaultMinParagraph
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = defaultIDPrefix
	}
	return &Chunker{cfg: cfg}
}

// Chunk splits one page of raw text into ordered chunks. A page whose
// cleaned text is empty yields no chunks. Offsets are relative to the page's
// normalized text, and consecutive chunks share a fixed-size overlap window.
func (c *Chunker) Chunk(pageText string, pageNumber int) []models.TextChunk {
	cleaned := cleanText(pageText)
	if strings.TrimSpace(cleaned) == "" {
		return nil
	}

	sectionTitle := extractSectionTitle(cleaned)
	paragraphs := c.splitParagraphs(cleaned)
	if len(paragraphs) == 0 {
		return nil
	}

	// Offsets of each paragraph within the normalized page text, whose
	// paragraphs are joined by single newlines.
	offsets := make([]int, len(paragraphs))
	pos := 0
	for i, p := range paragraphs {
		offsets[i] = pos
		pos += len(p) + 1
	}

	var chunks []models.TextChunk
	var current strings.Builder
	seq := 0
	lastEnd := 0

	emit := func() {
		content := current.String()
		if strings.TrimSpace(content) == "" {
			return
		}
		seq++
		start := lastEnd - len(content)
		if start < 0 {
			start = 0
		}
		chunks = append(chunks, models.TextChunk{
			ChunkID:      fmt.Sprintf("%s_%04d_%02d", c.cfg.IDPrefix, pageNumber, seq),
			Content:      content,
			PageNumber:   pageNumber,
			SectionTitle: sectionTitle,
			StartChar:    start,
			EndChar:      lastEnd,
		})
	}

	for i, paragraph := range paragraphs {
		if current.Len() > 0 && current.Len()+1+len(paragraph) > c.cfg.TargetSize {
			emit()
			seed := overlapTail(current.String(), c.cfg.OverlapSize)
			current.Reset()
			current.WriteString(seed)
			current.WriteString("\n")
		} else if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(paragraph)
		lastEnd = offsets[i] + len(paragraph)
	}
	emit()

	return chunks
}

func cleanText(text string) string {
	text = ligatureReplacer.Replace(text)
	for _, re := range reBoilerplate {
		text = re.ReplaceAllString(text, "")
	}
	// Collapse runs of horizontal whitespace but keep line structure, so
	// heading detection and blank-line paragraph boundaries still work.
	text = reHorizontalWS.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractSectionTitle derives the page's section title. The first matching
// rule in priority order wins.
func extractSectionTitle(text string) string {
	for _, re := range []*regexp.Regexp{
		reNumberedHeading,
		reAllCapsHeading,
		reRecommendation,
		reClinicalQuestion,
	} {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	firstLine := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	if firstLine != "" && len(firstLine) < maxTitleLineLen {
		return firstLine
	}
	return fallbackSectionTitle
}

func (c *Chunker) splitParagraphs(text string) []string {
	raw := reParagraphSplit.Split(text, -1)
	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.Join(strings.Fields(p), " ")
		if len(p) > c.cfg.MinParagraph {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// overlapTail returns the trailing overlap window of a closed chunk, used to
// seed the next chunk.
func overlapTail(s string, overlap int) string {
	if len(s) <= overlap {
		return s
	}
	return s[len(s)-overlap:]
}
