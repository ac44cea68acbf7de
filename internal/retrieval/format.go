package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"guideline-rag/internal/models"
)

var ErrEmptySymptoms = errors.New("retrieval: no symptoms provided")

const (
	excerptLength  = 200
	noContextFound = "No relevant information found in NG12 guidelines."
)

// BuildClinicalQuery renders symptoms and optional demographics as a single
// retrieval query. Zero-valued demographic fields are treated as absent.
func BuildClinicalQuery(symptoms []string, demographics *models.Demographics) (string, error) {
	if len(symptoms) == 0 {
		return "", ErrEmptySymptoms
	}

	query := "cancer referral criteria for " + strings.Join(symptoms, ", ")
	if demographics == nil {
		return query, nil
	}

	var clauses []string
	if demographics.Age > 0 {
		clauses = append(clauses, fmt.Sprintf("age %d", demographics.Age))
	}
	if demographics.Gender != "" {
		clauses = append(clauses, strings.ToLower(demographics.Gender))
	}
	if demographics.SmokingHistory != "" {
		clauses = append(clauses, "smoking history: "+demographics.SmokingHistory)
	}
	if len(clauses) > 0 {
		query += " in " + strings.Join(clauses, ", ") + " patient"
	}
	return query, nil
}

// FormatCitations derives one citation per chunk, ordered by descending
// relevance. Ties keep their input order.
func FormatCitations(chunks []models.RetrievedChunk) []models.Citation {
	citations := make([]models.Citation, 0, len(chunks))
	for _, c := range chunks {
		excerpt := truncateExcerpt(c.Content, excerptLength)
		citations = append(citations, models.Citation{
			Source:         c.Metadata.Source,
			Page:           c.Metadata.PageNumber,
			ChunkID:        c.ChunkID,
			Excerpt:        excerpt,
			RelevanceScore: c.SimilarityScore,
		})
	}
	sort.SliceStable(citations, func(i, j int) bool {
		return citations[i].RelevanceScore > citations[j].RelevanceScore
	})
	return citations
}

// truncateExcerpt cuts at the last rune boundary at or below limit so a
// multi-byte character is never split.
func truncateExcerpt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// FormatContextForLLM renders chunks as prompt context, one block per chunk
// in input order. includeMetadata adds a source header above each block.
func FormatContextForLLM(chunks []models.RetrievedChunk, includeMetadata bool) string {
	if len(chunks) == 0 {
		return noContextFound
	}

	var sb strings.Builder
	for i, c := range chunks {
		if includeMetadata {
			fmt.Fprintf(&sb, "[Source %d: %s, Page %d, Section: %s]\n",
				i+1, c.Metadata.Source, c.Metadata.PageNumber, c.Metadata.SectionTitle)
		}
		sb.WriteString(c.Content)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ClinicalContext is the retrieval bundle handed to a reasoning model. The
// model call itself happens elsewhere; citations pass through unmodified.
type ClinicalContext struct {
	Query                 string            `json:"query"`
	GuidelineContext      string            `json:"guideline_context"`
	Citations             []models.Citation `json:"citations"`
	NumRelevantGuidelines int               `json:"num_relevant_guidelines"`
}

// BuildClinicalContext composes the query builder with SearchAndFormat.
func (p *Pipeline) BuildClinicalContext(ctx context.Context, symptoms []string, demographics *models.Demographics, topK int) (ClinicalContext, error) {
	query, err := BuildClinicalQuery(symptoms, demographics)
	if err != nil {
		return ClinicalContext{}, err
	}

	results, err := p.SearchAndFormat(ctx, query, topK)
	if err != nil {
		return ClinicalContext{}, err
	}

	return ClinicalContext{
		Query:                 query,
		GuidelineContext:      results.ContextText,
		Citations:             results.Citations,
		NumRelevantGuidelines: len(results.Chunks),
	}, nil
}
