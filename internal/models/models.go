package models

import "time"

// Page is a single page of source text as extracted by the document parser,
// before cleaning and chunking.
type Page struct {
	Number int
	Text   string
}

// TextChunk is a bounded, addressable unit of guideline text with page and
// section provenance. Chunks are created once at ingestion time and never
// mutated; identity is the ChunkID.
type TextChunk struct {
	ChunkID      string `json:"chunk_id"`
	Content      string `json:"content"`
	PageNumber   int    `json:"page_number"`
	SectionTitle string `json:"section_title"`
	StartChar    int    `json:"start_char"`
	EndChar      int    `json:"end_char"`
}

// DocumentMetadata carries the provenance of a stored chunk, used for
// citations.
type DocumentMetadata struct {
	ChunkID      string `json:"chunk_id"`
	PageNumber   int    `json:"page_number"`
	SectionTitle string `json:"section_title"`
	Excerpt      string `json:"excerpt"`
	Source       string `json:"document_source"`
}

// SearchResult is the per-query output of the vector index, ordered by
// descending similarity. It is ephemeral and never persisted.
type SearchResult struct {
	ChunkID         string            `json:"chunk_id"`
	Content         string            `json:"content"`
	Metadata        map[string]string `json:"metadata"`
	SimilarityScore float64           `json:"similarity_score"`
}

// RetrievedChunk is the retrieval pipeline's output unit, a search result
// with parsed provenance metadata.
type RetrievedChunk struct {
	ChunkID         string           `json:"chunk_id"`
	Content         string           `json:"content"`
	Metadata        DocumentMetadata `json:"metadata"`
	SimilarityScore float64          `json:"similarity_score"`
}

// Citation ties a retrieved chunk back to its source location.
type Citation struct {
	Source         string  `json:"source"`
	Page           int     `json:"page"`
	ChunkID        string  `json:"chunk_id"`
	Excerpt        string  `json:"excerpt"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Demographics is the optional demographic part of a clinical query. Zero
// values mean the field is absent.
type Demographics struct {
	Age            int    `json:"age,omitempty"`
	Gender         string `json:"gender,omitempty"`
	SmokingHistory string `json:"smoking_history,omitempty"`
}

// PatientRecord is a structured clinical record from the patient store.
type PatientRecord struct {
	PatientID           string   `json:"patient_id"`
	Name                string   `json:"name"`
	Age                 int      `json:"age"`
	Gender              string   `json:"gender"`
	SmokingHistory      string   `json:"smoking_history"`
	Symptoms            []string `json:"symptoms"`
	SymptomDurationDays int      `json:"symptom_duration_days"`
}

// AssessmentResponse is the structured outcome of a patient risk assessment.
type AssessmentResponse struct {
	PatientID       string     `json:"patient_id"`
	Assessment      string     `json:"assessment"`
	Reasoning       string     `json:"reasoning"`
	Citations       []Citation `json:"citations"`
	ConfidenceScore float64    `json:"confidence_score"`
}

// Message is one entry of a chat session's history.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Citations []Citation `json:"citations,omitempty"`
}

// ChatResponse is the answer to one chat message.
type ChatResponse struct {
	SessionID string     `json:"session_id"`
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Timestamp time.Time  `json:"timestamp"`
}

// GeneratedResponse is free text produced by the reasoning model together
// with the citations that grounded it.
type GeneratedResponse struct {
	Content   string     `json:"content"`
	Citations []Citation `json:"citations"`
}
