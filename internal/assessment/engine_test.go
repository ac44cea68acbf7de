package assessment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guideline-rag/internal/assessment"
	"guideline-rag/internal/models"
	"guideline-rag/internal/patients"
	"guideline-rag/internal/reasoning"
	"guideline-rag/internal/retrieval"
)

type stubStore struct {
	records map[string]models.PatientRecord
}

func (s *stubStore) GetByID(_ context.Context, id string) (models.PatientRecord, error) {
	r, ok := s.records[id]
	if !ok {
		return models.PatientRecord{}, patients.ErrNotFound
	}
	return r, nil
}

func (s *stubStore) List(context.Context) ([]models.PatientRecord, error) { return nil, nil }
func (s *stubStore) Close() error                                        { return nil }

type stubRetriever struct {
	context retrieval.ClinicalContext
	queries []string
}

func (s *stubRetriever) BuildClinicalContext(_ context.Context, symptoms []string, demographics *models.Demographics, _ int) (retrieval.ClinicalContext, error) {
	query, err := retrieval.BuildClinicalQuery(symptoms, demographics)
	if err != nil {
		return retrieval.ClinicalContext{}, err
	}
	s.queries = append(s.queries, query)
	out := s.context
	out.Query = query
	return out, nil
}

func testPatients() *stubStore {
	return &stubStore{records: map[string]models.PatientRecord{
		"P001": {
			PatientID:      "P001",
			Name:           "Alex Rivers",
			Age:            58,
			Gender:         "Male",
			SmokingHistory: "30 pack-years",
			Symptoms:       []string{"haemoptysis", "weight loss"},
		},
		"P002": {
			PatientID: "P002",
			Name:      "Sam Okafor",
			Symptoms:  nil,
		},
	}}
}

func testClinicalContext(n int) retrieval.ClinicalContext {
	citations := make([]models.Citation, n)
	for i := range citations {
		citations[i] = models.Citation{Source: models.GuidelineSource, Page: i + 1, ChunkID: "ng12_0001_01", RelevanceScore: 0.9}
	}
	return retrieval.ClinicalContext{
		GuidelineContext:      "Refer people aged 40 and over with unexplained haemoptysis.",
		Citations:             citations,
		NumRelevantGuidelines: n,
	}
}

func TestAssessPatient(t *testing.T) {
	retriever := &stubRetriever{context: testClinicalContext(5)}
	reasoner := reasoning.NewMockReasoner(
		"Assessment: Urgent Referral\nReasoning: Haemoptysis with significant smoking history meets the referral criteria.\nCitations: NG12 PDF")
	engine := assessment.NewEngine(retriever, reasoner, testPatients(), 8)

	resp, err := engine.AssessPatient(context.Background(), "P001")
	require.NoError(t, err)

	assert.Equal(t, "P001", resp.PatientID)
	assert.Equal(t, models.AssessmentUrgentReferral, resp.Assessment)
	assert.Equal(t, "Haemoptysis with significant smoking history meets the referral criteria.", resp.Reasoning)
	assert.Len(t, resp.Citations, 5)
	assert.Equal(t, 1.0, resp.ConfidenceScore)

	// The retrieval query is seeded from the record's symptoms and demographics.
	require.Len(t, retriever.queries, 1)
	assert.Contains(t, retriever.queries[0], "haemoptysis, weight loss")
	assert.Contains(t, retriever.queries[0], "age 58")
	assert.Contains(t, retriever.queries[0], "male")

	// The prompt carries the retrieved guideline text.
	assert.Contains(t, reasoner.LastPrompt, "P001")
	assert.Contains(t, reasoner.LastPrompt, "unexplained haemoptysis")
}

func TestAssessPatient_ToolRoundTrip(t *testing.T) {
	retriever := &stubRetriever{context: testClinicalContext(3)}
	reasoner := reasoning.NewMockReasoner("Assessment: Urgent Investigation\nReasoning: ok").
		WithToolCall("get_patient_data", `{"patient_id": "P001"}`)
	engine := assessment.NewEngine(retriever, reasoner, testPatients(), 8)

	_, err := engine.AssessPatient(context.Background(), "P001")
	require.NoError(t, err)

	require.Len(t, reasoner.ToolResults, 1)
	assert.Contains(t, reasoner.ToolResults[0], `"patient_id":"P001"`)
	assert.Contains(t, reasoner.ToolResults[0], "Alex Rivers")
}

func TestAssessPatient_Failures(t *testing.T) {
	retriever := &stubRetriever{context: testClinicalContext(3)}
	engine := assessment.NewEngine(retriever, reasoning.NewMockReasoner(""), testPatients(), 8)

	_, err := engine.AssessPatient(context.Background(), "P999")
	assert.ErrorIs(t, err, patients.ErrNotFound)

	_, err = engine.AssessPatient(context.Background(), "P002")
	assert.ErrorContains(t, err, "no recorded symptoms")
}

func TestAssessBatch_ContinuesPastFailures(t *testing.T) {
	retriever := &stubRetriever{context: testClinicalContext(2)}
	reasoner := reasoning.NewMockReasoner("Assessment: No Action\nReasoning: No criteria met.")
	engine := assessment.NewEngine(retriever, reasoner, testPatients(), 8)

	responses, errs := engine.AssessBatch(context.Background(), []string{"P001", "P999", "P001"})
	assert.Len(t, responses, 2)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], patients.ErrNotFound)
}

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name           string
		answer         string
		wantAssessment string
		wantReasoning  string
	}{
		{
			name:           "well formed",
			answer:         "Assessment: Urgent Referral\nReasoning: Criteria met.\nCitations: NG12 PDF",
			wantAssessment: models.AssessmentUrgentReferral,
			wantReasoning:  "Criteria met.",
		},
		{
			name:           "case insensitive labels",
			answer:         "assessment: no action needed\nreasoning: Nothing matches.",
			wantAssessment: models.AssessmentNoAction,
			wantReasoning:  "Nothing matches.",
		},
		{
			name:           "multiline reasoning",
			answer:         "Assessment: Urgent Investigation\nReasoning: First point.\nSecond point.\nCitations: page 4",
			wantAssessment: models.AssessmentUrgentInvestigation,
			wantReasoning:  "First point.\nSecond point.",
		},
		{
			name:           "unstructured answer defaults to urgent investigation",
			answer:         "The patient should probably see a specialist soon.",
			wantAssessment: models.AssessmentUrgentInvestigation,
			wantReasoning:  "The patient should probably see a specialist soon.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := assessment.ParseAssessment(tt.answer)
			assert.Equal(t, tt.wantAssessment, got.Assessment)
			assert.Equal(t, tt.wantReasoning, got.Reasoning)
		})
	}
}

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		name       string
		assessment string
		guidelines int
		want       float64
	}{
		{"no evidence no action", models.AssessmentNoAction, 0, 0.0},
		{"scales with evidence", models.AssessmentUrgentInvestigation, 3, 0.6},
		{"referral bonus", models.AssessmentUrgentReferral, 3, 0.8},
		{"no action penalty", models.AssessmentNoAction, 3, 0.5},
		{"capped at one", models.AssessmentUrgentReferral, 10, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, assessment.ConfidenceScore(tt.assessment, tt.guidelines), 1e-9)
		})
	}
}

func TestSummarize(t *testing.T) {
	responses := []models.AssessmentResponse{
		{Assessment: models.AssessmentUrgentReferral, ConfidenceScore: 1.0},
		{Assessment: models.AssessmentUrgentReferral, ConfidenceScore: 0.8},
		{Assessment: models.AssessmentNoAction, ConfidenceScore: 0.3},
	}

	stats := assessment.Summarize(responses)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByAssessment[models.AssessmentUrgentReferral])
	assert.Equal(t, 1, stats.ByAssessment[models.AssessmentNoAction])
	assert.InDelta(t, 0.7, stats.AverageConfidence, 1e-9)

	empty := assessment.Summarize(nil)
	assert.Equal(t, 0, empty.Total)
}
