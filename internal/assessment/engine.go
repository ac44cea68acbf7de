package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"guideline-rag/internal/models"
	"guideline-rag/internal/patients"
	"guideline-rag/internal/reasoning"
	"guideline-rag/internal/retrieval"
)

// ContextBuilder is the retrieval surface the engine depends on.
type ContextBuilder interface {
	BuildClinicalContext(ctx context.Context, symptoms []string, demographics *models.Demographics, topK int) (retrieval.ClinicalContext, error)
}

// Engine assesses a patient's cancer risk against the retrieved guideline
// evidence and the reasoning model's judgement.
type Engine struct {
	retriever ContextBuilder
	reasoner  reasoning.Port
	store     patients.Store
	topK      int
}

func NewEngine(retriever ContextBuilder, reasoner reasoning.Port, store patients.Store, topK int) *Engine {
	if topK <= 0 {
		topK = 8
	}
	return &Engine{retriever: retriever, reasoner: reasoner, store: store, topK: topK}
}

// AssessPatient looks up the patient, retrieves matching guideline sections
// and asks the reasoning model for a recommendation. The model may fetch
// the full record again through the get_patient_data tool.
func (e *Engine) AssessPatient(ctx context.Context, patientID string) (models.AssessmentResponse, error) {
	patient, err := e.store.GetByID(ctx, patientID)
	if err != nil {
		return models.AssessmentResponse{}, err
	}
	if len(patient.Symptoms) == 0 {
		return models.AssessmentResponse{}, fmt.Errorf("assessment: patient %s has no recorded symptoms", patientID)
	}

	demographics := &models.Demographics{
		Age:            patient.Age,
		Gender:         patient.Gender,
		SmokingHistory: patient.SmokingHistory,
	}
	clinical, err := e.retriever.BuildClinicalContext(ctx, patient.Symptoms, demographics, e.topK)
	if err != nil {
		return models.AssessmentResponse{}, fmt.Errorf("assessment: build clinical context: %w", err)
	}

	prompt := fmt.Sprintf(models.AssessmentPromptTemplate, patientID, clinical.GuidelineContext)
	answer, err := e.reasoner.Generate(ctx, prompt, []reasoning.Tool{e.patientDataTool()})
	if err != nil {
		return models.AssessmentResponse{}, fmt.Errorf("assessment: reasoning: %w", err)
	}

	parsed := ParseAssessment(answer)
	response := models.AssessmentResponse{
		PatientID:       patientID,
		Assessment:      parsed.Assessment,
		Reasoning:       parsed.Reasoning,
		Citations:       clinical.Citations,
		ConfidenceScore: ConfidenceScore(parsed.Assessment, clinical.NumRelevantGuidelines),
	}

	log.Info().
		Str("patient_id", patientID).
		Str("assessment", response.Assessment).
		Float64("confidence", response.ConfidenceScore).
		Int("guidelines", clinical.NumRelevantGuidelines).
		Msg("Completed patient assessment")
	return response, nil
}

// AssessBatch assesses patients in order. Individual failures are recorded
// and do not stop the remaining assessments.
func (e *Engine) AssessBatch(ctx context.Context, patientIDs []string) ([]models.AssessmentResponse, []error) {
	responses := make([]models.AssessmentResponse, 0, len(patientIDs))
	var errs []error
	for _, id := range patientIDs {
		resp, err := e.AssessPatient(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("patient_id", id).Msg("Assessment failed")
			errs = append(errs, fmt.Errorf("patient %s: %w", id, err))
			continue
		}
		responses = append(responses, resp)
	}
	return responses, errs
}

// Statistics summarizes a batch of assessments by recommendation class.
type Statistics struct {
	Total             int            `json:"total"`
	ByAssessment      map[string]int `json:"by_assessment"`
	AverageConfidence float64        `json:"average_confidence"`
}

func Summarize(responses []models.AssessmentResponse) Statistics {
	stats := Statistics{ByAssessment: make(map[string]int)}
	if len(responses) == 0 {
		return stats
	}
	var sum float64
	for _, r := range responses {
		stats.Total++
		stats.ByAssessment[r.Assessment]++
		sum += r.ConfidenceScore
	}
	stats.AverageConfidence = sum / float64(stats.Total)
	return stats
}

// patientDataTool lets the model pull the structured record mid-reasoning.
func (e *Engine) patientDataTool() reasoning.Tool {
	return reasoning.Tool{
		Definition: llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "get_patient_data",
				Description: "Fetch the structured record for a patient by id, including demographics, smoking history and presenting symptoms.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"patient_id": map[string]any{
							"type":        "string",
							"description": "The patient identifier, e.g. P001.",
						},
					},
					"required": []string{"patient_id"},
				},
			},
		},
		Execute: func(ctx context.Context, argsJSON string) (string, error) {
			var args struct {
				PatientID string `json:"patient_id"`
			}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return "", fmt.Errorf("assessment: decode tool arguments: %w", err)
			}
			record, err := e.store.GetByID(ctx, args.PatientID)
			if err != nil {
				return "", err
			}
			payload, err := json.Marshal(record)
			if err != nil {
				return "", err
			}
			return string(payload), nil
		},
	}
}

var (
	reAssessment = regexp.MustCompile(`(?i)Assessment:\s*(.+)`)
	reReasoning  = regexp.MustCompile(`(?is)Reasoning:\s*(.+?)(?:\n\s*Citations:|\z)`)
)

// ParsedAssessment is the structured part of a model answer.
type ParsedAssessment struct {
	Assessment string
	Reasoning  string
}

// ParseAssessment extracts the recommendation class and reasoning from the
// model's free-text answer. Unrecognized answers default to requiring
// urgent investigation rather than no action.
func ParseAssessment(answer string) ParsedAssessment {
	parsed := ParsedAssessment{
		Assessment: models.AssessmentUrgentInvestigation,
		Reasoning:  strings.TrimSpace(answer),
	}

	if m := reAssessment.FindStringSubmatch(answer); m != nil {
		parsed.Assessment = normalizeAssessment(strings.TrimSpace(m[1]))
	}
	if m := reReasoning.FindStringSubmatch(answer); m != nil {
		parsed.Reasoning = strings.TrimSpace(m[1])
	}
	return parsed
}

func normalizeAssessment(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "urgent referral"):
		return models.AssessmentUrgentReferral
	case strings.Contains(lower, "urgent investigation"):
		return models.AssessmentUrgentInvestigation
	case strings.Contains(lower, "no action"):
		return models.AssessmentNoAction
	default:
		return models.AssessmentUrgentInvestigation
	}
}

// ConfidenceScore grows with the amount of supporting guideline evidence,
// nudged up for decisive urgent referrals and down for no-action calls.
func ConfidenceScore(assessment string, numGuidelines int) float64 {
	score := float64(numGuidelines) / 5.0
	if score > 1.0 {
		score = 1.0
	}

	switch assessment {
	case models.AssessmentUrgentReferral:
		score += 0.2
	case models.AssessmentNoAction:
		score -= 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return score
}
