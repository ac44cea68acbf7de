package models

const (
	// Source tag recorded on every indexed chunk and citation.
	GuidelineSource = "NG12 PDF"

	// Metadata keys used by the vector index.
	MetaChunkID      = "chunk_id"
	MetaPageNumber   = "page_number"
	MetaSectionTitle = "section_title"
	MetaStartChar    = "start_char"
	MetaEndChar      = "end_char"
	MetaSource       = "document_source"

	// Assessment classifications.
	AssessmentUrgentReferral      = "Urgent Referral"
	AssessmentUrgentInvestigation = "Urgent Investigation"
	AssessmentNoAction            = "No Action"

	// Chat roles.
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	AssessmentPromptTemplate = `You are a clinical decision support system based on NICE NG12 Cancer Guidelines.
Task: Assess cancer risk for Patient ID: %s.

Instructions:
1. Use the 'get_patient_data' tool to retrieve clinical details for this patient.
2. Analyze the retrieved data against the following NG12 guidelines:

%s

3. Base ALL recommendations ONLY on the provided guideline content. If
insufficient evidence exists, state 'No Action' with explanation.
4. Provide your final assessment strictly in this format:

Assessment: [Urgent Referral / Urgent Investigation / No Action]
Reasoning: [Your clinical reasoning based on the guidelines]
Citations: [References to the specific guideline sections used]
`

	ChatPromptTemplate = `You are a clinical guideline assistant based on NICE NG12 Cancer Guidelines.
Answer ONLY based on the provided guideline content. If the information is not
in the guidelines, state: 'I cannot find support in NG12 for that query'.
Always include specific page numbers and section references.

USER QUESTION:
%s

RELEVANT NG12 GUIDELINES:
%s
%s
Provide your response with specific NG12 citations:
`
)
