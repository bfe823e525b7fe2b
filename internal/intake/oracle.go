package intake

import "context"

// Oracle is the language model the interview delegates all wording and
// judgment to. Implementations return ErrMalformedOutput (wrapped) when a
// structured answer cannot be decoded into out, and ErrOracleUnavailable
// (wrapped) on transport failure.
type Oracle interface {
	GenerateText(ctx context.Context, instructions []string, transcript []Turn) (string, error)
	GenerateStructured(ctx context.Context, instructions []string, transcript []Turn, schema Schema, out any) error
}

// Schema describes the JSON object requested from the oracle.
type Schema struct {
	Name        string
	Description string
}

var (
	DemographicsSchema = Schema{
		Name: "patient_info",
		Description: `{"name": string|null, "age": integer|null, "sex": "M"|"F"|null}
- name: patient's full name
- age: patient's age in years
- sex: patient's biological sex`,
	}
	SymptomsSchema = Schema{
		Name: "symptoms",
		Description: `{"main_symptoms": [string]|null, "symptom_onset": string|null, "associated_symptoms": [string]|null, "additional_symptom_info": [string]|null}
- main_symptoms: NEW primary symptom(s)
- symptom_onset: when the symptoms started (only if NEW or CORRECTED)
- associated_symptoms: NEW related or secondary symptoms
- additional_symptom_info: NEW details about severity, triggers, alleviating factors etc.`,
	}
	HistoryFactSchema = Schema{
		Name: "medical_history_fact",
		Description: `{"category": "allergy"|"medication"|"past_condition"|"surgery"|"family_history"|"social"|"immunization"|"obgyn"|"other"|null, "question": string|null, "answer": string|null, "additional_details": string|null}
- category: category of the information
- question: question asked to the patient, e.g. "Do you have diabetes?"
- answer: answer given by the patient
- additional_details: additional details given by the patient, if any`,
	}
	SufficiencySchema = Schema{
		Name: "sufficiency_check",
		Description: `{"is_sufficient": boolean, "reason": string|null}
- is_sufficient: whether the information is sufficient for a doctor to make a relevant diagnosis
- reason: why more information is needed, or null if sufficient`,
	}
	TriageSummarySchema = Schema{
		Name: "triage_summary",
		Description: `{"probable_diagnosis": string, "reason_for_diagnosis": string, "urgency": "EMERGENCY"|"URGENT"|"SEMI-URGENT"|"NON-URGENT", "reason_for_urgency": string}`,
	}
)
