package intake

// RecordView is the read-only projection of a PatientRecord returned to callers.
type RecordView struct {
	PatientName           *string        `json:"patient_name"`
	PatientAge            *int           `json:"patient_age"`
	PatientSex            *Sex           `json:"patient_sex"`
	MainSymptoms          []string       `json:"main_symptoms"`
	SymptomOnset          *string        `json:"symptom_onset"`
	AssociatedSymptoms    []string       `json:"associated_symptoms"`
	AdditionalSymptomInfo []string       `json:"additional_symptom_info"`
	MedicalHistory        []HistoryFact  `json:"medical_history"`
	GeneratedSummary      *TriageSummary `json:"generated_summary"`
}

func NewRecordView(rec PatientRecord) RecordView {
	c := rec.Clone()
	return RecordView{
		PatientName:           c.Demographics.Name,
		PatientAge:            c.Demographics.Age,
		PatientSex:            c.Demographics.Sex,
		MainSymptoms:          orEmpty(c.Symptoms.Main),
		SymptomOnset:          c.Symptoms.Onset,
		AssociatedSymptoms:    orEmpty(c.Symptoms.Associated),
		AdditionalSymptomInfo: orEmpty(c.Symptoms.AdditionalDetails),
		MedicalHistory:        append([]HistoryFact{}, c.HistoryFacts...),
		GeneratedSummary:      c.Summary,
	}
}

func orEmpty(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// TurnResult is what Start, Reply and Snapshot return to the caller.
type TurnResult struct {
	SessionID        string     `json:"session_id"`
	AssistantMessage *string    `json:"assistant_message"`
	State            RecordView `json:"state"`
	Phase            string     `json:"phase"`
	IsComplete       bool       `json:"is_complete"`
}

func newTurnResult(s *Session, msg *string) *TurnResult {
	return &TurnResult{
		SessionID:        s.ID,
		AssistantMessage: msg,
		State:            NewRecordView(s.Record),
		Phase:            s.State.Label(),
		IsComplete:       s.State.Terminal(),
	}
}
