package intake

import (
	"strconv"
	"strings"
	"time"
)

type Role string

const (
	RoleAssistant Role = "assistant"
	RoleHuman     Role = "human"
)

// Turn is one utterance in the interview transcript.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
)

func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale
}

type HistoryCategory string

const (
	CategoryAllergy       HistoryCategory = "allergy"
	CategoryMedication    HistoryCategory = "medication"
	CategoryPastCondition HistoryCategory = "past_condition"
	CategorySurgery       HistoryCategory = "surgery"
	CategoryFamilyHistory HistoryCategory = "family_history"
	CategorySocial        HistoryCategory = "social"
	CategoryImmunization  HistoryCategory = "immunization"
	CategoryObGyn         HistoryCategory = "obgyn"
	CategoryOther         HistoryCategory = "other"
)

var historyCategories = []HistoryCategory{
	CategoryAllergy, CategoryMedication, CategoryPastCondition, CategorySurgery,
	CategoryFamilyHistory, CategorySocial, CategoryImmunization, CategoryObGyn, CategoryOther,
}

func (c HistoryCategory) Valid() bool {
	for _, known := range historyCategories {
		if c == known {
			return true
		}
	}
	return false
}

type Urgency string

const (
	UrgencyEmergency  Urgency = "EMERGENCY"
	UrgencyUrgent     Urgency = "URGENT"
	UrgencySemiUrgent Urgency = "SEMI-URGENT"
	UrgencyNonUrgent  Urgency = "NON-URGENT"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyEmergency, UrgencyUrgent, UrgencySemiUrgent, UrgencyNonUrgent:
		return true
	}
	return false
}

// Demographics fields are write-once: nil means not yet captured.
type Demographics struct {
	Name *string `json:"name"`
	Age  *int    `json:"age"`
	Sex  *Sex    `json:"sex"`
}

func (d Demographics) Complete() bool {
	return d.Name != nil && d.Age != nil && d.Sex != nil
}

type Symptoms struct {
	Main              []string `json:"main"`
	Onset             *string  `json:"onset"`
	Associated        []string `json:"associated"`
	AdditionalDetails []string `json:"additional_details"`
}

type HistoryFact struct {
	Category          HistoryCategory `json:"category"`
	Question          string          `json:"question"`
	Answer            string          `json:"answer"`
	AdditionalDetails *string         `json:"additional_details,omitempty"`
}

// String renders the fact the way it is shown to the oracle.
func (f HistoryFact) String() string {
	s := string(f.Category) + ": " + f.Question + " - " + f.Answer
	if f.AdditionalDetails != nil && *f.AdditionalDetails != "" {
		s += " (" + *f.AdditionalDetails + ")"
	}
	return s
}

type TriageSummary struct {
	ProbableDiagnosis  string  `json:"probable_diagnosis"`
	ReasonForDiagnosis string  `json:"reason_for_diagnosis"`
	Urgency            Urgency `json:"urgency"`
	ReasonForUrgency   string  `json:"reason_for_urgency"`
}

// PatientRecord is the structured record accumulated over one session.
type PatientRecord struct {
	Demographics Demographics   `json:"demographics"`
	Symptoms     Symptoms       `json:"symptoms"`
	HistoryFacts []HistoryFact  `json:"history_facts"`
	Summary      *TriageSummary `json:"summary"`
	Transcript   []Turn         `json:"transcript"`
}

func (r *PatientRecord) appendTurn(role Role, text string) {
	r.Transcript = append(r.Transcript, Turn{Role: role, Text: text})
}

// Clone returns a deep copy so a turn can be computed without touching the stored record.
func (r PatientRecord) Clone() PatientRecord {
	out := PatientRecord{
		Symptoms: Symptoms{
			Main:              cloneStrings(r.Symptoms.Main),
			Onset:             cloneString(r.Symptoms.Onset),
			Associated:        cloneStrings(r.Symptoms.Associated),
			AdditionalDetails: cloneStrings(r.Symptoms.AdditionalDetails),
		},
		Transcript: append([]Turn(nil), r.Transcript...),
	}
	out.Demographics.Name = cloneString(r.Demographics.Name)
	if r.Demographics.Age != nil {
		age := *r.Demographics.Age
		out.Demographics.Age = &age
	}
	if r.Demographics.Sex != nil {
		sex := *r.Demographics.Sex
		out.Demographics.Sex = &sex
	}
	for _, f := range r.HistoryFacts {
		f.AdditionalDetails = cloneString(f.AdditionalDetails)
		out.HistoryFacts = append(out.HistoryFacts, f)
	}
	if r.Summary != nil {
		s := *r.Summary
		out.Summary = &s
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// Session is the persisted controller state for one interview.
type Session struct {
	ID        string        `json:"id"`
	State     State         `json:"state"`
	Record    PatientRecord `json:"record"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (s *Session) Clone() *Session {
	c := *s
	c.Record = s.Record.Clone()
	return &c
}

// knownSnapshot renders already captured values for extraction prompts.
func (r PatientRecord) knownSnapshot() string {
	var b strings.Builder
	b.WriteString("name=" + strOrNone(r.Demographics.Name))
	if r.Demographics.Age != nil {
		b.WriteString(", age=" + strconv.Itoa(*r.Demographics.Age))
	} else {
		b.WriteString(", age=none")
	}
	if r.Demographics.Sex != nil {
		b.WriteString(", sex=" + string(*r.Demographics.Sex))
	} else {
		b.WriteString(", sex=none")
	}
	return b.String()
}

func (s Symptoms) snapshot() string {
	return "main_symptoms=" + listOrNone(s.Main) +
		"; symptom_onset=" + strOrNone(s.Onset) +
		"; associated_symptoms=" + listOrNone(s.Associated) +
		"; additional_symptom_info=" + listOrNone(s.AdditionalDetails)
}

func formatHistory(facts []HistoryFact) string {
	if len(facts) == 0 {
		return "none"
	}
	lines := make([]string, len(facts))
	for i, f := range facts {
		lines[i] = f.String()
	}
	return strings.Join(lines, "\n")
}

func strOrNone(s *string) string {
	if s == nil {
		return "none"
	}
	return *s
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	return "[" + strings.Join(items, ", ") + "]"
}
