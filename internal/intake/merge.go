package intake

import (
	"encoding/json"
	"math"
	"strings"

	"go.uber.org/zap"
)

const maxAge = 150

// DemographicsCandidate is what the oracle extracted from the latest turns.
// Every field is optional. Fields that fail to decode are dropped on their
// own and reported as rejected by the merge.
type DemographicsCandidate struct {
	Name *string      `json:"name"`
	Age  *json.Number `json:"age"`
	Sex  *string      `json:"sex"`

	invalid []string
}

func (c *DemographicsCandidate) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	decodeField(fields, "name", &c.Name, &c.invalid)
	decodeField(fields, "age", &c.Age, &c.invalid)
	decodeField(fields, "sex", &c.Sex, &c.invalid)
	return nil
}

type SymptomsCandidate struct {
	Main       []string `json:"main_symptoms"`
	Onset      *string  `json:"symptom_onset"`
	Associated []string `json:"associated_symptoms"`
	Additional []string `json:"additional_symptom_info"`

	invalid []string
}

func (c *SymptomsCandidate) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	decodeField(fields, "main_symptoms", &c.Main, &c.invalid)
	decodeField(fields, "symptom_onset", &c.Onset, &c.invalid)
	decodeField(fields, "associated_symptoms", &c.Associated, &c.invalid)
	decodeField(fields, "additional_symptom_info", &c.Additional, &c.invalid)
	return nil
}

type HistoryCandidate struct {
	Category          *string `json:"category"`
	Question          *string `json:"question"`
	Answer            *string `json:"answer"`
	AdditionalDetails *string `json:"additional_details"`

	invalid []string
}

func (c *HistoryCandidate) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	decodeField(fields, "category", &c.Category, &c.invalid)
	decodeField(fields, "question", &c.Question, &c.invalid)
	decodeField(fields, "answer", &c.Answer, &c.invalid)
	decodeField(fields, "additional_details", &c.AdditionalDetails, &c.invalid)
	return nil
}

// decodeObject fails only when data is not a JSON object at all.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// decodeField leaves dst untouched and records name as invalid when the
// value does not decode into T.
func decodeField[T any](fields map[string]json.RawMessage, name string, dst *T, invalid *[]string) {
	raw, ok := fields[name]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		*invalid = append(*invalid, name)
		return
	}
	*dst = v
}

// MergeResult lists record fields that changed and candidate fields that
// were dropped because they failed validation.
type MergeResult struct {
	Applied  []string
	Rejected []string
}

func (r MergeResult) Changed() bool {
	return len(r.Applied) > 0
}

// Merger folds extracted candidates into a PatientRecord. It never removes
// data and never touches the transcript.
type Merger struct {
	logger *zap.Logger
}

func NewMerger(logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{logger: logger}
}

// MergeDemographics applies each candidate field only while the record field is unset.
func (m *Merger) MergeDemographics(rec *PatientRecord, c DemographicsCandidate) MergeResult {
	res := MergeResult{Rejected: c.invalid}
	d := &rec.Demographics

	if name, ok := nonEmpty(c.Name); ok && d.Name == nil {
		upper := strings.ToUpper(name)
		d.Name = &upper
		res.Applied = append(res.Applied, "name")
	}

	if c.Age != nil {
		age, ok := parseAge(*c.Age)
		switch {
		case !ok:
			res.Rejected = append(res.Rejected, "age")
			m.logger.Warn("discarding invalid age", zap.String("age", c.Age.String()))
		case d.Age == nil:
			d.Age = &age
			res.Applied = append(res.Applied, "age")
		}
	}

	if raw, ok := nonEmpty(c.Sex); ok {
		sex := Sex(strings.ToUpper(raw))
		switch {
		case !sex.Valid():
			res.Rejected = append(res.Rejected, "sex")
			m.logger.Warn("discarding invalid sex", zap.String("sex", raw))
		case d.Sex == nil:
			d.Sex = &sex
			res.Applied = append(res.Applied, "sex")
		}
	}
	return res
}

// MergeSymptoms deduplicates symptom lists case-insensitively, lets onset be
// corrected, and appends additional details verbatim.
func (m *Merger) MergeSymptoms(rec *PatientRecord, c SymptomsCandidate) MergeResult {
	res := MergeResult{Rejected: c.invalid}
	s := &rec.Symptoms

	var added bool
	if s.Main, added = appendUnique(s.Main, c.Main); added {
		res.Applied = append(res.Applied, "main_symptoms")
	}

	if onset, ok := nonEmpty(c.Onset); ok && (s.Onset == nil || *s.Onset != onset) {
		s.Onset = &onset
		res.Applied = append(res.Applied, "symptom_onset")
	}

	if s.Associated, added = appendUnique(s.Associated, c.Associated); added {
		res.Applied = append(res.Applied, "associated_symptoms")
	}

	before := len(s.AdditionalDetails)
	for _, detail := range c.Additional {
		if strings.TrimSpace(detail) != "" {
			s.AdditionalDetails = append(s.AdditionalDetails, detail)
		}
	}
	if len(s.AdditionalDetails) > before {
		res.Applied = append(res.Applied, "additional_symptom_info")
	}
	return res
}

// MergeHistory appends a fact only when category, question and answer are all present.
func (m *Merger) MergeHistory(rec *PatientRecord, c HistoryCandidate) MergeResult {
	res := MergeResult{Rejected: c.invalid}
	category, hasCategory := nonEmpty(c.Category)
	question, hasQuestion := nonEmpty(c.Question)
	answer, hasAnswer := nonEmpty(c.Answer)
	if !hasCategory || !hasQuestion || !hasAnswer {
		if hasCategory || hasQuestion || hasAnswer {
			res.Rejected = append(res.Rejected, "history_fact")
			m.logger.Debug("discarding partial history fact",
				zap.Bool("category", hasCategory),
				zap.Bool("question", hasQuestion),
				zap.Bool("answer", hasAnswer))
		}
		return res
	}

	cat := HistoryCategory(strings.ToLower(category))
	if !cat.Valid() {
		res.Rejected = append(res.Rejected, "history_fact")
		m.logger.Warn("discarding history fact with unknown category", zap.String("category", category))
		return res
	}

	fact := HistoryFact{Category: cat, Question: question, Answer: answer}
	if details, ok := nonEmpty(c.AdditionalDetails); ok {
		fact.AdditionalDetails = &details
	}
	rec.HistoryFacts = append(rec.HistoryFacts, fact)
	res.Applied = append(res.Applied, "history_fact")
	return res
}

// appendUnique appends candidates not already present under case-insensitive
// comparison, keeping first-seen order.
func appendUnique(existing, candidates []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(existing)+len(candidates))
	for _, item := range existing {
		seen[strings.ToLower(strings.TrimSpace(item))] = struct{}{}
	}
	added := false
	for _, item := range candidates {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		existing = append(existing, item)
		added = true
	}
	return existing, added
}

func nonEmpty(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	v := strings.TrimSpace(*s)
	return v, v != ""
}

func parseAge(n json.Number) (int, bool) {
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < 0 || f > maxAge {
		return 0, false
	}
	return int(f), true
}
