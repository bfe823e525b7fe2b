package report

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinical-intake-agent/internal/intake"
)

type sent struct {
	messages  []string
	documents map[string][]byte
}

func (s *sent) SendMessage(ctx context.Context, chatID int64, text string) error {
	s.messages = append(s.messages, text)
	return nil
}

func (s *sent) SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error {
	if s.documents == nil {
		s.documents = make(map[string][]byte)
	}
	s.documents[fileName] = fileData
	return nil
}

func completedRecord() intake.PatientRecord {
	name, age, sex := "JON TAN", 40, intake.SexMale
	onset := "2 days ago"
	details := "no relief with paracetamol"
	return intake.PatientRecord{
		Demographics: intake.Demographics{Name: &name, Age: &age, Sex: &sex},
		Symptoms: intake.Symptoms{
			Main:              []string{"headache"},
			Onset:             &onset,
			Associated:        []string{"nausea"},
			AdditionalDetails: []string{"throbbing, 7/10"},
		},
		HistoryFacts: []intake.HistoryFact{
			{Category: intake.CategoryMedication, Question: "Any regular medication?", Answer: "Paracetamol", AdditionalDetails: &details},
		},
		Summary: &intake.TriageSummary{
			ProbableDiagnosis:  "Migraine without aura",
			ReasonForDiagnosis: "Unilateral throbbing headache with nausea",
			Urgency:            intake.UrgencySemiUrgent,
			ReasonForUrgency:   "No neurological red flags",
		},
	}
}

func TestSections(t *testing.T) {
	secs := Sections(completedRecord())
	require.Len(t, secs, 4)

	assert.Equal(t, []string{"Name: JON TAN", "Age: 40", "Sex: M"}, secs[0].Lines)
	assert.Contains(t, secs[1].Lines, "Onset: 2 days ago")
	assert.Contains(t, secs[1].Lines, "- throbbing, 7/10")
	assert.Equal(t, []string{"- medication: Any regular medication? - Paracetamol (no relief with paracetamol)"}, secs[2].Lines)
	assert.Equal(t, "Urgency: SEMI-URGENT", secs[3].Lines[0])
}

func TestSections_EmptyRecord(t *testing.T) {
	secs := Sections(intake.PatientRecord{})
	assert.Equal(t, "Name: unknown", secs[0].Lines[0])
	assert.Equal(t, "Main: none", secs[1].Lines[0])
	assert.Equal(t, []string{"No history facts recorded."}, secs[2].Lines)
	assert.Equal(t, []string{"No summary was produced."}, secs[3].Lines)
}

func TestHeadline(t *testing.T) {
	assert.Equal(t, "New intake: JON TAN, 40, M. Urgency: SEMI-URGENT", Headline(completedRecord()))
	assert.Equal(t, "New intake: unknown, unknown, unknown. Urgency: UNKNOWN", Headline(intake.PatientRecord{}))
}

func TestSendTriageReport_MissingFontSendsNothing(t *testing.T) {
	tg := &sent{}
	svc := NewService(tg, 42, []string{"/nonexistent/font.ttf"}, nil)

	err := svc.SendTriageReport(context.Background(), "abc", completedRecord())
	require.Error(t, err)
	assert.Empty(t, tg.messages)
	assert.Empty(t, tg.documents)
}

func TestSendTriageReport(t *testing.T) {
	var font string
	for _, p := range DefaultFontPaths {
		if _, err := os.Stat(p); err == nil {
			font = p
			break
		}
	}
	if font == "" {
		t.Skip("DejaVuSans not installed")
	}

	tg := &sent{}
	svc := NewService(tg, 42, []string{font}, nil)
	require.NoError(t, svc.SendTriageReport(context.Background(), "abc", completedRecord()))

	require.Len(t, tg.messages, 1)
	doc, ok := tg.documents["triage_abc.pdf"]
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}
