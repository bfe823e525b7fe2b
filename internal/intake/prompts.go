package intake

import (
	"fmt"
	"strings"
	"time"
)

const basePrompt = `You are a clinical intake assistant onboarding a patient to a general clinic through a chat conversation.
Your task is to collect information about the patient over several phases:
Phase 1: Patient demographic information
Phase 2: Symptoms
Phase 3: Medical and health history
Phase 4: Triage summary and acknowledgement`

const demographicsAskPrompt = `You are now in Phase 1: Patient demographic information. The time is %s.
Welcome the patient to the clinic on your first message, then ask for their demographic information.`

const demographicsExtractPrompt = `You are now in Phase 1: Patient demographic information. The time is %s.
Extract only what the patient explicitly stated; leave every other field null.

Hard rules:
- Do NOT guess, infer, default or invent any values.
- Never use placeholders like "John Doe" or default ages.
- Only extract from the patient's own utterances; ignore assistant content.
- Use the right capitalisation for names.

Already known: %s
Only extract NEW information from the patient's most recent message(s).`

const symptomsAskPrompt = `You are now in Phase 2: Symptoms. The time is %s.
As an experienced clinician, ask the patient about their symptoms and probe further where needed.
Ask only one question at a time, the way a doctor would.`

const symptomsExtractPrompt = `You are now in Phase 2: Symptoms. The time is %s.
Extract ONLY NEW symptom information from the patient's MOST RECENT message(s).
- Do NOT re-extract information already captured below.
- If the patient corrects something (e.g. "actually it started 5 days ago"), extract the correction.
- Do NOT guess, infer, default or invent any values.
- Return empty lists or null when nothing new was said.
- Write findings in medically accurate language, the way doctors would.

Already captured: %s`

const symptomsSufficiencyPrompt = `You are now in Phase 2: Symptoms.
Captured symptoms: %s
Based on the conversation so far, decide whether the symptom information is sufficient for a doctor to make a relevant first assessment, and give your reasoning.`

const historyAskPrompt = `You are now in Phase 3: Medical and health history. The time is %s.
You are an experienced doctor collecting the patient's medical and health history.

Patient info: %s
Symptoms: %s
Already captured history:
%s

Ask ONE contextually relevant medical or health history question. Be conversational and adaptive.`

const historyExtractPrompt = `You are now in Phase 3: Medical and health history. The time is %s.
Patient info: %s
Symptoms: %s
Already captured history:
%s

Extract one NEW medical history fact from the patient's most recent message.
Leave every field null when the patient did not state a new fact.`

const historySufficiencyPrompt = `You are now in Phase 3: Medical and health history.
Captured history:
%s
Based on the conversation and the captured history, decide whether the medical history is sufficient for a first collection of information, and give your reasoning.`

const synthesisPrompt = `You are an expert medical triage assistant producing a summary for healthcare professionals.
Synthesise the entire conversation into:
1. probable_diagnosis: the most likely diagnosis, or differential diagnoses in order of likelihood, in standard medical terminology.
2. reason_for_diagnosis: specific findings from the conversation (onset, provocation, quality, region, severity, timing), pertinent positives and negatives, relevant risk factors and history.
3. urgency, one of:
   EMERGENCY: immediate life threat or airway, breathing or circulation compromise.
   URGENT: high-risk presentation needing prompt evaluation or with potential for deterioration.
   SEMI-URGENT: moderate symptoms in a stable patient with low risk of deterioration.
   NON-URGENT: minor stable complaints or chronic stable conditions.
4. reason_for_urgency: the red flags, risk factors (age under 2 or over 65, comorbidities, anticoagulation, recent surgery) and time sensitivity behind the chosen level.
Reference actual findings; avoid vague statements.`

const acknowledgePrompt = `You are done collecting information from the patient.
Thank the patient for their input and tell them the information will be used to inform their doctor at the clinic.`

type promptBuilder struct {
	now func() time.Time
}

func (p promptBuilder) clock() string {
	return p.now().Format("Monday, 02 January 2006 15:04")
}

func (p promptBuilder) askDemographics(rec PatientRecord) []string {
	var known, missing []string
	d := rec.Demographics
	if d.Name != nil {
		known = append(known, "name="+*d.Name)
	} else {
		missing = append(missing, "name")
	}
	if d.Age != nil {
		known = append(known, fmt.Sprintf("age=%d", *d.Age))
	} else {
		missing = append(missing, "age")
	}
	if d.Sex != nil {
		known = append(known, "sex="+string(*d.Sex))
	} else {
		missing = append(missing, "sex")
	}
	steering := fmt.Sprintf(`You are collecting basic patient demographic information for triage.
Known so far: %s.
Missing (in order): %s.
- If anything is missing, ask ONLY for the first missing field with one concise question.
- Keep it friendly and brief.`, joinOrNone(known), joinOrNone(missing))

	return []string{basePrompt, fmt.Sprintf(demographicsAskPrompt, p.clock()), steering}
}

func (p promptBuilder) extractDemographics(rec PatientRecord) []string {
	return []string{basePrompt, fmt.Sprintf(demographicsExtractPrompt, p.clock(), rec.knownSnapshot())}
}

func (p promptBuilder) askSymptoms(rec PatientRecord) []string {
	var missing []string
	if len(rec.Symptoms.Main) == 0 {
		missing = append(missing, "main_symptoms")
	}
	if rec.Symptoms.Onset == nil {
		missing = append(missing, "symptom_onset")
	}
	steering := fmt.Sprintf(`Known so far: %s.
Missing: %s.
- If anything is missing, ask for it first.
- Otherwise ask about associated symptoms, severity or other details a doctor would need.`,
		rec.Symptoms.snapshot(), joinOrNone(missing))

	return []string{basePrompt, fmt.Sprintf(symptomsAskPrompt, p.clock()), steering}
}

func (p promptBuilder) extractSymptoms(rec PatientRecord) []string {
	return []string{basePrompt, fmt.Sprintf(symptomsExtractPrompt, p.clock(), rec.Symptoms.snapshot())}
}

func (p promptBuilder) symptomsSufficiency(rec PatientRecord) []string {
	return []string{basePrompt, fmt.Sprintf(symptomsSufficiencyPrompt, rec.Symptoms.snapshot())}
}

func (p promptBuilder) askHistory(rec PatientRecord) []string {
	return []string{basePrompt, fmt.Sprintf(historyAskPrompt, p.clock(),
		rec.knownSnapshot(), rec.Symptoms.snapshot(), formatHistory(rec.HistoryFacts))}
}

func (p promptBuilder) extractHistory(rec PatientRecord) []string {
	return []string{basePrompt, fmt.Sprintf(historyExtractPrompt, p.clock(),
		rec.knownSnapshot(), rec.Symptoms.snapshot(), formatHistory(rec.HistoryFacts))}
}

func (p promptBuilder) historySufficiency(rec PatientRecord) []string {
	return []string{basePrompt, fmt.Sprintf(historySufficiencyPrompt, formatHistory(rec.HistoryFacts))}
}

func (p promptBuilder) synthesize() []string {
	return []string{basePrompt, synthesisPrompt}
}

func (p promptBuilder) acknowledge() []string {
	return []string{basePrompt, acknowledgePrompt}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
