package intake

type State string

const (
	StateAskDemographics     State = "ask_demographics"
	StateAwaitDemographics   State = "await_demographics_reply"
	StateExtractDemographics State = "extract_demographics"
	StateAskSymptoms         State = "ask_symptoms"
	StateAwaitSymptoms       State = "await_symptoms_reply"
	StateExtractSymptoms     State = "extract_symptoms"
	StateAskHistory          State = "ask_history"
	StateAwaitHistory        State = "await_history_reply"
	StateExtractHistory      State = "extract_history"
	StateSynthesize          State = "synthesize"
	StateAcknowledge         State = "acknowledge"
	StateDone                State = "done"
)

// Phase orders states coarsely; a session's phase never decreases.
type Phase int

const (
	PhaseDemographics Phase = iota + 1
	PhaseSymptoms
	PhaseHistory
	PhaseSynthesize
	PhaseAcknowledge
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseDemographics:
		return "demographics"
	case PhaseSymptoms:
		return "symptoms"
	case PhaseHistory:
		return "history"
	case PhaseSynthesize:
		return "synthesize"
	case PhaseAcknowledge:
		return "acknowledge"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

func (s State) Phase() Phase {
	switch s {
	case StateAskDemographics, StateAwaitDemographics, StateExtractDemographics:
		return PhaseDemographics
	case StateAskSymptoms, StateAwaitSymptoms, StateExtractSymptoms:
		return PhaseSymptoms
	case StateAskHistory, StateAwaitHistory, StateExtractHistory:
		return PhaseHistory
	case StateSynthesize:
		return PhaseSynthesize
	case StateAcknowledge:
		return PhaseAcknowledge
	case StateDone:
		return PhaseDone
	}
	return 0
}

func (s State) Valid() bool {
	return s.Phase() != 0
}

// Suspended reports whether the controller waits for a human reply in s.
func (s State) Suspended() bool {
	return s == StateAwaitDemographics || s == StateAwaitSymptoms || s == StateAwaitHistory
}

func (s State) Terminal() bool {
	return s == StateDone
}

const (
	LabelDemographics = "Gathering patient demographic details"
	LabelSymptoms     = "Symptoms collection"
	LabelHistory      = "Medical/health history"
	LabelTriage       = "Triage & summary"
	LabelComplete     = "Complete"
)

// Label is the human-readable phase name shown to the caller.
func (s State) Label() string {
	switch s.Phase() {
	case PhaseDemographics:
		return LabelDemographics
	case PhaseSymptoms:
		return LabelSymptoms
	case PhaseHistory:
		return LabelHistory
	case PhaseSynthesize, PhaseAcknowledge:
		return LabelTriage
	case PhaseDone:
		return LabelComplete
	}
	return "Unknown"
}
