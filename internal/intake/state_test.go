package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_Classification(t *testing.T) {
	tests := []struct {
		state     State
		phase     Phase
		suspended bool
		label     string
	}{
		{StateAskDemographics, PhaseDemographics, false, LabelDemographics},
		{StateAwaitDemographics, PhaseDemographics, true, LabelDemographics},
		{StateExtractDemographics, PhaseDemographics, false, LabelDemographics},
		{StateAskSymptoms, PhaseSymptoms, false, LabelSymptoms},
		{StateAwaitSymptoms, PhaseSymptoms, true, LabelSymptoms},
		{StateExtractSymptoms, PhaseSymptoms, false, LabelSymptoms},
		{StateAskHistory, PhaseHistory, false, LabelHistory},
		{StateAwaitHistory, PhaseHistory, true, LabelHistory},
		{StateExtractHistory, PhaseHistory, false, LabelHistory},
		{StateSynthesize, PhaseSynthesize, false, LabelTriage},
		{StateAcknowledge, PhaseAcknowledge, false, LabelTriage},
		{StateDone, PhaseDone, false, LabelComplete},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.True(t, tt.state.Valid())
			assert.Equal(t, tt.phase, tt.state.Phase())
			assert.Equal(t, tt.suspended, tt.state.Suspended())
			assert.Equal(t, tt.label, tt.state.Label())
			assert.Equal(t, tt.state == StateDone, tt.state.Terminal())
		})
	}

	assert.False(t, State("paused").Valid())
	assert.Equal(t, "Unknown", State("paused").Label())
}
