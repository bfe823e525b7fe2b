package intake

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Verdict is the gate's answer. Reason is informational only.
type Verdict struct {
	Sufficient bool
	Reason     string
}

type sufficiencyAnswer struct {
	IsSufficient *bool   `json:"is_sufficient"`
	Reason       *string `json:"reason"`
}

// Gate asks the oracle whether a phase has gathered enough to move on.
type Gate struct {
	oracle Oracle
	logger *zap.Logger
}

func NewGate(oracle Oracle, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{oracle: oracle, logger: logger}
}

// Evaluate returns an insufficient verdict when the oracle answer cannot be
// decoded. Only transport failures are returned as errors.
func (g *Gate) Evaluate(ctx context.Context, sessionID string, phase Phase, instructions []string, transcript []Turn) (Verdict, error) {
	var ans sufficiencyAnswer
	err := g.oracle.GenerateStructured(ctx, instructions, transcript, SufficiencySchema, &ans)
	if err == nil && ans.IsSufficient == nil {
		err = fmt.Errorf("%w: is_sufficient missing", ErrMalformedOutput)
	}
	if err != nil {
		if errors.Is(err, ErrMalformedOutput) {
			OracleCalls.WithLabelValues("structured", "malformed").Inc()
			GateDecisions.WithLabelValues(phase.String(), "malformed").Inc()
			g.logger.Warn("sufficiency gate unreadable, treating as insufficient",
				zap.String("session_id", sessionID),
				zap.Stringer("phase", phase),
				zap.Error(err))
			return Verdict{}, nil
		}
		OracleCalls.WithLabelValues("structured", "error").Inc()
		return Verdict{}, fmt.Errorf("sufficiency check: %w", err)
	}
	OracleCalls.WithLabelValues("structured", "success").Inc()

	v := Verdict{Sufficient: *ans.IsSufficient}
	if ans.Reason != nil {
		v.Reason = *ans.Reason
	}
	result := "insufficient"
	if v.Sufficient {
		result = "sufficient"
	}
	GateDecisions.WithLabelValues(phase.String(), result).Inc()
	g.logger.Info("sufficiency gate evaluated",
		zap.String("session_id", sessionID),
		zap.Stringer("phase", phase),
		zap.Bool("sufficient", v.Sufficient),
		zap.String("reason", v.Reason))
	return v, nil
}
