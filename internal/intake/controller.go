package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultRecentWindow is how many trailing transcript turns extraction sees.
const DefaultRecentWindow = 4

// Outcome collects what one run of the controller emitted.
type Outcome struct {
	Messages []string
}

// Last returns the most recent assistant message, or nil.
func (o Outcome) Last() *string {
	if len(o.Messages) == 0 {
		return nil
	}
	msg := o.Messages[len(o.Messages)-1]
	return &msg
}

// Controller sequences the interview phases. It holds no per-session state;
// everything it needs travels in the Session passed to Run.
type Controller struct {
	oracle  Oracle
	merger  *Merger
	gate    *Gate
	prompts promptBuilder
	window  int
	logger  *zap.Logger
}

type ControllerOption func(*Controller)

func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.prompts.now = now }
}

func WithRecentWindow(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.window = n
		}
	}
}

func WithControllerLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

func NewController(oracle Oracle, opts ...ControllerOption) *Controller {
	c := &Controller{
		oracle:  oracle,
		prompts: promptBuilder{now: time.Now},
		window:  DefaultRecentWindow,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.merger = NewMerger(c.logger.Named("merger"))
	c.gate = NewGate(oracle, c.logger.Named("gate"))
	return c
}

// Run drives sess forward until it is suspended on a reply or done. A reply
// must be supplied exactly when sess is suspended. Run mutates sess; callers
// that need the previous state on failure should pass a clone.
func (c *Controller) Run(ctx context.Context, sess *Session, reply *string) (Outcome, error) {
	var out Outcome
	if sess.State == "" {
		sess.State = StateAskDemographics
	}
	if !sess.State.Valid() {
		return out, fmt.Errorf("session %s: unknown state %q", sess.ID, sess.State)
	}

	switch {
	case sess.State.Suspended():
		if reply == nil {
			return out, nil
		}
		text := strings.TrimSpace(*reply)
		if text == "" {
			return out, ErrEmptyReply
		}
		sess.Record.appendTurn(RoleHuman, text)
		TurnsTotal.WithLabelValues(sess.State.Phase().String()).Inc()
		if err := c.transition(sess, extractStateFor(sess.State)); err != nil {
			return out, err
		}
	case reply != nil:
		return out, fmt.Errorf("session %s is not awaiting a reply: %w", sess.ID, ErrSessionNotAwaiting)
	}

	for !sess.State.Suspended() && !sess.State.Terminal() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		next, msg, err := c.step(ctx, sess)
		if err != nil {
			return out, err
		}
		if msg != "" {
			out.Messages = append(out.Messages, msg)
		}
		if err := c.transition(sess, next); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (c *Controller) step(ctx context.Context, sess *Session) (State, string, error) {
	rec := &sess.Record
	switch sess.State {
	case StateAskDemographics:
		msg, err := c.ask(ctx, sess, c.prompts.askDemographics(*rec))
		return StateAwaitDemographics, msg, err

	case StateExtractDemographics:
		var cand DemographicsCandidate
		ok, err := c.extract(ctx, sess, c.prompts.extractDemographics(*rec), DemographicsSchema, &cand)
		if err != nil {
			return "", "", err
		}
		if ok {
			c.logMerge(sess, c.merger.MergeDemographics(rec, cand))
		}
		if rec.Demographics.Complete() {
			return StateAskSymptoms, "", nil
		}
		return StateAskDemographics, "", nil

	case StateAskSymptoms:
		msg, err := c.ask(ctx, sess, c.prompts.askSymptoms(*rec))
		return StateAwaitSymptoms, msg, err

	case StateExtractSymptoms:
		var cand SymptomsCandidate
		ok, err := c.extract(ctx, sess, c.prompts.extractSymptoms(*rec), SymptomsSchema, &cand)
		if err != nil {
			return "", "", err
		}
		if ok {
			c.logMerge(sess, c.merger.MergeSymptoms(rec, cand))
		}
		if len(rec.Symptoms.Main) == 0 || rec.Symptoms.Onset == nil {
			return StateAskSymptoms, "", nil
		}
		v, err := c.gate.Evaluate(ctx, sess.ID, PhaseSymptoms, c.prompts.symptomsSufficiency(*rec), rec.Transcript)
		if err != nil {
			return "", "", oracleFailure("symptoms gate", err)
		}
		if v.Sufficient {
			return StateAskHistory, "", nil
		}
		return StateAskSymptoms, "", nil

	case StateAskHistory:
		msg, err := c.ask(ctx, sess, c.prompts.askHistory(*rec))
		return StateAwaitHistory, msg, err

	case StateExtractHistory:
		var cand HistoryCandidate
		ok, err := c.extract(ctx, sess, c.prompts.extractHistory(*rec), HistoryFactSchema, &cand)
		if err != nil {
			return "", "", err
		}
		if ok {
			c.logMerge(sess, c.merger.MergeHistory(rec, cand))
		}
		// Mandatory categories (past_condition, medication) are deliberately
		// not enforced here; the gate alone decides.
		v, err := c.gate.Evaluate(ctx, sess.ID, PhaseHistory, c.prompts.historySufficiency(*rec), rec.Transcript)
		if err != nil {
			return "", "", oracleFailure("history gate", err)
		}
		if v.Sufficient {
			return StateSynthesize, "", nil
		}
		return StateAskHistory, "", nil

	case StateSynthesize:
		summary, err := c.synthesize(ctx, rec)
		if err != nil {
			return "", "", err
		}
		rec.Summary = summary
		return StateAcknowledge, "", nil

	case StateAcknowledge:
		msg, err := c.ask(ctx, sess, c.prompts.acknowledge())
		return StateDone, msg, err
	}
	return "", "", fmt.Errorf("session %s: no step for state %q", sess.ID, sess.State)
}

// ask generates an assistant message and appends it to the transcript.
func (c *Controller) ask(ctx context.Context, sess *Session, instructions []string) (string, error) {
	text, err := c.oracle.GenerateText(ctx, instructions, sess.Record.Transcript)
	if err != nil {
		OracleCalls.WithLabelValues("text", "error").Inc()
		return "", oracleFailure(string(sess.State), err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		OracleCalls.WithLabelValues("text", "malformed").Inc()
		return "", oracleFailure(string(sess.State), fmt.Errorf("%w: empty message", ErrMalformedOutput))
	}
	OracleCalls.WithLabelValues("text", "success").Inc()
	sess.Record.appendTurn(RoleAssistant, text)
	return text, nil
}

// extract returns false with no error when the oracle answer is unusable.
func (c *Controller) extract(ctx context.Context, sess *Session, instructions []string, schema Schema, out any) (bool, error) {
	err := c.oracle.GenerateStructured(ctx, instructions, c.recent(sess.Record.Transcript), schema, out)
	switch {
	case err == nil:
		OracleCalls.WithLabelValues("structured", "success").Inc()
		return true, nil
	case errors.Is(err, ErrMalformedOutput):
		OracleCalls.WithLabelValues("structured", "malformed").Inc()
		ExtractionFailures.WithLabelValues(sess.State.Phase().String()).Inc()
		c.logger.Warn("extraction unusable, treating as no new information",
			zap.String("session_id", sess.ID),
			zap.String("schema", schema.Name),
			zap.Error(err))
		return false, nil
	default:
		OracleCalls.WithLabelValues("structured", "error").Inc()
		return false, oracleFailure(string(sess.State), err)
	}
}

type summaryCandidate struct {
	ProbableDiagnosis  *string `json:"probable_diagnosis"`
	ReasonForDiagnosis *string `json:"reason_for_diagnosis"`
	Urgency            *string `json:"urgency"`
	ReasonForUrgency   *string `json:"reason_for_urgency"`
}

func (c *Controller) synthesize(ctx context.Context, rec *PatientRecord) (*TriageSummary, error) {
	var cand summaryCandidate
	err := c.oracle.GenerateStructured(ctx, c.prompts.synthesize(), rec.Transcript, TriageSummarySchema, &cand)
	if err == nil {
		var summary *TriageSummary
		summary, err = cand.validate()
		if err == nil {
			OracleCalls.WithLabelValues("structured", "success").Inc()
			return summary, nil
		}
	}
	result := "error"
	if errors.Is(err, ErrMalformedOutput) {
		result = "malformed"
	}
	OracleCalls.WithLabelValues("structured", result).Inc()
	return nil, oracleFailure("synthesize", err)
}

func (s summaryCandidate) validate() (*TriageSummary, error) {
	diagnosis, ok1 := nonEmpty(s.ProbableDiagnosis)
	diagnosisReason, ok2 := nonEmpty(s.ReasonForDiagnosis)
	urgencyReason, ok3 := nonEmpty(s.ReasonForUrgency)
	urgency, ok4 := nonEmpty(s.Urgency)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, fmt.Errorf("%w: incomplete triage summary", ErrMalformedOutput)
	}
	u := Urgency(strings.ToUpper(urgency))
	if !u.Valid() {
		return nil, fmt.Errorf("%w: unknown urgency %q", ErrMalformedOutput, urgency)
	}
	return &TriageSummary{
		ProbableDiagnosis:  diagnosis,
		ReasonForDiagnosis: diagnosisReason,
		Urgency:            u,
		ReasonForUrgency:   urgencyReason,
	}, nil
}

func (c *Controller) transition(sess *Session, next State) error {
	from, to := sess.State.Phase(), next.Phase()
	if to < from {
		return fmt.Errorf("session %s: %s -> %s: %w", sess.ID, sess.State, next, errPhaseRegression)
	}
	if to != from {
		PhaseTransitions.WithLabelValues(from.String(), to.String()).Inc()
		c.logger.Info("phase advanced",
			zap.String("session_id", sess.ID),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
	}
	c.logger.Debug("state transition",
		zap.String("session_id", sess.ID),
		zap.String("from", string(sess.State)),
		zap.String("to", string(next)))
	sess.State = next
	return nil
}

func (c *Controller) recent(transcript []Turn) []Turn {
	if len(transcript) <= c.window {
		return transcript
	}
	return transcript[len(transcript)-c.window:]
}

func (c *Controller) logMerge(sess *Session, res MergeResult) {
	if len(res.Rejected) > 0 {
		ExtractionFailures.WithLabelValues(sess.State.Phase().String()).Inc()
	}
	level := zapcore.DebugLevel
	if res.Changed() {
		level = zapcore.InfoLevel
	}
	c.logger.Log(level, "extraction merged",
		zap.String("session_id", sess.ID),
		zap.String("state", string(sess.State)),
		zap.Strings("applied", res.Applied),
		zap.Strings("rejected", res.Rejected))
}

func extractStateFor(await State) State {
	switch await {
	case StateAwaitDemographics:
		return StateExtractDemographics
	case StateAwaitSymptoms:
		return StateExtractSymptoms
	case StateAwaitHistory:
		return StateExtractHistory
	}
	return await
}

// oracleFailure tags err as retryable unless it already is.
func oracleFailure(op string, err error) error {
	if errors.Is(err, ErrOracleUnavailable) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrOracleUnavailable, err)
}
