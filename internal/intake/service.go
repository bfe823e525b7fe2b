package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reporter receives the final record of a completed interview before the
// session is discarded.
type Reporter interface {
	SendTriageReport(ctx context.Context, sessionID string, rec PatientRecord) error
}

type Service interface {
	Start(ctx context.Context, sessionID string) (*TurnResult, error)
	Reply(ctx context.Context, sessionID, text string) (*TurnResult, error)
	Snapshot(ctx context.Context, sessionID string) (*TurnResult, error)
}

type service struct {
	repo       Repository
	controller *Controller
	reporter   Reporter
	logger     *zap.Logger
	locks      *sessionLocks
}

// NewService wires the session registry to the controller. reporter may be nil.
func NewService(repo Repository, controller *Controller, reporter Reporter, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		repo:       repo,
		controller: controller,
		reporter:   reporter,
		logger:     logger,
		locks:      newSessionLocks(),
	}
}

// Start creates a session and runs the interview up to its first question.
func (s *service) Start(ctx context.Context, sessionID string) (*TurnResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	unlock := s.locks.lock(sessionID)
	defer unlock()

	if _, err := s.repo.Get(ctx, sessionID); err == nil {
		return nil, fmt.Errorf("start %s: %w", sessionID, ErrSessionExists)
	} else if !errors.Is(err, ErrSessionNotFound) {
		return nil, fmt.Errorf("start %s: %w", sessionID, err)
	}

	now := time.Now()
	sess := &Session{
		ID:        sessionID,
		State:     StateAskDemographics,
		CreatedAt: now,
		UpdatedAt: now,
	}
	out, err := s.controller.Run(ctx, sess, nil)
	if err != nil {
		s.logger.Error("failed to start session", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("start %s: %w", sessionID, err)
	}
	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save %s: %w", sessionID, err)
	}

	SessionsStarted.Inc()
	ActiveSessions.Inc()
	s.logger.Info("session started", zap.String("session_id", sessionID), zap.String("state", string(sess.State)))
	return newTurnResult(sess, out.Last()), nil
}

// Reply resumes a suspended session with exactly one human reply. The stored
// session changes only if the controller reaches its next suspension point.
func (s *service) Reply(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyReply
	}
	unlock := s.locks.lock(sessionID)
	defer unlock()

	// 1. Load the suspended state
	stored, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("reply %s: %w", sessionID, err)
	}
	if !stored.State.Suspended() {
		return nil, fmt.Errorf("reply %s: %w", sessionID, ErrSessionNotAwaiting)
	}

	// 2. Run on a copy so a failed oracle call leaves the suspension intact
	sess := stored.Clone()
	out, err := s.controller.Run(ctx, sess, &text)
	if err != nil {
		s.logger.Warn("turn not committed",
			zap.String("session_id", sessionID),
			zap.String("state", string(stored.State)),
			zap.Error(err))
		return nil, fmt.Errorf("reply %s: %w", sessionID, err)
	}

	if sess.State.Terminal() {
		return s.complete(ctx, sess, out), nil
	}

	// 3. Commit
	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save %s: %w", sessionID, err)
	}
	return newTurnResult(sess, out.Last()), nil
}

func (s *service) Snapshot(ctx context.Context, sessionID string) (*TurnResult, error) {
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", sessionID, err)
	}
	return newTurnResult(sess, nil), nil
}

// complete hands the finished record to the reporter and discards the session.
func (s *service) complete(ctx context.Context, sess *Session, out Outcome) *TurnResult {
	SessionsCompleted.Inc()
	ActiveSessions.Dec()

	fields := []zap.Field{zap.String("session_id", sess.ID)}
	if sess.Record.Summary != nil {
		fields = append(fields, zap.String("urgency", string(sess.Record.Summary.Urgency)))
	}
	s.logger.Info("session complete", fields...)

	if s.reporter != nil {
		if err := s.reporter.SendTriageReport(ctx, sess.ID, sess.Record.Clone()); err != nil {
			s.logger.Error("failed to send triage report", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}
	if err := s.repo.Delete(ctx, sess.ID); err != nil {
		s.logger.Error("failed to discard completed session", zap.String("session_id", sess.ID), zap.Error(err))
	}
	return newTurnResult(sess, out.Last())
}

// sessionLocks serialises work per session id so replies are handled in
// arrival order. Different sessions never share a lock.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	sl, ok := l.locks[id]
	if !ok {
		sl = &sessionLock{}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
