package intake

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Repository is the session registry: session id -> persisted controller state.
type Repository interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

type memoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryRepository() Repository {
	return &memoryRepo{sessions: make(map[string]*Session)}
}

func (r *memoryRepo) Get(ctx context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (r *memoryRepo) Save(ctx context.Context, s *Session) error {
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

type postgresRepo struct {
	db *sql.DB
}

// NewPostgresRepository stores sessions in the intake_sessions table.
// Rows are deleted when the interview completes.
func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*Session, error) {
	query := `SELECT id, state, record, created_at, updated_at FROM intake_sessions WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	var s Session
	var recordJSON []byte
	err := row.Scan(&s.ID, &s.State, &recordJSON, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if len(recordJSON) > 0 {
		if err := json.Unmarshal(recordJSON, &s.Record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
	}
	return &s, nil
}

func (r *postgresRepo) Save(ctx context.Context, s *Session) error {
	recordJSON, err := json.Marshal(s.Record)
	if err != nil {
		return err
	}

	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	s.UpdatedAt = time.Now()

	query := `
		INSERT INTO intake_sessions (id, state, record, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			state = $2,
			record = $3,
			updated_at = $5
	`
	_, err = r.db.ExecContext(ctx, query, s.ID, s.State, recordJSON, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM intake_sessions WHERE id = $1`, id)
	return err
}
