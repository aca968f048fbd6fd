package debate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo persists debate sessions, transcript messages, and verdicts. All
// writes are best-effort from the coordinator's point of view; a down
// database degrades to in-memory sessions.
type Repo struct {
	pool *pgxpool.Pool
}

// NewRepo wraps an existing pool.
func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// EnsureSchema creates the debate tables if missing.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS debate_sessions (
			id TEXT PRIMARY KEY,
			ticker TEXT NOT NULL,
			state TEXT NOT NULL,
			verdict JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS debate_messages (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES debate_sessions(id),
			round_index INT NOT NULL,
			persona_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure debate schema: %w", err)
	}
	return nil
}

// CreateSession inserts a new session record.
func (r *Repo) CreateSession(ctx context.Context, id, ticker string) error {
	query := `
		INSERT INTO debate_sessions (id, ticker, state)
		VALUES ($1, $2, $3)
	`
	if _, err := r.pool.Exec(ctx, query, id, ticker, StateCollecting); err != nil {
		return fmt.Errorf("failed to create debate session: %w", err)
	}
	return nil
}

// UpdateState records a state transition.
func (r *Repo) UpdateState(ctx context.Context, id string, state State) error {
	query := `
		UPDATE debate_sessions
		SET state = $2, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, query, id, state); err != nil {
		return fmt.Errorf("failed to update debate state: %w", err)
	}
	return nil
}

// SaveVerdict stores the final verdict alongside the session.
func (r *Repo) SaveVerdict(ctx context.Context, id string, verdict Verdict) error {
	verdictJSON, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	query := `
		UPDATE debate_sessions
		SET verdict = $2, state = $3, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, query, id, verdictJSON, StateConcluded); err != nil {
		return fmt.Errorf("failed to save verdict: %w", err)
	}
	return nil
}

// AddMessage appends one transcript message.
func (r *Repo) AddMessage(ctx context.Context, msg Message) error {
	query := `
		INSERT INTO debate_messages (session_id, round_index, persona_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.pool.Exec(ctx, query, msg.SessionID, msg.Round, msg.PersonaID, msg.Content, msg.Timestamp); err != nil {
		return fmt.Errorf("failed to add debate message: %w", err)
	}
	return nil
}

// GetTranscript loads the full ordered transcript for a session.
func (r *Repo) GetTranscript(ctx context.Context, sessionID string) ([]Message, error) {
	query := `
		SELECT round_index, persona_id, content, created_at
		FROM debate_messages
		WHERE session_id = $1
		ORDER BY id ASC
	`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var transcript []Message
	for rows.Next() {
		msg := Message{SessionID: sessionID}
		if err := rows.Scan(&msg.Round, &msg.PersonaID, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		transcript = append(transcript, msg)
	}
	return transcript, nil
}
