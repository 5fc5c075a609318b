package state

import (
	"database/sql"
	"fmt"
	"time"
)

// SessionRecord is one orchestration session row.
type SessionRecord struct {
	ID           string
	Task         string
	Provider     string
	Strategy     string
	InputTokens  int64
	OutputTokens int64
	StartedAt    time.Time
	Status       string
}

// Session statuses.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
	SessionAborted   = "aborted"
)

// CreateSession inserts a new active session.
func (db *DB) CreateSession(id, task, provider, strategy string) error {
	_, err := db.Exec(`
		INSERT INTO sessions (id, task, provider, strategy, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, task, provider, strategy, formatTime(time.Now()), SessionActive)
	if err != nil {
		return fmt.Errorf("create session %s: %w", id, err)
	}
	return nil
}

// GetSession returns a session by id, or nil if it does not exist.
func (db *DB) GetSession(id string) (*SessionRecord, error) {
	row := db.QueryRow(`
		SELECT id, task, provider, strategy, input_tokens, output_tokens, started_at, status
		FROM sessions WHERE id = ?
	`, id)

	var rec SessionRecord
	var startedAt string
	err := row.Scan(&rec.ID, &rec.Task, &rec.Provider, &rec.Strategy,
		&rec.InputTokens, &rec.OutputTokens, &startedAt, &rec.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	if rec.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse session %s start time: %w", id, err)
	}
	return &rec, nil
}

// UpdateSessionStatus moves a session to a new status.
func (db *DB) UpdateSessionStatus(id, status string) error {
	_, err := db.Exec(`UPDATE sessions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update session %s status: %w", id, err)
	}
	return nil
}

// AddSessionUsage accumulates token usage onto a session.
func (db *DB) AddSessionUsage(id string, inputTokens, outputTokens int64) error {
	_, err := db.Exec(`
		UPDATE sessions
		SET input_tokens = input_tokens + ?, output_tokens = output_tokens + ?
		WHERE id = ?
	`, inputTokens, outputTokens, id)
	if err != nil {
		return fmt.Errorf("add session %s usage: %w", id, err)
	}
	return nil
}

// ListSessions returns sessions newest first, up to limit. A limit of
// zero returns everything.
func (db *DB) ListSessions(limit int) ([]*SessionRecord, error) {
	query := `
		SELECT id, task, provider, strategy, input_tokens, output_tokens, started_at, status
		FROM sessions ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var startedAt string
		if err := rows.Scan(&rec.ID, &rec.Task, &rec.Provider, &rec.Strategy,
			&rec.InputTokens, &rec.OutputTokens, &startedAt, &rec.Status); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if rec.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse session start time: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// MessageRecord is one persisted conversation entry.
type MessageRecord struct {
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// AppendMessage persists one conversation entry for a session.
func (db *DB) AppendMessage(sessionID, role, content string) error {
	_, err := db.Exec(`
		INSERT INTO messages (session_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, sessionID, role, content, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("append message to session %s: %w", sessionID, err)
	}
	return nil
}

// Messages returns a session's conversation in insertion order.
func (db *DB) Messages(sessionID string) ([]*MessageRecord, error) {
	rows, err := db.Query(`
		SELECT session_id, role, content, created_at
		FROM messages WHERE session_id = ? ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load messages for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []*MessageRecord
	for rows.Next() {
		var rec MessageRecord
		var createdAt string
		if err := rows.Scan(&rec.SessionID, &rec.Role, &rec.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse message time: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// TrustPattern persists a trusted tool pattern at a scope. Re-trusting
// an existing pattern is a no-op.
func (db *DB) TrustPattern(pattern, scope string) error {
	_, err := db.Exec(`
		INSERT OR IGNORE INTO trusted_patterns (pattern, scope, created_at)
		VALUES (?, ?, ?)
	`, pattern, scope, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("trust pattern %s: %w", pattern, err)
	}
	return nil
}

// TrustedPatterns returns every persisted pattern with its scope.
func (db *DB) TrustedPatterns() (map[string]string, error) {
	rows, err := db.Query(`SELECT pattern, scope FROM trusted_patterns`)
	if err != nil {
		return nil, fmt.Errorf("load trusted patterns: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var pattern, scope string
		if err := rows.Scan(&pattern, &scope); err != nil {
			return nil, fmt.Errorf("scan trusted pattern: %w", err)
		}
		out[pattern] = scope
	}
	return out, rows.Err()
}
