package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"stagehand/pkg/models"
)

// Checkpoint is a resumable snapshot of one orchestration session.
type Checkpoint struct {
	SessionID      string            `json:"session_id"`
	Phase          string            `json:"phase"`
	Tasks          []*models.Task    `json:"tasks"`
	CompletedTasks []string          `json:"completed_tasks"`
	AgentStates    map[string]string `json:"agent_states,omitempty"`
	GeneratedFiles []string          `json:"generated_files,omitempty"`
	QualityHistory []int             `json:"quality_history,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// SaveCheckpoint snapshots the session state. Snapshots accumulate;
// LatestCheckpoint picks the newest one.
func (db *DB) SaveCheckpoint(cp *Checkpoint) error {
	if cp.SessionID == "" {
		return fmt.Errorf("checkpoint has no session id")
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint for session %s: %w", cp.SessionID, err)
	}
	_, err = db.Exec(`
		INSERT INTO checkpoints (session_id, phase, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, cp.SessionID, cp.Phase, string(payload), formatTime(cp.CreatedAt))
	if err != nil {
		return fmt.Errorf("save checkpoint for session %s: %w", cp.SessionID, err)
	}
	return nil
}

// LatestCheckpoint returns the newest snapshot for a session. A
// missing snapshot is a fresh start, not an error: it returns
// (nil, nil).
func (db *DB) LatestCheckpoint(sessionID string) (*Checkpoint, error) {
	row := db.QueryRow(`
		SELECT payload FROM checkpoints
		WHERE session_id = ?
		ORDER BY id DESC LIMIT 1
	`, sessionID)

	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint for session %s: %w", sessionID, err)
	}

	var cp Checkpoint
	if err := json.Unmarshal([]byte(payload), &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint for session %s: %w", sessionID, err)
	}
	return &cp, nil
}

// PruneCheckpoints keeps only the newest n snapshots per session.
func (db *DB) PruneCheckpoints(sessionID string, keep int) error {
	if keep < 1 {
		keep = 1
	}
	_, err := db.Exec(`
		DELETE FROM checkpoints
		WHERE session_id = ? AND id NOT IN (
			SELECT id FROM checkpoints WHERE session_id = ?
			ORDER BY id DESC LIMIT ?
		)
	`, sessionID, sessionID, keep)
	if err != nil {
		return fmt.Errorf("prune checkpoints for session %s: %w", sessionID, err)
	}
	return nil
}
