package state

import "time"

// Store is the persistence surface consumed by the orchestrator.
// *DB is the canonical implementation; tests may substitute fakes.
type Store interface {
	CreateSession(id, task, provider, strategy string) error
	GetSession(id string) (*SessionRecord, error)
	UpdateSessionStatus(id, status string) error
	AddSessionUsage(id string, inputTokens, outputTokens int64) error
	ListSessions(limit int) ([]*SessionRecord, error)

	AppendMessage(sessionID, role, content string) error
	Messages(sessionID string) ([]*MessageRecord, error)

	TrustPattern(pattern, scope string) error
	TrustedPatterns() (map[string]string, error)

	SaveCheckpoint(cp *Checkpoint) error
	LatestCheckpoint(sessionID string) (*Checkpoint, error)
	PruneCheckpoints(sessionID string, keep int) error

	PurgeOldSessions(olderThan time.Duration) (int64, error)
	Close() error
}

var _ Store = (*DB)(nil)
