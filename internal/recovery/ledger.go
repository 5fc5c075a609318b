package recovery

import "sync"

// MaxAttempts is the retry budget per (classification, phase) pair.
const MaxAttempts = 3

// ledgerKey identifies one retry budget.
type ledgerKey struct {
	class Classification
	phase string
}

// Ledger tracks how many times each kind of failure has been retried in
// each phase. It is the durable memory of retries within a session: it
// survives across unrelated calls and is cleared only explicitly, never
// auto-expired. Increments are atomic per key, so the attempt bound
// stays exact under concurrent delegated-task failures.
type Ledger struct {
	mu       sync.Mutex
	attempts map[ledgerKey]int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{attempts: make(map[ledgerKey]int)}
}

// Increment bumps the attempt count for the pair and returns the new count.
func (l *Ledger) Increment(class Classification, phase string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey{class, phase}
	l.attempts[key]++
	return l.attempts[key]
}

// Attempts returns the current attempt count for the pair.
func (l *Ledger) Attempts(class Classification, phase string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts[ledgerKey{class, phase}]
}

// Reset clears the attempt count for one pair, restoring recoverability.
func (l *Ledger) Reset(class Classification, phase string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, ledgerKey{class, phase})
}

// ResetAll clears every attempt count.
func (l *Ledger) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = make(map[ledgerKey]int)
}
