// Package turn executes one conversational round for one agent: stream
// the model, gate and run the tool calls it requests, feed results
// back, and repeat until convergence, cap, or cancellation.
package turn

import (
	"encoding/json"
	"strings"
	"sync"
)

// TrustScope is where a trusted tool pattern applies.
type TrustScope string

const (
	// TrustSession trusts the pattern for the current session only.
	TrustSession TrustScope = "session"
	// TrustProject trusts the pattern for the current project.
	TrustProject TrustScope = "project"
	// TrustGlobal trusts the pattern everywhere.
	TrustGlobal TrustScope = "global"
)

// TrustStore holds the tool patterns that bypass confirmation. It is
// shared by every turn loop in a session; writes are serialized and
// idempotent, so concurrent proceed-and-trust decisions for the same
// pattern are order-independent.
type TrustStore struct {
	mu       sync.RWMutex
	patterns map[TrustScope]map[string]bool
	// onPersist, when set, is called after a project or global pattern
	// is added so the caller can write it through to durable storage.
	onPersist func(scope TrustScope, pattern string)
}

// NewTrustStore creates an empty trust store.
func NewTrustStore() *TrustStore {
	return &TrustStore{patterns: make(map[TrustScope]map[string]bool)}
}

// SetPersistFunc registers a write-through hook for project and global
// scope additions.
func (s *TrustStore) SetPersistFunc(fn func(scope TrustScope, pattern string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPersist = fn
}

// Trust adds a pattern at the given scope.
func (s *TrustStore) Trust(pattern string, scope TrustScope) {
	s.mu.Lock()
	if s.patterns[scope] == nil {
		s.patterns[scope] = make(map[string]bool)
	}
	s.patterns[scope][pattern] = true
	persist := s.onPersist
	s.mu.Unlock()

	if persist != nil && scope != TrustSession {
		persist(scope, pattern)
	}
}

// Trusted reports whether the pattern is trusted at any scope.
func (s *TrustStore) Trusted(pattern string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, scoped := range s.patterns {
		if scoped[pattern] {
			return true
		}
	}
	return false
}

// Patterns returns all patterns at a scope, for persistence and display.
func (s *TrustStore) Patterns(scope TrustScope) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.patterns[scope]))
	for p := range s.patterns[scope] {
		out = append(out, p)
	}
	return out
}

// PatternFor derives the trust pattern for a tool call. Shell commands
// are keyed by tool plus leading subcommand so trusting "shell:ls" does
// not also trust "shell:rm"; every other tool is keyed by name.
func PatternFor(name string, input json.RawMessage) string {
	if name != "shell" {
		return name
	}
	var params struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return name
	}
	fields := strings.Fields(params.Command)
	if len(fields) == 0 {
		return name
	}
	return name + ":" + fields[0]
}
