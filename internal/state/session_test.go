package state

import (
	"testing"
)

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)

	if err := db.CreateSession("s1", "refactor the parser", "anthropic", "pipeline"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	rec, err := db.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if rec == nil {
		t.Fatal("GetSession returned nil for an existing session")
	}
	if rec.Task != "refactor the parser" || rec.Provider != "anthropic" || rec.Strategy != "pipeline" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Status != SessionActive {
		t.Errorf("status = %q, want active", rec.Status)
	}

	if err := db.AddSessionUsage("s1", 100, 40); err != nil {
		t.Fatalf("AddSessionUsage: %v", err)
	}
	if err := db.AddSessionUsage("s1", 50, 10); err != nil {
		t.Fatalf("AddSessionUsage: %v", err)
	}
	if err := db.UpdateSessionStatus("s1", SessionCompleted); err != nil {
		t.Fatalf("UpdateSessionStatus: %v", err)
	}

	rec, err = db.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession after update: %v", err)
	}
	if rec.InputTokens != 150 || rec.OutputTokens != 50 {
		t.Errorf("usage = %d/%d, want 150/50", rec.InputTokens, rec.OutputTokens)
	}
	if rec.Status != SessionCompleted {
		t.Errorf("status = %q, want completed", rec.Status)
	}
}

func TestGetSessionMissing(t *testing.T) {
	db := openTestDB(t)
	rec, err := db.GetSession("nope")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if rec != nil {
		t.Errorf("record = %+v, want nil for a missing session", rec)
	}
}

func TestMessagesPreserveOrder(t *testing.T) {
	db := openTestDB(t)
	if err := db.CreateSession("s1", "chat", "openai", "sequential"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	entries := []struct{ role, content string }{
		{"user", "fix the bug"},
		{"assistant", "looking at it"},
		{"user", "tool results here"},
	}
	for _, e := range entries {
		if err := db.AppendMessage("s1", e.role, e.content); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	msgs, err := db.Messages("s1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != len(entries) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(entries))
	}
	for i, e := range entries {
		if msgs[i].Role != e.role || msgs[i].Content != e.content {
			t.Errorf("message %d = %s/%q, want %s/%q", i, msgs[i].Role, msgs[i].Content, e.role, e.content)
		}
	}
}

func TestTrustPatternsPersistAndDeduplicate(t *testing.T) {
	db := openTestDB(t)

	if err := db.TrustPattern("shell:go", "project"); err != nil {
		t.Fatalf("TrustPattern: %v", err)
	}
	// Re-trusting the same pattern at the same scope is a no-op.
	if err := db.TrustPattern("shell:go", "project"); err != nil {
		t.Fatalf("TrustPattern repeat: %v", err)
	}
	if err := db.TrustPattern("write_file", "global"); err != nil {
		t.Fatalf("TrustPattern: %v", err)
	}

	patterns, err := db.TrustedPatterns()
	if err != nil {
		t.Fatalf("TrustedPatterns: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("patterns = %v, want 2 entries", patterns)
	}
	if patterns["shell:go"] != "project" || patterns["write_file"] != "global" {
		t.Errorf("patterns = %v", patterns)
	}
}
