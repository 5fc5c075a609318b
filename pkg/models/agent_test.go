package models

import "testing"

func TestParseRole(t *testing.T) {
	for _, name := range []string{"coder", "reviewer", "tester", "researcher"} {
		role, err := ParseRole(name)
		if err != nil {
			t.Fatalf("ParseRole(%q) returned error: %v", name, err)
		}
		if string(role) != name {
			t.Errorf("expected role %q, got %q", name, role)
		}
	}
}

func TestParseRoleUnknown(t *testing.T) {
	_, err := ParseRole("wizard")
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestRoleSystemPrompt(t *testing.T) {
	for _, role := range []AgentRole{RoleCoder, RoleReviewer, RoleTester, RoleResearcher} {
		if role.SystemPrompt() == "" {
			t.Errorf("role %s has empty system prompt", role)
		}
	}
}

func TestDelegationResultSucceeded(t *testing.T) {
	if !(DelegationResult{Status: DelegationCompleted}).Succeeded() {
		t.Error("completed delegation should report success")
	}
	for _, s := range []DelegationStatus{DelegationFailed, DelegationError, DelegationUnavailable} {
		if (DelegationResult{Status: s}).Succeeded() {
			t.Errorf("status %s should not report success", s)
		}
	}
}
