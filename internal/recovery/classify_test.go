package recovery

import "testing"

func TestClassifyFirstMatchWins(t *testing.T) {
	cases := []struct {
		message string
		want    Classification
	}{
		{"SyntaxError: unexpected token '}'", ClassSyntaxError},
		{"request timed out after 120s", ClassTimeout},
		{"Cannot find module 'left-pad'", ClassDependencyMissing},
		{"--- FAIL: TestFoo (0.01s)", ClassTestFailure},
		{"429 Too Many Requests", ClassRateLimit},
		{"overloaded_error: try again later", ClassOverloaded},
		{"invalid_request_error: max_tokens too large", ClassInvalidRequest},
		{"build failed with 3 errors", ClassBuildError},
		{"TypeError: x is not a function", ClassTypeError},
		{"dial tcp: connection refused", ClassNetworkError},
		{"something inexplicable happened", ClassUnknown},
		{"", ClassUnknown},
	}

	for _, c := range cases {
		if got := Classify(c.message, ""); got != c.want {
			t.Errorf("Classify(%q) = %s, want %s", c.message, got, c.want)
		}
	}
}

func TestClassifyOrderedPrecedence(t *testing.T) {
	// A syntax error surfaced by a failing test still classifies as
	// syntax: the syntax rule is evaluated first.
	got := Classify("test failed: SyntaxError: unexpected token", "")
	if got != ClassSyntaxError {
		t.Errorf("expected syntax_error to win over test_failure, got %s", got)
	}
}

func TestClassifyInspectsStack(t *testing.T) {
	got := Classify("operation failed", "at fetch (net.go:10)\nconnection reset by peer")
	if got != ClassNetworkError {
		t.Errorf("expected network_error from stack contents, got %s", got)
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	if got := Classify("REQUEST TIMED OUT", ""); got != ClassTimeout {
		t.Errorf("expected case-insensitive match, got %s", got)
	}
}
