// Package recovery classifies failures and decides whether they are
// locally recoverable.
package recovery

import "strings"

// Classification is the bucket assigned to a raw error.
type Classification string

const (
	ClassSyntaxError       Classification = "syntax_error"
	ClassTimeout           Classification = "timeout"
	ClassDependencyMissing Classification = "dependency_missing"
	ClassTestFailure       Classification = "test_failure"
	ClassRateLimit         Classification = "llm_rate_limit"
	ClassOverloaded        Classification = "llm_overloaded"
	ClassInvalidRequest    Classification = "llm_invalid_request"
	ClassBuildError        Classification = "build_error"
	ClassTypeError         Classification = "type_error"
	ClassNetworkError      Classification = "network_error"
	ClassUnknown           Classification = "unknown"
)

// classificationRule maps keywords to a classification. Rules are
// evaluated in order; the first matching rule wins.
type classificationRule struct {
	class    Classification
	keywords []string
}

var classificationRules = []classificationRule{
	{ClassSyntaxError, []string{"syntax error", "syntaxerror", "unexpected token", "expected ';'"}},
	{ClassTimeout, []string{"timeout", "timed out", "deadline exceeded", "etimedout"}},
	{ClassDependencyMissing, []string{"cannot find module", "module not found", "no required module provides package", "cannot find package"}},
	{ClassTestFailure, []string{"test failed", "tests failed", "--- fail", "assertion failed"}},
	{ClassRateLimit, []string{"rate limit", "rate_limit", "too many requests", "429"}},
	{ClassOverloaded, []string{"overloaded", "overloaded_error", "capacity", "529"}},
	{ClassInvalidRequest, []string{"invalid request", "invalid_request_error", "400"}},
	{ClassBuildError, []string{"build failed", "compilation failed", "cannot compile", "undefined:"}},
	{ClassTypeError, []string{"type error", "typeerror", "type mismatch", "incompatible type"}},
	{ClassNetworkError, []string{"network", "connection refused", "connection reset", "econnrefused", "econnreset", "no such host", "dns"}},
}

// Classify buckets an error by matching its message and stack against
// the ordered keyword rules. Matching is case-insensitive; the first
// rule with any keyword hit wins, and anything unmatched is unknown.
func Classify(message, stack string) Classification {
	haystack := strings.ToLower(message + "\n" + stack)
	for _, rule := range classificationRules {
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				return rule.class
			}
		}
	}
	return ClassUnknown
}
