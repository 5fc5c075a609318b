package turn

import "encoding/json"

// Decision is a user's answer to a destructive tool confirmation.
type Decision int

const (
	// DecisionYes runs the tool this one time.
	DecisionYes Decision = iota
	// DecisionNo skips the tool call and continues the turn.
	DecisionNo
	// DecisionAbort stops the entire turn.
	DecisionAbort
	// DecisionTrustSession runs the tool and trusts its pattern for
	// the rest of the session.
	DecisionTrustSession
	// DecisionTrustProject runs the tool and trusts its pattern for
	// the project.
	DecisionTrustProject
	// DecisionTrustGlobal runs the tool and trusts its pattern
	// everywhere.
	DecisionTrustGlobal
)

// String returns a short label for logs.
func (d Decision) String() string {
	switch d {
	case DecisionYes:
		return "yes"
	case DecisionNo:
		return "no"
	case DecisionAbort:
		return "abort"
	case DecisionTrustSession:
		return "trust-session"
	case DecisionTrustProject:
		return "trust-project"
	case DecisionTrustGlobal:
		return "trust-global"
	default:
		return "unknown"
	}
}

// scope maps a trust decision to its store scope. The second return is
// false for non-trust decisions.
func (d Decision) scope() (TrustScope, bool) {
	switch d {
	case DecisionTrustSession:
		return TrustSession, true
	case DecisionTrustProject:
		return TrustProject, true
	case DecisionTrustGlobal:
		return TrustGlobal, true
	default:
		return "", false
	}
}

// Confirmer asks the user whether a destructive tool call may run.
// Implementations block until the user answers.
type Confirmer interface {
	Confirm(toolName string, input json.RawMessage) Decision
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(toolName string, input json.RawMessage) Decision

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(toolName string, input json.RawMessage) Decision {
	return f(toolName, input)
}
