// Package domain contains the opportunity lifecycle types and the state
// machine rules.
package domain

// Status is the lifecycle state of an opportunity.
type Status string

const (
	StatusDetected  Status = "detected"
	StatusAnalyzing Status = "analyzing"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// legalEdges holds the allowed transitions. Expired is reachable only before
// execution; once a call is submitted the outcome is Completed or Failed.
var legalEdges = map[Status][]Status{
	StatusDetected:  {StatusAnalyzing, StatusExpired},
	StatusAnalyzing: {StatusExecuting, StatusExpired},
	StatusExecuting: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from -> to is a legal edge. No edge re-enters
// a prior state.
func CanTransition(from, to Status) bool {
	for _, next := range legalEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// Active reports whether the status counts toward the at-most-one-per-key
// constraint.
func (s Status) Active() bool {
	return s == StatusDetected || s == StatusAnalyzing || s == StatusExecuting
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusDetected, StatusAnalyzing, StatusExecuting,
		StatusCompleted, StatusFailed, StatusExpired:
		return true
	}
	return false
}
