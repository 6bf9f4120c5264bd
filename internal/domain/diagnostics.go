package domain

import "time"

// DiagnosticStatus indicates whether a single startup check passed.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusFail DiagnosticStatus = "fail"
)

// DiagnosticScope names the pipeline feature a check guards.
type DiagnosticScope string

const (
	DiagnosticScopeRecognition DiagnosticScope = "recognition"
	DiagnosticScopeTranslation DiagnosticScope = "translation"
)

// DiagnosticItem is one startup check result with optional hint.
type DiagnosticItem struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Scope   DiagnosticScope  `json:"scope"`
	Status  DiagnosticStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
}

// DiagnosticReport aggregates startup checks for the editor.
type DiagnosticReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DiagnosticItem `json:"items"`
}

// Blocks reports whether any failed check guards the given scope.
func (r DiagnosticReport) Blocks(scope DiagnosticScope) bool {
	for _, item := range r.Items {
		if item.Scope == scope && item.Status == DiagnosticStatusFail {
			return true
		}
	}
	return false
}
