// Package apperr holds the error taxonomy shared by the budget, rubro, stats and receipt
// packages, and its mapping to HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a budget, category, receipt or project is absent or
	// belongs to another tenant.
	ErrNotFound = errors.New("not found")
	// ErrState is returned when an operation is not valid for the current draft/published state.
	ErrState = errors.New("invalid state")
	// ErrPlanLimit is returned when the tenant's subscription tier forbids the action.
	ErrPlanLimit = errors.New("plan limit reached")
	// ErrConflict is returned when a draft save carries a stale revision.
	ErrConflict = errors.New("revision conflict")
	// ErrForbidden is returned when the caller has no edit rights on the resource.
	ErrForbidden = errors.New("forbidden")
)

// Violation is a single broken structural rule.
type Violation struct {
	Rule    string `json:"rule"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// ShapeError reports a structurally invalid snapshot or request. It lists every violated
// rule so the caller can show all of them at once.
type ShapeError struct {
	Violations []Violation
}

func (e *ShapeError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Path != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s", v.Path, v.Message))
		} else {
			msgs = append(msgs, v.Message)
		}
	}
	return "invalid shape: " + strings.Join(msgs, "; ")
}

// Add appends a violation.
func (e *ShapeError) Add(rule, path, message string) {
	e.Violations = append(e.Violations, Violation{Rule: rule, Path: path, Message: message})
}

// OrNil returns nil when no violation was recorded, so callers can return it directly.
func (e *ShapeError) OrNil() error {
	if e == nil || len(e.Violations) == 0 {
		return nil
	}
	return e
}

// CompensationOutcome records what happened when a compensating action ran.
type CompensationOutcome struct {
	Step string
	Err  error
}

// PartialFailureError is returned when a multi-step reconciliation failed after some writes
// were committed. Compensations holds the outcome of every compensating action that ran.
type PartialFailureError struct {
	Step          string
	Cause         error
	Compensations []CompensationOutcome
}

func (e *PartialFailureError) Error() string {
	state := "rolled back"
	if !e.RolledBack() {
		state = "left partial state"
	}
	return fmt.Sprintf("step %q failed (%s): %v", e.Step, state, e.Cause)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Cause
}

// RolledBack reports whether every compensation succeeded.
func (e *PartialFailureError) RolledBack() bool {
	for _, c := range e.Compensations {
		if c.Err != nil {
			return false
		}
	}
	return true
}

// LeftBehind lists the steps whose compensation failed.
func (e *PartialFailureError) LeftBehind() []string {
	var steps []string
	for _, c := range e.Compensations {
		if c.Err != nil {
			steps = append(steps, c.Step)
		}
	}
	return steps
}
