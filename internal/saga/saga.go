// Package saga runs an ordered list of (action, compensation) steps. When a step fails the
// compensations of the already completed steps run in reverse order. Compensations are
// best-effort: a failing compensation is logged and recorded, never retried.
package saga

import (
	"context"
	"fmt"

	"github.com/obrafin/obrafin/internal/apperr"
	log "github.com/sirupsen/logrus"
)

type Step struct {
	Name string
	// Action performs the step. Steps run sequentially; a step only starts after the
	// previous one returned nil.
	Action func(ctx context.Context) error
	// Compensate undoes the step. Nil when the step has nothing of its own to undo.
	Compensate func(ctx context.Context) error
	// LeavesBehind describes the rows left in place when Compensate fails.
	LeavesBehind func() string
}

type Saga struct {
	name  string
	steps []Step
}

func New(name string, steps ...Step) *Saga {
	return &Saga{name: name, steps: steps}
}

// Run executes the steps. It returns nil when every step succeeded, the plain step error
// when the first step failed, and a *apperr.PartialFailureError otherwise.
func (s *Saga) Run(ctx context.Context) error {
	completed := make([]Step, 0, len(s.steps))
	for _, step := range s.steps {
		log.Debugf("saga %s: running step %s", s.name, step.Name)
		if err := step.Action(ctx); err != nil {
			log.Warnf("saga %s: step %s failed: %v", s.name, step.Name, err)
			if len(completed) == 0 {
				return fmt.Errorf("%s: %w", step.Name, err)
			}
			return &apperr.PartialFailureError{
				Step:          step.Name,
				Cause:         err,
				Compensations: s.compensate(ctx, step.Name, completed),
			}
		}
		completed = append(completed, step)
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, failedStep string, completed []Step) []apperr.CompensationOutcome {
	// compensation must run to completion even if the caller went away
	ctx = context.WithoutCancel(ctx)

	var outcomes []apperr.CompensationOutcome
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		err := step.Compensate(ctx)
		outcomes = append(outcomes, apperr.CompensationOutcome{Step: step.Name, Err: err})
		if err != nil {
			leftBehind := "unknown rows"
			if step.LeavesBehind != nil {
				leftBehind = step.LeavesBehind()
			}
			log.WithFields(log.Fields{
				"saga":       s.name,
				"failedStep": failedStep,
				"compensate": step.Name,
				"leftBehind": leftBehind,
			}).Errorf("compensation failed, manual cleanup required: %v", err)
			continue
		}
		log.Debugf("saga %s: compensated step %s", s.name, step.Name)
	}
	return outcomes
}
