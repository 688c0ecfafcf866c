package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
}

func (r *recorder) step(name string, actionErr, compensateErr error) Step {
	return Step{
		Name: name,
		Action: func(ctx context.Context) error {
			r.calls = append(r.calls, "do:"+name)
			return actionErr
		},
		Compensate: func(ctx context.Context) error {
			r.calls = append(r.calls, "undo:"+name)
			return compensateErr
		},
		LeavesBehind: func() string { return name + " row" },
	}
}

func TestSaga_Run(t *testing.T) {
	t.Run("should run all steps in order", func(t *testing.T) {
		r := &recorder{}

		err := New("test", r.step("a", nil, nil), r.step("b", nil, nil)).Run(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, []string{"do:a", "do:b"}, r.calls)
	})

	t.Run("should return the plain error when the first step fails", func(t *testing.T) {
		r := &recorder{}
		cause := errors.New("boom")

		err := New("test", r.step("a", cause, nil), r.step("b", nil, nil)).Run(context.Background())

		assert.ErrorIs(t, err, cause)
		var partialErr *apperr.PartialFailureError
		assert.False(t, errors.As(err, &partialErr))
		assert.Equal(t, []string{"do:a"}, r.calls)
	})

	t.Run("should compensate completed steps in reverse order", func(t *testing.T) {
		r := &recorder{}
		cause := errors.New("boom")
		noUndo := Step{Name: "c", Action: func(ctx context.Context) error {
			r.calls = append(r.calls, "do:c")
			return nil
		}}

		err := New("test", r.step("a", nil, nil), r.step("b", nil, nil), noUndo, r.step("d", cause, nil)).
			Run(context.Background())

		var partialErr *apperr.PartialFailureError
		require.ErrorAs(t, err, &partialErr)
		assert.Equal(t, "d", partialErr.Step)
		assert.ErrorIs(t, err, cause)
		assert.True(t, partialErr.RolledBack())
		assert.Equal(t, []string{"do:a", "do:b", "do:c", "do:d", "undo:b", "undo:a"}, r.calls)
	})

	t.Run("should keep compensating when a compensation fails", func(t *testing.T) {
		r := &recorder{}
		undoErr := errors.New("delete failed")

		err := New("test", r.step("a", nil, nil), r.step("b", nil, undoErr), r.step("c", errors.New("boom"), nil)).
			Run(context.Background())

		var partialErr *apperr.PartialFailureError
		require.ErrorAs(t, err, &partialErr)
		assert.False(t, partialErr.RolledBack())
		assert.Equal(t, []string{"b"}, partialErr.LeftBehind())
		assert.Equal(t, []string{"do:a", "do:b", "do:c", "undo:b", "undo:a"}, r.calls)
	})

	t.Run("should compensate even if the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var compensateCtxErr error
		first := Step{
			Name:   "a",
			Action: func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				compensateCtxErr = ctx.Err()
				return nil
			},
		}
		second := Step{Name: "b", Action: func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		}}

		err := New("test", first, second).Run(ctx)

		assert.ErrorIs(t, err, context.Canceled)
		assert.NoError(t, compensateCtxErr)
	})
}
