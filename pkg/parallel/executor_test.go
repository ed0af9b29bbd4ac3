package parallel

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExecutor_Defaults(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), NewExecutor(0).Workers())
	assert.Equal(t, runtime.NumCPU(), NewExecutor(-3).Workers())
	assert.Equal(t, 4, NewExecutor(4).Workers())
}

func TestExecute_CoversRangeOnce(t *testing.T) {
	for _, tc := range []struct{ workers, n int }{{1, 10}, {3, 10}, {4, 4}, {8, 3}, {5, 0}} {
		e := NewExecutor(tc.workers)
		hits := make([]int32, tc.n)

		err := e.Execute(context.Background(), tc.n, func(_ context.Context, _, start, end int) error {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
			return nil
		})
		require.NoError(t, err)

		for i, h := range hits {
			assert.Equal(t, int32(1), h, "workers=%d n=%d index=%d", tc.workers, tc.n, i)
		}
	}
}

func TestForEach(t *testing.T) {
	e := NewExecutor(3)
	out := make([]int, 7)

	err := e.ForEach(context.Background(), len(out), func(i int) error {
		out[i] = i * i
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 4, 9, 16, 25, 36}, out)
}

func TestForEach_Error(t *testing.T) {
	boom := errors.New("boom")
	e := NewExecutor(2)

	err := e.ForEach(context.Background(), 10, func(i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestExecute_RecoversPanic(t *testing.T) {
	e := NewExecutor(2)
	err := e.Execute(context.Background(), 4, func(_ context.Context, worker, _, _ int) error {
		if worker == 1 {
			panic("bad particle")
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestForEach_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewExecutor(2).ForEach(ctx, 4, func(int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
