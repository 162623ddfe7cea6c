package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureResolve(t *testing.T) {
	f := NewFuture()
	assert.False(t, f.Settled())

	var got any
	var gotErr error
	f.Then(func(v any, err error) { got, gotErr = v, err })

	require.NoError(t, f.Resolve(42))
	assert.True(t, f.Settled())
	assert.Equal(t, 42, got)
	assert.NoError(t, gotErr)
}

func TestFutureReject(t *testing.T) {
	f := NewFuture()
	boom := errors.New("boom")
	require.NoError(t, f.Reject(boom))

	var gotErr error
	f.Then(func(v any, err error) { gotErr = err })
	assert.ErrorIs(t, gotErr, boom)
}

func TestFutureSettlesOnce(t *testing.T) {
	f := NewFuture()
	require.NoError(t, f.Resolve(1))
	assert.ErrorIs(t, f.Resolve(2), ErrAlreadySettled)
	assert.ErrorIs(t, f.Reject(errors.New("late")), ErrAlreadySettled)

	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestThenAfterSettleRunsImmediately(t *testing.T) {
	f := NewFuture()
	require.NoError(t, f.Resolve("done"))

	ran := false
	f.Then(func(v any, err error) { ran = true })
	assert.True(t, ran)
}

func TestThenOrder(t *testing.T) {
	f := NewFuture()
	var order []int
	f.Then(func(any, error) { order = append(order, 1) })
	f.Then(func(any, error) { order = append(order, 2) })
	f.Then(func(any, error) { order = append(order, 3) })

	require.NoError(t, f.Resolve(nil))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestAwaitContextCancel(t *testing.T) {
	f := NewFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGo(t *testing.T) {
	f := Go(func() (any, error) { return "async result", nil })

	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "async result", v)
}
