package sync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_FutureYields(t *testing.T) {
	f := NewFuture[int]()

	c := NewCoroutine(Background(), func(ctx Context) error {
		_, _ = f.Get(ctx)

		return nil
	})

	c.Execute()

	require.False(t, c.Finished())
	require.True(t, c.Blocked())

	c.Exit()
}

func Test_FutureSetTwice(t *testing.T) {
	f := NewFuture[int]()

	require.NoError(t, f.Set(42, nil))
	require.ErrorIs(t, f.Set(42, nil), ErrFutureAlreadySet)
}

func Test_FutureSetUnblocks(t *testing.T) {
	f := NewFuture[int]()

	var v int

	c := NewCoroutine(Background(), func(ctx Context) error {
		var err error
		v, err = f.Get(ctx)

		return err
	})

	c.Execute()

	require.False(t, c.Finished())
	require.True(t, c.Blocked())

	c.Execute()

	require.False(t, c.Progress())

	require.NoError(t, f.Set(42, nil))

	c.Execute()

	require.True(t, c.Finished())
	require.True(t, c.Progress())
	require.NoError(t, c.Error())

	require.Equal(t, 42, v)
}

func Test_FutureGetError(t *testing.T) {
	f := NewFuture[struct{}]()

	var err error

	c := NewCoroutine(Background(), func(ctx Context) error {
		_, err = f.Get(ctx)

		return nil
	})

	require.NoError(t, f.Set(struct{}{}, errors.New("test")))

	c.Execute()
	require.NoError(t, c.Error())
	require.True(t, c.Finished())

	require.EqualError(t, err, "test")
	require.True(t, f.Ready())
}
