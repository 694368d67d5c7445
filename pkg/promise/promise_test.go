package promise

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFulfill(t *testing.T) {
	p := New[int]()
	require.True(t, p.Fulfill(42))

	v, err := p.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestReject(t *testing.T) {
	boom := errors.New("boom")
	p := New[int]()
	require.True(t, p.Reject(boom))

	_, err := p.Await(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestResolveExactlyOnce(t *testing.T) {
	t.Run("fulfill wins over later reject", func(t *testing.T) {
		p := New[string]()
		require.True(t, p.Fulfill("first"))
		require.False(t, p.Reject(errors.New("late")))
		require.False(t, p.Fulfill("late"))

		v, err := p.Await(context.Background())
		require.NoError(t, err)
		require.Equal(t, "first", v)
	})

	t.Run("reject wins over later fulfill", func(t *testing.T) {
		boom := errors.New("boom")
		p := New[string]()
		require.True(t, p.Reject(boom))
		require.False(t, p.Fulfill("late"))

		_, err := p.Await(context.Background())
		require.ErrorIs(t, err, boom)
	})

	t.Run("concurrent resolvers", func(t *testing.T) {
		p := New[int]()

		var wg sync.WaitGroup
		wins := make(chan int, 100)
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if p.Fulfill(i) {
					wins <- i
				}
			}(i)
		}
		wg.Wait()
		close(wins)

		var winners []int
		for w := range wins {
			winners = append(winners, w)
		}
		require.Len(t, winners, 1)

		v, err := p.Await(context.Background())
		require.NoError(t, err)
		require.Equal(t, winners[0], v)
	})
}

func TestAwaitContextCancel(t *testing.T) {
	p := New[int]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Await(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The abandoned wait must not have resolved the promise.
	require.True(t, p.Fulfill(7))
	v, err := p.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestAwaitBlocksUntilResolved(t *testing.T) {
	p := New[string]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.Fulfill("done")
	}()

	v, err := p.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, "done", v)
}

func TestPoll(t *testing.T) {
	p := New[int]()

	_, _, resolved := p.Poll()
	require.False(t, resolved)

	p.Fulfill(3)
	v, err, resolved := p.Poll()
	require.True(t, resolved)
	require.NoError(t, err)
	require.Equal(t, 3, v)
}

func TestDone(t *testing.T) {
	p := New[int]()

	select {
	case <-p.Done():
		t.Fatal("pending promise reported done")
	default:
	}

	p.Reject(errors.New("boom"))

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("resolved promise never closed Done")
	}
}

func TestConstructors(t *testing.T) {
	v, err := Fulfilled("ok").Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", v)

	boom := errors.New("boom")
	_, err = Rejected[string](boom).Await(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestRejectNilError(t *testing.T) {
	p := New[int]()
	require.True(t, p.Reject(nil))

	_, err := p.Await(context.Background())
	require.Error(t, err)
}
