package queue_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"GameStateServer/internal/service/events/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	t.Parallel()

	tx, rx := queue.New[int]()
	for i := 0; i < 1000; i++ {
		require.NoError(t, tx.Push(i))
	}
	assert.Equal(t, 1000, rx.Len())

	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		v, err := rx.Pop(ctx)
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
	assert.Equal(t, 0, rx.Len())
}

func TestQueue_PopWaitsForPush(t *testing.T) {
	t.Parallel()

	tx, rx := queue.New[string]()
	got := make(chan string, 1)
	go func() {
		v, err := rx.Pop(context.Background())
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-got:
		t.Fatal("pop returned before push")
	default:
	}

	require.NoError(t, tx.Push("hello"))
	select {
	case v := <-got:
		assert.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake up")
	}
}

func TestQueue_SenderCloseDrainsThenEOF(t *testing.T) {
	t.Parallel()

	tx, rx := queue.New[int]()
	require.NoError(t, tx.Push(1))
	require.NoError(t, tx.Push(2))
	tx.Close()
	tx.Close()

	ctx := context.Background()
	v, err := rx.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = rx.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = rx.Pop(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestQueue_SenderCloseWakesWaitingPop(t *testing.T) {
	t.Parallel()

	tx, rx := queue.New[int]()
	errCh := make(chan error, 1)
	go func() {
		_, err := rx.Pop(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	tx.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("pop did not observe sender close")
	}
}

func TestQueue_ReceiverClose(t *testing.T) {
	t.Parallel()

	tx, rx := queue.New[int]()
	require.NoError(t, tx.Push(1))
	rx.Close()

	assert.ErrorIs(t, tx.Push(2), queue.ErrClosed)
	assert.Equal(t, 0, rx.Len())

	_, err := rx.Pop(context.Background())
	assert.ErrorIs(t, err, queue.ErrClosed)
}

func TestQueue_PopContext(t *testing.T) {
	t.Parallel()

	t.Run("cancel unblocks waiting pop", func(t *testing.T) {
		t.Parallel()

		_, rx := queue.New[int]()
		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			_, err := rx.Pop(ctx)
			errCh <- err
		}()

		cancel()
		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("pop ignored cancellation")
		}
	})

	t.Run("done context wins over queued items", func(t *testing.T) {
		t.Parallel()

		tx, rx := queue.New[int]()
		require.NoError(t, tx.Push(1))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := rx.Pop(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, rx.Len())
	})
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	t.Parallel()

	const (
		producers = 8
		perWorker = 500
	)

	type item struct{ producer, seq int }
	tx, rx := queue.New[item]()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := tx.Push(item{producer: p, seq: i}); err != nil {
					t.Errorf("push: %v", err)
					return
				}
			}
		}(p)
	}
	go func() {
		wg.Wait()
		tx.Close()
	}()

	next := make([]int, producers)
	total := 0
	for {
		v, err := rx.Pop(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Equal(t, next[v.producer], v.seq, "per-producer order broken")
		next[v.producer]++
		total++
	}
	assert.Equal(t, producers*perWorker, total)
}
