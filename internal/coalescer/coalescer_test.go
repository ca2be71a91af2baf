package coalescer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestTake(t *testing.T) {
	p := Policy{BatchSize: 6, MaxBatchSize: 12, MaxWait: time.Second}
	queue := func(n int) []Task {
		q := make([]Task, n)
		for i := range q {
			q[i] = noop
		}
		return q
	}

	cases := []struct {
		queued    int
		wantBatch int
		wantRest  int
	}{
		{queued: 1, wantBatch: 1, wantRest: 0},
		{queued: 6, wantBatch: 6, wantRest: 0},
		{queued: 12, wantBatch: 6, wantRest: 6},
		{queued: 13, wantBatch: 12, wantRest: 1},
		{queued: 40, wantBatch: 12, wantRest: 28},
	}
	for _, tc := range cases {
		batch, rest := take(queue(tc.queued), p)
		assert.Len(t, batch, tc.wantBatch, "queued=%d", tc.queued)
		assert.Len(t, rest, tc.wantRest, "queued=%d", tc.queued)
	}
}

func TestPolicyNormalize(t *testing.T) {
	p := Policy{BatchSize: 0, MaxBatchSize: -1}.normalize()
	assert.Equal(t, DefaultPolicy(), p)

	p = Policy{BatchSize: 4, MaxBatchSize: 2, MaxWait: time.Millisecond}.normalize()
	assert.Equal(t, 4, p.MaxBatchSize)
}

func TestCoalescer_Liveness(t *testing.T) {
	p := Policy{BatchSize: 3, MaxBatchSize: 5, MaxWait: 50 * time.Millisecond}
	c := New(context.Background(), p)
	defer c.Close()

	var ran atomic.Int32
	total := p.BatchSize*3 + 1
	for i := 0; i < total; i++ {
		require.NoError(t, c.Enqueue(func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))

	assert.Equal(t, int32(total), ran.Load())
	assert.Equal(t, 0, c.Len())
}

func TestCoalescer_HungTaskOnlyDelaysByMaxWait(t *testing.T) {
	p := Policy{BatchSize: 2, MaxBatchSize: 4, MaxWait: 20 * time.Millisecond}
	c := New(context.Background(), p)
	defer c.Close()

	release := make(chan struct{})
	defer close(release)

	var ran atomic.Int32
	require.NoError(t, c.Enqueue(func(context.Context) error {
		<-release
		return nil
	}))
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Enqueue(func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
	assert.Equal(t, int32(5), ran.Load())
}

func TestCoalescer_FailuresAndPanicsDoNotStopTheQueue(t *testing.T) {
	c := New(context.Background(), DefaultPolicy())
	defer c.Close()

	var ran atomic.Int32
	require.NoError(t, c.Enqueue(func(context.Context) error { return errors.New("nope") }))
	require.NoError(t, c.Enqueue(func(context.Context) error { panic("boom") }))
	require.NoError(t, c.Enqueue(func(context.Context) error {
		ran.Add(1)
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
	assert.Equal(t, int32(1), ran.Load())
}

func TestCoalescer_BatchesRunConcurrently(t *testing.T) {
	p := Policy{BatchSize: 3, MaxBatchSize: 3, MaxWait: time.Second}
	c := New(context.Background(), p)
	defer c.Close()

	var wg sync.WaitGroup
	wg.Add(3)
	allStarted := make(chan struct{})
	go func() {
		wg.Wait()
		close(allStarted)
	}()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Enqueue(func(context.Context) error {
			wg.Done()
			<-allStarted
			return nil
		}))
	}

	select {
	case <-allStarted:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("tasks of one batch did not start together")
	}
}

func TestCoalescer_WaitIdleAndClose(t *testing.T) {
	c := New(context.Background(), DefaultPolicy())
	require.NoError(t, c.Wait(context.Background()), "an idle coalescer returns at once")

	c.Close()
	assert.ErrorIs(t, c.Enqueue(noop), ErrClosed)
}

func TestCoalescer_WaitHonoursContext(t *testing.T) {
	c := New(context.Background(), Policy{BatchSize: 1, MaxBatchSize: 1, MaxWait: time.Second})
	defer c.Close()

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, c.Enqueue(func(context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)
}
