package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeGo_Success(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SafeGo did not execute function")
	}
}

func TestSafeGo_LogsErrorsAndPanics(t *testing.T) {
	log, hook := test.NewNullLogger()
	SetLogger(log)
	defer SetLogger(logrus.StandardLogger())

	SafeGo(context.Background(), time.Second, "failing task", func(ctx context.Context) error {
		return errors.New("boom")
	})
	SafeGo(context.Background(), time.Second, "panicking task", func(ctx context.Context) error {
		panic("oops")
	})

	assert.Eventually(t, func() bool { return len(hook.AllEntries()) == 2 }, time.Second, 10*time.Millisecond)

	levels := map[logrus.Level]bool{}
	for _, e := range hook.AllEntries() {
		levels[e.Level] = true
	}
	assert.True(t, levels[logrus.WarnLevel])
	assert.True(t, levels[logrus.ErrorLevel])
}

func TestSafeGo_Timeout(t *testing.T) {
	result := make(chan error, 1)

	SafeGo(context.Background(), 50*time.Millisecond, "slow task", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			result <- nil
		case <-ctx.Done():
			result <- ctx.Err()
		}
		return nil
	})

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("task never finished")
	}
}

func TestSafeGo_DetachedFromCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := make(chan error, 1)
	SafeGo(context.WithoutCancel(ctx), time.Second, "detached", func(ctx context.Context) error {
		result <- ctx.Err()
		return nil
	})

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestWorkerPool(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 3, "test pool", time.Second)

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			count.Add(1)
			if i%5 == 0 {
				return errors.New("task failed")
			}
			return nil
		}))
	}

	require.NoError(t, pool.Shutdown(2*time.Second))
	assert.Equal(t, int32(10), count.Load())
	assert.Len(t, pool.Errors(), 2)

	assert.Error(t, pool.Submit(func(ctx context.Context) error { return nil }))
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	log, _ := test.NewNullLogger()
	SetLogger(log)
	defer SetLogger(logrus.StandardLogger())

	pool := NewWorkerPool(context.Background(), 1, "panicky", time.Second)
	require.NoError(t, pool.Submit(func(ctx context.Context) error { panic("bad") }))
	require.NoError(t, pool.Submit(func(ctx context.Context) error { return nil }))
	require.NoError(t, pool.Shutdown(time.Second))

	errs := pool.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "panic")
}

func TestBatch(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	var sum atomic.Int64

	errs := Batch(context.Background(), items, 3, "sum", time.Second, func(ctx context.Context, n int) error {
		sum.Add(int64(n))
		if n == 4 {
			return errors.New("four")
		}
		return nil
	})

	assert.Equal(t, int64(21), sum.Load())
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "four")
}
