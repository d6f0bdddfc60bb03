package player

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameQueueBoundedPushAndPop(t *testing.T) {
	q := newFrameQueue(2)

	require.True(t, q.Push(&Frame{PTSUs: 1}))
	require.True(t, q.Push(&Frame{PTSUs: 2}))
	assert.False(t, q.Push(&Frame{PTSUs: 3}), "push beyond capacity must fail, not block")
	assert.Equal(t, 2, q.Len())

	f := q.Pop()
	require.NotNil(t, f)
	assert.Equal(t, int64(1), f.PTSUs)
	assert.Equal(t, 1, q.Len())
}

func TestFrameQueuePopOnEmptyReturnsNil(t *testing.T) {
	q := newFrameQueue(4)
	assert.Nil(t, q.Pop())
}

func TestFrameQueuePeekReturnsOldestWithoutRemoving(t *testing.T) {
	q := newFrameQueue(4)
	assert.Nil(t, q.Peek())

	require.True(t, q.Push(&Frame{PTSUs: 1}))
	require.True(t, q.Push(&Frame{PTSUs: 2}))

	assert.Equal(t, int64(1), q.Peek().PTSUs)
	assert.Equal(t, int64(1), q.Peek().PTSUs)
	assert.Equal(t, 2, q.Len())
}

func TestFrameQueueCapacityReturnsConfiguredBound(t *testing.T) {
	q := newFrameQueue(7)
	assert.Equal(t, 7, q.Capacity())
}

func TestFrameQueueClearIsAlwaysSafeAndWakesProducer(t *testing.T) {
	q := newFrameQueue(1)
	require.True(t, q.Push(&Frame{PTSUs: 1}))

	var running atomic.Bool
	running.Store(true)

	unblocked := make(chan struct{})
	go func() {
		q.WaitForSpace(running.Load)
		close(unblocked)
	}()

	time.Sleep(20 * time.Millisecond)
	q.Clear()

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("WaitForSpace did not wake up after Clear")
	}
	assert.Equal(t, 0, q.Len())
}

func TestFrameQueueWaitForSpaceReturnsWhenNotRunning(t *testing.T) {
	q := newFrameQueue(1)
	require.True(t, q.Push(&Frame{PTSUs: 1}))

	var running atomic.Bool
	running.Store(true)

	done := make(chan struct{})
	go func() {
		q.WaitForSpace(running.Load)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	running.Store(false)
	q.Notify()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForSpace did not return once isRunning became false")
	}
}
