package player

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRendererQueuePushDropsOldestWhenFull(t *testing.T) {
	q := newRendererQueue(2)

	f1 := &Frame{PTSUs: 1}
	f2 := &Frame{PTSUs: 2}
	f3 := &Frame{PTSUs: 3}

	q.push(f1, 2)
	q.push(f2, 2)
	q.push(f3, 2) // f1 should be dropped (and released) to make room

	got := q.waitPop(func() bool { return true })
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.PTSUs)

	got = q.waitPop(func() bool { return true })
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.PTSUs)
}

func TestRendererQueueWaitPopReturnsNilWhenNotRunning(t *testing.T) {
	q := newRendererQueue(2)
	got := q.waitPop(func() bool { return false })
	assert.Nil(t, got)
}

func TestRendererQueueWaitPopBlocksUntilPush(t *testing.T) {
	q := newRendererQueue(2)
	running := true

	var wg sync.WaitGroup
	wg.Add(1)
	var got *Frame
	go func() {
		defer wg.Done()
		got = q.waitPop(func() bool { return running })
	}()

	q.push(&Frame{PTSUs: 42}, 2)
	wg.Wait()

	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.PTSUs)
}

func TestRendererQueueClearReleasesAllQueuedFrames(t *testing.T) {
	q := newRendererQueue(4)
	q.push(&Frame{PTSUs: 1}, 4)
	q.push(&Frame{PTSUs: 2}, 4)

	q.clear()

	got := q.waitPop(func() bool { return false })
	assert.Nil(t, got)
}
