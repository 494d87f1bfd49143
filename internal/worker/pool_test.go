package worker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedJobs(t *testing.T) {
	p := NewPool(3, 16)

	var n atomic.Int64
	for i := 0; i < 50; i++ {
		require.True(t, p.Submit(func() { n.Add(1) }))
	}
	p.Stop()

	assert.EqualValues(t, 50, n.Load())
}

func TestTrySubmitRejectsWhenQueueFull(t *testing.T) {
	p := NewPool(1, 1)
	defer p.Stop()

	block := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	require.True(t, p.Submit(func() {
		once.Do(func() { close(started) })
		<-block
	}))
	<-started

	// worker is busy, one slot left in the queue
	require.True(t, p.TrySubmit(func() {}))
	assert.False(t, p.TrySubmit(func() {}))
	close(block)
}

func TestSubmitWithinWaitsForRoom(t *testing.T) {
	p := NewPool(1, 1)
	defer p.Stop()

	block := make(chan struct{})
	started := make(chan struct{})
	require.True(t, p.Submit(func() {
		close(started)
		<-block
	}))
	<-started
	require.True(t, p.TrySubmit(func() {}))

	assert.False(t, p.SubmitWithin(func() {}, 10*time.Millisecond), "queue stays full")

	time.AfterFunc(20*time.Millisecond, func() { close(block) })
	assert.True(t, p.SubmitWithin(func() {}, 5*time.Second))
}

func TestSubmitAfterStop(t *testing.T) {
	p := NewPool(1, 1)
	p.Stop()
	p.Stop()

	assert.False(t, p.Submit(func() {}))
	assert.False(t, p.TrySubmit(func() {}))
	assert.False(t, p.SubmitWithin(func() {}, time.Millisecond))
}
