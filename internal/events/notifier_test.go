package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/securebank/internal/logger"
	"github.com/baharkarakas/securebank/internal/models"
	"github.com/baharkarakas/securebank/internal/worker"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
	err    error
	done   chan struct{}
}

func (p *recordingPublisher) Publish(_ context.Context, e models.Event) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	if p.done != nil {
		p.done <- struct{}{}
	}
	return p.err
}

type fullPool struct{}

func (fullPool) SubmitWithin(func(), time.Duration) bool { return false }

func TestNotifierPublishesAsync(t *testing.T) {
	pub := &recordingPublisher{done: make(chan struct{}, 1)}
	pool := worker.NewPool(1, 4)
	defer pool.Stop()

	n := NewNotifier(pub, pool, logger.Discard(), time.Second)
	n.Notify(models.TopicTransferComplete, "acc-1", map[string]string{"transactionId": "t-1"})

	select {
	case <-pub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.events, 1)
	e := pub.events[0]
	assert.Equal(t, models.TopicTransferComplete, e.Type)
	assert.Equal(t, "acc-1", e.Key)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.OccurredAt.IsZero())
}

func TestNotifierSwallowsPublishErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down"), done: make(chan struct{}, 1)}
	pool := worker.NewPool(1, 4)
	defer pool.Stop()

	n := NewNotifier(pub, pool, logger.Discard(), time.Second)
	assert.NotPanics(t, func() { n.Notify(models.TopicAccountFrozen, "acc-1", nil) })
	<-pub.done
}

func TestNotifierDropsWhenQueueFull(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNotifier(pub, fullPool{}, logger.Discard(), time.Second)

	n.Notify(models.TopicAccountCreated, "acc-1", nil)
	assert.Empty(t, pub.events)
}

func TestNotifierWaitsBrieflyForQueueRoom(t *testing.T) {
	pub := &recordingPublisher{done: make(chan struct{}, 4)}
	pool := worker.NewPool(1, 1)
	defer pool.Stop()

	block := make(chan struct{})
	started := make(chan struct{})
	require.True(t, pool.Submit(func() {
		close(started)
		<-block
	}))
	<-started
	require.True(t, pool.TrySubmit(func() {}))

	n := NewNotifier(pub, pool, logger.Discard(), time.Second)
	n.wait = 5 * time.Second
	time.AfterFunc(20*time.Millisecond, func() { close(block) })
	n.Notify(models.TopicAccountCreated, "acc-1", nil)

	select {
	case <-pub.done:
	case <-time.After(5 * time.Second):
		t.Fatal("event queued after the wait was dropped")
	}
}

func TestLogPublisher(t *testing.T) {
	p := LogPublisher{Log: logger.Discard()}
	assert.NoError(t, p.Publish(context.Background(), NewEvent("x", "k", nil)))
}
