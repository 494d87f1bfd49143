package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/baharkarakas/securebank/internal/metrics"
)

// DefaultEnqueueWait bounds how long Notify waits for room in a full queue.
const DefaultEnqueueWait = 100 * time.Millisecond

type submitter interface {
	SubmitWithin(f func(), d time.Duration) bool
}

// Notifier hands events to a worker pool and never reports failure to the
// caller. Publish errors and queue overflow are logged and counted.
type Notifier struct {
	pub     Publisher
	pool    submitter
	log     *slog.Logger
	timeout time.Duration
	wait    time.Duration
}

func NewNotifier(pub Publisher, pool submitter, log *slog.Logger, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Notifier{pub: pub, pool: pool, log: log, timeout: timeout, wait: DefaultEnqueueWait}
}

func (n *Notifier) Notify(topic, key string, payload any) {
	e := NewEvent(topic, key, payload)
	ok := n.pool.SubmitWithin(func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.pub.Publish(ctx, e); err != nil {
			metrics.NotificationsFailed.WithLabelValues(topic).Inc()
			n.log.Warn("publish event failed", "topic", topic, "event_id", e.ID, "err", err)
		}
	}, n.wait)
	if !ok {
		metrics.NotificationsDropped.Inc()
		n.log.Warn("event dropped, worker queue full", "topic", topic, "event_id", e.ID)
	}
}

// Discard is a notifier sink for components that do not publish.
type Discard struct{}

func (Discard) Notify(string, string, any) {}
