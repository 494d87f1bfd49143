package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Store interface {
	Insert(ctx context.Context, n Notification) error
}

type DeadLetter interface {
	Send(ctx context.Context, records []Record) error
}

// Processor stores a notification per record. Records that cannot be
// decoded or stored go to the dead-letter queue.
type Processor struct {
	store Store
	dlq   DeadLetter
	log   *slog.Logger
	now   func() time.Time
}

func NewProcessor(store Store, dlq DeadLetter, log *slog.Logger) *Processor {
	return &Processor{store: store, dlq: dlq, log: log, now: time.Now}
}

// ProcessRecords returns an error only when failed records could not be
// parked. The caller then leaves the batch uncommitted.
func (p *Processor) ProcessRecords(ctx context.Context, records []Record) error {
	var failed []Record
	for _, rec := range records {
		n, err := FromRecord(rec, p.now())
		if err == nil {
			err = p.store.Insert(ctx, n)
		}
		if err != nil {
			p.log.Warn("notification not stored", "topic", rec.Topic, "key", rec.Key, "err", err)
			failed = append(failed, rec)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	if err := p.dlq.Send(ctx, failed); err != nil {
		return fmt.Errorf("dead-letter %d records: %w", len(failed), err)
	}
	return nil
}
