package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const deadLetterList = "notifications:dead-letter"

// DeadLetterQueue parks failed records on a Redis list for inspection and
// replay.
type DeadLetterQueue struct {
	client redis.Cmdable
	log    *slog.Logger
	list   string
}

func NewDeadLetterQueue(client redis.Cmdable, log *slog.Logger) *DeadLetterQueue {
	return &DeadLetterQueue{client: client, log: log, list: deadLetterList}
}

func (q *DeadLetterQueue) Send(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	values := make([]any, 0, len(records))
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			q.log.Error("failed to marshal record", "topic", rec.Topic, "err", err)
			continue
		}
		values = append(values, b)
	}
	if len(values) == 0 {
		return nil
	}
	if err := q.client.RPush(ctx, q.list, values...).Err(); err != nil {
		return err
	}
	q.log.Info("records dead-lettered", "count", len(values))
	return nil
}
