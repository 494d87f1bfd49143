package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/securebank/internal/events"
	"github.com/baharkarakas/securebank/internal/logger"
	"github.com/baharkarakas/securebank/internal/models"
)

type memStore struct {
	docs map[string]Notification
	err  error
}

func (s *memStore) Insert(_ context.Context, n Notification) error {
	if s.err != nil {
		return s.err
	}
	if s.docs == nil {
		s.docs = map[string]Notification{}
	}
	if _, ok := s.docs[n.ID]; !ok {
		s.docs[n.ID] = n
	}
	return nil
}

type memDLQ struct {
	sent []Record
	err  error
}

func (q *memDLQ) Send(_ context.Context, records []Record) error {
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, records...)
	return nil
}

func eventRecord(t *testing.T, topic, key string, payload any) Record {
	t.Helper()
	b, err := json.Marshal(events.NewEvent(topic, key, payload))
	require.NoError(t, err)
	return Record{Topic: topic, Key: key, Value: b}
}

func TestFromRecord(t *testing.T) {
	rec := eventRecord(t, models.TopicTransferComplete, "acc-1", map[string]any{"toAccountId": "acc-2"})
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	n, err := FromRecord(rec, now)
	require.NoError(t, err)
	assert.Equal(t, KindTransactionAlert, n.Kind)
	assert.Equal(t, "acc-1", n.Key)
	assert.Equal(t, "PENDING", n.Status)
	assert.Equal(t, "acc-2", n.Payload["toAccountId"])
	assert.Equal(t, now, n.CreatedAt)

	_, err = FromRecord(Record{Topic: "x", Value: []byte("{")}, now)
	assert.Error(t, err)

	_, err = FromRecord(eventRecord(t, "card.blocked", "k", nil), now)
	assert.Error(t, err)
}

func TestProcessRecords(t *testing.T) {
	store := &memStore{}
	dlq := &memDLQ{}
	p := NewProcessor(store, dlq, logger.Discard())

	good := eventRecord(t, models.TopicAccountCreated, "acc-1", nil)
	bad := Record{Topic: models.TopicAccountCreated, Key: "acc-2", Value: []byte("not json")}

	require.NoError(t, p.ProcessRecords(context.Background(), []Record{good, bad, good}))
	assert.Len(t, store.docs, 1, "redelivered event stored once")
	require.Len(t, dlq.sent, 1)
	assert.Equal(t, "acc-2", dlq.sent[0].Key)
}

func TestProcessRecordsStoreDown(t *testing.T) {
	store := &memStore{err: errors.New("mongo down")}
	dlq := &memDLQ{}
	p := NewProcessor(store, dlq, logger.Discard())

	recs := []Record{eventRecord(t, models.TopicAccountFrozen, "a", nil), eventRecord(t, models.TopicBalanceUpdated, "b", nil)}
	require.NoError(t, p.ProcessRecords(context.Background(), recs))
	assert.Len(t, dlq.sent, 2)

	dlq.err = errors.New("redis down")
	assert.Error(t, p.ProcessRecords(context.Background(), recs))
}

func TestTopicsCoverDomainEvents(t *testing.T) {
	assert.ElementsMatch(t, []string{
		models.TopicAccountCreated,
		models.TopicAccountFrozen,
		models.TopicBalanceUpdated,
		models.TopicTransferComplete,
	}, Topics())
}
