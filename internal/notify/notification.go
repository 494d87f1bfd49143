// Package notify turns domain events from the message bus into stored
// customer notifications.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/baharkarakas/securebank/internal/models"
)

// Record is one message read from the bus.
type Record struct {
	Topic string `json:"topic"`
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

type Kind string

const (
	KindAccountCreated   Kind = "ACCOUNT_CREATED"
	KindAccountFrozen    Kind = "ACCOUNT_FROZEN"
	KindTransactionAlert Kind = "TRANSACTION_ALERT"
)

// Notification is the document stored per event. Its id is the event id,
// so redelivered events do not create duplicates.
type Notification struct {
	ID        string         `bson:"_id"`
	Kind      Kind           `bson:"kind"`
	Topic     string         `bson:"topic"`
	Key       string         `bson:"key"`
	Subject   string         `bson:"subject"`
	Status    string         `bson:"status"`
	Payload   map[string]any `bson:"payload"`
	EventAt   time.Time      `bson:"event_at"`
	CreatedAt time.Time      `bson:"created_at"`
}

var subjects = map[string]struct {
	kind    Kind
	subject string
}{
	models.TopicAccountCreated:   {KindAccountCreated, "Your new account is ready"},
	models.TopicAccountFrozen:    {KindAccountFrozen, "Your account has been frozen"},
	models.TopicBalanceUpdated:   {KindTransactionAlert, "Your balance has changed"},
	models.TopicTransferComplete: {KindTransactionAlert, "Transfer completed"},
}

// FromRecord decodes an event record into a notification.
func FromRecord(rec Record, now time.Time) (Notification, error) {
	var e models.Event
	if err := json.Unmarshal(rec.Value, &e); err != nil {
		return Notification{}, fmt.Errorf("decode event: %w", err)
	}
	if e.ID == "" {
		return Notification{}, fmt.Errorf("event on %s has no id", rec.Topic)
	}
	s, ok := subjects[e.Type]
	if !ok {
		return Notification{}, fmt.Errorf("unknown event type %q", e.Type)
	}
	payload, _ := e.Payload.(map[string]any)
	return Notification{
		ID:        e.ID,
		Kind:      s.kind,
		Topic:     e.Type,
		Key:       e.Key,
		Subject:   s.subject,
		Status:    "PENDING",
		Payload:   payload,
		EventAt:   e.OccurredAt,
		CreatedAt: now.UTC(),
	}, nil
}

// Topics lists every topic the consumer subscribes to.
func Topics() []string {
	out := make([]string, 0, len(subjects))
	for t := range subjects {
		out = append(out, t)
	}
	return out
}
