package models

import "time"

const (
	TopicAccountCreated   = "account.created"
	TopicAccountFrozen    = "account.frozen"
	TopicBalanceUpdated   = "account.balance.updated"
	TopicTransferComplete = "transfer.completed"
)

// Event is the envelope published to the message bus for every domain event.
type Event struct {
	ID         string    `json:"id" bson:"_id"`
	Type       string    `json:"type" bson:"type"`
	Key        string    `json:"key" bson:"key"`
	OccurredAt time.Time `json:"occurredAt" bson:"occurred_at"`
	Payload    any       `json:"payload" bson:"payload"`
}
