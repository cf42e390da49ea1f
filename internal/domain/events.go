package domain

import (
	"encoding/json"
	"time"
)

const EventTypePurchaseCompleted = "purchase.completed"

// ManifestItem is one entry of the checkout manifest carried through the
// payment processor as session metadata.
type ManifestItem struct {
	ID       string `json:"id"`
	Quantity int64  `json:"quantity"`
}

type OutboxEvent struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type PurchaseCompletedEvent struct {
	EventID     string    `json:"event_id"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	OrderIDs    []string  `json:"order_ids"`
	CompletedAt time.Time `json:"completed_at"`
}
