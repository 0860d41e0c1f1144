// Package events publishes cart activity for downstream consumers such as analytics and
// abandoned-cart mailers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const DefaultTopic = "cart-events"

// Event types
const (
	TypeItemAdded     = "cart.item_added"
	TypeItemUpdated   = "cart.item_updated"
	TypeItemDecreased = "cart.item_decreased"
	TypeItemRemoved   = "cart.item_removed"
	TypeCartCleared   = "cart.cleared"
)

// Event is one cart change
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	ProductID  string    `json:"product_id,omitempty"`
	Count      int64     `json:"count,omitempty"` // lines removed by a clear
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType, userID, productID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		ProductID:  productID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher discards events
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
