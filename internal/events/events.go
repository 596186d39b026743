// Package events defines the client telemetry payloads and the sinks they are published to.
package events

import (
	"context"
	"log"
	"time"
)

// Event types.
const (
	TypeAuthStateChanged     = "auth.state_changed"
	TypeReservationCreated   = "reservation.created"
	TypeReservationCancelled = "reservation.cancelled"
)

// AuthStateChanged is emitted on every auth flow transition.
type AuthStateChanged struct {
	UserID     string    `json:"user_id,omitempty"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ReservationChanged is emitted when the user books or cancels a class.
type ReservationChanged struct {
	ReservationID string    `json:"reservation_id"`
	ClassID       string    `json:"class_id,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers an event. Key groups related events for ordering.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload interface{}) error
	Close() error
}

// NoopPublisher discards events.
type NoopPublisher struct{}

// Publish performs no action.
func (NoopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }

// Close performs no action.
func (NoopPublisher) Close() error { return nil }

const emitTimeout = 2 * time.Second

// Emit publishes without letting sink failures reach the caller's flow.
func Emit(ctx context.Context, pub Publisher, logger *log.Logger, eventType, key string, payload interface{}) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
	defer cancel()
	if err := pub.Publish(ctx, eventType, key, payload); err != nil && logger != nil {
		logger.Printf("publish %s failed: %v", eventType, err)
	}
}
