// Package notify publishes realtime events over Redis pub/sub. Admin
// dashboards subscribe to the shared admin channel, customer sessions to
// their per-user channel. Delivery is best effort: a publish failure is
// logged and never fails the triggering operation.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const adminChannel = "notify:admin"

func userChannel(userID string) string {
	return fmt.Sprintf("notify:user:%s", userID)
}

// EventType identifies what happened
type EventType string

const (
	EventBookingCreated        EventType = "booking_created"
	EventBookingStatusChanged  EventType = "booking_status_changed"
	EventBookingPaid           EventType = "booking_paid"
	EventCancellationRequested EventType = "cancellation_requested"
	EventCancellationProcessed EventType = "cancellation_processed"
)

// Event is the payload published to subscribers
type Event struct {
	Type       EventType              `json:"type"`
	BookingID  string                 `json:"booking_id,omitempty"`
	UserID     string                 `json:"user_id,omitempty"`
	Message    string                 `json:"message"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Bus fans events out to the admin channel or a single user's channel
type Bus interface {
	NotifyAdmin(ctx context.Context, event Event)
	NotifyUser(ctx context.Context, userID string, event Event)
}

// RedisBus implements Bus over Redis pub/sub
type RedisBus struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewRedisBus creates a Redis-backed notification bus
func NewRedisBus(client *redis.Client, logger *logrus.Logger) *RedisBus {
	return &RedisBus{client: client, logger: logger}
}

// NotifyAdmin publishes to the shared admin channel
func (b *RedisBus) NotifyAdmin(ctx context.Context, event Event) {
	b.publish(ctx, adminChannel, event)
}

// NotifyUser publishes to one user's channel
func (b *RedisBus) NotifyUser(ctx context.Context, userID string, event Event) {
	if userID == "" {
		return
	}
	event.UserID = userID
	b.publish(ctx, userChannel(userID), event)
}

func (b *RedisBus) publish(ctx context.Context, channel string, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.WithError(err).WithField("channel", channel).Warn("Failed to marshal notification event")
		return
	}

	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		b.logger.WithError(err).WithFields(logrus.Fields{
			"channel": channel,
			"type":    event.Type,
		}).Warn("Failed to publish notification event")
		return
	}

	b.logger.WithFields(logrus.Fields{
		"channel": channel,
		"type":    event.Type,
	}).Debug("Notification event published")
}

// NopBus discards all events. Used when Redis is not configured.
type NopBus struct{}

func (NopBus) NotifyAdmin(ctx context.Context, event Event)               {}
func (NopBus) NotifyUser(ctx context.Context, userID string, event Event) {}

// RecorderBus captures events in memory for tests
type RecorderBus struct {
	AdminEvents []Event
	UserEvents  map[string][]Event
}

// NewRecorderBus creates an empty recording bus
func NewRecorderBus() *RecorderBus {
	return &RecorderBus{UserEvents: make(map[string][]Event)}
}

func (b *RecorderBus) NotifyAdmin(ctx context.Context, event Event) {
	b.AdminEvents = append(b.AdminEvents, event)
}

func (b *RecorderBus) NotifyUser(ctx context.Context, userID string, event Event) {
	b.UserEvents[userID] = append(b.UserEvents[userID], event)
}
