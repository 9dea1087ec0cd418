// Package eventstream defines the outbound event publishing surface: chat
// turn completions and observed notifications can be forwarded to an event
// backend (Kafka) for downstream analytics, or dropped via the nop publisher.
package eventstream

import "context"

// Publisher publishes irobot events to an event stream backend.
type Publisher interface {
	PublishTurn(ctx context.Context, event *TurnCompletedEvent) error
	PublishNotification(ctx context.Context, event *NotificationObservedEvent) error
	Close() error
}
