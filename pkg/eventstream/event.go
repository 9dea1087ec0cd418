package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after a chat generation finishes.
	EventTypeTurnCompleted = "irobot.turn.completed"

	// EventTypeNotificationObserved is emitted when a server push
	// notification is observed by a running watcher.
	EventTypeNotificationObserved = "irobot.notification.observed"
)

// TurnCompletedEvent is a transport-neutral payload for a completed chat turn.
type TurnCompletedEvent struct {
	SchemaVersion  int           `json:"schema_version"`
	EventType      string        `json:"event_type"`
	EventID        string        `json:"event_id"`
	EmittedAt      time.Time     `json:"emitted_at"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Message        string        `json:"message"`
	Content        string        `json:"content"`
	SourceTitles   []string      `json:"source_titles,omitempty"`
	Duration       time.Duration `json:"duration_ms"`
	Partial        bool          `json:"partial,omitempty"`
}

// NotificationObservedEvent is a transport-neutral payload for a server
// notification seen on the push channel.
type NotificationObservedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Name          string    `json:"name"`
	Payload       string    `json:"payload"`
	ReceivedAt    time.Time `json:"received_at"`
}
