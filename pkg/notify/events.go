package notify

import (
	"encoding/json"
	"time"

	"github.com/irobothq/irobot/pkg/api"
)

// Server event names carried on the push channels.
const (
	EventConnected       = "connected"
	EventHeartbeat       = "heartbeat"
	EventNotification    = "notification"
	EventFeedback        = "feedback"
	EventDocumentStatus  = "document_status"
	EventDashboardUpdate = "dashboard_update"
)

// NotificationPayload is the body of a "notification" event.
type NotificationPayload struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

// FeedbackPayload is the body of a "feedback" event, emitted when a user
// rates an answer.
type FeedbackPayload struct {
	MessageID string     `json:"message_id"`
	Rating    api.Rating `json:"rating"`
	Comment   string     `json:"comment,omitempty"`
}

// DashboardPayload is the body of a "dashboard_update" event.
type DashboardPayload struct {
	ActiveUsers   int                 `json:"active_users"`
	Conversations int                 `json:"conversations"`
	Feedback      api.FeedbackSummary `json:"feedback"`
}

// DocumentStatusPayload is the body of a "document_status" event.
type DocumentStatusPayload struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Event is one dispatched server event: a tagged union keyed by Name with
// exactly one typed payload set for known names. Raw always carries the
// undecoded data text, which is all an unknown or malformed event has.
// One bad payload from the server degrades, it never errors.
type Event struct {
	// Name is the server event name. Empty means the default message type.
	Name string

	// ReceivedAt is when the event was parsed off the stream.
	ReceivedAt time.Time

	// Raw is the undecoded event data.
	Raw string

	Notification   *NotificationPayload
	Feedback       *FeedbackPayload
	Dashboard      *DashboardPayload
	DocumentStatus *DocumentStatusPayload
}

// decodeEvent builds the tagged union for one event name and data payload.
// Decode failures leave the typed variant nil; Raw is always populated.
func decodeEvent(name, data string, at time.Time) Event {
	ev := Event{Name: name, ReceivedAt: at, Raw: data}

	switch name {
	case EventNotification:
		var p NotificationPayload
		if err := json.Unmarshal([]byte(data), &p); err == nil {
			ev.Notification = &p
		}
	case EventFeedback:
		var p FeedbackPayload
		if err := json.Unmarshal([]byte(data), &p); err == nil {
			if rating, rerr := api.ParseRating(string(p.Rating)); rerr == nil {
				p.Rating = rating
			}
			ev.Feedback = &p
		}
	case EventDashboardUpdate:
		var p DashboardPayload
		if err := json.Unmarshal([]byte(data), &p); err == nil {
			ev.Dashboard = &p
		}
	case EventDocumentStatus, "status":
		var p DocumentStatusPayload
		if err := json.Unmarshal([]byte(data), &p); err == nil {
			ev.DocumentStatus = &p
		}
	}

	return ev
}
