package v1

import (
	"encoding/json"
	"time"
)

// EventTimeLayout is the createdAt format on the wire: ISO-8601, UTC, millisecond precision.
const EventTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Header names of the outbound webhook contract.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderEvent     = "X-Webhook-Event"
)

// EventActor identifies who performed the audited mutation.
type EventActor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// WebhookEvent is the JSON body POSTed to subscribed endpoints.
type WebhookEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	CreatedAt string         `json:"createdAt"`
	Actor     EventActor     `json:"actor"`
	Data      map[string]any `json:"data"`
}

func FormatEventTime(t time.Time) string {
	return t.UTC().Format(EventTimeLayout)
}

// Body serializes the event once. Map keys are emitted in sorted order,
// so the same event always yields the same bytes.
func (e *WebhookEvent) Body() ([]byte, error) {
	return json.Marshal(e)
}
