package model

import (
	"encoding/json"
	"time"
)

// --- Internal stream payloads --- //

// InboundMessagePayload is published to the ingestion stream for every new
// inbound chat message extracted from the provider webhook envelope.
type InboundMessagePayload struct {
	ProviderMessageID string `json:"provider_message_id" validate:"required"`
	FromPhone         string `json:"from_phone" validate:"required"`
	DisplayName       string `json:"display_name,omitempty" validate:"omitempty"`
	Text              string `json:"text,omitempty" validate:"omitempty"`
	MessageType       string `json:"message_type,omitempty" validate:"omitempty"`
	Timestamp         int64  `json:"timestamp,omitempty" validate:"omitempty,gte=0"`
}

// InboundStatusPayload is published for every delivery-status callback item.
type InboundStatusPayload struct {
	ProviderMessageID string `json:"provider_message_id" validate:"required"`
	Status            string `json:"status" validate:"required,oneof=sent delivered read failed"`
	RecipientPhone    string `json:"recipient_phone,omitempty" validate:"omitempty"`
	Timestamp         int64  `json:"timestamp,omitempty" validate:"omitempty,gte=0"`
}

// --- Chat provider webhook envelope (inbound HTTP shape) --- //

// WebhookEnvelope is the nested event envelope the chat provider posts.
// The pipeline iterates entry[].changes[] where field == "messages".
type WebhookEnvelope struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string                 `json:"messaging_product,omitempty"`
	Metadata         WebhookMetadata        `json:"metadata,omitempty"`
	Contacts         []WebhookContact       `json:"contacts,omitempty"`
	Messages         []WebhookInboundItem   `json:"messages,omitempty"`
	Statuses         []WebhookStatusItem    `json:"statuses,omitempty"`
	Errors           []map[string]interface{} `json:"errors,omitempty"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number,omitempty"`
	PhoneNumberID      string `json:"phone_number_id,omitempty"`
}

type WebhookContact struct {
	WaID    string `json:"wa_id,omitempty"`
	Profile struct {
		Name string `json:"name,omitempty"`
	} `json:"profile,omitempty"`
}

type WebhookInboundItem struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp,omitempty"` // unix seconds, as a string
	Type      string `json:"type,omitempty"`
	Text      struct {
		Body string `json:"body,omitempty"`
	} `json:"text,omitempty"`
}

type WebhookStatusItem struct {
	ID          string `json:"id"` // provider message id of the outbound message
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
}

// --- Email provider delivery-event envelope --- //

// EmailEventEnvelope is posted by the email provider for delivery lifecycle
// events (delivered/opened/clicked/bounced/complained) and inbound mail
// (received).
type EmailEventEnvelope struct {
	Type      string         `json:"type"`
	CreatedAt string         `json:"created_at,omitempty"`
	Data      EmailEventData `json:"data"`
}

type EmailEventData struct {
	EmailID string   `json:"email_id"`
	From    string   `json:"from,omitempty"`
	To      []string `json:"to,omitempty"`
	Subject string   `json:"subject,omitempty"`
	Text    string   `json:"text,omitempty"` // body of inbound mail on email.received
}

// DLQPayload is the envelope published to the dead letter stream when an
// event exhausts its delivery attempts or hits a fatal error.
type DLQPayload struct {
	SourceSubject   string          `json:"source_subject"`          // The original subject the message was published to
	OriginalPayload json.RawMessage `json:"original_payload"`        // The raw JSON payload of the original message
	Error           string          `json:"error"`                   // The full error message encountered during processing
	ErrorType       string          `json:"error_type"`              // Type of error ('fatal', 'retryable', 'unknown')
	RetryCount      uint64          `json:"retry_count"`             // Delivery attempts so far (NumDelivered from NATS metadata)
	MaxRetry        int             `json:"max_retry"`               // Configured maximum delivery attempts for the consumer
	NextRetryAt     *time.Time      `json:"next_retry_at,omitempty"` // Next scheduled retry attempt (set by the DLQ worker)
	Timestamp       time.Time       `json:"ts"`                      // When the message was sent to the DLQ
}

// --- Campaign dispatch request (HTTP shape) --- //

// Send modes accepted by the dispatch endpoint.
const (
	SendModeNow       = "now"
	SendModeScheduled = "scheduled"
)

// DispatchRequest asks the dispatcher to create and send one campaign per
// listed segment, in order.
type DispatchRequest struct {
	Name           string   `json:"name" validate:"required"`
	Subject        string   `json:"subject" validate:"required"`
	Content        string   `json:"content" validate:"required"`
	SegmentIDs     []string `json:"segment_ids" validate:"required,min=1"`
	OrganizationID string   `json:"organization_id,omitempty" validate:"omitempty"` // must match the configured organization when present
	SendMode       string   `json:"send_mode" validate:"required,oneof=now scheduled"`
	ScheduledAt    string   `json:"scheduled_at,omitempty" validate:"omitempty"` // RFC3339, required for scheduled mode
}

// DispatchResult reports the per-segment outcome of one dispatch request.
// Failed holds the segment ids that did not get a successful send; their
// failures never block the remaining segments.
type DispatchResult struct {
	Succeeded int      `json:"succeeded"`
	Failed    []string `json:"failed"`
}
