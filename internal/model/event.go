package model

import (
	"strings"
	"time"
)

// EventType represents the kind of an internal pipeline event.
type EventType string

// Versioned event types carried on the ingestion stream.
const (
	// V1InboundMessage: a new inbound chat message parsed from the provider webhook.
	V1InboundMessage EventType = "v1.inbound.message"
	// V1InboundStatus: a delivery-status callback for a previously sent chat message.
	V1InboundStatus EventType = "v1.inbound.status"
)

// MapToBaseEventType maps a NATS subject (potentially carrying extra trailing
// identifiers) back to a known base EventType constant. It returns the mapped
// EventType and true, or an empty EventType and false if no mapping is found.
func MapToBaseEventType(input string) (EventType, bool) {
	switch EventType(input) {
	case V1InboundMessage, V1InboundStatus:
		return EventType(input), true
	}

	// Try stripping the last subject token (e.g. "v1.inbound.message.<org>").
	lastDotIndex := strings.LastIndex(input, ".")
	if lastDotIndex <= 0 {
		return "", false
	}

	switch base := EventType(input[:lastDotIndex]); base {
	case V1InboundMessage, V1InboundStatus:
		return base, true
	default:
		return "", false
	}
}

// GetVersion extracts the version prefix from an event type ("v1"), or an
// empty string if there is none.
func (e EventType) GetVersion() string {
	parts := strings.SplitN(string(e), ".", 2)
	if len(parts) < 2 {
		return ""
	}
	if len(parts[0]) >= 2 && parts[0][0] == 'v' {
		return parts[0]
	}
	return ""
}

// GetBaseType returns the event type without the version prefix.
// For example: "v1.inbound.message" -> "inbound.message".
func (e EventType) GetBaseType() EventType {
	version := e.GetVersion()
	if version == "" {
		return e
	}
	return EventType(strings.TrimPrefix(string(e), version+"."))
}

// MessageMetadata describes a consumed stream message.
type MessageMetadata struct {
	ConsumerSequence uint64
	StreamSequence   uint64
	NumDelivered     uint64
	NumPending       uint64
	Timestamp        time.Time
	Stream           string
	Consumer         string
	MessageID        string
	MessageSubject   string
	RequestID        string
}

// ToLastMetadata converts MessageMetadata to LastMetadata.
func (e MessageMetadata) ToLastMetadata() *LastMetadata {
	return &LastMetadata{
		ConsumerSequence: int64(e.ConsumerSequence),
		StreamSequence:   int64(e.StreamSequence),
		Stream:           e.Stream,
		Consumer:         e.Consumer,
		MessageID:        e.MessageID,
		MessageSubject:   e.MessageSubject,
		RequestID:        e.RequestID,
	}
}

// LastMetadata is the provenance blob persisted alongside rows the pipeline
// writes, recording which stream message produced them.
type LastMetadata struct {
	ConsumerSequence int64  `json:"consumer_sequence"`
	StreamSequence   int64  `json:"stream_sequence"`
	Stream           string `json:"stream"`
	Consumer         string `json:"consumer"`
	MessageID        string `json:"message_id"`
	MessageSubject   string `json:"message_subject"`
	RequestID        string `json:"request_id,omitempty"`
}
