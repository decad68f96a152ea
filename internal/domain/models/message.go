package models

import "time"

// InboundMessage is one unit of trade evidence delivered by the chat layer.
// Exactly one of Text or Payload is set depending on InputType.
type InboundMessage struct {
	UserID       string    `json:"user_id"`
	InputType    InputType `json:"input_type"`
	Text         string    `json:"text,omitempty"`
	Payload      []byte    `json:"payload,omitempty"`
	DeclaredMIME string    `json:"declared_mime,omitempty"`
	ExternalID   string    `json:"external_id"`
	ReceivedAt   time.Time `json:"received_at"`
}

// EventType enumerates outbound events emitted toward the messaging layer.
type EventType string

const (
	EventConfirmationRequested EventType = "CONFIRMATION_REQUESTED"
	EventTradeCommitted        EventType = "TRADE_COMMITTED"
	EventTradeRejected         EventType = "TRADE_REJECTED"
	EventExtractionFailed      EventType = "EXTRACTION_FAILED"
	EventQuotaExceeded         EventType = "QUOTA_EXCEEDED"
	EventSessionExpired        EventType = "SESSION_EXPIRED"
)

// Event is the single outbound shape the core hands to the messaging
// collaborator. Every pipeline outcome, success or failure, maps to exactly
// one event.
type Event struct {
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id,omitempty"`
	TradeID    string    `json:"trade_id,omitempty"`
	ExternalID string    `json:"external_id,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
