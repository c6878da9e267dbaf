package model

import (
	"time"
)

// Direction of a message relative to the platform.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ContentKind distinguishes plain text from media messages.
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentMedia ContentKind = "media"
)

// DeliveryState tracks provider delivery receipts for outbound messages.
type DeliveryState string

const (
	DeliveryQueued    DeliveryState = "queued"
	DeliverySent      DeliveryState = "sent"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryRead      DeliveryState = "read"
	DeliveryFailed    DeliveryState = "failed"
)

// Message is one directional unit of a conversation. Rows are immutable once
// written except for the delivery state, which follows provider receipts.
// (ConversationID, ProviderMessageID) is the idempotency key that rejects
// duplicate webhook deliveries.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	TenantID       string `json:"tenant_id"`

	// ProviderMessageID is the external gateway's message id. Empty for
	// platform-originated outbound messages until the gateway acks.
	ProviderMessageID string `json:"provider_message_id,omitempty"`

	Direction Direction   `json:"direction"`
	Body      string      `json:"body"`
	Kind      ContentKind `json:"kind"`

	MediaURL         *string `json:"media_url,omitempty"`
	MediaContentType *string `json:"media_content_type,omitempty"`

	Delivery  DeliveryState `json:"delivery"`
	CreatedAt time.Time     `json:"created_at"`
}

// AsTurn converts a stored message into transcript form.
func (m *Message) AsTurn() Turn {
	role := RoleUser
	if m.Direction == DirectionOutbound {
		role = RoleAssistant
	}
	return Turn{Role: role, Content: m.Body}
}
