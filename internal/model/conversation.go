// Package model defines data structures for the conversation platform.
package model

import (
	"time"
)

// Channel identifies the surface a conversation arrived through.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelWidget   Channel = "widget"
)

// Mode controls how far the assistant goes on its own. Passive tenants only
// greet and hand off to an operator; active tenants negotiate a full sale.
type Mode string

const (
	ModePassive Mode = "passive"
	ModeActive  Mode = "active"
)

// ConversationState is the lifecycle state of a conversation.
type ConversationState string

const (
	ConversationActive ConversationState = "active"
	ConversationClosed ConversationState = "closed"
)

// Conversation is one ongoing dialogue between a tenant and an end-user
// channel address. The mode may diverge from the tenant default, e.g. after a
// request-human intent flips this conversation to passive.
type Conversation struct {
	ID             string            `json:"id"`
	TenantID       string            `json:"tenant_id"`
	ChannelAddress string            `json:"channel_address"`
	Channel        Channel           `json:"channel"`
	State          ConversationState `json:"state"`
	Mode           Mode              `json:"mode"`

	// Denormalized pointer to the latest DetectedIntent row.
	CurrentIntent Intent  `json:"current_intent,omitempty"`
	IntentScore   float64 `json:"intent_score,omitempty"`

	LeadID *string `json:"lead_id,omitempty"`

	LastInteractionAt time.Time `json:"last_interaction_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Role represents the author of a turn in a transcript.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one unit of transcript history handed to the classifier, the
// context builder and the scoring engine.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
