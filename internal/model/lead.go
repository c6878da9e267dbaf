package model

import (
	"time"
)

// MaxLeadScore is the top of the web-widget scoring scale.
const MaxLeadScore = 170

// ContactInfo holds contact fields extracted best-effort from a transcript.
// Fields not found are left empty, never guessed.
type ContactInfo struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Service string `json:"service,omitempty"`
}

// Lead is a qualification record independent of a specific channel, created
// when a conversation's signals cross a threshold. At most one lead exists
// per (tenant, channel address).
type Lead struct {
	ID             string  `json:"id"`
	TenantID       string  `json:"tenant_id"`
	ChannelAddress string  `json:"channel_address"`
	Source         Channel `json:"source"`

	Score      int `json:"score"`
	Confidence int `json:"confidence"`

	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Service string `json:"service,omitempty"`

	Intent    Intent    `json:"intent,omitempty"`
	Sentiment Sentiment `json:"sentiment,omitempty"`

	Transcript string `json:"transcript,omitempty"`
	Notified   bool   `json:"notified"`

	CreatedAt time.Time `json:"created_at"`
}
