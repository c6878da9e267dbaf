// Package store provides durable state for conversations, messages, detected
// intents, cart drafts and leads.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/palenque-digital/conversational-platform/internal/model"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateMessage is returned when the (conversation, provider
	// message id) idempotency key already exists. Duplicate webhook
	// deliveries are detected here, atomically at insert time.
	ErrDuplicateMessage = errors.New("store: duplicate provider message")

	// ErrDuplicateLead is returned when a lead already exists for the
	// (tenant, channel address) pair.
	ErrDuplicateLead = errors.New("store: duplicate lead")
)

// Catalog resolves product references against a tenant's active catalog.
type Catalog interface {
	// FindProduct matches by name (and presentation when given), ignoring
	// case and diacritics. Returns ErrNotFound for unknown references.
	FindProduct(ctx context.Context, tenantID, name, presentation string) (*model.Product, error)
}

// Conversations is the conversation, message and intent surface.
type Conversations interface {
	ActiveConversation(ctx context.Context, tenantID, address string) (*model.Conversation, error)
	// LatestActiveByAddress resolves a tenant from the most recent active
	// conversation for an address, across tenants.
	LatestActiveByAddress(ctx context.Context, address string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	UpdateConversation(ctx context.Context, conv *model.Conversation) error
	ListConversations(ctx context.Context, tenantID string, limit, offset int) ([]model.Conversation, error)

	InsertMessage(ctx context.Context, msg *model.Message) error
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
	UpdateMessageDelivery(ctx context.Context, providerMessageID string, state model.DeliveryState) error

	InsertIntent(ctx context.Context, detected *model.DetectedIntent) error
	SetIntentResponse(ctx context.Context, intentID, responseText string) error
}

// Carts is the cart draft surface. SaveCart upserts by draft id.
type Carts interface {
	ActiveCart(ctx context.Context, conversationID string) (*model.CartDraft, error)
	SaveCart(ctx context.Context, draft *model.CartDraft) error
}

// Leads is the lead surface.
type Leads interface {
	CreateLead(ctx context.Context, lead *model.Lead) error
	LeadByAddress(ctx context.Context, tenantID, address string) (*model.Lead, error)
	// LatestLeadByAddress resolves a tenant from the most recent lead for
	// an address, across tenants.
	LatestLeadByAddress(ctx context.Context, address string) (*model.Lead, error)
	// MarkLeadNotified records that the hot lead notification fired, so
	// operators can tell notified leads from ones still pending.
	MarkLeadNotified(ctx context.Context, leadID string) error
}

// Tenants is the tenant and chatbot configuration surface.
type Tenants interface {
	Tenant(ctx context.Context, id string) (*model.Tenant, error)
	TenantByGatewayNumber(ctx context.Context, number string) (*model.Tenant, error)
	ChatbotConfig(ctx context.Context, tenantID string) (*model.ChatbotConfig, error)
}

// Store is the full durable surface used by the orchestrator.
type Store interface {
	Conversations
	Carts
	Leads
	Tenants
	Catalog
}

var foldDiacritics = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	"ü", "u", "ñ", "n",
)

// foldName lowercases and strips the Spanish diacritics customers drop in
// chat, so an extraction like "espadin" still matches catalog "Espadín".
func foldName(s string) string {
	return foldDiacritics.Replace(strings.ToLower(strings.TrimSpace(s)))
}
