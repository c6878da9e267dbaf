package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/palenque-digital/conversational-platform/internal/model"
)

// Memory is an in-memory Store used for local development and tests. It
// enforces the same uniqueness rules as the Postgres implementation.
type Memory struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	messages      []*model.Message
	messageKeys   map[string]struct{} // conversationID + "\x00" + providerMessageID
	intents       map[string]*model.DetectedIntent
	intentOrder   []string
	carts         map[string]*model.CartDraft
	leads         map[string]*model.Lead
	leadKeys      map[string]string // tenantID + "\x00" + address -> lead id
	tenants       map[string]*model.Tenant
	configs       map[string]*model.ChatbotConfig
	products      []*model.Product
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]*model.Conversation),
		messageKeys:   make(map[string]struct{}),
		intents:       make(map[string]*model.DetectedIntent),
		carts:         make(map[string]*model.CartDraft),
		leads:         make(map[string]*model.Lead),
		leadKeys:      make(map[string]string),
		tenants:       make(map[string]*model.Tenant),
		configs:       make(map[string]*model.ChatbotConfig),
	}
}

var _ Store = (*Memory)(nil)

// SeedTenant registers a tenant with an optional chatbot config and catalog.
func (m *Memory) SeedTenant(t *model.Tenant, cfg *model.ChatbotConfig, products ...*model.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
	if cfg != nil {
		m.configs[t.ID] = cfg
	}
	m.products = append(m.products, products...)
}

func (m *Memory) ActiveConversation(ctx context.Context, tenantID, address string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *model.Conversation
	for _, conv := range m.conversations {
		if conv.TenantID != tenantID || conv.ChannelAddress != address || conv.State != model.ConversationActive {
			continue
		}
		if latest == nil || conv.LastInteractionAt.After(latest.LastInteractionAt) {
			latest = conv
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *Memory) LatestActiveByAddress(ctx context.Context, address string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *model.Conversation
	for _, conv := range m.conversations {
		if conv.ChannelAddress != address || conv.State != model.ConversationActive {
			continue
		}
		if latest == nil || conv.LastInteractionAt.After(latest.LastInteractionAt) {
			latest = conv
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *Memory) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *conv
	m.conversations[conv.ID] = &cp
	return nil
}

func (m *Memory) UpdateConversation(ctx context.Context, conv *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[conv.ID]; !ok {
		return ErrNotFound
	}
	cp := *conv
	cp.UpdatedAt = time.Now().UTC()
	m.conversations[conv.ID] = &cp
	return nil
}

func (m *Memory) ListConversations(ctx context.Context, tenantID string, limit, offset int) ([]model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Conversation
	for _, conv := range m.conversations {
		if conv.TenantID == tenantID {
			out = append(out, *conv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastInteractionAt.After(out[j].LastInteractionAt)
	})
	if offset > len(out) {
		offset = len(out)
	}
	end := offset + limit
	if limit <= 0 || end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func messageKey(conversationID, providerMessageID string) string {
	return conversationID + "\x00" + providerMessageID
}

func (m *Memory) InsertMessage(ctx context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ProviderMessageID != "" {
		key := messageKey(msg.ConversationID, msg.ProviderMessageID)
		if _, dup := m.messageKeys[key]; dup {
			return ErrDuplicateMessage
		}
		m.messageKeys[key] = struct{}{}
	}
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *Memory) RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, *msg)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *Memory) UpdateMessageDelivery(ctx context.Context, providerMessageID string, state model.DeliveryState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ProviderMessageID == providerMessageID {
			msg.Delivery = state
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) InsertIntent(ctx context.Context, detected *model.DetectedIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *detected
	m.intents[detected.ID] = &cp
	m.intentOrder = append(m.intentOrder, detected.ID)
	return nil
}

func (m *Memory) SetIntentResponse(ctx context.Context, intentID, responseText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	detected, ok := m.intents[intentID]
	if !ok {
		return ErrNotFound
	}
	detected.ResponseText = &responseText
	return nil
}

func (m *Memory) ActiveCart(ctx context.Context, conversationID string) (*model.CartDraft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, draft := range m.carts {
		if draft.ConversationID == conversationID && draft.Status == model.CartActive {
			cp := *draft
			cp.Lines = append([]model.CartLine(nil), draft.Lines...)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) SaveCart(ctx context.Context, draft *model.CartDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *draft
	cp.Lines = append([]model.CartLine(nil), draft.Lines...)
	cp.UpdatedAt = time.Now().UTC()
	m.carts[draft.ID] = &cp
	return nil
}

func leadKey(tenantID, address string) string {
	return tenantID + "\x00" + address
}

func (m *Memory) CreateLead(ctx context.Context, lead *model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := leadKey(lead.TenantID, lead.ChannelAddress)
	if _, dup := m.leadKeys[key]; dup {
		return ErrDuplicateLead
	}
	cp := *lead
	m.leads[lead.ID] = &cp
	m.leadKeys[key] = lead.ID
	return nil
}

func (m *Memory) LeadByAddress(ctx context.Context, tenantID, address string) (*model.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.leadKeys[leadKey(tenantID, address)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.leads[id]
	return &cp, nil
}

func (m *Memory) MarkLeadNotified(ctx context.Context, leadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[leadID]
	if !ok {
		return ErrNotFound
	}
	lead.Notified = true
	return nil
}

func (m *Memory) LatestLeadByAddress(ctx context.Context, address string) (*model.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *model.Lead
	for _, lead := range m.leads {
		if lead.ChannelAddress != address {
			continue
		}
		if latest == nil || lead.CreatedAt.After(latest.CreatedAt) {
			latest = lead
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *Memory) Tenant(ctx context.Context, id string) (*model.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) TenantByGatewayNumber(ctx context.Context, number string) (*model.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tenants {
		if t.GatewayNumber == number {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ChatbotConfig(ctx context.Context, tenantID string) (*model.ChatbotConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *cfg
	return &cp, nil
}

func (m *Memory) FindProduct(ctx context.Context, tenantID, name, presentation string) (*model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = foldName(name)
	presentation = foldName(presentation)
	var fallback *model.Product
	for _, p := range m.products {
		if p.TenantID != tenantID || !p.Active {
			continue
		}
		pname := foldName(p.Name)
		if !strings.Contains(pname, name) && !strings.Contains(name, pname) {
			continue
		}
		if presentation != "" && foldName(p.Presentation) == presentation {
			cp := *p
			return &cp, nil
		}
		if fallback == nil {
			fallback = p
		}
	}
	if fallback == nil {
		return nil, ErrNotFound
	}
	cp := *fallback
	return &cp, nil
}
