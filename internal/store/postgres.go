package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palenque-digital/conversational-platform/internal/model"
)

const pgUniqueViolation = "23505"

// Postgres stores all conversation state in the relational database. The
// unique index on (conversation_id, provider_message_id) is the correctness
// mechanism for duplicate webhook deliveries.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres initializes a store backed by pgxpool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	if pool == nil {
		panic("store: pgx pool required")
	}
	return &Postgres{pool: pool}
}

var _ Store = (*Postgres)(nil)

// Ping verifies database connectivity for readiness checks.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

const conversationColumns = `id, tenant_id, channel_address, channel, state, mode, current_intent, intent_score, lead_id, last_interaction_at, created_at, updated_at`

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	var conv model.Conversation
	var currentIntent *string
	if err := row.Scan(
		&conv.ID,
		&conv.TenantID,
		&conv.ChannelAddress,
		&conv.Channel,
		&conv.State,
		&conv.Mode,
		&currentIntent,
		&conv.IntentScore,
		&conv.LeadID,
		&conv.LastInteractionAt,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan conversation: %w", err)
	}
	if currentIntent != nil {
		conv.CurrentIntent = model.Intent(*currentIntent)
	}
	return &conv, nil
}

func (s *Postgres) ActiveConversation(ctx context.Context, tenantID, address string) (*model.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE tenant_id = $1 AND channel_address = $2 AND state = 'active'
		ORDER BY last_interaction_at DESC
		LIMIT 1
	`
	return scanConversation(s.pool.QueryRow(ctx, query, tenantID, address))
}

func (s *Postgres) LatestActiveByAddress(ctx context.Context, address string) (*model.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE channel_address = $1 AND state = 'active'
		ORDER BY last_interaction_at DESC
		LIMIT 1
	`
	return scanConversation(s.pool.QueryRow(ctx, query, address))
}

func (s *Postgres) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	query := `
		INSERT INTO conversations
			(id, tenant_id, channel_address, channel, state, mode, current_intent, intent_score, lead_id, last_interaction_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $11)
	`
	_, err := s.pool.Exec(ctx, query,
		conv.ID,
		conv.TenantID,
		conv.ChannelAddress,
		conv.Channel,
		conv.State,
		conv.Mode,
		string(conv.CurrentIntent),
		conv.IntentScore,
		conv.LeadID,
		conv.LastInteractionAt,
		conv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert conversation: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateConversation(ctx context.Context, conv *model.Conversation) error {
	query := `
		UPDATE conversations
		SET state = $2, mode = $3, current_intent = NULLIF($4, ''), intent_score = $5,
		    lead_id = $6, last_interaction_at = $7, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		conv.ID,
		conv.State,
		conv.Mode,
		string(conv.CurrentIntent),
		conv.IntentScore,
		conv.LeadID,
		conv.LastInteractionAt,
	)
	if err != nil {
		return fmt.Errorf("store: update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ListConversations(ctx context.Context, tenantID string, limit, offset int) ([]model.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE tenant_id = $1
		ORDER BY last_interaction_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.pool.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *conv)
	}
	return out, rows.Err()
}

func (s *Postgres) InsertMessage(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages
			(id, conversation_id, tenant_id, provider_message_id, direction, body, kind, media_url, media_content_type, delivery, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.pool.Exec(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.TenantID,
		msg.ProviderMessageID,
		msg.Direction,
		msg.Body,
		msg.Kind,
		msg.MediaURL,
		msg.MediaContentType,
		msg.Delivery,
		msg.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateMessage
		}
		return fmt.Errorf("store: insert message: %w", err)
	}
	return nil
}

func (s *Postgres) RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT id, conversation_id, tenant_id, COALESCE(provider_message_id, ''), direction, body, kind, media_url, media_content_type, delivery, created_at
		FROM (
			SELECT * FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`
	rows, err := s.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.TenantID,
			&msg.ProviderMessageID,
			&msg.Direction,
			&msg.Body,
			&msg.Kind,
			&msg.MediaURL,
			&msg.MediaContentType,
			&msg.Delivery,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateMessageDelivery(ctx context.Context, providerMessageID string, state model.DeliveryState) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET delivery = $2 WHERE provider_message_id = $1`,
		providerMessageID, state,
	)
	if err != nil {
		return fmt.Errorf("store: update delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) InsertIntent(ctx context.Context, detected *model.DetectedIntent) error {
	entities, err := json.Marshal(detected.Entities)
	if err != nil {
		return fmt.Errorf("store: marshal entities: %w", err)
	}
	query := `
		INSERT INTO detected_intents (id, conversation_id, intent, confidence, entities, sentiment, response_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := s.pool.Exec(ctx, query,
		detected.ID,
		detected.ConversationID,
		detected.Intent,
		detected.Confidence,
		entities,
		detected.Sentiment,
		detected.ResponseText,
		detected.CreatedAt,
	); err != nil {
		return fmt.Errorf("store: insert intent: %w", err)
	}
	return nil
}

func (s *Postgres) SetIntentResponse(ctx context.Context, intentID, responseText string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE detected_intents SET response_text = $2 WHERE id = $1`,
		intentID, responseText,
	)
	if err != nil {
		return fmt.Errorf("store: set intent response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ActiveCart(ctx context.Context, conversationID string) (*model.CartDraft, error) {
	query := `
		SELECT id, conversation_id, status, lines, subtotal, created_at, updated_at
		FROM cart_drafts
		WHERE conversation_id = $1 AND status = 'active'
		LIMIT 1
	`
	var draft model.CartDraft
	var lines []byte
	if err := s.pool.QueryRow(ctx, query, conversationID).Scan(
		&draft.ID,
		&draft.ConversationID,
		&draft.Status,
		&lines,
		&draft.Subtotal,
		&draft.CreatedAt,
		&draft.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: active cart: %w", err)
	}
	if err := json.Unmarshal(lines, &draft.Lines); err != nil {
		return nil, fmt.Errorf("store: unmarshal cart lines: %w", err)
	}
	return &draft, nil
}

func (s *Postgres) SaveCart(ctx context.Context, draft *model.CartDraft) error {
	lines, err := json.Marshal(draft.Lines)
	if err != nil {
		return fmt.Errorf("store: marshal cart lines: %w", err)
	}
	query := `
		INSERT INTO cart_drafts (id, conversation_id, status, lines, subtotal, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, lines = EXCLUDED.lines, subtotal = EXCLUDED.subtotal, updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query,
		draft.ID,
		draft.ConversationID,
		draft.Status,
		lines,
		draft.Subtotal,
		draft.CreatedAt,
	); err != nil {
		return fmt.Errorf("store: save cart: %w", err)
	}
	return nil
}

func (s *Postgres) CreateLead(ctx context.Context, lead *model.Lead) error {
	query := `
		INSERT INTO leads
			(id, tenant_id, channel_address, source, score, confidence, name, email, phone, service, intent, sentiment, transcript, notified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), NULLIF($12, ''), $13, $14, $15)
	`
	_, err := s.pool.Exec(ctx, query,
		lead.ID,
		lead.TenantID,
		lead.ChannelAddress,
		lead.Source,
		lead.Score,
		lead.Confidence,
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.Service,
		string(lead.Intent),
		string(lead.Sentiment),
		lead.Transcript,
		lead.Notified,
		lead.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateLead
		}
		return fmt.Errorf("store: insert lead: %w", err)
	}
	return nil
}

const leadColumns = `id, tenant_id, channel_address, source, score, confidence, name, email, phone, service, COALESCE(intent, ''), COALESCE(sentiment, ''), transcript, notified, created_at`

func scanLead(row pgx.Row) (*model.Lead, error) {
	var lead model.Lead
	var intent, sentiment string
	if err := row.Scan(
		&lead.ID,
		&lead.TenantID,
		&lead.ChannelAddress,
		&lead.Source,
		&lead.Score,
		&lead.Confidence,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.Service,
		&intent,
		&sentiment,
		&lead.Transcript,
		&lead.Notified,
		&lead.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan lead: %w", err)
	}
	lead.Intent = model.Intent(intent)
	lead.Sentiment = model.Sentiment(sentiment)
	return &lead, nil
}

func (s *Postgres) LeadByAddress(ctx context.Context, tenantID, address string) (*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1 AND channel_address = $2`
	return scanLead(s.pool.QueryRow(ctx, query, tenantID, address))
}

func (s *Postgres) MarkLeadNotified(ctx context.Context, leadID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE leads SET notified = true WHERE id = $1`, leadID)
	if err != nil {
		return fmt.Errorf("store: mark lead notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) LatestLeadByAddress(ctx context.Context, address string) (*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE channel_address = $1 ORDER BY created_at DESC LIMIT 1`
	return scanLead(s.pool.QueryRow(ctx, query, address))
}

func (s *Postgres) Tenant(ctx context.Context, id string) (*model.Tenant, error) {
	query := `SELECT id, name, gateway_number, default_mode, created_at FROM tenants WHERE id = $1`
	var t model.Tenant
	if err := s.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.Name, &t.GatewayNumber, &t.DefaultMode, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: select tenant: %w", err)
	}
	return &t, nil
}

func (s *Postgres) TenantByGatewayNumber(ctx context.Context, number string) (*model.Tenant, error) {
	query := `SELECT id, name, gateway_number, default_mode, created_at FROM tenants WHERE gateway_number = $1`
	var t model.Tenant
	if err := s.pool.QueryRow(ctx, query, number).Scan(&t.ID, &t.Name, &t.GatewayNumber, &t.DefaultMode, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: select tenant by number: %w", err)
	}
	return &t, nil
}

func (s *Postgres) ChatbotConfig(ctx context.Context, tenantID string) (*model.ChatbotConfig, error) {
	query := `
		SELECT tenant_id, enabled, mode, welcome_message, out_of_hours_message, persona, temperature, hours, updated_at
		FROM chatbot_configs
		WHERE tenant_id = $1
	`
	var cfg model.ChatbotConfig
	var hours []byte
	if err := s.pool.QueryRow(ctx, query, tenantID).Scan(
		&cfg.TenantID,
		&cfg.Enabled,
		&cfg.Mode,
		&cfg.WelcomeMessage,
		&cfg.OutOfHoursMessage,
		&cfg.Persona,
		&cfg.Temperature,
		&hours,
		&cfg.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: select chatbot config: %w", err)
	}
	if err := json.Unmarshal(hours, &cfg.Hours); err != nil {
		return nil, fmt.Errorf("store: unmarshal hours: %w", err)
	}
	return &cfg, nil
}

func (s *Postgres) FindProduct(ctx context.Context, tenantID, name, presentation string) (*model.Product, error) {
	// Diacritic folding mirrors foldName so "espadin" matches "Espadín"
	// without requiring the unaccent extension.
	query := `
		SELECT id, tenant_id, name, presentation, price, active
		FROM products
		WHERE tenant_id = $1 AND active
		  AND (translate(lower(name), 'áéíóúüñ', 'aeiouun') LIKE '%' || $2 || '%'
		       OR $2 LIKE '%' || translate(lower(name), 'áéíóúüñ', 'aeiouun') || '%')
		ORDER BY (translate(lower(presentation), 'áéíóúüñ', 'aeiouun') = $3) DESC, name
		LIMIT 1
	`
	var p model.Product
	if err := s.pool.QueryRow(ctx, query, tenantID, foldName(name), foldName(presentation)).Scan(
		&p.ID,
		&p.TenantID,
		&p.Name,
		&p.Presentation,
		&p.Price,
		&p.Active,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: find product: %w", err)
	}
	return &p, nil
}
