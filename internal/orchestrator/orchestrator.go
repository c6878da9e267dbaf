// Package orchestrator drives one inbound gateway message through tenant
// resolution, persistence, classification and response generation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/palenque-digital/conversational-platform/internal/cart"
	"github.com/palenque-digital/conversational-platform/internal/intent"
	"github.com/palenque-digital/conversational-platform/internal/llm"
	"github.com/palenque-digital/conversational-platform/internal/model"
	"github.com/palenque-digital/conversational-platform/internal/scoring"
	"github.com/palenque-digital/conversational-platform/internal/store"
	"github.com/palenque-digital/conversational-platform/pkg/logger"
)

// ErrTenantUnresolved is returned when no tenant can be attributed to an
// inbound event. The platform fails closed: no reply is ever sent on behalf
// of an unknown tenant.
var ErrTenantUnresolved = errors.New("orchestrator: tenant unresolved for inbound event")

// historyLimit is how many recent messages feed classification and reply
// generation.
const historyLimit = 10

// orderConfidenceFloor gates cart mutations: a low-confidence place_order
// classification must not touch the draft.
const orderConfidenceFloor = 0.6

const (
	replyMaxTokens = 600

	handoffReply = "Con gusto. Te conecto con una persona de nuestro equipo; en breve te atiende."
)

// Messenger sends outbound text through the channel gateway and returns the
// provider's message id.
type Messenger interface {
	SendText(ctx context.Context, from, to, body string) (string, error)
}

// Notifier pushes operator-facing events. Implementations must be safe for
// concurrent use; failures are logged, never surfaced to the end user.
type Notifier interface {
	OperatorAttention(ctx context.Context, tenantID, conversationID, address, reason string) error
	HotLead(ctx context.Context, lead *model.Lead) error
}

// InboundEvent is one normalized gateway webhook delivery.
type InboundEvent struct {
	From              string
	To                string
	Body              string
	ProviderMessageID string
	MediaURL          *string
	MediaContentType  *string

	// TenantHint short-circuits tenant resolution when the gateway route
	// already knows the tenant, e.g. per-tenant webhook URLs.
	TenantHint string
}

// TurnResult summarizes what one inbound event produced.
type TurnResult struct {
	ConversationID string       `json:"conversationId"`
	Intent         model.Intent `json:"intent,omitempty"`
	Confidence     float64      `json:"confidence,omitempty"`
	Mode           model.Mode   `json:"mode"`
	Responded      bool         `json:"responded"`
	Duplicate      bool         `json:"duplicate"`
}

// Orchestrator owns the per-turn dialogue state machine.
type Orchestrator struct {
	store      store.Store
	classifier *intent.Classifier
	carts      *cart.Accumulator
	llm        llm.Client
	llmModel   string
	messenger  Messenger
	notifier   Notifier
	logger     *logger.Logger
	now        func() time.Time
}

// New creates an orchestrator. notifier may be nil when no event bus is
// configured.
func New(
	s store.Store,
	classifier *intent.Classifier,
	carts *cart.Accumulator,
	client llm.Client,
	llmModel string,
	messenger Messenger,
	notifier Notifier,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:      s,
		classifier: classifier,
		carts:      carts,
		llm:        client,
		llmModel:   llmModel,
		messenger:  messenger,
		notifier:   notifier,
		logger:     log,
		now:        time.Now,
	}
}

// WithClock overrides the time source. Used by tests to pin business hours.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// HandleInbound runs the full turn pipeline for one gateway delivery.
//
// Duplicate deliveries short-circuit after the idempotent message insert:
// the caller gets the conversation id back, but no classification runs and
// nothing is sent.
func (o *Orchestrator) HandleInbound(ctx context.Context, ev InboundEvent) (*TurnResult, error) {
	tenant, err := o.resolveTenant(ctx, ev)
	if err != nil {
		return nil, err
	}
	log := o.logger.With(
		zap.String("tenant_id", tenant.ID),
		zap.String("address", ev.From),
	)

	cfg, err := o.store.ChatbotConfig(ctx, tenant.ID)
	if errors.Is(err, store.ErrNotFound) {
		cfg = model.DefaultChatbotConfig(tenant.ID)
	} else if err != nil {
		return nil, fmt.Errorf("load chatbot config: %w", err)
	}
	if !cfg.Enabled {
		log.Debug("assistant disabled for tenant, ignoring inbound")
		return &TurnResult{Mode: cfg.Mode}, nil
	}

	conv, created, err := o.loadOrCreateConversation(ctx, tenant, cfg, ev.From)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("conversation_id", conv.ID))

	inbound := o.inboundMessage(conv, ev)
	if err := o.store.InsertMessage(ctx, inbound); err != nil {
		if errors.Is(err, store.ErrDuplicateMessage) {
			log.Info("duplicate gateway delivery ignored",
				zap.String("provider_message_id", ev.ProviderMessageID))
			return &TurnResult{ConversationID: conv.ID, Mode: conv.Mode, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("insert inbound message: %w", err)
	}

	// Outside business hours the canned message goes out and the turn ends
	// before any provider call is made.
	if !cfg.Hours.Within(o.now()) {
		sent := o.respond(ctx, log, tenant, conv, cfg.OutOfHoursMessage, "")
		return &TurnResult{ConversationID: conv.ID, Mode: conv.Mode, Responded: sent}, nil
	}

	history, err := o.history(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	cls := o.classifier.Classify(ctx, ev.Body, history)
	detected := &model.DetectedIntent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		Intent:         cls.Intent,
		Confidence:     cls.Confidence,
		Entities:       cls.Entities,
		Sentiment:      cls.Sentiment,
		CreatedAt:      o.now().UTC(),
	}
	if err := o.store.InsertIntent(ctx, detected); err != nil {
		return nil, fmt.Errorf("insert detected intent: %w", err)
	}

	conv.CurrentIntent = cls.Intent
	conv.IntentScore = cls.Confidence
	conv.LastInteractionAt = o.now().UTC()
	if err := o.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}

	log.Info("inbound classified",
		zap.String("intent", string(cls.Intent)),
		zap.Float64("confidence", cls.Confidence),
		zap.String("sentiment", string(cls.Sentiment)),
		zap.String("mode", string(conv.Mode)))

	result := &TurnResult{
		ConversationID: conv.ID,
		Intent:         cls.Intent,
		Confidence:     cls.Confidence,
		Mode:           conv.Mode,
	}

	switch conv.Mode {
	case model.ModeActive:
		result.Responded = o.activeTurn(ctx, log, tenant, conv, cfg, ev, cls, detected, history)
		result.Mode = conv.Mode // request_human may have flipped it
	default:
		result.Responded = o.passiveTurn(ctx, log, tenant, conv, cfg, created, detected)
	}

	transcript := append(append([]model.Turn(nil), history...), model.Turn{Role: model.RoleUser, Content: ev.Body})
	o.maybeCreateLead(ctx, log, tenant, conv, cls, created, transcript)
	return result, nil
}

// resolveTenant attributes the event to exactly one tenant. Resolution order:
// explicit hint, gateway number, most recent active conversation for the
// address, most recent lead for the address. No match fails closed.
func (o *Orchestrator) resolveTenant(ctx context.Context, ev InboundEvent) (*model.Tenant, error) {
	if ev.TenantHint != "" {
		t, err := o.store.Tenant(ctx, ev.TenantHint)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if ev.To != "" {
		t, err := o.store.TenantByGatewayNumber(ctx, ev.To)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if conv, err := o.store.LatestActiveByAddress(ctx, ev.From); err == nil {
		return o.store.Tenant(ctx, conv.TenantID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if lead, err := o.store.LatestLeadByAddress(ctx, ev.From); err == nil {
		return o.store.Tenant(ctx, lead.TenantID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	o.logger.Warn("failing closed on unresolvable inbound",
		zap.String("from", ev.From),
		zap.String("to", ev.To))
	return nil, ErrTenantUnresolved
}

func (o *Orchestrator) loadOrCreateConversation(ctx context.Context, tenant *model.Tenant, cfg *model.ChatbotConfig, address string) (*model.Conversation, bool, error) {
	conv, err := o.store.ActiveConversation(ctx, tenant.ID, address)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("load conversation: %w", err)
	}

	mode := cfg.Mode
	if mode == "" {
		mode = tenant.DefaultMode
	}
	if mode == "" {
		mode = model.ModePassive
	}
	now := o.now().UTC()
	conv = &model.Conversation{
		ID:                uuid.Must(uuid.NewV7()).String(),
		TenantID:          tenant.ID,
		ChannelAddress:    address,
		Channel:           model.ChannelWhatsApp,
		State:             model.ConversationActive,
		Mode:              mode,
		LastInteractionAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := o.store.CreateConversation(ctx, conv); err != nil {
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}
	return conv, true, nil
}

func (o *Orchestrator) inboundMessage(conv *model.Conversation, ev InboundEvent) *model.Message {
	msg := &model.Message{
		ID:                uuid.Must(uuid.NewV7()).String(),
		ConversationID:    conv.ID,
		TenantID:          conv.TenantID,
		ProviderMessageID: ev.ProviderMessageID,
		Direction:         model.DirectionInbound,
		Body:              ev.Body,
		Kind:              model.ContentText,
		Delivery:          model.DeliveryDelivered,
		CreatedAt:         o.now().UTC(),
	}
	if ev.MediaURL != nil {
		msg.Kind = model.ContentMedia
		msg.MediaURL = ev.MediaURL
		msg.MediaContentType = ev.MediaContentType
	}
	return msg
}

// history returns the transcript up to but excluding the message just
// inserted for this turn.
func (o *Orchestrator) history(ctx context.Context, conversationID string) ([]model.Turn, error) {
	msgs, err := o.store.RecentMessages(ctx, conversationID, historyLimit+1)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(msgs) > 0 {
		msgs = msgs[:len(msgs)-1]
	}
	turns := make([]model.Turn, 0, len(msgs))
	for i := range msgs {
		turns = append(turns, msgs[i].AsTurn())
	}
	return turns, nil
}

// passiveTurn greets on the first exchange and whenever the customer greets
// again, and flags the operator. The assistant never negotiates in passive
// mode.
func (o *Orchestrator) passiveTurn(ctx context.Context, log *logger.Logger, tenant *model.Tenant, conv *model.Conversation, cfg *model.ChatbotConfig, created bool, detected *model.DetectedIntent) bool {
	o.notifyOperator(ctx, log, tenant.ID, conv, "new inbound message awaiting operator")
	if !created && detected.Intent != model.IntentGreeting {
		return false
	}
	return o.respond(ctx, log, tenant, conv, cfg.WelcomeMessage, detected.ID)
}

// activeTurn generates and sends a model-written reply, maintaining the cart
// draft and the handoff transition as side effects of the detected intent.
func (o *Orchestrator) activeTurn(ctx context.Context, log *logger.Logger, tenant *model.Tenant, conv *model.Conversation, cfg *model.ChatbotConfig, ev InboundEvent, cls model.Classification, detected *model.DetectedIntent, history []model.Turn) bool {
	if cls.Intent == model.IntentRequestHuman {
		conv.Mode = model.ModePassive
		if err := o.store.UpdateConversation(ctx, conv); err != nil {
			log.Error("mode handoff update failed", zap.Error(err))
		}
		o.notifyOperator(ctx, log, tenant.ID, conv, "customer asked for a human")
		return o.respond(ctx, log, tenant, conv, handoffReply, detected.ID)
	}

	var cartSummary string
	if cartMutatingIntent(cls.Intent) && cls.Confidence >= orderConfidenceFloor {
		if draft, err := o.carts.AddToCart(ctx, conv, cart.FromEntities(cls.Entities)); err == nil {
			cartSummary = draft.Summary()
		} else if !errors.Is(err, store.ErrNotFound) {
			log.Error("cart accumulation failed", zap.Error(err))
		}
	}

	reply := o.generateReply(ctx, log, cfg, ev.Body, cls, history)
	if cartSummary != "" {
		reply += cartSummary
	}
	return o.respond(ctx, log, tenant, conv, reply, detected.ID)
}

func (o *Orchestrator) generateReply(ctx context.Context, log *logger.Logger, cfg *model.ChatbotConfig, body string, cls model.Classification, history []model.Turn) string {
	system := cfg.Persona + "\n\n" + intentGuidance(cls.Intent)

	messages := make([]llm.ChatMessage, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, llm.ChatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: string(model.RoleUser), Content: body})

	resp, err := o.llm.Complete(ctx, &llm.CompletionRequest{
		Model:       o.llmModel,
		System:      system,
		Messages:    messages,
		MaxTokens:   replyMaxTokens,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		log.Error("reply generation failed, sending fallback", zap.Error(err))
		return "Disculpa, tuve un problema para responderte. ¿Me repites tu mensaje?"
	}
	return strings.TrimSpace(resp.Content)
}

// intentGuidance is the per-intent steering block appended to the persona.
// The switch is exhaustive over the closed intent set.
func intentGuidance(it model.Intent) string {
	switch it {
	case model.IntentGreeting:
		return "El cliente saluda. Dale la bienvenida en una línea y pregunta qué busca."
	case model.IntentCatalogInquiry:
		return "El cliente pregunta por el catálogo. Describe las variedades disponibles y pregunta cuál le interesa."
	case model.IntentPriceInquiry:
		return "El cliente pregunta precios. Da el precio exacto si lo conoces; nunca inventes cifras."
	case model.IntentStockInquiry:
		return "El cliente pregunta disponibilidad. Confirma existencias solo si te constan; ofrece alternativas si no."
	case model.IntentPlaceOrder:
		return "El cliente quiere ordenar. Confirma producto, presentación y cantidad, y resume el pedido."
	case model.IntentConfirmOrder:
		return "El cliente confirma su pedido. Agradece, resume el total y explica el siguiente paso de pago y envío."
	case model.IntentCancelOrder:
		return "El cliente cancela. Confirma la cancelación sin presionar y deja la puerta abierta."
	case model.IntentModifyOrder:
		return "El cliente modifica su pedido. Confirma el cambio exacto y el nuevo total."
	case model.IntentShippingInquiry:
		return "El cliente pregunta por envíos. Explica cobertura, tiempos y costo de envío."
	case model.IntentPaymentInquiry:
		return "El cliente pregunta formas de pago. Lista los métodos aceptados."
	case model.IntentRequestHuman:
		return "El cliente pide hablar con una persona. Confirma el traspaso sin insistir en seguir tú."
	case model.IntentThanks:
		return "El cliente agradece. Responde breve y cálido."
	case model.IntentGoodbye:
		return "El cliente se despide. Despídete en una línea e invítalo a volver."
	case model.IntentComplaint:
		return "El cliente tiene una queja. Discúlpate, no te justifiques, y ofrece escalarlo con el equipo."
	case model.IntentOther:
		return "No está claro qué necesita el cliente. Pide una aclaración amable sin suponer."
	}
	return ""
}

func cartMutatingIntent(it model.Intent) bool {
	switch it {
	case model.IntentPlaceOrder, model.IntentModifyOrder:
		return true
	}
	return false
}

// respond sends body to the conversation address and persists the outbound
// message. A send failure is logged and recorded, never propagated: the
// inbound side of the turn is already durable.
func (o *Orchestrator) respond(ctx context.Context, log *logger.Logger, tenant *model.Tenant, conv *model.Conversation, body, intentID string) bool {
	if body == "" {
		return false
	}

	out := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		TenantID:       conv.TenantID,
		Direction:      model.DirectionOutbound,
		Body:           body,
		Kind:           model.ContentText,
		Delivery:       model.DeliveryQueued,
		CreatedAt:      o.now().UTC(),
	}

	providerID, err := o.messenger.SendText(ctx, tenant.GatewayNumber, conv.ChannelAddress, body)
	if err != nil {
		log.Error("outbound send failed", zap.Error(err))
		out.Delivery = model.DeliveryFailed
	} else {
		out.ProviderMessageID = providerID
		out.Delivery = model.DeliverySent
	}

	if err := o.store.InsertMessage(ctx, out); err != nil {
		log.Error("persisting outbound message failed", zap.Error(err))
	}
	if intentID != "" && out.Delivery != model.DeliveryFailed {
		if err := o.store.SetIntentResponse(ctx, intentID, body); err != nil {
			log.Warn("backfilling intent response failed", zap.Error(err))
		}
	}
	return out.Delivery != model.DeliveryFailed
}

// qualifyingIntent reports whether an intent signals purchase interest worth
// a lead record.
func qualifyingIntent(it model.Intent) bool {
	switch it {
	case model.IntentPlaceOrder, model.IntentConfirmOrder, model.IntentModifyOrder,
		model.IntentPriceInquiry, model.IntentShippingInquiry, model.IntentPaymentInquiry,
		model.IntentRequestHuman:
		return true
	}
	return false
}

// maybeCreateLead records a lead for every fresh conversation and the first
// time an existing one shows purchase intent. Lead creation is best-effort:
// failures never affect the reply path.
func (o *Orchestrator) maybeCreateLead(ctx context.Context, log *logger.Logger, tenant *model.Tenant, conv *model.Conversation, cls model.Classification, created bool, history []model.Turn) {
	if conv.LeadID != nil {
		return
	}
	if !created && !(qualifyingIntent(cls.Intent) && cls.Confidence >= orderConfidenceFloor) {
		return
	}
	if _, err := o.store.LeadByAddress(ctx, tenant.ID, conv.ChannelAddress); err == nil {
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Warn("lead lookup failed", zap.Error(err))
		return
	}

	res := scoring.Score(history, "")
	lead := &model.Lead{
		ID:             uuid.Must(uuid.NewV7()).String(),
		TenantID:       tenant.ID,
		ChannelAddress: conv.ChannelAddress,
		Source:         conv.Channel,
		Score:          res.Score,
		Confidence:     res.Confidence,
		Name:           res.Info.Name,
		Email:          res.Info.Email,
		Phone:          res.Info.Phone,
		Service:        res.Info.Service,
		Intent:         cls.Intent,
		Sentiment:      cls.Sentiment,
		Transcript:     transcriptText(history),
		CreatedAt:      o.now().UTC(),
	}
	if err := o.store.CreateLead(ctx, lead); err != nil {
		if !errors.Is(err, store.ErrDuplicateLead) {
			log.Error("lead creation failed", zap.Error(err))
		}
		return
	}

	conv.LeadID = &lead.ID
	if err := o.store.UpdateConversation(ctx, conv); err != nil {
		log.Warn("linking lead to conversation failed", zap.Error(err))
	}
	log.Info("lead created",
		zap.String("lead_id", lead.ID),
		zap.Int("score", lead.Score),
		zap.Bool("hot", res.IsHot))

	if res.IsHot && o.notifier != nil {
		if err := o.notifier.HotLead(ctx, lead); err != nil {
			log.Warn("hot lead notification failed", zap.Error(err))
		} else {
			lead.Notified = true
			if err := o.store.MarkLeadNotified(ctx, lead.ID); err != nil {
				log.Warn("marking lead notified failed", zap.Error(err))
			}
		}
	}
}

func (o *Orchestrator) notifyOperator(ctx context.Context, log *logger.Logger, tenantID string, conv *model.Conversation, reason string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.OperatorAttention(ctx, tenantID, conv.ID, conv.ChannelAddress, reason); err != nil {
		log.Warn("operator notification failed", zap.Error(err))
	}
}

func transcriptText(turns []model.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return b.String()
}
