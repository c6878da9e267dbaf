// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/palenque-digital/conversational-platform/internal/middleware"
	"github.com/palenque-digital/conversational-platform/internal/model"
	"github.com/palenque-digital/conversational-platform/internal/orchestrator"
	"github.com/palenque-digital/conversational-platform/internal/store"
	"github.com/palenque-digital/conversational-platform/pkg/logger"
	"github.com/palenque-digital/conversational-platform/pkg/metrics"
)

// TurnHandler runs the dialogue pipeline for one inbound event.
type TurnHandler interface {
	HandleInbound(ctx context.Context, ev orchestrator.InboundEvent) (*orchestrator.TurnResult, error)
}

// Deduper is the fast-path webhook deduplication layer. Nil-safe via
// noopDeduper when Redis is not configured.
type Deduper interface {
	MarkProcessed(ctx context.Context, providerMessageID string) (bool, error)
	Forget(ctx context.Context, providerMessageID string)
}

type noopDeduper struct{}

func (noopDeduper) MarkProcessed(context.Context, string) (bool, error) { return false, nil }
func (noopDeduper) Forget(context.Context, string)                      {}

// WebhookHandler receives gateway webhooks: inbound messages and delivery
// receipts.
type WebhookHandler struct {
	turns   TurnHandler
	tracker Deduper
	msgs    store.Conversations
	logger  *logger.Logger
}

// NewWebhookHandler creates a webhook handler. tracker may be nil.
func NewWebhookHandler(turns TurnHandler, tracker Deduper, msgs store.Conversations, log *logger.Logger) *WebhookHandler {
	if tracker == nil {
		tracker = noopDeduper{}
	}
	return &WebhookHandler{turns: turns, tracker: tracker, msgs: msgs, logger: log}
}

type inboundPayload struct {
	From             string  `json:"from"`
	To               string  `json:"to"`
	Body             string  `json:"body"`
	MessageID        string  `json:"message_id"`
	MediaURL         *string `json:"media_url,omitempty"`
	MediaContentType *string `json:"media_content_type,omitempty"`
	TenantID         string  `json:"tenant_id,omitempty"`
}

// Inbound handles POST /webhooks/gateway/inbound.
func (h *WebhookHandler) Inbound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload inboundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateChannelAddress(payload.From); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageBody(payload.Body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if seen, _ := h.tracker.MarkProcessed(ctx, payload.MessageID); seen {
		metrics.RecordTurn("duplicate")
		writeJSON(w, http.StatusOK, orchestrator.TurnResult{Duplicate: true})
		return
	}

	result, err := h.turns.HandleInbound(ctx, orchestrator.InboundEvent{
		From:              payload.From,
		To:                payload.To,
		Body:              payload.Body,
		ProviderMessageID: payload.MessageID,
		MediaURL:          payload.MediaURL,
		MediaContentType:  payload.MediaContentType,
		TenantHint:        payload.TenantID,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrTenantUnresolved) {
			metrics.RecordTurn("rejected")
			writeError(w, http.StatusUnprocessableEntity, "no tenant for inbound event")
			return
		}
		// Let the gateway retry: forget the fast-path mark so the retry
		// is not swallowed before it reaches the store.
		h.tracker.Forget(ctx, payload.MessageID)
		metrics.RecordTurn("error")
		h.logger.Error("inbound turn failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	switch {
	case result.Duplicate:
		metrics.RecordTurn("duplicate")
	case result.Responded:
		metrics.RecordTurn("responded")
	default:
		metrics.RecordTurn("silent")
	}
	if result.Intent != "" {
		metrics.RecordIntent(string(result.Intent))
	}
	writeJSON(w, http.StatusOK, result)
}

type statusPayload struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

var deliveryStates = map[string]model.DeliveryState{
	"queued":    model.DeliveryQueued,
	"sent":      model.DeliverySent,
	"delivered": model.DeliveryDelivered,
	"read":      model.DeliveryRead,
	"failed":    model.DeliveryFailed,
}

// Status handles POST /webhooks/gateway/status, the delivery receipt feed.
func (h *WebhookHandler) Status(w http.ResponseWriter, r *http.Request) {
	var payload statusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	state, ok := deliveryStates[payload.Status]
	if !ok || payload.MessageID == "" {
		writeError(w, http.StatusBadRequest, "unknown delivery status")
		return
	}

	if err := h.msgs.UpdateMessageDelivery(r.Context(), payload.MessageID, state); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Receipts can arrive before the send ack persisted; the
			// gateway will retry.
			writeError(w, http.StatusNotFound, "unknown message")
			return
		}
		h.logger.Error("delivery update failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update delivery state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
