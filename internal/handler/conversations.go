package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/palenque-digital/conversational-platform/internal/middleware"
	"github.com/palenque-digital/conversational-platform/internal/model"
	"github.com/palenque-digital/conversational-platform/internal/store"
	"github.com/palenque-digital/conversational-platform/pkg/logger"
)

// OperatorHandler is the authenticated read API operators use to monitor
// conversations and follow up on leads. The tenant always comes from the
// JWT, never from the request.
type OperatorHandler struct {
	store  store.Store
	logger *logger.Logger
}

// NewOperatorHandler creates the operator read API handler.
func NewOperatorHandler(s store.Store, log *logger.Logger) *OperatorHandler {
	return &OperatorHandler{store: s, logger: log}
}

// ListConversations handles GET /api/v1/conversations.
func (h *OperatorHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	limit := 20
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	conversations, err := h.store.ListConversations(ctx, tenantID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list conversations")
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if conversations == nil {
		conversations = []model.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": conversations,
		"limit":         limit,
		"offset":        offset,
	})
}

// ConversationMessages handles GET /api/v1/conversations/{id}/messages.
func (h *OperatorHandler) ConversationMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	messages, err := h.store.RecentMessages(ctx, conversationID, limit)
	if err != nil {
		h.logger.Error("failed to load messages")
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	// Tenant isolation: a conversation from another tenant reads as empty,
	// same as an unknown id.
	filtered := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.TenantID == tenantID {
			filtered = append(filtered, m)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": filtered})
}

// Lead handles GET /api/v1/leads/{address}.
func (h *OperatorHandler) Lead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	address := chi.URLParam(r, "address")

	if err := middleware.ValidateChannelAddress(address); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lead, err := h.store.LeadByAddress(ctx, tenantID, address)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		h.logger.Error("failed to load lead")
		writeError(w, http.StatusInternalServerError, "failed to load lead")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}
