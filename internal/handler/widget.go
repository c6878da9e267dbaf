package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/palenque-digital/conversational-platform/internal/middleware"
	"github.com/palenque-digital/conversational-platform/internal/model"
	"github.com/palenque-digital/conversational-platform/internal/orchestrator"
	"github.com/palenque-digital/conversational-platform/pkg/logger"
	"github.com/palenque-digital/conversational-platform/pkg/metrics"
)

// ChatStreamer runs one widget turn, pushing frames through the emitter.
type ChatStreamer interface {
	Stream(ctx context.Context, req orchestrator.ChatRequest, emit orchestrator.Emitter) error
}

// WidgetHandler serves the embeddable web-widget chat endpoint.
type WidgetHandler struct {
	session  ChatStreamer
	llmModel string
	logger   *logger.Logger
}

// NewWidgetHandler creates the widget handler.
func NewWidgetHandler(session ChatStreamer, llmModel string, log *logger.Logger) *WidgetHandler {
	return &WidgetHandler{session: session, llmModel: llmModel, logger: log}
}

type widgetChatRequest struct {
	TenantID  string       `json:"tenantId"`
	SessionID string       `json:"sessionId"`
	Message   string       `json:"message"`
	History   []model.Turn `json:"history"`
}

// Chat handles POST /api/v1/widget/chat. The response is an SSE stream of
// data-only frames: chunk frames while tokens arrive, then one done frame.
func (h *WidgetHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req widgetChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageBody(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateTenantID(req.TenantID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SessionID == "" {
		req.SessionID = r.Header.Get("X-Session-ID")
	}
	if err := middleware.ValidateChannelAddress(req.SessionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	start := time.Now()
	err := h.session.Stream(ctx, orchestrator.ChatRequest{
		TenantID:  req.TenantID,
		SessionID: req.SessionID,
		Message:   req.Message,
		History:   req.History,
	}, func(frame any) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return sendFrame(w, flusher, frame)
	})

	status := "ok"
	if err != nil {
		status = "error"
		h.logger.Error("widget stream failed",
			zap.Error(err),
			zap.String("session_id", req.SessionID))
		sendFrame(w, flusher, map[string]string{
			"type":    "error",
			"message": "stream failed",
		})
	}
	metrics.RecordLLMStream(h.llmModel, status, time.Since(start).Seconds(), 0, 0)
}

// sendFrame writes one data-only SSE frame. The widget client parses frames
// by their JSON "type" field, so no event lines are emitted.
func sendFrame(w http.ResponseWriter, flusher http.Flusher, frame any) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
