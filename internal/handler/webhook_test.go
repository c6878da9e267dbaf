package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palenque-digital/conversational-platform/internal/model"
	"github.com/palenque-digital/conversational-platform/internal/orchestrator"
	"github.com/palenque-digital/conversational-platform/internal/store"
	"github.com/palenque-digital/conversational-platform/pkg/logger"
)

type stubTurns struct {
	result *orchestrator.TurnResult
	err    error
	calls  int
	last   orchestrator.InboundEvent
}

func (s *stubTurns) HandleInbound(ctx context.Context, ev orchestrator.InboundEvent) (*orchestrator.TurnResult, error) {
	s.calls++
	s.last = ev
	return s.result, s.err
}

type stubDeduper struct {
	seen      bool
	forgotten []string
}

func (s *stubDeduper) MarkProcessed(ctx context.Context, id string) (bool, error) {
	return s.seen, nil
}

func (s *stubDeduper) Forget(ctx context.Context, id string) {
	s.forgotten = append(s.forgotten, id)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)
	return log
}

func postJSON(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestInbound_Success(t *testing.T) {
	turns := &stubTurns{result: &orchestrator.TurnResult{
		ConversationID: "c1",
		Intent:         model.IntentGreeting,
		Confidence:     0.95,
		Mode:           model.ModePassive,
		Responded:      true,
	}}
	h := NewWebhookHandler(turns, &stubDeduper{}, store.NewMemory(), testLogger(t))

	rec := postJSON(t, h.Inbound, inboundPayload{
		From: "+5215559992222", To: "+5215550001111", Body: "Hola", MessageID: "wamid.1",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var result orchestrator.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "c1", result.ConversationID)
	assert.Equal(t, model.IntentGreeting, result.Intent)
	assert.True(t, result.Responded)
	assert.Equal(t, "wamid.1", turns.last.ProviderMessageID)
}

func TestInbound_InvalidBody(t *testing.T) {
	turns := &stubTurns{}
	h := NewWebhookHandler(turns, &stubDeduper{}, store.NewMemory(), testLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.Inbound(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, turns.calls)
}

func TestInbound_EmptyMessageRejected(t *testing.T) {
	turns := &stubTurns{}
	h := NewWebhookHandler(turns, &stubDeduper{}, store.NewMemory(), testLogger(t))

	rec := postJSON(t, h.Inbound, inboundPayload{From: "+52155", Body: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, turns.calls)
}

func TestInbound_FastPathDuplicate(t *testing.T) {
	turns := &stubTurns{}
	h := NewWebhookHandler(turns, &stubDeduper{seen: true}, store.NewMemory(), testLogger(t))

	rec := postJSON(t, h.Inbound, inboundPayload{From: "+52155", Body: "Hola", MessageID: "wamid.dup"})

	assert.Equal(t, http.StatusOK, rec.Code)
	var result orchestrator.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Duplicate)
	assert.Zero(t, turns.calls, "duplicates never reach the orchestrator")
}

func TestInbound_UnresolvedTenantIs422(t *testing.T) {
	turns := &stubTurns{err: orchestrator.ErrTenantUnresolved}
	h := NewWebhookHandler(turns, &stubDeduper{}, store.NewMemory(), testLogger(t))

	rec := postJSON(t, h.Inbound, inboundPayload{From: "+52155", Body: "Hola", MessageID: "wamid.1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestInbound_ErrorForgetsFastPathMark(t *testing.T) {
	turns := &stubTurns{err: errors.New("db down")}
	deduper := &stubDeduper{}
	h := NewWebhookHandler(turns, deduper, store.NewMemory(), testLogger(t))

	rec := postJSON(t, h.Inbound, inboundPayload{From: "+52155", Body: "Hola", MessageID: "wamid.retry"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, []string{"wamid.retry"}, deduper.forgotten,
		"a failed turn must stay retryable by the gateway")
}

func TestStatus_UpdatesDelivery(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.InsertMessage(context.Background(), &model.Message{
		ID:                "m1",
		ConversationID:    "c1",
		ProviderMessageID: "wamid.out",
		Direction:         model.DirectionOutbound,
		Delivery:          model.DeliverySent,
	}))
	h := NewWebhookHandler(&stubTurns{}, &stubDeduper{}, mem, testLogger(t))

	rec := postJSON(t, h.Status, statusPayload{MessageID: "wamid.out", Status: "delivered"})
	assert.Equal(t, http.StatusOK, rec.Code)

	msgs, err := mem.RecentMessages(context.Background(), "c1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.DeliveryDelivered, msgs[0].Delivery)
}

func TestStatus_UnknownStateRejected(t *testing.T) {
	h := NewWebhookHandler(&stubTurns{}, &stubDeduper{}, store.NewMemory(), testLogger(t))
	rec := postJSON(t, h.Status, statusPayload{MessageID: "wamid.out", Status: "teleported"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus_UnknownMessageIs404(t *testing.T) {
	h := NewWebhookHandler(&stubTurns{}, &stubDeduper{}, store.NewMemory(), testLogger(t))
	rec := postJSON(t, h.Status, statusPayload{MessageID: "wamid.missing", Status: "read"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
