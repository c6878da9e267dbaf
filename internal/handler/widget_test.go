package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palenque-digital/conversational-platform/internal/model"
	"github.com/palenque-digital/conversational-platform/internal/orchestrator"
)

type stubStreamer struct {
	frames []any
	err    error
	last   orchestrator.ChatRequest
}

func (s *stubStreamer) Stream(ctx context.Context, req orchestrator.ChatRequest, emit orchestrator.Emitter) error {
	s.last = req
	for _, f := range s.frames {
		if err := emit(f); err != nil {
			return err
		}
	}
	return s.err
}

func widgetBody(t *testing.T, msg string) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(widgetChatRequest{
		TenantID:  "t1",
		SessionID: "sess-1",
		Message:   msg,
		History:   []model.Turn{{Role: model.RoleUser, Content: "hola"}},
	})
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func TestChat_StreamsDataOnlyFrames(t *testing.T) {
	streamer := &stubStreamer{frames: []any{
		model.StreamChunk{Type: "chunk", Content: "Hola"},
		model.StreamChunk{Type: "chunk", Content: ", ¿en qué te ayudo?"},
		model.StreamDone{Type: "done", LeadScore: 10},
	}}
	h := NewWidgetHandler(streamer, "test-model", testLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/widget/chat", widgetBody(t, "hola"))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	require.Len(t, frames, 3)
	for _, frame := range frames {
		assert.True(t, strings.HasPrefix(frame, "data: "), "frame %q must be data-only", frame)
		assert.NotContains(t, frame, "event:")
	}

	var done model.StreamDone
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[2], "data: ")), &done))
	assert.Equal(t, "done", done.Type)
	assert.Equal(t, 10, done.LeadScore)

	assert.Equal(t, "t1", streamer.last.TenantID)
	assert.Len(t, streamer.last.History, 1)
}

func TestChat_InvalidBody(t *testing.T) {
	h := NewWidgetHandler(&stubStreamer{}, "m", testLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/widget/chat", strings.NewReader("nope"))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_EmptyMessageRejected(t *testing.T) {
	h := NewWidgetHandler(&stubStreamer{}, "m", testLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/widget/chat", widgetBody(t, ""))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_SessionFromHeaderFallback(t *testing.T) {
	streamer := &stubStreamer{frames: []any{model.StreamDone{Type: "done"}}}
	h := NewWidgetHandler(streamer, "m", testLogger(t))

	raw, err := json.Marshal(widgetChatRequest{TenantID: "t1", Message: "hola"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/widget/chat", bytes.NewReader(raw))
	req.Header.Set("X-Session-ID", "sess-header")
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sess-header", streamer.last.SessionID)
}

func TestChat_StreamErrorEmitsErrorFrame(t *testing.T) {
	h := NewWidgetHandler(&stubStreamer{err: errors.New("provider down")}, "m", testLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/widget/chat", widgetBody(t, "hola"))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	assert.Contains(t, rec.Body.String(), `"type":"error"`)
}
