package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palenque-digital/conversational-platform/internal/model"
	"github.com/palenque-digital/conversational-platform/internal/prompt"
	"github.com/palenque-digital/conversational-platform/internal/store"
	"github.com/palenque-digital/conversational-platform/pkg/logger"
)

func newSessionFixture(t *testing.T, client *queueClient) (*Session, *store.Memory, *stubNotifier) {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)
	mem := store.NewMemory()
	notifier := &stubNotifier{}
	// No task runner: lead persistence runs inline, which keeps assertions
	// deterministic.
	s := NewSession(client, "", prompt.NewBuilder(prompt.DefaultConfig()), mem, notifier, nil, log)
	return s, mem, notifier
}

func collectFrames(t *testing.T) (Emitter, *[]any) {
	t.Helper()
	frames := &[]any{}
	return func(frame any) error {
		*frames = append(*frames, frame)
		return nil
	}, frames
}

func TestStream_ChunksThenDone(t *testing.T) {
	client := &queueClient{replies: []string{"Claro, con gusto te explico los planes."}}
	s, _, _ := newSessionFixture(t, client)
	emit, frames := collectFrames(t)

	err := s.Stream(context.Background(), ChatRequest{
		TenantID:  "t1",
		SessionID: "sess-1",
		Message:   "hola, ¿qué hacen?",
	}, emit)
	require.NoError(t, err)

	require.Len(t, *frames, 2)
	chunk, ok := (*frames)[0].(model.StreamChunk)
	require.True(t, ok)
	assert.Equal(t, "chunk", chunk.Type)
	assert.Equal(t, "Claro, con gusto te explico los planes.", chunk.Content)

	done, ok := (*frames)[1].(model.StreamDone)
	require.True(t, ok)
	assert.Equal(t, "done", done.Type)
	assert.False(t, done.IsHotLead)
	assert.Zero(t, done.Debug.HistoryTurns)
	assert.Positive(t, done.Debug.PromptTokens)
	assert.Equal(t, prompt.EstimateTokens("Claro, con gusto te explico los planes."), done.Debug.ResponseTokens)
}

func TestStream_HotLeadPersistedAndNotified(t *testing.T) {
	client := &queueClient{replies: []string{"Perfecto, te contactamos hoy mismo."}}
	s, mem, notifier := newSessionFixture(t, client)
	emit, frames := collectFrames(t)

	history := []model.Turn{
		{Role: model.RoleUser, Content: "Me interesa el chatbot para whatsapp"},
		{Role: model.RoleAssistant, Content: "Claro, ¿cómo te contactamos?"},
	}
	err := s.Stream(context.Background(), ChatRequest{
		TenantID:  "t1",
		SessionID: "sess-hot",
		Message:   "Es urgente. Soy Ana, correo ana@mezcal.mx, tel 9511234567",
		History:   history,
	}, emit)
	require.NoError(t, err)

	done := (*frames)[len(*frames)-1].(model.StreamDone)
	assert.True(t, done.IsHotLead)
	assert.Equal(t, "ana@mezcal.mx", done.LeadInfo.Email)
	assert.NotEmpty(t, done.LeadSignals)

	lead, err := mem.LeadByAddress(context.Background(), "t1", "sess-hot")
	require.NoError(t, err)
	assert.Equal(t, model.ChannelWidget, lead.Source)
	assert.Equal(t, done.LeadScore, lead.Score)
	assert.Contains(t, lead.Transcript, "ana@mezcal.mx")
	assert.True(t, lead.Notified, "a fired hot lead notification must be recorded")

	require.Len(t, notifier.hotLeads, 1)
	assert.Equal(t, lead.ID, notifier.hotLeads[0].ID)
}

func TestStream_RepeatHotTurnKeepsOneLead(t *testing.T) {
	client := &queueClient{replies: []string{"Listo.", "Listo."}}
	s, mem, _ := newSessionFixture(t, client)
	emit, _ := collectFrames(t)

	req := ChatRequest{
		TenantID:  "t1",
		SessionID: "sess-hot",
		Message:   "Urgente: ana@mezcal.mx, 9511234567",
	}
	require.NoError(t, s.Stream(context.Background(), req, emit))
	first, err := mem.LeadByAddress(context.Background(), "t1", "sess-hot")
	require.NoError(t, err)

	require.NoError(t, s.Stream(context.Background(), req, emit))
	second, err := mem.LeadByAddress(context.Background(), "t1", "sess-hot")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestStream_ProviderErrorBeforeAnyTokens(t *testing.T) {
	client := &queueClient{err: errors.New("provider unavailable")}
	s, _, _ := newSessionFixture(t, client)
	emit, frames := collectFrames(t)

	err := s.Stream(context.Background(), ChatRequest{TenantID: "t1", SessionID: "s", Message: "hola"}, emit)
	assert.Error(t, err)
	assert.Empty(t, *frames, "no frames before the first token means no frames at all")
}

func TestStream_HistoryTruncatedToWindow(t *testing.T) {
	client := &queueClient{replies: []string{"ok"}}
	s, _, _ := newSessionFixture(t, client)
	emit, frames := collectFrames(t)

	err := s.Stream(context.Background(), ChatRequest{
		TenantID:  "t1",
		SessionID: "sess-long",
		Message:   "sigo aquí",
		History:   longHistory(30),
	}, emit)
	require.NoError(t, err)

	done := (*frames)[len(*frames)-1].(model.StreamDone)
	assert.Equal(t, widgetHistoryLimit, done.Debug.HistoryTurns)
}

func longHistory(n int) []model.Turn {
	out := make([]model.Turn, n)
	for i := range out {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		out[i] = model.Turn{Role: role, Content: "mensaje"}
	}
	return out
}
