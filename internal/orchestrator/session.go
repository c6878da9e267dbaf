package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/palenque-digital/conversational-platform/internal/llm"
	"github.com/palenque-digital/conversational-platform/internal/model"
	"github.com/palenque-digital/conversational-platform/internal/prompt"
	"github.com/palenque-digital/conversational-platform/internal/scoring"
	"github.com/palenque-digital/conversational-platform/internal/store"
	"github.com/palenque-digital/conversational-platform/pkg/logger"
)

// widgetHistoryLimit bounds the stateless widget transcript accepted per
// request. The client resends history each turn; older turns are dropped.
const widgetHistoryLimit = 10

const widgetMaxTokens = 700

// TaskRunner launches named background work detached from the request
// context. Lead persistence after a widget stream rides on it so the done
// frame is never delayed by storage.
type TaskRunner interface {
	Go(name string, fn func(ctx context.Context) error)
}

// ChatRequest is one widget turn: the new message plus the client-held
// transcript.
type ChatRequest struct {
	TenantID  string
	SessionID string
	Message   string
	History   []model.Turn
}

// Emitter receives stream frames in order: zero or more StreamChunk values,
// then exactly one StreamDone.
type Emitter func(frame any) error

// Session streams widget replies and scores the transcript after each turn.
type Session struct {
	llm      llm.Client
	llmModel string
	prompts  *prompt.Builder
	leads    store.Leads
	notifier Notifier
	tasks    TaskRunner
	logger   *logger.Logger
	now      func() time.Time
}

// NewSession creates the widget streaming session service. notifier and tasks
// may be nil; hot leads are then only logged.
func NewSession(client llm.Client, llmModel string, prompts *prompt.Builder, leads store.Leads, notifier Notifier, tasks TaskRunner, log *logger.Logger) *Session {
	return &Session{
		llm:      client,
		llmModel: llmModel,
		prompts:  prompts,
		leads:    leads,
		notifier: notifier,
		tasks:    tasks,
		logger:   log,
		now:      time.Now,
	}
}

// Stream runs one widget turn: build the system prompt, stream the reply
// through emit, then score the full transcript and emit the done frame.
// The analysis runs on whatever content actually streamed, so a provider
// error after partial output still terminates the stream with a done frame.
func (s *Session) Stream(ctx context.Context, req ChatRequest, emit Emitter) error {
	history := req.History
	if len(history) > widgetHistoryLimit {
		history = history[len(history)-widgetHistoryLimit:]
	}

	system := s.prompts.Build(req.Message, history)

	messages := make([]llm.ChatMessage, 0, len(history)+1)
	promptTokens := prompt.EstimateTokens(system)
	for _, turn := range history {
		messages = append(messages, llm.ChatMessage{Role: string(turn.Role), Content: turn.Content})
		promptTokens += prompt.EstimateTokens(turn.Content)
	}
	messages = append(messages, llm.ChatMessage{Role: string(model.RoleUser), Content: req.Message})
	promptTokens += prompt.EstimateTokens(req.Message)

	var reply strings.Builder
	_, streamErr := s.llm.CompleteStream(ctx, &llm.CompletionRequest{
		Model:     s.llmModel,
		System:    system,
		Messages:  messages,
		MaxTokens: widgetMaxTokens,
		Stream:    true,
	}, func(token string, index int) error {
		reply.WriteString(token)
		return emit(model.StreamChunk{Type: "chunk", Content: token})
	})
	if streamErr != nil && reply.Len() == 0 {
		return fmt.Errorf("widget stream: %w", streamErr)
	}
	if streamErr != nil {
		s.logger.Warn("widget stream truncated by provider error", zap.Error(streamErr))
	}

	transcript := append(append([]model.Turn(nil), history...),
		model.Turn{Role: model.RoleUser, Content: req.Message})
	res := scoring.Score(transcript, reply.String())

	done := model.StreamDone{
		Type:           "done",
		IsHotLead:      res.IsHot,
		LeadScore:      res.Score,
		LeadConfidence: res.Confidence,
		LeadInfo:       res.Info,
		LeadSignals:    res.Signals,
		Debug: model.StreamDebug{
			PromptTokens:   promptTokens,
			ResponseTokens: prompt.EstimateTokens(reply.String()),
			HistoryTurns:   len(history),
		},
	}

	if res.IsHot {
		s.recordHotLead(req, transcript, reply.String(), res)
	}
	return emit(done)
}

// recordHotLead persists a widget lead off the request path. The stream's
// done frame never waits on storage or the event bus.
func (s *Session) recordHotLead(req ChatRequest, transcript []model.Turn, reply string, res scoring.Result) {
	lead := &model.Lead{
		ID:             uuid.Must(uuid.NewV7()).String(),
		TenantID:       req.TenantID,
		ChannelAddress: req.SessionID,
		Source:         model.ChannelWidget,
		Score:          res.Score,
		Confidence:     res.Confidence,
		Name:           res.Info.Name,
		Email:          res.Info.Email,
		Phone:          res.Info.Phone,
		Service:        res.Info.Service,
		Transcript:     transcriptText(append(transcript, model.Turn{Role: model.RoleAssistant, Content: reply})),
		CreatedAt:      s.now().UTC(),
	}

	persist := func(ctx context.Context) error {
		// A session that crosses the threshold on several turns produces
		// one lead, not one per turn.
		if err := s.leads.CreateLead(ctx, lead); err != nil {
			if errors.Is(err, store.ErrDuplicateLead) {
				return nil
			}
			return err
		}
		if s.notifier != nil {
			if err := s.notifier.HotLead(ctx, lead); err != nil {
				s.logger.Warn("hot lead notification failed", zap.Error(err))
			} else if err := s.leads.MarkLeadNotified(ctx, lead.ID); err != nil {
				s.logger.Warn("marking lead notified failed", zap.Error(err))
			}
		}
		return nil
	}

	if s.tasks == nil {
		if err := persist(context.Background()); err != nil {
			s.logger.Error("widget lead persistence failed",
				zap.Error(err), zap.String("session_id", req.SessionID))
		}
		return
	}
	s.tasks.Go("widget-hot-lead", persist)
}
