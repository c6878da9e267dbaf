// Package intent classifies inbound messages into the platform's closed
// intent set.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/palenque-digital/conversational-platform/internal/llm"
	"github.com/palenque-digital/conversational-platform/internal/model"
	"github.com/palenque-digital/conversational-platform/pkg/logger"
)

const (
	classifyMaxTokens   = 400
	classifyTemperature = 0.1
	maxHistoryTurns     = 6
)

// Classifier turns one inbound message plus recent history into a structured
// classification. It never returns an error: provider failures and
// unparseable output degrade to the fallback result so the orchestrator
// always has a decision to act on.
type Classifier struct {
	client llm.Client
	model  string
	logger *logger.Logger
}

// NewClassifier creates a classifier on top of an LLM client. model may be
// empty to use the provider default.
func NewClassifier(client llm.Client, model string, log *logger.Logger) *Classifier {
	return &Classifier{client: client, model: model, logger: log}
}

// wire shape requested from the provider. Pointer fields keep "not mentioned"
// distinguishable from "mentioned as empty".
type classificationWire struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   model.Entities `json:"entities"`
	Sentiment  string         `json:"sentiment"`
}

// Classify returns the classification for message given recent history.
func (c *Classifier) Classify(ctx context.Context, message string, history []model.Turn) model.Classification {
	if c.client == nil {
		return model.FallbackClassification()
	}

	resp, err := c.client.Complete(ctx, &llm.CompletionRequest{
		Model:       c.model,
		System:      classifySystemPrompt,
		Messages:    []llm.ChatMessage{{Role: string(model.RoleUser), Content: c.buildPrompt(message, history)}},
		MaxTokens:   classifyMaxTokens,
		Temperature: classifyTemperature,
	})
	if err != nil {
		c.logger.Warn("classification call failed, using fallback", zap.Error(err))
		return model.FallbackClassification()
	}

	parsed := llm.ExtractJSON(resp.Content)
	if !parsed.OK {
		c.logger.Warn("classification response unparseable, using fallback",
			zap.String("reason", parsed.Reason))
		return model.FallbackClassification()
	}

	var wire classificationWire
	if err := json.Unmarshal(parsed.Raw, &wire); err != nil {
		c.logger.Warn("classification JSON mismatch, using fallback", zap.Error(err))
		return model.FallbackClassification()
	}

	result := model.Classification{
		Intent:     model.Intent(wire.Intent),
		Confidence: clamp01(wire.Confidence),
		Entities:   wire.Entities,
		Sentiment:  normalizeSentiment(wire.Sentiment),
	}
	if !result.Intent.Valid() {
		c.logger.Warn("classifier returned unknown intent, using fallback",
			zap.String("intent", wire.Intent))
		return model.FallbackClassification()
	}
	return result
}

const classifySystemPrompt = `You classify customer messages for an artisanal mezcal business. ` +
	`Respond with a single JSON object and nothing else.`

func (c *Classifier) buildPrompt(message string, history []model.Turn) string {
	var b strings.Builder

	b.WriteString("Classify the last customer message into exactly one intent from this list:\n")
	for _, it := range model.AllIntents {
		b.WriteString(string(it))
		b.WriteString(", ")
	}
	b.WriteString("\n\nExtract entities when present. Use null for anything not mentioned.\n")
	b.WriteString(`Respond with: {"intent": "...", "confidence": 0.0-1.0, "entities": {"product": null, "product_type": null, "quantity": null, "presentation": null, "location": null, "mentioned_price": null, "urgent": null}, "sentiment": "positive|neutral|negative"}` + "\n")

	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	if len(history) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
	}

	fmt.Fprintf(&b, "\nCustomer message: %s\n", message)
	return b.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func normalizeSentiment(s string) model.Sentiment {
	switch model.Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case model.SentimentPositive:
		return model.SentimentPositive
	case model.SentimentNegative:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}
