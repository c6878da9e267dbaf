// Package prompt assembles the system instructions sent to the LLM per turn.
// Topic blocks are appended only when triggered by the message, so each turn
// pays tokens for the sections it actually needs.
package prompt

import (
	"strings"

	"github.com/palenque-digital/conversational-platform/internal/model"
)

// Topic identifies one conditionally appended instruction block.
type Topic string

const (
	TopicPricing     Topic = "pricing"
	TopicContact     Topic = "contact"
	TopicCaseStudies Topic = "case_studies"
	TopicObjections  Topic = "objections"
	TopicFlow        Topic = "flow"
	TopicHotLead     Topic = "hot_lead"
)

// TopicBlock pairs a trigger keyword list with the instruction text appended
// when it fires. A block with no keywords never fires on keywords alone.
type TopicBlock struct {
	Topic    Topic
	Keywords []string
	Text     string
}

// Config is the immutable prompt configuration, loaded once at process start
// and injected into the builder. Blocks are evaluated and appended in slice
// order; that order is part of the output contract.
type Config struct {
	Base   string
	Blocks []TopicBlock
}

// Builder evaluates triggers and concatenates the matching blocks.
type Builder struct {
	cfg Config
}

// NewBuilder creates a builder over an immutable config.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// flowBootstrapTurns is how many opening turns receive conversation-flow
// guidance regardless of keywords.
const flowBootstrapTurns = 2

// Build returns the full system prompt for one turn: the base block plus
// every triggered topic block, concatenated in fixed order. Blocks are never
// merged or deduplicated.
func (b *Builder) Build(message string, history []model.Turn) string {
	var out strings.Builder
	out.WriteString(b.cfg.Base)
	for _, topic := range b.Topics(message, history) {
		for _, block := range b.cfg.Blocks {
			if block.Topic == topic {
				out.WriteString("\n\n")
				out.WriteString(block.Text)
			}
		}
	}
	return out.String()
}

// Topics returns the triggered topics for a turn, in block order. Exposed so
// callers can log which sections a turn paid for.
func (b *Builder) Topics(message string, history []model.Turn) []Topic {
	normalized := normalize(message)
	var fired []Topic
	for _, block := range b.cfg.Blocks {
		if block.Topic == TopicFlow {
			// Conversation-flow guidance bootstraps the first turns
			// only, independent of keywords.
			if len(history) <= flowBootstrapTurns {
				fired = append(fired, block.Topic)
			}
			continue
		}
		if containsAny(normalized, block.Keywords) {
			fired = append(fired, block.Topic)
		}
	}
	return fired
}

// EstimateTokens approximates token count as ceil(len/4). A cheap proxy for
// telemetry, never a hard limit.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

func containsAny(normalized string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(normalized, normalize(kw)) {
			return true
		}
	}
	return false
}

// foldDiacritics maps the accented characters that show up in Spanish chat
// text onto their bare forms so keyword matching is diacritic-insensitive.
var foldDiacritics = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	"ü", "u", "ñ", "n",
)

func normalize(s string) string {
	return foldDiacritics.Replace(strings.ToLower(s))
}
