package model

import (
	"time"
)

// Intent is the closed set of intents the classifier may emit. Decision
// points switch over every value so a new intent is a compile-visible change,
// not a silent fallthrough.
type Intent string

const (
	IntentGreeting        Intent = "greeting"
	IntentCatalogInquiry  Intent = "catalog_inquiry"
	IntentPriceInquiry    Intent = "price_inquiry"
	IntentStockInquiry    Intent = "stock_inquiry"
	IntentPlaceOrder      Intent = "place_order"
	IntentConfirmOrder    Intent = "confirm_order"
	IntentCancelOrder     Intent = "cancel_order"
	IntentModifyOrder     Intent = "modify_order"
	IntentShippingInquiry Intent = "shipping_inquiry"
	IntentPaymentInquiry  Intent = "payment_inquiry"
	IntentRequestHuman    Intent = "request_human"
	IntentThanks          Intent = "thanks"
	IntentGoodbye         Intent = "goodbye"
	IntentComplaint       Intent = "complaint"
	IntentOther           Intent = "other"
)

// AllIntents lists every valid intent, in a stable order, for prompt
// construction and validation.
var AllIntents = []Intent{
	IntentGreeting,
	IntentCatalogInquiry,
	IntentPriceInquiry,
	IntentStockInquiry,
	IntentPlaceOrder,
	IntentConfirmOrder,
	IntentCancelOrder,
	IntentModifyOrder,
	IntentShippingInquiry,
	IntentPaymentInquiry,
	IntentRequestHuman,
	IntentThanks,
	IntentGoodbye,
	IntentComplaint,
	IntentOther,
}

// Valid reports whether i is a member of the closed intent set.
func (i Intent) Valid() bool {
	for _, known := range AllIntents {
		if i == known {
			return true
		}
	}
	return false
}

// Sentiment is an input signal for scoring. It never gates behavior directly.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Entities are extracted opportunistically from a message. A nil field means
// "not mentioned"; an empty string means "mentioned as empty". Downstream code
// relies on that distinction, so fields are pointers and serialize as explicit
// nulls.
type Entities struct {
	Product        *string  `json:"product"`
	ProductType    *string  `json:"product_type"`
	Quantity       *int     `json:"quantity"`
	Presentation   *string  `json:"presentation"`
	Location       *string  `json:"location"`
	MentionedPrice *float64 `json:"mentioned_price"`
	Urgent         *bool    `json:"urgent"`
}

// Classification is one classifier result before persistence.
type Classification struct {
	Intent     Intent    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Entities   Entities  `json:"entities"`
	Sentiment  Sentiment `json:"sentiment"`
}

// FallbackClassification is returned whenever the provider call fails or its
// output cannot be parsed, so the orchestrator always has a decision to act on.
func FallbackClassification() Classification {
	return Classification{
		Intent:     IntentOther,
		Confidence: 0.3,
		Sentiment:  SentimentNeutral,
	}
}

// DetectedIntent is one classification attached to a conversation at a point
// in time. The log is append-only; the conversation's current intent is a
// denormalized pointer to the latest row.
type DetectedIntent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Intent         Intent    `json:"intent"`
	Confidence     float64   `json:"confidence"`
	Entities       Entities  `json:"entities"`
	Sentiment      Sentiment `json:"sentiment"`

	// ResponseText is backfilled best-effort with the reply actually sent.
	ResponseText *string `json:"response_text,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
