package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palenque-digital/conversational-platform/internal/llm"
	"github.com/palenque-digital/conversational-platform/internal/model"
	"github.com/palenque-digital/conversational-platform/pkg/logger"
)

// stubClient returns a canned completion or error.
type stubClient struct {
	content string
	err     error
	lastReq *llm.CompletionRequest
}

func (s *stubClient) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content}, nil
}

func (s *stubClient) CompleteStream(ctx context.Context, req *llm.CompletionRequest, cb llm.StreamCallback) (*llm.CompletionResponse, error) {
	return s.Complete(ctx, req)
}

func (s *stubClient) Name() string     { return "stub" }
func (s *stubClient) Models() []string { return nil }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)
	return log
}

func TestClassify_ParsesProviderJSON(t *testing.T) {
	client := &stubClient{content: `Claro, aquí está:
{"intent":"place_order","confidence":0.88,"entities":{"product":"espadín","product_type":null,"quantity":2,"presentation":"750ml","location":null,"mentioned_price":null,"urgent":null},"sentiment":"positive"}`}
	c := NewClassifier(client, "", testLogger(t))

	got := c.Classify(context.Background(), "Quiero 2 botellas de espadín de 750ml", nil)

	assert.Equal(t, model.IntentPlaceOrder, got.Intent)
	assert.InDelta(t, 0.88, got.Confidence, 1e-9)
	require.NotNil(t, got.Entities.Product)
	assert.Equal(t, "espadín", *got.Entities.Product)
	require.NotNil(t, got.Entities.Quantity)
	assert.Equal(t, 2, *got.Entities.Quantity)
	assert.Nil(t, got.Entities.Location)
	assert.Equal(t, model.SentimentPositive, got.Sentiment)
}

func TestClassify_ProviderErrorFallsBack(t *testing.T) {
	client := &stubClient{err: errors.New("connection refused")}
	c := NewClassifier(client, "", testLogger(t))

	got := c.Classify(context.Background(), "hola", nil)

	assert.Equal(t, model.IntentOther, got.Intent)
	assert.InDelta(t, 0.3, got.Confidence, 1e-9)
	assert.Equal(t, model.SentimentNeutral, got.Sentiment)
}

func TestClassify_UnparseableOutputFallsBack(t *testing.T) {
	client := &stubClient{content: "I am unable to classify this message."}
	c := NewClassifier(client, "", testLogger(t))

	got := c.Classify(context.Background(), "hola", nil)
	assert.Equal(t, model.FallbackClassification(), got)
}

func TestClassify_UnknownIntentFallsBack(t *testing.T) {
	client := &stubClient{content: `{"intent":"buy_stocks","confidence":0.9,"entities":{},"sentiment":"neutral"}`}
	c := NewClassifier(client, "", testLogger(t))

	got := c.Classify(context.Background(), "hola", nil)
	assert.Equal(t, model.IntentOther, got.Intent)
}

func TestClassify_ClampsConfidence(t *testing.T) {
	client := &stubClient{content: `{"intent":"greeting","confidence":1.7,"entities":{},"sentiment":"neutral"}`}
	c := NewClassifier(client, "", testLogger(t))

	got := c.Classify(context.Background(), "hola", nil)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestClassify_BoundsHistoryInPrompt(t *testing.T) {
	client := &stubClient{content: `{"intent":"greeting","confidence":0.9,"entities":{},"sentiment":"neutral"}`}
	c := NewClassifier(client, "", testLogger(t))

	history := make([]model.Turn, 20)
	for i := range history {
		history[i] = model.Turn{Role: model.RoleUser, Content: "mensaje"}
	}
	c.Classify(context.Background(), "hola", history)

	require.NotNil(t, client.lastReq)
	prompt := client.lastReq.Messages[0].Content
	// Only the bounded tail of history should be present.
	assert.LessOrEqual(t, len(prompt), 2000)
}
