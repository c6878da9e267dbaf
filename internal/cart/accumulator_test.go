package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palenque-digital/conversational-platform/internal/model"
	"github.com/palenque-digital/conversational-platform/internal/store"
	"github.com/palenque-digital/conversational-platform/pkg/logger"
)

func testAccumulator(t *testing.T) (*Accumulator, *store.Memory, *model.Conversation) {
	t.Helper()
	mem := store.NewMemory()
	mem.SeedTenant(
		&model.Tenant{ID: "t1", Name: "Palenque Tres Hermanos"},
		nil,
		&model.Product{ID: "p-espadin", TenantID: "t1", Name: "Espadín", Presentation: "750ml", Price: 400, Active: true},
		&model.Product{ID: "p-tobala", TenantID: "t1", Name: "Tobalá", Presentation: "750ml", Price: 900, Active: true},
	)
	log, err := logger.New("error")
	require.NoError(t, err)
	conv := &model.Conversation{ID: "c1", TenantID: "t1"}
	return NewAccumulator(mem, log), mem, conv
}

func strptr(s string) *string { return &s }
func intptr(n int) *int       { return &n }

func TestFromEntities(t *testing.T) {
	got := FromEntities(model.Entities{
		Product:      strptr("Espadín"),
		Quantity:     intptr(2),
		Presentation: strptr("750ml"),
	})
	require.Len(t, got, 1)
	assert.Equal(t, ExtractedProduct{Name: "Espadín", Quantity: 2, Presentation: "750ml"}, got[0])
}

func TestFromEntities_DefaultsQuantityToOne(t *testing.T) {
	got := FromEntities(model.Entities{Product: strptr("Tobalá")})
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Quantity)
}

func TestFromEntities_NoProduct(t *testing.T) {
	assert.Nil(t, FromEntities(model.Entities{Quantity: intptr(3)}))
	assert.Nil(t, FromEntities(model.Entities{Product: strptr("  ")}))
}

func TestAddToCart_CreatesDraft(t *testing.T) {
	acc, _, conv := testAccumulator(t)

	draft, err := acc.AddToCart(context.Background(), conv, []ExtractedProduct{
		{Name: "espadín", Quantity: 2, Presentation: "750ml"},
	})
	require.NoError(t, err)

	require.Len(t, draft.Lines, 1)
	assert.Equal(t, "p-espadin", draft.Lines[0].ProductID)
	assert.Equal(t, 2, draft.Lines[0].Quantity)
	assert.Equal(t, 800.0, draft.Lines[0].Subtotal)
	assert.Equal(t, 800.0, draft.Subtotal)
	assert.Equal(t, model.CartActive, draft.Status)
}

func TestAddToCart_MergesSameProductAcrossTurns(t *testing.T) {
	acc, mem, conv := testAccumulator(t)
	ctx := context.Background()

	_, err := acc.AddToCart(ctx, conv, []ExtractedProduct{{Name: "Espadín", Quantity: 2}})
	require.NoError(t, err)
	draft, err := acc.AddToCart(ctx, conv, []ExtractedProduct{{Name: "espadin 750", Quantity: 1}})
	require.NoError(t, err)

	require.Len(t, draft.Lines, 1, "same product must merge, not duplicate")
	assert.Equal(t, 3, draft.Lines[0].Quantity)
	assert.Equal(t, 1200.0, draft.Subtotal)

	stored, err := mem.ActiveCart(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, stored.ID)
}

func TestAddToCart_DistinctProductsGetDistinctLines(t *testing.T) {
	acc, _, conv := testAccumulator(t)
	ctx := context.Background()

	_, err := acc.AddToCart(ctx, conv, []ExtractedProduct{{Name: "Espadín", Quantity: 1}})
	require.NoError(t, err)
	draft, err := acc.AddToCart(ctx, conv, []ExtractedProduct{{Name: "Tobalá", Quantity: 1}})
	require.NoError(t, err)

	require.Len(t, draft.Lines, 2)
	assert.Equal(t, 1300.0, draft.Subtotal)
}

func TestAddToCart_UnknownProductIsDropped(t *testing.T) {
	acc, _, conv := testAccumulator(t)
	ctx := context.Background()

	// Nothing resolvable and no prior draft: no draft is created.
	_, err := acc.AddToCart(ctx, conv, []ExtractedProduct{{Name: "Bacanora", Quantity: 1}})
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Mixed batch: the unknown reference is dropped, the rest lands.
	draft, err := acc.AddToCart(ctx, conv, []ExtractedProduct{
		{Name: "Bacanora", Quantity: 1},
		{Name: "Espadín", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, draft.Lines, 1)
	assert.Equal(t, "p-espadin", draft.Lines[0].ProductID)
}

func TestAddToCart_SummaryFormat(t *testing.T) {
	acc, _, conv := testAccumulator(t)

	draft, err := acc.AddToCart(context.Background(), conv, []ExtractedProduct{
		{Name: "Espadín", Quantity: 2, Presentation: "750ml"},
	})
	require.NoError(t, err)

	summary := draft.Summary()
	assert.Contains(t, summary, "🛒 Tu pedido:")
	assert.Contains(t, summary, "• 2 x Espadín (750ml) — $800.00")
	assert.Contains(t, summary, "Total: $800.00")
}
