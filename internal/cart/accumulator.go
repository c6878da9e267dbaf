// Package cart accumulates order drafts from extracted product entities.
package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/palenque-digital/conversational-platform/internal/model"
	"github.com/palenque-digital/conversational-platform/internal/store"
	"github.com/palenque-digital/conversational-platform/pkg/logger"
)

// Store is the slice of the conversation store the accumulator needs.
type Store interface {
	store.Carts
	store.Catalog
}

// ExtractedProduct is one product mention pulled from classifier entities.
type ExtractedProduct struct {
	Name         string
	Quantity     int
	Presentation string
}

// FromEntities converts classifier entities into product tuples. A mentioned
// product with no quantity defaults to one.
func FromEntities(e model.Entities) []ExtractedProduct {
	if e.Product == nil || strings.TrimSpace(*e.Product) == "" {
		return nil
	}
	p := ExtractedProduct{Name: strings.TrimSpace(*e.Product), Quantity: 1}
	if e.Quantity != nil && *e.Quantity > 0 {
		p.Quantity = *e.Quantity
	}
	if e.Presentation != nil {
		p.Presentation = strings.TrimSpace(*e.Presentation)
	}
	return []ExtractedProduct{p}
}

// Accumulator resolves product mentions against the tenant catalog and folds
// them into the conversation's active draft.
type Accumulator struct {
	store  Store
	logger *logger.Logger
}

// NewAccumulator creates a cart accumulator.
func NewAccumulator(s Store, log *logger.Logger) *Accumulator {
	return &Accumulator{store: s, logger: log}
}

// AddToCart resolves each extracted product and merges it into the active
// draft, creating one if none exists. Unknown product references are dropped,
// not errored: classification is best-effort and a bad extraction must not
// break the turn. Lines for the same (product, presentation) merge by
// incrementing quantity.
func (a *Accumulator) AddToCart(ctx context.Context, conv *model.Conversation, items []ExtractedProduct) (*model.CartDraft, error) {
	draft, err := a.store.ActiveCart(ctx, conv.ID)
	if errors.Is(err, store.ErrNotFound) {
		now := time.Now().UTC()
		draft = &model.CartDraft{
			ID:             uuid.Must(uuid.NewV7()).String(),
			ConversationID: conv.ID,
			Status:         model.CartActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	} else if err != nil {
		return nil, err
	}

	added := 0
	for _, item := range items {
		if item.Name == "" || item.Quantity <= 0 {
			continue
		}
		product, err := a.store.FindProduct(ctx, conv.TenantID, item.Name, item.Presentation)
		if errors.Is(err, store.ErrNotFound) {
			a.logger.Info("dropping unknown product reference",
				zap.String("tenant_id", conv.TenantID),
				zap.String("product", item.Name))
			continue
		}
		if err != nil {
			return nil, err
		}
		a.mergeLine(draft, product, item.Quantity)
		added++
	}

	if added == 0 && len(draft.Lines) == 0 {
		// Nothing resolved and nothing accumulated before: no draft.
		return nil, store.ErrNotFound
	}

	draft.Recalculate()
	if err := a.store.SaveCart(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (a *Accumulator) mergeLine(draft *model.CartDraft, product *model.Product, quantity int) {
	for i := range draft.Lines {
		if draft.Lines[i].ProductID == product.ID {
			draft.Lines[i].Quantity += quantity
			return
		}
	}
	draft.Lines = append(draft.Lines, model.CartLine{
		ProductID:    product.ID,
		ProductName:  product.Name,
		Presentation: product.Presentation,
		Quantity:     quantity,
		UnitPrice:    product.Price,
	})
}
