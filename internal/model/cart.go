package model

import (
	"fmt"
	"strings"
	"time"
)

// CartStatus is the lifecycle state of a cart draft.
type CartStatus string

const (
	CartActive    CartStatus = "active"
	CartConfirmed CartStatus = "confirmed"
	CartAbandoned CartStatus = "abandoned"
)

// CartLine is one product line in a draft.
type CartLine struct {
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	Presentation string  `json:"presentation,omitempty"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	Subtotal     float64 `json:"subtotal"`
}

// CartDraft is an in-progress, unconfirmed order accumulated across turns.
// A conversation has at most one active draft.
type CartDraft struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Status         CartStatus `json:"status"`
	Lines          []CartLine `json:"lines"`
	Subtotal       float64    `json:"subtotal"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Recalculate recomputes line subtotals and the draft total.
func (c *CartDraft) Recalculate() {
	var total float64
	for i := range c.Lines {
		c.Lines[i].Subtotal = c.Lines[i].UnitPrice * float64(c.Lines[i].Quantity)
		total += c.Lines[i].Subtotal
	}
	c.Subtotal = total
}

// Summary renders the draft for inclusion in an outgoing chat message.
func (c *CartDraft) Summary() string {
	if len(c.Lines) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n🛒 Tu pedido:\n")
	for _, line := range c.Lines {
		name := line.ProductName
		if line.Presentation != "" {
			name = fmt.Sprintf("%s (%s)", name, line.Presentation)
		}
		fmt.Fprintf(&b, "• %d x %s — $%.2f\n", line.Quantity, name, line.Subtotal)
	}
	fmt.Fprintf(&b, "Total: $%.2f", c.Subtotal)
	return b.String()
}

// Product is one catalog entry belonging to a tenant.
type Product struct {
	ID           string  `json:"id"`
	TenantID     string  `json:"tenant_id"`
	Name         string  `json:"name"`
	Presentation string  `json:"presentation,omitempty"`
	Price        float64 `json:"price"`
	Active       bool    `json:"active"`
}
