package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func weekdays() [7]bool {
	// Monday through Friday.
	return [7]bool{false, true, true, true, true, true, false}
}

func TestBusinessHours_DisabledIsAlwaysOpen(t *testing.T) {
	h := BusinessHours{Enabled: false}
	assert.True(t, h.Within(time.Date(2026, 8, 30, 3, 0, 0, 0, time.UTC)))
}

func TestBusinessHours_InsideWindow(t *testing.T) {
	h := BusinessHours{Enabled: true, Timezone: "UTC", OpenHour: 9, CloseHour: 18, Days: weekdays()}

	// Friday 10:00 UTC.
	assert.True(t, h.Within(time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)))
	// Friday 18:00 is already closed; the close hour is exclusive.
	assert.False(t, h.Within(time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC)))
	// Sunday is off.
	assert.False(t, h.Within(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)))
}

func TestBusinessHours_TimezoneApplied(t *testing.T) {
	h := BusinessHours{Enabled: true, Timezone: "America/Mexico_City", OpenHour: 9, CloseHour: 18, Days: weekdays()}

	// 14:00 UTC on a Friday is 08:00 in Mexico City: still closed.
	assert.False(t, h.Within(time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)))
	// 16:00 UTC is 10:00 local: open.
	assert.True(t, h.Within(time.Date(2026, 8, 28, 16, 0, 0, 0, time.UTC)))
}

func TestBusinessHours_WindowCrossingMidnight(t *testing.T) {
	all := [7]bool{true, true, true, true, true, true, true}
	h := BusinessHours{Enabled: true, Timezone: "UTC", OpenHour: 20, CloseHour: 2, Days: all}

	assert.True(t, h.Within(time.Date(2026, 8, 28, 21, 0, 0, 0, time.UTC)))
	assert.True(t, h.Within(time.Date(2026, 8, 28, 1, 0, 0, 0, time.UTC)))
	assert.False(t, h.Within(time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)))
}

func TestBusinessHours_BadTimezoneFallsBackToUTC(t *testing.T) {
	h := BusinessHours{Enabled: true, Timezone: "Mars/Olympus", OpenHour: 9, CloseHour: 18, Days: weekdays()}
	assert.True(t, h.Within(time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)))
}

func TestCartDraftSummary(t *testing.T) {
	draft := CartDraft{Lines: []CartLine{
		{ProductName: "Espadín", Presentation: "750ml", Quantity: 2, UnitPrice: 400},
		{ProductName: "Tobalá", Quantity: 1, UnitPrice: 900},
	}}
	draft.Recalculate()

	assert.Equal(t, 1700.0, draft.Subtotal)
	summary := draft.Summary()
	assert.Contains(t, summary, "• 2 x Espadín (750ml) — $800.00")
	assert.Contains(t, summary, "• 1 x Tobalá — $900.00")
	assert.Contains(t, summary, "Total: $1700.00")

	empty := CartDraft{}
	assert.Empty(t, empty.Summary())
}
