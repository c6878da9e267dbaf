package model

import (
	"time"
)

// Tenant is a business account whose conversations, catalog and configuration
// are isolated from other tenants.
type Tenant struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	GatewayNumber string    `json:"gateway_number"`
	DefaultMode   Mode      `json:"default_mode"`
	CreatedAt     time.Time `json:"created_at"`
}

// BusinessHours is a weekly window during which the assistant replies.
// Outside the window the configured out-of-hours message is sent instead and
// no classification runs.
type BusinessHours struct {
	Enabled   bool    `json:"enabled"`
	Timezone  string  `json:"timezone"`
	OpenHour  int     `json:"open_hour"`
	CloseHour int     `json:"close_hour"`
	Days      [7]bool `json:"days"` // indexed by time.Weekday, Sunday = 0
}

// Within reports whether now falls inside the window. A window whose open
// hour is past its close hour crosses midnight.
func (h BusinessHours) Within(now time.Time) bool {
	if !h.Enabled {
		return true
	}
	loc := time.UTC
	if h.Timezone != "" {
		if l, err := time.LoadLocation(h.Timezone); err == nil {
			loc = l
		}
	}
	local := now.In(loc)
	if !h.Days[int(local.Weekday())] {
		return false
	}
	hour := local.Hour()
	if h.OpenHour == h.CloseHour {
		return true
	}
	if h.OpenHour < h.CloseHour {
		return hour >= h.OpenHour && hour < h.CloseHour
	}
	return hour >= h.OpenHour || hour < h.CloseHour
}

// ChatbotConfig is the per-tenant behavior of the automated assistant.
type ChatbotConfig struct {
	TenantID          string        `json:"tenant_id"`
	Enabled           bool          `json:"enabled"`
	Mode              Mode          `json:"mode"`
	WelcomeMessage    string        `json:"welcome_message"`
	OutOfHoursMessage string        `json:"out_of_hours_message"`
	Persona           string        `json:"persona"`
	Temperature       float64       `json:"temperature"`
	Hours             BusinessHours `json:"hours"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// DefaultChatbotConfig returns sensible defaults for tenants that never
// configured the assistant: enabled, passive, always within hours.
func DefaultChatbotConfig(tenantID string) *ChatbotConfig {
	return &ChatbotConfig{
		TenantID:          tenantID,
		Enabled:           true,
		Mode:              ModePassive,
		WelcomeMessage:    "¡Hola! Gracias por escribirnos. En breve un asesor te atenderá.",
		OutOfHoursMessage: "Gracias por tu mensaje. Nuestro horario de atención es de 9:00 a 18:00. Te responderemos en cuanto abramos.",
		Persona:           "Eres un asistente de ventas amable y conocedor de mezcal artesanal.",
		Temperature:       0.7,
		Hours:             BusinessHours{Enabled: false},
	}
}
