// Package scoring derives a lead qualification score from a conversation
// transcript. Scoring is pure and deterministic: the same transcript always
// produces the same result, with no provider calls involved.
package scoring

import (
	"regexp"
	"strings"

	"github.com/palenque-digital/conversational-platform/internal/model"
)

// Thresholds on the 0-170 scale. Scores in [WarmThreshold, HotThreshold) are
// logged as warm but fire no notification.
const (
	HotThreshold  = 90
	WarmThreshold = 60
)

// Result is the outcome of scoring one transcript.
type Result struct {
	IsHot      bool              `json:"is_hot"`
	Score      int               `json:"score"`
	Confidence int               `json:"confidence"`
	Info       model.ContactInfo `json:"info"`
	Signals    []string          `json:"signals"`
	Reason     string            `json:"reason"`
}

// signal weights. The sum of all weights is model.MaxLeadScore, so the scale
// is closed and each signal only ever adds.
const (
	weightEmail      = 40
	weightPhone      = 35
	weightUrgency    = 25
	weightBudget     = 20
	weightService    = 20
	weightName       = 10
	weightPositivity = 10
	weightDepth      = 10
)

const (
	signalEmail      = "email provided"
	signalPhone      = "phone provided"
	signalName       = "contact name given"
	signalUrgency    = "urgency language"
	signalBudget     = "budget mentioned"
	signalService    = "service interest"
	signalPositivity = "positive sentiment streak"
	signalDepth      = "sustained engagement"
)

var (
	emailRE = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRE = regexp.MustCompile(`\+?\d[\d\s().\-]{6,}\d`)

	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)me llamo\s+([\p{L}][\p{L}'\-]*(?:\s+[\p{L}][\p{L}'\-]*)?)`),
		regexp.MustCompile(`(?i)mi nombre es\s+([\p{L}][\p{L}'\-]*(?:\s+[\p{L}][\p{L}'\-]*)?)`),
		regexp.MustCompile(`(?i)my name is\s+([\p{L}][\p{L}'\-]*(?:\s+[\p{L}][\p{L}'\-]*)?)`),
		regexp.MustCompile(`(?i)\bsoy\s+([\p{L}][\p{L}'\-]*)(?:\s|,|\.|!|$)`),
	}
)

var urgencyKeywords = []string{
	"urgente", "urgencia", "cuanto antes", "lo antes posible", "ya mismo",
	"hoy mismo", "esta semana", "inmediato", "asap", "urgent", "right away",
	"this week",
}

var budgetKeywords = []string{
	"presupuesto", "invertir", "inversion", "cotizacion", "cotizar",
	"contratar", "budget", "invest", "quote", "hire",
}

// serviceKeywords map interest phrases onto the canonical service label
// reported in ContactInfo. Checked in order; first match wins.
var serviceKeywords = []struct {
	keyword string
	label   string
}{
	{"whatsapp", "asistente WhatsApp"},
	{"chatbot", "chatbot"},
	{"asistente", "asistente conversacional"},
	{"carrito", "carrito y pedidos"},
	{"pedido", "carrito y pedidos"},
	{"catalogo", "catálogo digital"},
	{"leads", "captura de leads"},
	{"sitio web", "asistente web"},
	{"pagina web", "asistente web"},
	{"website", "asistente web"},
}

var positiveKeywords = []string{
	"gracias", "excelente", "perfecto", "me interesa", "me encanta",
	"genial", "buenisimo", "great", "perfect", "interested", "love it",
}

// depthTurns is the user-turn count treated as sustained engagement.
const depthTurns = 4

var foldDiacritics = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	"ü", "u", "ñ", "n",
)

func normalize(s string) string {
	return foldDiacritics.Replace(strings.ToLower(s))
}

// Score scans the full transcript plus the final assistant reply for
// qualification signals. Adding a signal to a transcript never decreases the
// score; confidence reflects how much signal surface was observable and is an
// independent axis from the score itself.
func Score(transcript []model.Turn, finalAssistantReply string) Result {
	var userRaw strings.Builder
	userTurns := 0
	positiveTurns := 0
	for _, turn := range transcript {
		if turn.Role != model.RoleUser {
			continue
		}
		userTurns++
		userRaw.WriteString(turn.Content)
		userRaw.WriteString(" ")
		if containsAny(normalize(turn.Content), positiveKeywords) {
			positiveTurns++
		}
	}
	raw := userRaw.String()
	folded := normalize(raw)
	// The assistant reply surfaces signals too, e.g. when it echoes back a
	// captured email for confirmation.
	foldedWithReply := folded + " " + normalize(finalAssistantReply)

	res := Result{}
	res.Info = extractContact(raw + " " + finalAssistantReply)

	add := func(signal string, weight int) {
		res.Signals = append(res.Signals, signal)
		res.Score += weight
	}

	if res.Info.Email != "" {
		add(signalEmail, weightEmail)
	}
	if res.Info.Phone != "" {
		add(signalPhone, weightPhone)
	}
	if res.Info.Name != "" {
		add(signalName, weightName)
	}
	if containsAny(foldedWithReply, urgencyKeywords) {
		add(signalUrgency, weightUrgency)
	}
	if containsAny(folded, budgetKeywords) {
		add(signalBudget, weightBudget)
	}
	if res.Info.Service != "" {
		add(signalService, weightService)
	}
	if positiveTurns >= 2 {
		add(signalPositivity, weightPositivity)
	}
	if userTurns >= depthTurns {
		add(signalDepth, weightDepth)
	}

	if res.Score > model.MaxLeadScore {
		res.Score = model.MaxLeadScore
	}
	res.IsHot = res.Score >= HotThreshold
	res.Confidence = confidence(userTurns, len(res.Signals), finalAssistantReply != "")
	res.Reason = reason(res.Signals)
	return res
}

// confidence measures observable surface, not lead quality: a one-turn
// conversation cannot reach high confidence even with a perfect match.
func confidence(userTurns, signals int, hasReply bool) int {
	turns := userTurns
	if turns > 10 {
		turns = 10
	}
	c := 10 + turns*7 + signals*4
	if hasReply {
		c += 6
	}
	if c > 100 {
		c = 100
	}
	return c
}

// reason names the dominant signals for operator notifications. Populated
// even for cold results.
func reason(signals []string) string {
	if len(signals) == 0 {
		return "no qualifying signals detected"
	}
	top := signals
	if len(top) > 3 {
		top = top[:3]
	}
	return "qualified by: " + strings.Join(top, ", ")
}

func extractContact(raw string) model.ContactInfo {
	info := model.ContactInfo{}

	if m := emailRE.FindString(raw); m != "" {
		info.Email = strings.ToLower(m)
	}

	// Strip emails before phone matching so local parts with digits don't
	// masquerade as numbers.
	phoneSource := emailRE.ReplaceAllString(raw, " ")
	for _, candidate := range phoneRE.FindAllString(phoneSource, -1) {
		digits := digitCount(candidate)
		if digits >= 8 && digits <= 13 {
			info.Phone = strings.TrimSpace(candidate)
			break
		}
	}

	for _, pattern := range namePatterns {
		if m := pattern.FindStringSubmatch(raw); len(m) > 1 {
			info.Name = strings.TrimSpace(m[1])
			break
		}
	}

	folded := normalize(raw)
	for _, entry := range serviceKeywords {
		if strings.Contains(folded, entry.keyword) {
			info.Service = entry.label
			break
		}
	}
	return info
}

func containsAny(folded string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
