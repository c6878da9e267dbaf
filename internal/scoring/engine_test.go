package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palenque-digital/conversational-platform/internal/model"
)

func user(content string) model.Turn {
	return model.Turn{Role: model.RoleUser, Content: content}
}

func assistant(content string) model.Turn {
	return model.Turn{Role: model.RoleAssistant, Content: content}
}

func TestScore_Deterministic(t *testing.T) {
	transcript := []model.Turn{
		user("Hola, me interesa un chatbot"),
		assistant("Claro, ¿para qué giro?"),
		user("Mezcal. Es urgente, mi correo es ana@mezcal.mx"),
	}
	a := Score(transcript, "Perfecto Ana, te contactamos hoy.")
	b := Score(transcript, "Perfecto Ana, te contactamos hoy.")
	assert.Equal(t, a, b)
}

func TestScore_MonotoneUnderAddedSignals(t *testing.T) {
	base := []model.Turn{
		user("Hola, quiero informacion"),
		assistant("Con gusto, ¿qué necesitas?"),
	}
	additions := []model.Turn{
		user("Me interesa un chatbot para whatsapp"),
		user("Tengo presupuesto aprobado"),
		user("Es urgente, lo necesito esta semana"),
		user("Mi correo es maria@agave.mx"),
		user("Mi teléfono es 951 123 4567"),
	}

	prev := Score(base, "")
	transcript := base
	for _, turn := range additions {
		transcript = append(transcript, turn)
		next := Score(transcript, "")
		assert.GreaterOrEqual(t, next.Score, prev.Score,
			"adding %q must never decrease score", turn.Content)
		prev = next
	}
}

func TestScore_RangeBounds(t *testing.T) {
	// Every signal at once stays within the declared scale.
	transcript := []model.Turn{
		user("Hola, me llamo Ana Martinez y me interesa un chatbot para whatsapp"),
		assistant("¡Hola Ana!"),
		user("Gracias, excelente servicio. Tengo presupuesto y quiero contratar"),
		user("Es urgente, esta semana. Mi correo es ana@mezcal.mx"),
		user("Perfecto, mi teléfono es +52 951 123 4567"),
		user("Me encanta, gracias"),
	}
	res := Score(transcript, "Listo Ana.")

	assert.LessOrEqual(t, res.Score, model.MaxLeadScore)
	assert.GreaterOrEqual(t, res.Score, 0)
	assert.LessOrEqual(t, res.Confidence, 100)
	assert.GreaterOrEqual(t, res.Confidence, 0)
	assert.True(t, res.IsHot)
}

func TestScore_EmptyTranscript(t *testing.T) {
	res := Score(nil, "")
	assert.Zero(t, res.Score)
	assert.False(t, res.IsHot)
	assert.Equal(t, "no qualifying signals detected", res.Reason)
	assert.NotEmpty(t, res.Reason)
}

func TestScore_HotThresholdGatesIsHot(t *testing.T) {
	// Email + phone + urgency = 100 >= HotThreshold.
	hot := Score([]model.Turn{
		user("Es urgente. Correo ana@mezcal.mx, tel 9511234567"),
	}, "")
	assert.True(t, hot.IsHot)
	assert.GreaterOrEqual(t, hot.Score, HotThreshold)

	// Urgency + budget = 45: warm at most, never hot.
	warm := Score([]model.Turn{
		user("Es urgente y tengo presupuesto"),
	}, "")
	assert.False(t, warm.IsHot)
	assert.Less(t, warm.Score, HotThreshold)
	assert.NotEmpty(t, warm.Reason)
}

func TestScore_ConfidenceIsIndependentOfScore(t *testing.T) {
	// One turn with strong signals: high score, modest confidence.
	short := Score([]model.Turn{
		user("Urgente: ana@mezcal.mx, 9511234567"),
	}, "")

	// Long conversation with no signals: low score, higher confidence.
	var long []model.Turn
	for i := 0; i < 8; i++ {
		long = append(long, user("cuentame mas del producto"), assistant("claro"))
	}
	deep := Score(long, "ok")

	assert.Greater(t, short.Score, deep.Score)
	assert.Greater(t, deep.Confidence, short.Confidence-20)
	assert.Less(t, short.Confidence, 70, "a short conversation cannot reach high confidence")
}

func TestScore_ContactExtraction(t *testing.T) {
	transcript := []model.Turn{
		user("Hola, me llamo Carla Ruiz"),
		user("Mi correo es Carla.Ruiz@Agave.MX y mi cel es +52 951 123 4567"),
		user("Me interesa el asistente para whatsapp"),
	}
	res := Score(transcript, "")

	assert.Equal(t, "carla.ruiz@agave.mx", res.Info.Email)
	assert.Equal(t, "Carla Ruiz", res.Info.Name)
	assert.NotEmpty(t, res.Info.Phone)
	assert.Equal(t, "asistente WhatsApp", res.Info.Service)
}

func TestScore_MissingFieldsAreOmittedNotGuessed(t *testing.T) {
	res := Score([]model.Turn{user("hola, quiero saber mas")}, "")
	assert.Empty(t, res.Info.Name)
	assert.Empty(t, res.Info.Email)
	assert.Empty(t, res.Info.Phone)
}

func TestScore_SignalInAssistantReply(t *testing.T) {
	// Urgency surfacing only in the final assistant reply still counts.
	without := Score([]model.Turn{user("hola")}, "")
	with := Score([]model.Turn{user("hola")}, "Entiendo que es urgente, te atendemos hoy.")
	require.Greater(t, with.Score, without.Score)
}
