package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_PlainObject(t *testing.T) {
	res := ExtractJSON(`{"intent":"greeting","confidence":0.92}`)
	require.True(t, res.OK)

	var out map[string]any
	require.NoError(t, json.Unmarshal(res.Raw, &out))
	assert.Equal(t, "greeting", out["intent"])
}

func TestExtractJSON_WrappedInProse(t *testing.T) {
	text := "Sure! Here is the analysis you asked for:\n```json\n{\"intent\":\"place_order\",\"entities\":{\"quantity\":2}}\n```\nLet me know if you need anything else."
	res := ExtractJSON(text)
	require.True(t, res.OK)

	var out struct {
		Intent   string `json:"intent"`
		Entities struct {
			Quantity int `json:"quantity"`
		} `json:"entities"`
	}
	require.NoError(t, json.Unmarshal(res.Raw, &out))
	assert.Equal(t, "place_order", out.Intent)
	assert.Equal(t, 2, out.Entities.Quantity)
}

func TestExtractJSON_NestedBracesInStrings(t *testing.T) {
	res := ExtractJSON(`{"reason":"user said \"{hola}\" twice","ok":true}`)
	require.True(t, res.OK)
}

func TestExtractJSON_Fallbacks(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"no object":  "I could not produce a classification.",
		"unbalanced": `{"intent":"greeting"`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			res := ExtractJSON(text)
			assert.False(t, res.OK)
			assert.NotEmpty(t, res.Reason)
		})
	}
}
