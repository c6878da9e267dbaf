package model

// Widget stream frames. The widget endpoint emits chunk frames while tokens
// arrive, then exactly one done frame carrying the post-stream lead analysis.

// StreamChunk is one incremental token frame.
type StreamChunk struct {
	Type    string `json:"type"` // always "chunk"
	Content string `json:"content"`
}

// StreamDebug carries telemetry for the done frame. Token counts are the
// cheap ceil(len/4) estimate, not provider-reported usage.
type StreamDebug struct {
	PromptTokens   int `json:"promptTokens"`
	ResponseTokens int `json:"responseTokens"`
	HistoryTurns   int `json:"historyTurns"`
}

// StreamDone terminates a widget stream with the lead analysis of the full
// transcript.
type StreamDone struct {
	Type           string      `json:"type"` // always "done"
	IsHotLead      bool        `json:"isHotLead"`
	LeadScore      int         `json:"leadScore"`
	LeadConfidence int         `json:"leadConfidence"`
	LeadInfo       ContactInfo `json:"leadInfo"`
	LeadSignals    []string    `json:"leadSignals"`
	Debug          StreamDebug `json:"debug"`
}
