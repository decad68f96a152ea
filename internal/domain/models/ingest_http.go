package models

// Requests for the ingestion HTTP endpoints. Defined in domain for consistency and reuse.

// IngestMessageRequest is the webhook body the chat layer posts for each
// inbound message. PayloadB64 carries attachment bytes for screenshot/voice.
type IngestMessageRequest struct {
	UserID     string `json:"user_id" validate:"required"`
	InputType  string `json:"input_type" default:"TEXT" validate:"oneof=SCREENSHOT VOICE TEXT"`
	Text       string `json:"text" validate:"required_if=InputType TEXT"`
	PayloadB64 string `json:"payload_b64" validate:"required_unless=InputType TEXT"`
	MIME       string `json:"mime"`
	ExternalID string `json:"external_id" validate:"required"`
}

// EditSessionRequest carries field corrections for a pending session.
// Omitted fields keep the extracted values.
type EditSessionRequest struct {
	Instrument *string  `json:"instrument,omitempty"`
	Direction  *string  `json:"direction,omitempty" validate:"omitempty,oneof=LONG SHORT"`
	EntryPrice *string  `json:"entry_price,omitempty"`
	ExitPrice  *string  `json:"exit_price,omitempty"`
	StopLoss   *string  `json:"stop_loss,omitempty"`
	TakeProfit *string  `json:"take_profit,omitempty"`
	Result     *string  `json:"result,omitempty" validate:"omitempty,oneof=WIN LOSS BREAK_EVEN"`
	RMultiple  *string  `json:"r_multiple,omitempty"`
	Emotion    *string  `json:"emotion,omitempty"`
	Mistakes   []string `json:"mistakes,omitempty"`
	Notes      *string  `json:"notes,omitempty"`
}

// QuotaRequest selects the user whose quota snapshot is requested.
type QuotaRequest struct {
	UserID string `param:"user_id" json:"user_id" validate:"required"`
}
