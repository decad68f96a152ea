package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction of a trade.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Valid reports whether the direction is a known value.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Result of a closed trade.
type Result string

const (
	ResultWin       Result = "WIN"
	ResultLoss      Result = "LOSS"
	ResultBreakEven Result = "BREAK_EVEN"
)

// Valid reports whether the result is a known value.
func (r Result) Valid() bool {
	return r == ResultWin || r == ResultLoss || r == ResultBreakEven
}

// InputType identifies the kind of raw evidence a trade was extracted from.
type InputType string

const (
	InputScreenshot InputType = "SCREENSHOT"
	InputVoice      InputType = "VOICE"
	InputText       InputType = "TEXT"
)

// Valid reports whether the input type is a known value.
func (t InputType) Valid() bool {
	return t == InputScreenshot || t == InputVoice || t == InputText
}

// TradeCandidate is the structured output of extraction, not yet persisted.
// Numeric fields are nil when the model could not determine them; empty
// Direction/Result mean absent. Candidates are immutable: corrections go
// through Merge, which returns a derived copy.
type TradeCandidate struct {
	Instrument   string           `json:"instrument"`
	Direction    Direction        `json:"direction,omitempty"`
	EntryPrice   *decimal.Decimal `json:"entry_price,omitempty"`
	ExitPrice    *decimal.Decimal `json:"exit_price,omitempty"`
	StopLoss     *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit   *decimal.Decimal `json:"take_profit,omitempty"`
	Result       Result           `json:"result,omitempty"`
	RMultiple    *decimal.Decimal `json:"r_multiple,omitempty"`
	Emotion      string           `json:"emotion,omitempty"`
	Mistakes     []string         `json:"mistakes,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	Confidence   float64          `json:"confidence"`
	InputType    InputType        `json:"input_type"`
	RawInputRef  string           `json:"raw_input_ref"`
	CacheDerived bool             `json:"cache_derived,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// CandidateOverrides carries user-supplied corrections for a pending
// candidate. Nil/empty fields mean "keep the extracted value"; a set field
// is authoritative. There is no way to clear an extracted field to absent.
type CandidateOverrides struct {
	Instrument *string          `json:"instrument,omitempty"`
	Direction  *Direction       `json:"direction,omitempty"`
	EntryPrice *decimal.Decimal `json:"entry_price,omitempty"`
	ExitPrice  *decimal.Decimal `json:"exit_price,omitempty"`
	StopLoss   *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit *decimal.Decimal `json:"take_profit,omitempty"`
	Result     *Result          `json:"result,omitempty"`
	RMultiple  *decimal.Decimal `json:"r_multiple,omitempty"`
	Emotion    *string          `json:"emotion,omitempty"`
	Mistakes   []string         `json:"mistakes,omitempty"`
	Notes      *string          `json:"notes,omitempty"`
}

// Empty reports whether no override field is set.
func (o *CandidateOverrides) Empty() bool {
	if o == nil {
		return true
	}
	return o.Instrument == nil && o.Direction == nil && o.EntryPrice == nil &&
		o.ExitPrice == nil && o.StopLoss == nil && o.TakeProfit == nil &&
		o.Result == nil && o.RMultiple == nil && o.Emotion == nil &&
		o.Mistakes == nil && o.Notes == nil
}

// Merge returns a new candidate with user overrides applied on top of the
// extracted fields. The merged candidate is human-verified, so confidence
// is pinned to 1.0.
func (c *TradeCandidate) Merge(o *CandidateOverrides) *TradeCandidate {
	out := *c
	out.Mistakes = append([]string(nil), c.Mistakes...)
	if o != nil {
		if o.Instrument != nil {
			out.Instrument = strings.ToUpper(strings.TrimSpace(*o.Instrument))
		}
		if o.Direction != nil {
			out.Direction = *o.Direction
		}
		if o.EntryPrice != nil {
			out.EntryPrice = o.EntryPrice
		}
		if o.ExitPrice != nil {
			out.ExitPrice = o.ExitPrice
		}
		if o.StopLoss != nil {
			out.StopLoss = o.StopLoss
		}
		if o.TakeProfit != nil {
			out.TakeProfit = o.TakeProfit
		}
		if o.Result != nil {
			out.Result = *o.Result
		}
		if o.RMultiple != nil {
			out.RMultiple = o.RMultiple
		}
		if o.Emotion != nil {
			out.Emotion = *o.Emotion
		}
		if o.Mistakes != nil {
			out.Mistakes = append([]string(nil), o.Mistakes...)
		}
		if o.Notes != nil {
			out.Notes = *o.Notes
		}
	}
	out.Confidence = 1.0
	out.CacheDerived = false
	return &out
}

// Summary renders a short human-readable digest of the candidate, used in
// confirmation prompts sent back to the chat layer.
func (c *TradeCandidate) Summary() string {
	var b strings.Builder
	b.WriteString(c.Instrument)
	if c.Direction != "" {
		b.WriteString(" " + string(c.Direction))
	}
	if c.EntryPrice != nil {
		b.WriteString(" entry " + c.EntryPrice.String())
	}
	if c.ExitPrice != nil {
		b.WriteString(" exit " + c.ExitPrice.String())
	}
	if c.StopLoss != nil {
		b.WriteString(" sl " + c.StopLoss.String())
	}
	if c.TakeProfit != nil {
		b.WriteString(" tp " + c.TakeProfit.String())
	}
	if c.Result != "" {
		b.WriteString(" " + string(c.Result))
	}
	if c.RMultiple != nil {
		b.WriteString(" " + c.RMultiple.String() + "R")
	}
	return b.String()
}

// Trade is a committed journal record. Same shape as TradeCandidate minus
// confidence, plus identity and ownership. Never mutated after creation.
type Trade struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	Instrument     string           `json:"instrument"`
	Direction      Direction        `json:"direction,omitempty"`
	EntryPrice     *decimal.Decimal `json:"entry_price,omitempty"`
	ExitPrice      *decimal.Decimal `json:"exit_price,omitempty"`
	StopLoss       *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit     *decimal.Decimal `json:"take_profit,omitempty"`
	Result         Result           `json:"result,omitempty"`
	RMultiple      *decimal.Decimal `json:"r_multiple,omitempty"`
	Emotion        string           `json:"emotion,omitempty"`
	Mistakes       []string         `json:"mistakes,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	InputType      InputType        `json:"input_type"`
	RawInputRef    string           `json:"raw_input_ref"`
	TradeTimestamp *time.Time       `json:"trade_timestamp,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}
