package usecase

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"TradeMynd/internal/domain/models"
)

func dec(s string) *decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return &d
}

func validCandidate() *models.TradeCandidate {
	return &models.TradeCandidate{
		Instrument: "XAUUSD",
		Direction:  models.DirectionLong,
		EntryPrice: dec("2301.5"),
		ExitPrice:  dec("2310"),
		Result:     models.ResultWin,
		Confidence: 0.95,
		InputType:  models.InputText,
	}
}

func TestValidateCandidateAccepts(t *testing.T) {
	if err := ValidateCandidate(validCandidate()); err != nil {
		t.Fatalf("valid candidate rejected: %v", err)
	}
}

func TestValidateCandidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.TradeCandidate)
		field  string
	}{
		{"empty instrument", func(c *models.TradeCandidate) { c.Instrument = "" }, "instrument"},
		{"bad direction", func(c *models.TradeCandidate) { c.Direction = "SIDEWAYS" }, "direction"},
		{"bad result", func(c *models.TradeCandidate) { c.Result = "MAYBE" }, "result"},
		{"bad input type", func(c *models.TradeCandidate) { c.InputType = "CARRIER_PIGEON" }, "input_type"},
		{"confidence above one", func(c *models.TradeCandidate) { c.Confidence = 1.2 }, "confidence"},
		{"negative confidence", func(c *models.TradeCandidate) { c.Confidence = -0.1 }, "confidence"},
		{"zero entry price", func(c *models.TradeCandidate) { c.EntryPrice = dec("0") }, "entry_price"},
		{"negative stop loss", func(c *models.TradeCandidate) { c.StopLoss = dec("-5") }, "stop_loss"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validCandidate()
			tc.mutate(c)
			err := ValidateCandidate(c)
			var invalid *models.InvalidTradeDataError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidTradeDataError, got %v", err)
			}
			if invalid.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, invalid.Field)
			}
		})
	}

	if err := ValidateCandidate(nil); err == nil {
		t.Fatal("nil candidate must be rejected")
	}
}
