package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) *decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return &v
}

func TestMergeOverridesWin(t *testing.T) {
	base := &TradeCandidate{
		Instrument: "XAUUSD",
		Direction:  DirectionLong,
		EntryPrice: d("2301.5"),
		Confidence: 0.6,
		InputType:  InputText,
	}

	instr := "btcusd"
	dir := DirectionShort
	merged := base.Merge(&CandidateOverrides{
		Instrument: &instr,
		Direction:  &dir,
		ExitPrice:  d("67000"),
	})

	if merged.Instrument != "BTCUSD" {
		t.Fatalf("instrument override must be normalized, got %q", merged.Instrument)
	}
	if merged.Direction != DirectionShort {
		t.Fatalf("direction override lost, got %s", merged.Direction)
	}
	if merged.EntryPrice == nil || merged.EntryPrice.String() != "2301.5" {
		t.Fatalf("omitted field must keep extracted value, got %v", merged.EntryPrice)
	}
	if merged.ExitPrice == nil || merged.ExitPrice.String() != "67000" {
		t.Fatalf("exit price override lost, got %v", merged.ExitPrice)
	}
	if merged.Confidence != 1.0 {
		t.Fatalf("merged candidate is human-verified, confidence %v", merged.Confidence)
	}

	// the original is untouched
	if base.Instrument != "XAUUSD" || base.Confidence != 0.6 {
		t.Fatalf("merge mutated the source candidate: %+v", base)
	}
}

func TestMergeEmptyOverridesStillVerifies(t *testing.T) {
	base := &TradeCandidate{Instrument: "XAUUSD", Confidence: 0.5, CacheDerived: true}
	merged := base.Merge(nil)
	if merged.Confidence != 1.0 || merged.CacheDerived {
		t.Fatalf("unexpected merge result: %+v", merged)
	}
}

func TestSummary(t *testing.T) {
	c := &TradeCandidate{
		Instrument: "XAUUSD",
		Direction:  DirectionLong,
		EntryPrice: d("2301.5"),
		Result:     ResultWin,
		RMultiple:  d("1.7"),
	}
	got := c.Summary()
	want := "XAUUSD LONG entry 2301.5 WIN 1.7R"
	if got != want {
		t.Fatalf("summary %q, want %q", got, want)
	}
}

func TestSessionTransitions(t *testing.T) {
	allowed := []struct{ from, to SessionStatus }{
		{SessionPending, SessionEdited},
		{SessionPending, SessionConfirmed},
		{SessionPending, SessionRejected},
		{SessionPending, SessionExpired},
		{SessionEdited, SessionConfirmed},
	}
	for _, e := range allowed {
		if !e.from.CanTransition(e.to) {
			t.Fatalf("%s -> %s must be allowed", e.from, e.to)
		}
	}

	denied := []struct{ from, to SessionStatus }{
		{SessionConfirmed, SessionRejected},
		{SessionRejected, SessionConfirmed},
		{SessionExpired, SessionConfirmed},
		{SessionEdited, SessionRejected},
		{SessionEdited, SessionExpired},
	}
	for _, e := range denied {
		if e.from.CanTransition(e.to) {
			t.Fatalf("%s -> %s must be denied", e.from, e.to)
		}
	}

	for _, s := range []SessionStatus{SessionConfirmed, SessionRejected, SessionExpired} {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
}
