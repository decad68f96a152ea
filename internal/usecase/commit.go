package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"TradeMynd/internal/domain/models"
	"TradeMynd/internal/domain/repository"
	"TradeMynd/internal/service/quota"
	applogger "TradeMynd/pkg/logger"
)

// Commit sources, recorded in metrics so auto-accepts and manual confirms
// can be compared.
const (
	CommitSourceAuto    = "auto"
	CommitSourceConfirm = "confirm"
)

// Committer is the single write path for trades. Nothing reaches storage
// without passing domain validation and the monthly quota check, in that
// order: an invalid candidate never consumes quota reads, and a quota
// rejection never half-writes.
type Committer struct {
	trades   repository.TradeStore
	governor *quota.Governor
	metrics  repository.Metrics
	logger   *applogger.Logger
	now      func() time.Time
}

func NewCommitter(trades repository.TradeStore, governor *quota.Governor, metrics repository.Metrics, logger *applogger.Logger) *Committer {
	return &Committer{
		trades:   trades,
		governor: governor,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (c *Committer) WithClock(now func() time.Time) *Committer {
	c.now = now
	return c
}

// Commit validates the candidate, charges the monthly quota and persists
// the trade.
func (c *Committer) Commit(ctx context.Context, userID string, cand *models.TradeCandidate, source string) (*models.Trade, error) {
	if err := ValidateCandidate(cand); err != nil {
		c.metrics.RecordError("invalid_trade_data")
		return nil, err
	}
	if err := c.governor.CheckCommit(ctx, userID); err != nil {
		return nil, err
	}

	trade := &models.Trade{
		UserID:      userID,
		Instrument:  cand.Instrument,
		Direction:   cand.Direction,
		EntryPrice:  cand.EntryPrice,
		ExitPrice:   cand.ExitPrice,
		StopLoss:    cand.StopLoss,
		TakeProfit:  cand.TakeProfit,
		Result:      cand.Result,
		RMultiple:   cand.RMultiple,
		Emotion:     cand.Emotion,
		Mistakes:    append([]string(nil), cand.Mistakes...),
		Notes:       cand.Notes,
		InputType:   cand.InputType,
		RawInputRef: cand.RawInputRef,
		CreatedAt:   c.now().UTC(),
	}

	stored, err := c.trades.CreateTrade(ctx, trade)
	if err != nil {
		c.metrics.RecordError("trade_store")
		return nil, fmt.Errorf("persist trade: %w", err)
	}

	c.metrics.RecordCommit(source)
	c.logger.Info("trade committed",
		applogger.String("trade_id", stored.ID),
		applogger.String("user_id", userID),
		applogger.String("instrument", stored.Instrument),
		applogger.String("source", source))
	return stored, nil
}

// ValidateCandidate enforces the domain contract on anything headed for
// storage. Violations here mean a bug upstream, not bad user input.
func ValidateCandidate(c *models.TradeCandidate) error {
	if c == nil {
		return &models.InvalidTradeDataError{Field: "candidate", Reason: "nil"}
	}
	if c.Instrument == "" {
		return &models.InvalidTradeDataError{Field: "instrument", Reason: "empty"}
	}
	if c.Direction != "" && !c.Direction.Valid() {
		return &models.InvalidTradeDataError{Field: "direction", Reason: fmt.Sprintf("unknown value %q", c.Direction)}
	}
	if c.Result != "" && !c.Result.Valid() {
		return &models.InvalidTradeDataError{Field: "result", Reason: fmt.Sprintf("unknown value %q", c.Result)}
	}
	if !c.InputType.Valid() {
		return &models.InvalidTradeDataError{Field: "input_type", Reason: fmt.Sprintf("unknown value %q", c.InputType)}
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return &models.InvalidTradeDataError{Field: "confidence", Reason: fmt.Sprintf("%v outside [0,1]", c.Confidence)}
	}
	for field, price := range map[string]*decimal.Decimal{
		"entry_price": c.EntryPrice,
		"exit_price":  c.ExitPrice,
		"stop_loss":   c.StopLoss,
		"take_profit": c.TakeProfit,
	} {
		if price != nil && !price.IsPositive() {
			return &models.InvalidTradeDataError{Field: field, Reason: "must be positive"}
		}
	}
	return nil
}
