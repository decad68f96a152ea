package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"TradeMynd/internal/domain/models"
	domrepo "TradeMynd/internal/domain/repository"
	pkgch "TradeMynd/pkg/clickhouse"
	applogger "TradeMynd/pkg/logger"
)

var schemaStatements = []string{
	`CREATE DATABASE IF NOT EXISTS trademynd`,
	`CREATE TABLE IF NOT EXISTS trademynd.trades (
		id String,
		user_id String,
		instrument String,
		direction LowCardinality(String),
		entry_price Nullable(Float64),
		exit_price Nullable(Float64),
		stop_loss Nullable(Float64),
		take_profit Nullable(Float64),
		result LowCardinality(String),
		r_multiple Nullable(Float64),
		emotion String,
		mistakes String,
		notes String,
		input_type LowCardinality(String),
		raw_input_ref String,
		trade_timestamp Nullable(DateTime),
		created_at DateTime
	) ENGINE = MergeTree ORDER BY (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS trademynd.processing_log (
		raw_input_ref String,
		user_id String,
		input_type LowCardinality(String),
		prompt_id LowCardinality(String),
		response String,
		attempt UInt8,
		error String,
		created_at DateTime
	) ENGINE = MergeTree ORDER BY (user_id, created_at)`,
}

const insertTradeSQL = `INSERT INTO trademynd.trades
(id, user_id, instrument, direction, entry_price, exit_price, stop_loss, take_profit,
 result, r_multiple, emotion, mistakes, notes, input_type, raw_input_ref, trade_timestamp, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const countSinceSQL = `SELECT count() FROM trademynd.trades WHERE user_id = ? AND created_at >= ?`

// ClickHouseTradeStore persists committed trades. It also owns the schema
// for the processing log so one Init call bootstraps both tables.
type ClickHouseTradeStore struct {
	client *pkgch.Client
	logger *applogger.Logger
}

func NewClickHouseTradeStore(client *pkgch.Client, logger *applogger.Logger) domrepo.TradeStore {
	return &ClickHouseTradeStore{client: client, logger: logger}
}

func (s *ClickHouseTradeStore) Init(ctx context.Context) error {
	if err := s.client.InitSchema(ctx, schemaStatements); err != nil {
		return fmt.Errorf("trade store init: %w", err)
	}
	s.logger.Info("trade store schema ready")
	return nil
}

// CreateTrade inserts the record and returns it with identity assigned.
func (s *ClickHouseTradeStore) CreateTrade(ctx context.Context, t *models.Trade) (*models.Trade, error) {
	out := *t
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}

	var tradeTS interface{}
	if out.TradeTimestamp != nil {
		tradeTS = *out.TradeTimestamp
	}

	_, err := s.client.DB().ExecContext(ctx, insertTradeSQL,
		out.ID, out.UserID, out.Instrument, string(out.Direction),
		toFloat(out.EntryPrice), toFloat(out.ExitPrice),
		toFloat(out.StopLoss), toFloat(out.TakeProfit),
		string(out.Result), toFloat(out.RMultiple),
		out.Emotion, strings.Join(out.Mistakes, "; "), out.Notes,
		string(out.InputType), out.RawInputRef, tradeTS, out.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}
	return &out, nil
}

func (s *ClickHouseTradeStore) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	row := s.client.DB().QueryRowContext(ctx, countSinceSQL, userID, since)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return n, nil
}

func (s *ClickHouseTradeStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *ClickHouseTradeStore) Close() error {
	return s.client.Close()
}

func toFloat(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.InexactFloat64()
}
