package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"TradeMynd/internal/domain/models"
	domrepo "TradeMynd/internal/domain/repository"
	pkgch "TradeMynd/pkg/clickhouse"
	applogger "TradeMynd/pkg/logger"
)

const recentTradesSQL = `
	SELECT id, user_id, instrument, direction, entry_price, exit_price,
	       stop_loss, take_profit, result, r_multiple, emotion, mistakes,
	       notes, input_type, raw_input_ref, trade_timestamp, created_at
	FROM trademynd.trades
	WHERE user_id = ? AND created_at >= ?
	ORDER BY created_at DESC
	LIMIT ?
`

// CHTradeQuery implements TradeQuery backed by ClickHouse.
type CHTradeQuery struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHTradeQuery(ch *pkgch.Client, l *applogger.Logger) *CHTradeQuery {
	return &CHTradeQuery{db: ch.DB(), l: l}
}

func (s *CHTradeQuery) RecentTrades(ctx context.Context, userID string, limit int, from time.Time) ([]*models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, recentTradesSQL, userID, from, limit)
	if err != nil {
		s.l.Error("clickhouse recent_trades query error",
			applogger.String("user_id", userID),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("recent trades: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Trade, 0, limit)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			s.l.Error("clickhouse recent_trades scan error",
				applogger.String("user_id", userID),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func scanTrade(rows *sql.Rows) (*models.Trade, error) {
	var (
		t                                  models.Trade
		direction, result, inputType       string
		entry, exit, stop, take, rMultiple sql.NullFloat64
		mistakes                           string
		tradeTS                            sql.NullTime
	)
	if err := rows.Scan(&t.ID, &t.UserID, &t.Instrument, &direction, &entry, &exit,
		&stop, &take, &result, &rMultiple, &t.Emotion, &mistakes,
		&t.Notes, &inputType, &t.RawInputRef, &tradeTS, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Direction = models.Direction(direction)
	t.Result = models.Result(result)
	t.InputType = models.InputType(inputType)
	t.EntryPrice = fromNullFloat(entry)
	t.ExitPrice = fromNullFloat(exit)
	t.StopLoss = fromNullFloat(stop)
	t.TakeProfit = fromNullFloat(take)
	t.RMultiple = fromNullFloat(rMultiple)
	if mistakes != "" {
		t.Mistakes = strings.Split(mistakes, "; ")
	}
	if tradeTS.Valid {
		ts := tradeTS.Time
		t.TradeTimestamp = &ts
	}
	return &t, nil
}

func fromNullFloat(v sql.NullFloat64) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := decimal.NewFromFloat(v.Float64)
	return &d
}

var _ domrepo.TradeQuery = (*CHTradeQuery)(nil)
