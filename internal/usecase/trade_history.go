package usecase

import (
	"context"
	"time"

	"TradeMynd/internal/domain/models"
	domrepo "TradeMynd/internal/domain/repository"
)

const defaultHistoryLimit = 50

// TradeHistory reads back a user's committed journal entries.
type TradeHistory struct {
	query domrepo.TradeQuery
}

func NewTradeHistory(query domrepo.TradeQuery) *TradeHistory {
	return &TradeHistory{query: query}
}

// Recent returns the user's trades committed at or after `from`, newest
// first, capped at `limit`.
func (u *TradeHistory) Recent(ctx context.Context, userID string, limit int, from time.Time) ([]*models.Trade, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return u.query.RecentTrades(ctx, userID, limit, from)
}
