package models

// Plan is a user's entitlement tier. Zero caps mean unlimited.
type Plan struct {
	Name            string `json:"name"`
	MonthlyTradeCap int    `json:"monthly_trade_cap"`
	HourlyAttempts  int    `json:"hourly_attempts"`
}

// Unlimited reports whether neither cap applies.
func (p Plan) Unlimited() bool {
	return p.MonthlyTradeCap <= 0 && p.HourlyAttempts <= 0
}

// QuotaState is a point-in-time snapshot of a user's consumption against
// the plan limits. Counters are owned by storage; this is the read model.
type QuotaState struct {
	UserID           string `json:"user_id"`
	Plan             string `json:"plan"`
	MonthlyCommitted int    `json:"monthly_committed"`
	MonthlyTradeCap  int    `json:"monthly_trade_cap"`
	HourlyAttempts   int    `json:"hourly_attempts"`
}

// Quota counter kinds, used by the governor and the stores.
const (
	QuotaHourlyAttempts = "hourly_attempts"
	QuotaMonthlyTrades  = "monthly_trades"
)
