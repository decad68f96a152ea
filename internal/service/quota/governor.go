package quota

import (
	"context"
	"fmt"
	"time"

	"TradeMynd/internal/domain/models"
	"TradeMynd/internal/domain/repository"
	domsvc "TradeMynd/internal/domain/service"
	"TradeMynd/internal/service/ratelimit"
	applogger "TradeMynd/pkg/logger"
)

const secondsPerHour = 3600.0

type Config struct {
	UpgradeHint string
}

// Governor enforces both plan limits at admission, before any media or
// model work: the calendar-month commit cap (read-only here, incremented
// only when a trade actually commits) and a rolling-hour attempt budget.
// The commit path re-checks the monthly cap as a race backstop.
type Governor struct {
	plans   domsvc.PlanProvider
	trades  repository.TradeStore
	limiter *ratelimit.Limiter
	metrics repository.Metrics
	cfg     Config
	logger  *applogger.Logger
	now     func() time.Time
}

func NewGovernor(
	plans domsvc.PlanProvider,
	trades repository.TradeStore,
	limiter *ratelimit.Limiter,
	metrics repository.Metrics,
	cfg Config,
	logger *applogger.Logger,
) *Governor {
	return &Governor{
		plans:   plans,
		trades:  trades,
		limiter: limiter,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the time source. Used by tests and the expiry sweeper
// harness.
func (g *Governor) WithClock(now func() time.Time) *Governor {
	g.now = now
	return g
}

// CheckAttempt admits or rejects a message before any media/model work. A
// user already at the monthly commit cap is rejected here, without spending
// an hourly token; otherwise one attempt is consumed from the rolling-hour
// budget.
func (g *Governor) CheckAttempt(ctx context.Context, userID string) error {
	plan, err := g.plans.GetPlan(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve plan: %w", err)
	}

	if err := g.monthlyCapReached(ctx, plan, userID); err != nil {
		return err
	}

	if plan.HourlyAttempts <= 0 {
		return nil
	}
	cap64 := float64(plan.HourlyAttempts)
	if !g.limiter.Allow(attemptKey(userID), cap64, cap64/secondsPerHour) {
		g.metrics.RecordQuotaRejection(models.QuotaHourlyAttempts)
		return &models.QuotaExceededError{
			Limit:       models.QuotaHourlyAttempts,
			Plan:        plan.Name,
			Cap:         plan.HourlyAttempts,
			UpgradeHint: g.cfg.UpgradeHint,
		}
	}
	return nil
}

// CheckCommit re-verifies the calendar-month cap right before a trade is
// persisted. The admit-time check already covers the common path; this one
// closes the race where concurrent messages pass admission together.
func (g *Governor) CheckCommit(ctx context.Context, userID string) error {
	plan, err := g.plans.GetPlan(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve plan: %w", err)
	}
	return g.monthlyCapReached(ctx, plan, userID)
}

// monthlyCapReached counts committed trades since the first instant of the
// current month, matching how billing periods are shown to the user.
func (g *Governor) monthlyCapReached(ctx context.Context, plan models.Plan, userID string) error {
	if plan.MonthlyTradeCap <= 0 {
		return nil
	}

	count, err := g.trades.CountSince(ctx, userID, g.monthStart())
	if err != nil {
		return fmt.Errorf("count monthly trades: %w", err)
	}
	if count >= plan.MonthlyTradeCap {
		g.metrics.RecordQuotaRejection(models.QuotaMonthlyTrades)
		return &models.QuotaExceededError{
			Limit:       models.QuotaMonthlyTrades,
			Plan:        plan.Name,
			Cap:         plan.MonthlyTradeCap,
			UpgradeHint: g.cfg.UpgradeHint,
		}
	}
	return nil
}

// Snapshot builds the read model served by the quota endpoint.
func (g *Governor) Snapshot(ctx context.Context, userID string) (*models.QuotaState, error) {
	plan, err := g.plans.GetPlan(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve plan: %w", err)
	}

	state := &models.QuotaState{
		UserID:          userID,
		Plan:            plan.Name,
		MonthlyTradeCap: plan.MonthlyTradeCap,
	}
	if plan.HourlyAttempts > 0 {
		cap64 := float64(plan.HourlyAttempts)
		state.HourlyAttempts = g.limiter.Peek(attemptKey(userID), cap64, cap64/secondsPerHour)
	}
	if plan.MonthlyTradeCap > 0 {
		count, err := g.trades.CountSince(ctx, userID, g.monthStart())
		if err != nil {
			return nil, fmt.Errorf("count monthly trades: %w", err)
		}
		state.MonthlyCommitted = count
	}
	return state, nil
}

func (g *Governor) monthStart() time.Time {
	now := g.now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func attemptKey(userID string) string {
	return "attempts:" + userID
}
