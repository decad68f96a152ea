package entitlement

import (
	"context"
	"fmt"
	"time"

	"TradeMynd/internal/domain/models"
	"TradeMynd/pkg/cache"
	"TradeMynd/pkg/config"
	xhttp "TradeMynd/pkg/http"
	applogger "TradeMynd/pkg/logger"
)

const planCacheTTL = 5 * time.Minute

// StaticProvider answers every lookup with the same plan. Used when no
// billing service is configured: everyone is on the free tier.
type StaticProvider struct {
	Plan models.Plan
}

func (p *StaticProvider) GetPlan(context.Context, string) (models.Plan, error) {
	return p.Plan, nil
}

// HTTPProvider resolves plans from the billing service, with a short cache
// so hot users do not hammer it on every message.
type HTTPProvider struct {
	baseURL  string
	client   *xhttp.Client
	cache    cache.Service
	fallback models.Plan
	logger   *applogger.Logger
}

func NewHTTPProvider(cfg *config.Config, cacheSvc cache.Service, logger *applogger.Logger) *HTTPProvider {
	timeout := cfg.Entitlement.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{
		baseURL: cfg.Entitlement.URL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		cache:   cacheSvc,
		fallback: models.Plan{
			Name:            "free",
			MonthlyTradeCap: cfg.Quota.FreeMonthlyTradeCap,
			HourlyAttempts:  cfg.Quota.FreeHourlyAttempts,
		},
		logger: logger,
	}
}

// GetPlan returns the user's tier. On billing service failure the free plan
// applies, so an outage can only tighten limits, never loosen them.
func (p *HTTPProvider) GetPlan(ctx context.Context, userID string) (models.Plan, error) {
	key := "plan:" + userID

	var cached models.Plan
	if err := p.cache.Get(ctx, key, &cached); err == nil && cached.Name != "" {
		return cached, nil
	}

	var plan models.Plan
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v1/plans/%s", p.baseURL, userID),
	}, &plan)
	if err != nil || plan.Name == "" {
		p.logger.Warn("plan lookup failed, applying free tier",
			applogger.String("user_id", userID), applogger.Error(err))
		return p.fallback, nil
	}

	if err := p.cache.Set(ctx, key, plan, planCacheTTL); err != nil {
		p.logger.Warn("plan cache write failed", applogger.Error(err))
	}
	return plan, nil
}
