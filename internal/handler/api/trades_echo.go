package api

import (
	"time"

	"github.com/labstack/echo/v4"

	xhttp "TradeMynd/pkg/http"
	xlogger "TradeMynd/pkg/logger"
	"TradeMynd/pkg/util"
)

// ListTrades returns the user's committed journal entries, newest first.
// `limit` and `from` narrow the window; `from` accepts RFC3339 or unix
// seconds and defaults to the last 30 days.
func (h *IngestEchoHandler) ListTrades(c echo.Context) error {
	userID := c.Param("user_id")
	if userID == "" {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError("user_id required"))
	}
	limit := util.ParseIntDefault(c.QueryParam("limit"), 50)
	from := util.ParseTimeDefault(c.QueryParam("from"), time.Now().UTC().AddDate(0, 0, -30))

	trades, err := h.history.Recent(c.Request().Context(), userID, limit, from)
	if err != nil {
		h.logger.Error("trade history error", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, trades)
}

// Healthz reports liveness and storage reachability.
func (h *IngestEchoHandler) Healthz(c echo.Context) error {
	if err := h.trades.Health(c.Request().Context()); err != nil {
		h.logger.Error("health check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
