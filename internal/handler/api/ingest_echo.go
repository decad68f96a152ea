package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	models "TradeMynd/internal/domain/models"
	domrepo "TradeMynd/internal/domain/repository"
	"TradeMynd/internal/service/quota"
	"TradeMynd/internal/usecase"
	xhttp "TradeMynd/pkg/http"
	xlogger "TradeMynd/pkg/logger"
)

// IngestEchoHandler exposes the pipeline over HTTP: message ingestion, the
// confirmation actions, and quota snapshots. This is the surface a webhook
// relay posts to when the gateway WebSocket is not used.
type IngestEchoHandler struct {
	logger    *xlogger.Logger
	ingestor  *usecase.Ingestor
	confirmer *usecase.Confirmer
	governor  *quota.Governor
	history   *usecase.TradeHistory
	trades    domrepo.TradeStore
}

func NewIngestEchoHandler(logger *xlogger.Logger, ingestor *usecase.Ingestor, confirmer *usecase.Confirmer, governor *quota.Governor, history *usecase.TradeHistory, trades domrepo.TradeStore) *IngestEchoHandler {
	return &IngestEchoHandler{
		logger:    logger,
		ingestor:  ingestor,
		confirmer: confirmer,
		governor:  governor,
		history:   history,
		trades:    trades,
	}
}

func (h *IngestEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/messages", h.IngestMessage)
	g.GET("/sessions/:id", h.GetSession)
	g.POST("/sessions/:id/confirm", h.ConfirmSession)
	g.POST("/sessions/:id/edit", h.EditSession)
	g.POST("/sessions/:id/reject", h.RejectSession)
	g.GET("/quota/:user_id", h.GetQuota)
	g.GET("/trades/:user_id", h.ListTrades)
	e.GET("/healthz", h.Healthz)
}

func (h *IngestEchoHandler) IngestMessage(c echo.Context) error {
	req := &models.IngestMessageRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	msg := &models.InboundMessage{
		UserID:       req.UserID,
		InputType:    models.InputType(req.InputType),
		Text:         req.Text,
		DeclaredMIME: req.MIME,
		ExternalID:   req.ExternalID,
		ReceivedAt:   time.Now().UTC(),
	}
	if req.PayloadB64 != "" {
		payload, err := base64.StdEncoding.DecodeString(req.PayloadB64)
		if err != nil {
			return xhttp.BadRequestResponse(c, xhttp.BadRequestError("payload_b64 is not valid base64"))
		}
		msg.Payload = payload
	}

	ev, err := h.ingestor.ProcessMessage(c.Request().Context(), msg)
	if err != nil {
		h.logger.Error("ingest usecase error", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, ev)
}

func (h *IngestEchoHandler) GetSession(c echo.Context) error {
	sess, err := h.confirmer.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.sessionErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sess)
}

func (h *IngestEchoHandler) ConfirmSession(c echo.Context) error {
	ev, err := h.confirmer.Confirm(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.sessionErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, ev)
}

func (h *IngestEchoHandler) EditSession(c echo.Context) error {
	req := &models.EditSessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	overrides, err := overridesFromRequest(req)
	if err != nil {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError(err.Error()))
	}

	ev, err := h.confirmer.Edit(c.Request().Context(), c.Param("id"), overrides)
	if err != nil {
		return h.sessionErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, ev)
}

func (h *IngestEchoHandler) RejectSession(c echo.Context) error {
	ev, err := h.confirmer.Reject(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.sessionErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, ev)
}

func (h *IngestEchoHandler) GetQuota(c echo.Context) error {
	req := &models.QuotaRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	state, err := h.governor.Snapshot(c.Request().Context(), req.UserID)
	if err != nil {
		h.logger.Error("quota snapshot error", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, state)
}

func (h *IngestEchoHandler) sessionErrorResponse(c echo.Context, err error) error {
	var stateErr *models.SessionStateError
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		return xhttp.NotFoundResponse(c, xhttp.NotFoundError("session not found"))
	case errors.As(err, &stateErr):
		return xhttp.DataResponse(c, http.StatusConflict,
			xhttp.NewAppError("session_state", "status", stateErr.Error(), http.StatusConflict))
	default:
		h.logger.Error("session usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
}

func overridesFromRequest(req *models.EditSessionRequest) (*models.CandidateOverrides, error) {
	o := &models.CandidateOverrides{
		Instrument: req.Instrument,
		Emotion:    req.Emotion,
		Mistakes:   req.Mistakes,
		Notes:      req.Notes,
	}
	if req.Direction != nil {
		d := models.Direction(*req.Direction)
		o.Direction = &d
	}
	if req.Result != nil {
		r := models.Result(*req.Result)
		o.Result = &r
	}

	for _, f := range []struct {
		name string
		src  *string
		dst  **decimal.Decimal
	}{
		{"entry_price", req.EntryPrice, &o.EntryPrice},
		{"exit_price", req.ExitPrice, &o.ExitPrice},
		{"stop_loss", req.StopLoss, &o.StopLoss},
		{"take_profit", req.TakeProfit, &o.TakeProfit},
		{"r_multiple", req.RMultiple, &o.RMultiple},
	} {
		if f.src == nil {
			continue
		}
		d, err := decimal.NewFromString(*f.src)
		if err != nil {
			return nil, errors.New(f.name + " is not a valid number")
		}
		*f.dst = &d
	}
	return o, nil
}
