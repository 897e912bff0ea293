package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"stockwatch/internal/common/logger"
	"stockwatch/internal/models"
	"stockwatch/internal/store"
)

type AlertHandler struct {
	alerts *store.AlertStore
	stocks *store.StockStore
	logger logger.Logger
}

func NewAlertHandler(alerts *store.AlertStore, stocks *store.StockStore, log logger.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, stocks: stocks, logger: log}
}

func (h *AlertHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/alerts")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.PATCH("/:id/active", h.SetActive)
}

type createAlertRequest struct {
	Symbol        string `json:"symbol" validate:"required,min=1,max=12"`
	ConditionType string `json:"conditionType" validate:"required,oneof=PRICE_ABOVE PRICE_BELOW PERCENT_CHANGE"`
	Threshold     string `json:"threshold" validate:"required"`
	OneTime       bool   `json:"oneTime"`
}

func (h *AlertHandler) Create(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	req := &createAlertRequest{}
	if verr := bindAndValidate(c, req); verr != nil {
		return badRequestResponse(c, verr)
	}

	threshold, err := decimal.NewFromString(req.Threshold)
	if err != nil {
		return badRequestResponse(c, []ValidationError{{
			Code: "ERR_NUMERIC", Field: "threshold", Message: "threshold must be a decimal number",
		}})
	}

	stock, err := h.stocks.GetBySymbol(c.Request().Context(), req.Symbol)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundResponse(c, "stock")
		}
		h.logger.Error("stock lookup failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}

	alert := &models.Alert{
		ID:             uuid.New(),
		UserID:         userID,
		StockID:        stock.ID,
		Symbol:         stock.Symbol,
		ConditionType:  models.ConditionType(req.ConditionType),
		ThresholdValue: threshold,
		OneTime:        req.OneTime,
		IsActive:       true,
	}
	if err := h.alerts.Create(c.Request().Context(), alert); err != nil {
		h.logger.Error("alert create failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}
	return successResponse(c, http.StatusCreated, alert)
}

func (h *AlertHandler) List(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	alerts, err := h.alerts.ListByUser(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("alert list failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}
	return successResponse(c, http.StatusOK, alerts)
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *AlertHandler) SetActive(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequestResponse(c, []ValidationError{{
			Code: "ERR_UUID", Field: "id", Message: "id must be a valid UUID",
		}})
	}

	req := &setActiveRequest{}
	if verr := bindAndValidate(c, req); verr != nil {
		return badRequestResponse(c, verr)
	}

	if err := h.alerts.SetActive(c.Request().Context(), alertID, userID, *req.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundResponse(c, "alert")
		}
		h.logger.Error("alert update failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}
	return successResponse(c, http.StatusOK, map[string]interface{}{
		"id":     alertID,
		"active": *req.Active,
	})
}
