package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"stockwatch/internal/common/logger"
	"stockwatch/internal/models"
	"stockwatch/internal/pricing"
	"stockwatch/internal/store"
)

type StockHandler struct {
	stocks  *store.StockStore
	prices  *store.PriceStore
	pricing *pricing.Service
	logger  logger.Logger
}

func NewStockHandler(stocks *store.StockStore, prices *store.PriceStore, pricingSvc *pricing.Service, log logger.Logger) *StockHandler {
	return &StockHandler{stocks: stocks, prices: prices, pricing: pricingSvc, logger: log}
}

func (h *StockHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/stocks")
	g.GET("", h.List)
	g.GET("/search", h.Search)
	g.POST("", h.Create)
	g.GET("/:symbol/price", h.LatestPrice)
	g.POST("/:symbol/price", h.InsertPrice)
}

func (h *StockHandler) List(c echo.Context) error {
	stocks, err := h.stocks.ListActive(c.Request().Context())
	if err != nil {
		h.logger.Error("stock list failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}
	return successResponse(c, http.StatusOK, stocks)
}

func (h *StockHandler) Search(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return badRequestResponse(c, []ValidationError{{
			Code: "ERR_REQUIRED", Field: "q", Message: "q is required",
		}})
	}

	stocks, err := h.stocks.Search(c.Request().Context(), query)
	if err != nil {
		h.logger.Error("stock search failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}
	return successResponse(c, http.StatusOK, stocks)
}

type createStockRequest struct {
	Symbol   string `json:"symbol" validate:"required,min=1,max=12"`
	Name     string `json:"name" validate:"required,min=1,max=120"`
	Exchange string `json:"exchange" validate:"required,oneof=NYSE NASDAQ NSE BSE LSE"`
	Currency string `json:"currency" validate:"required,len=3"`
}

func (h *StockHandler) Create(c echo.Context) error {
	req := &createStockRequest{}
	if verr := bindAndValidate(c, req); verr != nil {
		return badRequestResponse(c, verr)
	}

	stock := &models.Stock{
		ID:       uuid.New(),
		Symbol:   strings.ToUpper(req.Symbol),
		Name:     req.Name,
		Exchange: req.Exchange,
		Currency: strings.ToUpper(req.Currency),
		IsActive: true,
	}
	if err := h.stocks.Create(c.Request().Context(), stock); err != nil {
		h.logger.Error("stock create failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}
	return successResponse(c, http.StatusCreated, stock)
}

func (h *StockHandler) LatestPrice(c echo.Context) error {
	symbol := strings.ToUpper(c.Param("symbol"))

	obs, err := h.pricing.Latest(c.Request().Context(), symbol)
	if err != nil {
		if errors.Is(err, pricing.ErrNoPrice) {
			return notFoundResponse(c, "price")
		}
		h.logger.Error("price lookup failed", map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		})
		return errorResponse(c, err)
	}
	return successResponse(c, http.StatusOK, obs)
}

type insertPriceRequest struct {
	Price      string `json:"price" validate:"required"`
	Volume     int64  `json:"volume" validate:"gte=0"`
	ObservedAt string `json:"observedAt"`
}

// InsertPrice records a manual price observation and invalidates the
// cached latest price so the next evaluation cycle sees it.
func (h *StockHandler) InsertPrice(c echo.Context) error {
	symbol := strings.ToUpper(c.Param("symbol"))

	req := &insertPriceRequest{}
	if verr := bindAndValidate(c, req); verr != nil {
		return badRequestResponse(c, verr)
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return badRequestResponse(c, []ValidationError{{
			Code: "ERR_NUMERIC", Field: "price", Message: "price must be a decimal number",
		}})
	}

	observedAt := time.Now().UTC()
	if req.ObservedAt != "" {
		observedAt, err = time.Parse(time.RFC3339, req.ObservedAt)
		if err != nil {
			return badRequestResponse(c, []ValidationError{{
				Code: "ERR_FORMAT", Field: "observedAt", Message: "observedAt must be RFC3339",
			}})
		}
	}

	stock, err := h.stocks.GetBySymbol(c.Request().Context(), symbol)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundResponse(c, "stock")
		}
		h.logger.Error("stock lookup failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}

	obs := &models.PriceObservation{
		ID:         uuid.New(),
		StockID:    stock.ID,
		Symbol:     stock.Symbol,
		Price:      price,
		Volume:     req.Volume,
		ObservedAt: observedAt,
		Source:     "MANUAL",
	}
	if err := h.prices.Insert(c.Request().Context(), obs); err != nil {
		h.logger.Error("price insert failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}

	if err := h.pricing.Invalidate(c.Request().Context(), symbol); err != nil {
		h.logger.Warn("price cache invalidation failed", map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		})
	}
	return successResponse(c, http.StatusCreated, obs)
}
