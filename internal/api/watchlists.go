package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"stockwatch/internal/common/logger"
	"stockwatch/internal/models"
	"stockwatch/internal/store"
)

type WatchlistHandler struct {
	watchlists *store.WatchlistStore
	stocks     *store.StockStore
	logger     logger.Logger
}

func NewWatchlistHandler(watchlists *store.WatchlistStore, stocks *store.StockStore, log logger.Logger) *WatchlistHandler {
	return &WatchlistHandler{watchlists: watchlists, stocks: stocks, logger: log}
}

func (h *WatchlistHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/watchlists")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id/items", h.ListItems)
	g.POST("/:id/items", h.AddItem)
	g.DELETE("/:id/items/:stockId", h.RemoveItem)
}

type createWatchlistRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

func (h *WatchlistHandler) Create(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	req := &createWatchlistRequest{}
	if verr := bindAndValidate(c, req); verr != nil {
		return badRequestResponse(c, verr)
	}

	w := &models.Watchlist{
		ID:     uuid.New(),
		UserID: userID,
		Name:   req.Name,
	}
	if err := h.watchlists.Create(c.Request().Context(), w); err != nil {
		h.logger.Error("watchlist create failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}
	return successResponse(c, http.StatusCreated, w)
}

func (h *WatchlistHandler) List(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	lists, err := h.watchlists.ListByUser(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("watchlist list failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}
	return successResponse(c, http.StatusOK, lists)
}

func (h *WatchlistHandler) ListItems(c echo.Context) error {
	watchlistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequestResponse(c, []ValidationError{{
			Code: "ERR_UUID", Field: "id", Message: "id must be a valid UUID",
		}})
	}

	items, err := h.watchlists.ListItems(c.Request().Context(), watchlistID)
	if err != nil {
		h.logger.Error("watchlist items failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}
	return successResponse(c, http.StatusOK, items)
}

type addItemRequest struct {
	Symbol string `json:"symbol" validate:"required,min=1,max=12"`
	Note   string `json:"note" validate:"max=500"`
}

func (h *WatchlistHandler) AddItem(c echo.Context) error {
	watchlistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequestResponse(c, []ValidationError{{
			Code: "ERR_UUID", Field: "id", Message: "id must be a valid UUID",
		}})
	}

	req := &addItemRequest{}
	if verr := bindAndValidate(c, req); verr != nil {
		return badRequestResponse(c, verr)
	}

	stock, err := h.stocks.GetBySymbol(c.Request().Context(), req.Symbol)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundResponse(c, "stock")
		}
		h.logger.Error("stock lookup failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}

	item := &models.WatchlistItem{
		ID:          uuid.New(),
		WatchlistID: watchlistID,
		StockID:     stock.ID,
		Symbol:      stock.Symbol,
		Note:        req.Note,
	}
	if err := h.watchlists.AddItem(c.Request().Context(), item); err != nil {
		h.logger.Error("watchlist add item failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}
	return successResponse(c, http.StatusCreated, item)
}

func (h *WatchlistHandler) RemoveItem(c echo.Context) error {
	watchlistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequestResponse(c, []ValidationError{{
			Code: "ERR_UUID", Field: "id", Message: "id must be a valid UUID",
		}})
	}
	stockID, err := uuid.Parse(c.Param("stockId"))
	if err != nil {
		return badRequestResponse(c, []ValidationError{{
			Code: "ERR_UUID", Field: "stockId", Message: "stockId must be a valid UUID",
		}})
	}

	if err := h.watchlists.RemoveItem(c.Request().Context(), watchlistID, stockID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundResponse(c, "watchlist item")
		}
		h.logger.Error("watchlist remove item failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
