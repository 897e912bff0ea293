package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"stockwatch/internal/common/logger"
	"stockwatch/internal/notify"
	"stockwatch/internal/search"
	"stockwatch/internal/store"
)

type NotificationHandler struct {
	notifications *store.NotificationStore
	searcher      *search.NotificationIndexer
	broadcaster   *notify.Broadcaster
	logger        logger.Logger
}

func NewNotificationHandler(
	notifications *store.NotificationStore,
	searcher *search.NotificationIndexer,
	broadcaster *notify.Broadcaster,
	log logger.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		searcher:      searcher,
		broadcaster:   broadcaster,
		logger:        log,
	}
}

func (h *NotificationHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/notifications")
	g.GET("", h.List)
	g.GET("/unread-count", h.UnreadCount)
	g.GET("/search", h.Search)
	g.POST("/:id/read", h.MarkRead)
	g.POST("/broadcast", h.Broadcast)
}

func (h *NotificationHandler) List(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	unreadOnly := c.QueryParam("unread") == "true"
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return badRequestResponse(c, []ValidationError{{
				Code: "ERR_NUMERIC", Field: "limit", Message: "limit must be a non-negative integer",
			}})
		}
	}

	notifications, err := h.notifications.ListByUser(c.Request().Context(), userID, unreadOnly, limit)
	if err != nil {
		h.logger.Error("notification list failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}
	return successResponse(c, http.StatusOK, notifications)
}

func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	count, err := h.notifications.UnreadCount(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("unread count failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}
	return successResponse(c, http.StatusOK, map[string]int{"unreadCount": count})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequestResponse(c, []ValidationError{{
			Code: "ERR_UUID", Field: "id", Message: "id must be a valid UUID",
		}})
	}

	if err := h.notifications.MarkRead(c.Request().Context(), id, userID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundResponse(c, "notification")
		}
		h.logger.Error("mark read failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}
	return successResponse(c, http.StatusOK, map[string]interface{}{"id": id, "read": true})
}

// Search queries the Elasticsearch audit index; the relational store
// remains the source of truth, so results may briefly lag it.
func (h *NotificationHandler) Search(c echo.Context) error {
	if h.searcher == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not enabled")
	}
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	params := search.SearchParams{
		UserID:   userID,
		Status:   c.QueryParam("status"),
		Keywords: c.QueryParam("q"),
	}
	if raw := c.QueryParam("from"); raw != "" {
		if params.From, err = strconv.Atoi(raw); err != nil {
			return badRequestResponse(c, []ValidationError{{
				Code: "ERR_NUMERIC", Field: "from", Message: "from must be an integer",
			}})
		}
	}
	if raw := c.QueryParam("size"); raw != "" {
		if params.Size, err = strconv.Atoi(raw); err != nil {
			return badRequestResponse(c, []ValidationError{{
				Code: "ERR_NUMERIC", Field: "size", Message: "size must be an integer",
			}})
		}
	}

	result, err := h.searcher.Search(c.Request().Context(), params)
	if err != nil {
		h.logger.Error("notification search failed", map[string]interface{}{"error": err.Error()})
		return errorResponse(c, err)
	}
	return successResponse(c, http.StatusOK, result)
}

type broadcastRequest struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,dive,uuid"`
	Subject string   `json:"subject" validate:"required,min=1,max=200"`
	Message string   `json:"message" validate:"required,min=1"`
}

func (h *NotificationHandler) Broadcast(c echo.Context) error {
	if h.broadcaster == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "broadcast is not enabled")
	}
	callerUserID, err := callerID(c)
	if err != nil {
		return err
	}
	req := &broadcastRequest{}
	if verr := bindAndValidate(c, req); verr != nil {
		return badRequestResponse(c, verr)
	}

	userIDs := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequestResponse(c, []ValidationError{{
				Code: "ERR_UUID", Field: "userIds", Message: "userIds must contain valid UUIDs",
			}})
		}
		userIDs = append(userIDs, id)
	}

	recorded, err := h.broadcaster.Broadcast(c.Request().Context(), userIDs, req.Subject, req.Message)
	if err != nil {
		h.logger.Error("broadcast failed", map[string]interface{}{
			"requestedBy": callerUserID.String(),
			"error":       err.Error(),
		})
		return errorResponse(c, err)
	}
	h.logger.Info("broadcast accepted", map[string]interface{}{
		"requestedBy": callerUserID.String(),
		"recipients":  recorded,
	})
	return successResponse(c, http.StatusAccepted, map[string]int{"recipients": recorded})
}
