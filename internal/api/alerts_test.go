// internal/api/alerts_test.go
package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/internal/common/logger"
	"stockwatch/internal/store"
)

func newAlertTestServer(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	e := echo.New()
	handler := NewAlertHandler(store.NewAlertStore(db), store.NewStockStore(db), logger.NewNoOpLogger())
	handler.RegisterRoutes(e)
	return e, mock
}

func TestAlertHandler_Create(t *testing.T) {
	e, mock := newAlertTestServer(t)

	userID := uuid.New()
	stockID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM stocks WHERE symbol = \$1`).
		WithArgs("AAPL").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "symbol", "name", "exchange", "currency", "is_active", "created_at", "updated_at"}).
			AddRow(stockID, "AAPL", "Apple Inc.", "NASDAQ", "USD", true, now, now))
	mock.ExpectExec(`INSERT INTO price_alerts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"symbol":"AAPL","conditionType":"PRICE_ABOVE","threshold":"150.00","oneTime":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/alerts", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(userIDHeader, userID.String())
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Symbol        string `json:"symbol"`
			ConditionType string `json:"conditionType"`
			IsActive      bool   `json:"isActive"`
			OneTime       bool   `json:"oneTime"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "AAPL", envelope.Data.Symbol)
	assert.Equal(t, "PRICE_ABOVE", envelope.Data.ConditionType)
	assert.True(t, envelope.Data.IsActive)
	assert.True(t, envelope.Data.OneTime)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertHandler_Create_MissingUserHeader(t *testing.T) {
	e, _ := newAlertTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAlertHandler_Create_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing symbol", `{"conditionType":"PRICE_ABOVE","threshold":"1"}`},
		{"bad condition type", `{"symbol":"AAPL","conditionType":"PRICE_SIDEWAYS","threshold":"1"}`},
		{"missing threshold", `{"symbol":"AAPL","conditionType":"PRICE_ABOVE"}`},
		{"non-numeric threshold", `{"symbol":"AAPL","conditionType":"PRICE_ABOVE","threshold":"abc"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newAlertTestServer(t)

			req := httptest.NewRequest(http.MethodPost, "/api/alerts", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			req.Header.Set(userIDHeader, uuid.New().String())
			rec := httptest.NewRecorder()

			e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAlertHandler_Create_UnknownStock(t *testing.T) {
	e, mock := newAlertTestServer(t)

	mock.ExpectQuery(`SELECT (.+) FROM stocks WHERE symbol = \$1`).
		WithArgs("NOPE").
		WillReturnError(sql.ErrNoRows)

	body := `{"symbol":"NOPE","conditionType":"PRICE_BELOW","threshold":"10"}`
	req := httptest.NewRequest(http.MethodPost, "/api/alerts", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(userIDHeader, uuid.New().String())
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAlertHandler_SetActive(t *testing.T) {
	e, mock := newAlertTestServer(t)

	userID := uuid.New()
	alertID := uuid.New()

	mock.ExpectExec(`UPDATE price_alerts SET is_active = \$3`).
		WithArgs(alertID, userID, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodPatch, "/api/alerts/"+alertID.String()+"/active",
		strings.NewReader(`{"active":false}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(userIDHeader, userID.String())
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
