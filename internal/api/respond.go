package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	stderrors "stockwatch/internal/common/errors"
)

var validate = validator.New()

// ValidationError describes one failed request field.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type successEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

type errorEnvelope struct {
	Success bool        `json:"success"`
	Error   interface{} `json:"error"`
}

func successResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, successEnvelope{Success: true, Data: data})
}

func badRequestResponse(c echo.Context, verr interface{}) error {
	return c.JSON(http.StatusBadRequest, errorEnvelope{Success: false, Error: verr})
}

func errorResponse(c echo.Context, err error) error {
	var stdErr *stderrors.StandardError
	if errors.As(err, &stdErr) {
		status := http.StatusInternalServerError
		switch stdErr.Code {
		case stderrors.ErrCodeAlertNotFound, stderrors.ErrCodeRecipientNotFound, stderrors.ErrCodePriceNotFound:
			status = http.StatusNotFound
		case stderrors.ErrCodeAlertAlreadyTriggered:
			status = http.StatusConflict
		}
		return c.JSON(status, errorEnvelope{Success: false, Error: map[string]interface{}{
			"code":    string(stdErr.Code),
			"message": stdErr.Message,
		}})
	}
	return c.JSON(http.StatusInternalServerError, errorEnvelope{Success: false, Error: map[string]interface{}{
		"code":    "INTERNAL_ERROR",
		"message": "internal server error",
	}})
}

func notFoundResponse(c echo.Context, what string) error {
	return c.JSON(http.StatusNotFound, errorEnvelope{Success: false, Error: map[string]interface{}{
		"code":    "NOT_FOUND",
		"message": what + " not found",
	}})
}

// bindAndValidate reads the request body into req and runs struct
// validation. It returns a non-nil value describing the failures.
func bindAndValidate(c echo.Context, req interface{}) interface{} {
	if err := c.Bind(req); err != nil {
		return []ValidationError{{Code: "ERR_BIND", Message: err.Error()}}
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errs := make([]ValidationError, 0, len(validationErrors))
			for _, e := range validationErrors {
				errs = append(errs, ValidationError{
					Code:    "ERR_" + strings.ToUpper(e.Tag()),
					Field:   e.Field(),
					Message: validationMessage(e),
				})
			}
			return errs
		}
		return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Type().Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Type().Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
