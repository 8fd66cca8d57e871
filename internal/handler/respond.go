package handler

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/unicef/etools-core/internal/apperr"
	"github.com/unicef/etools-core/pkg/logger"
)

// fail maps a domain error onto its HTTP status and a JSON error body.
// Internal errors are logged with detail and reported generically.
func fail(c echo.Context, err error) error {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if kind == apperr.Internal {
		logger.FromContext(c).Error("Request failed", zap.Error(err))
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	body := echo.Map{"error": err.Error(), "code": string(kind)}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Field != "" {
		body["field"] = appErr.Field
	}
	return c.JSON(status, body)
}
