package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/amm-engine/internal/algod"
	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
)

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if he, ok := err.(*echo.HTTPError); ok {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

// statusFor maps an engine error to an HTTP status. Local validation
// failures are the caller's fault; ledger failures are upstream ones.
func statusFor(err error) int {
	switch ammerr.KindOf(err) {
	case ammerr.KindInvalidAmount, ammerr.KindInvalidSlippage, ammerr.KindAssetMismatch,
		ammerr.KindUnsupportedOperation, ammerr.KindNoSigner:
		return http.StatusBadRequest
	case ammerr.KindPoolNotReady:
		return http.StatusConflict
	case ammerr.KindInsufficientLiquidity, ammerr.KindPriceImpact:
		return http.StatusUnprocessableEntity
	case ammerr.KindCorruptedState:
		return http.StatusBadGateway
	}

	var apiErr *algod.APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
