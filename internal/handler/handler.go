package handler

import (
	"errors"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// usecaseのエラー種別をHTTPステータスへ変換する。
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	switch {
	case errors.Is(err, usecase.ErrInvalidState):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "operation not valid for current order status"})
	case errors.Is(err, usecase.ErrIllegalTransition):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "illegal order status transition"})
	case errors.Is(err, usecase.ErrNotPending):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "order is not pending"})
	case errors.Is(err, usecase.ErrAmountMismatch):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "payment amount mismatch"})
	case errors.Is(err, usecase.ErrGatewayUnavailable):
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "payment gateway unavailable"})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// AuthJWTが入れた買い手IDを取り出す。
func getBuyerIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get(middleware.CtxBuyerIDKey)
	id, ok := v.(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}
