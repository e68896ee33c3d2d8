package server

import (
	"context"

	"storefront/internal/config"
	"storefront/internal/handler"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// New はルーティング済みのechoインスタンスを組み立てる。
func New(cfg config.Config, cartH *handler.CartHandler, orderH *handler.OrderHandler, paymentH *handler.PaymentHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	cartH.RegisterRoutes(e, cfg)
	orderH.RegisterRoutes(e, cfg)
	paymentH.RegisterRoutes(e, cfg)

	return e
}

func Start(e *echo.Echo, port string) error {
	return e.Start(":" + port)
}

func Shutdown(ctx context.Context, e *echo.Echo) error {
	return e.Shutdown(ctx)
}
