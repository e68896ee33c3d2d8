package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/labstack/echo/v4"
)

// 決済完了の申告を受けてReconcileを回す。
// クライアントのポーリングとゲートウェイWebhookの両方から呼ばれる。
type PaymentHandler struct {
	uc *usecase.ReconcileUsecase
}

func NewPaymentHandler(uc *usecase.ReconcileUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type PaymentCompleteRequest struct {
	OrderID     int64  `json:"order_id" validate:"required,gt=0"`
	PaymentID   string `json:"payment_id" validate:"required,max=128"`
	TotalAmount int64  `json:"total_amount" validate:"required,gt=0"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/payments")
	g.Use(middleware.AuthJWT(cfg))
	g.POST("/complete", h.complete)

	//Webhookは認証ヘッダを持たない（ゲートウェイのnoticeUrls）。
	//どのみち申告値は信用せず、正本はサーバー間照会で取り直す。
	e.POST("/webhooks/portone", h.webhook)
}

// 買い手クライアントからの決済完了申告。
func (h *PaymentHandler) complete(c echo.Context) error {
	buyerID, ok := getBuyerIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req PaymentCompleteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Reconcile(c.Request().Context(), usecase.ReconcileInput{
		OrderID:       req.OrderID,
		PaymentID:     req.PaymentID,
		ClaimedAmount: req.TotalAmount,
		ActorUserID:   buyerID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ゲートウェイからのWebhook。ActorUserID=0（システム）。
func (h *PaymentHandler) webhook(c echo.Context) error {
	var req PaymentCompleteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Reconcile(c.Request().Context(), usecase.ReconcileInput{
		OrderID:       req.OrderID,
		PaymentID:     req.PaymentID,
		ClaimedAmount: req.TotalAmount,
		ActorUserID:   0,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
