package usecase

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/gateway"
	repo "storefront/internal/repository"
)

// CheckoutUsecase はDRAFT→PENDINGの確定（=カートの凍結）を担う。
// Finalizeがカート編集の「戻れない一線」。
type CheckoutUsecase struct {
	tx             repo.TransactionManager
	gw             gateway.PaymentGateway
	currency       string
	gatewayTimeout time.Duration
}

func NewCheckoutUsecase(tx repo.TransactionManager, gw gateway.PaymentGateway, currency string, gatewayTimeout time.Duration) *CheckoutUsecase {
	return &CheckoutUsecase{tx: tx, gw: gw, currency: currency, gatewayTimeout: gatewayTimeout}
}

type FinalizeInput struct {
	DeliveryAddress string
}

type LineItemOutput struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

type OrderOutput struct {
	ID              int64            `json:"id"`
	BuyerID         int64            `json:"buyer_id"`
	Status          string           `json:"status"`
	DeliveryAddress string           `json:"delivery_address"`
	TotalPrice      int64            `json:"total_price"`
	CreatedAt       time.Time        `json:"created_at"`
	Items           []LineItemOutput `json:"items"`
}

type FinalizeOutput struct {
	Order           OrderOutput `json:"order"`
	PaymentIntentID string      `json:"payment_intent_id"`
}

type PaymentAttemptOutput struct {
	PaymentID     string    `json:"payment_id"`
	ClaimedAmount int64     `json:"claimed_amount"`
	GatewayStatus string    `json:"gateway_status"`
	Status        string    `json:"status"`
	VerifiedAt    time.Time `json:"verified_at"`
}

// 注文詳細。決済試行の記録込み。
type OrderDetailOutput struct {
	Order    OrderOutput            `json:"order"`
	Payments []PaymentAttemptOutput `json:"payments"`
}

// ステータス遷移の監査ログ1件分。
type OrderHistoryEntry struct {
	Action      string    `json:"action"`
	ActorUserID int64     `json:"actor_user_id"`
	Before      string    `json:"before,omitempty"`
	After       string    `json:"after,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Finalize はDRAFT注文をPENDINGに確定する。
// このときtotal_priceを明細から再計算して凍結する。以後カタログ価格が変わっても契約額は動かない。
// 在庫もこの時点で予約する（キャンセル・失効・検証失敗で戻る）。
func (u *CheckoutUsecase) Finalize(ctx context.Context, buyerID int64, in FinalizeInput) (FinalizeOutput, error) {
	if buyerID <= 0 {
		return FinalizeOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	address := strings.TrimSpace(in.DeliveryAddress)
	if address == "" || len(address) > 500 {
		return FinalizeOutput{}, NewHTTPError(http.StatusBadRequest, "invalid delivery_address")
	}

	var out FinalizeOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		draft, err := r.Orders().FindDraftByBuyerID(ctx, buyerID)
		if err == repo.ErrNotFound {
			return ErrInvalidState
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//行ロックしてから明細を読む（同時Finalize・同時カート編集の直列化）
		order, err := r.Orders().FindByIDForUpdate(ctx, draft.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if order.Status != model.OrderStatusDraft {
			return ErrInvalidState
		}

		items, err := r.LineItems().ListByOrderID(ctx, order.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		//明細ゼロの確定は許さない
		if len(items) == 0 {
			return ErrInvalidState
		}

		//在庫を確定時に再チェックして減らす（予約）
		for _, it := range items {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Quantity)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !ok {
				return NewHTTPError(http.StatusBadRequest, "out of stock")
			}
			if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
				ProductID: it.ProductID,
				OrderID:   order.ID,
				Delta:     -it.Quantity,
				Reason:    "ORDER_FINALIZED",
				CreatedAt: time.Now(),
			}); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		//totalはこの瞬間の明細から凍結する
		total := ComputeTotal(items)

		ok, err := r.Orders().FinalizeIfDraft(ctx, order.ID, address, total)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			//ロック中に別リクエストへ先を越された
			return ErrIllegalTransition
		}

		writeStatusAudit(ctx, r.AuditLogs(), buyerID, order.ID, model.OrderStatusDraft, model.OrderStatusPending)

		order.Status = model.OrderStatusPending
		order.DeliveryAddress = address
		order.TotalPrice = total
		out.Order = toOrderOutput(order, items)
		return nil
	})

	if err != nil {
		return FinalizeOutput{}, err
	}

	//決済意図の事前登録。ロックの外・コミット後に行う。
	//ここで失敗しても注文はPENDINGのまま（失効スイープが回収する）。
	gwCtx, cancel := context.WithTimeout(ctx, u.gatewayTimeout)
	defer cancel()

	intentID, err := u.gw.InitiatePayment(gwCtx, out.Order.ID, out.Order.TotalPrice, u.currency)
	if err != nil {
		log.Printf("initiate payment failed for order %d: %v", out.Order.ID, err)
		return FinalizeOutput{}, ErrGatewayUnavailable
	}
	out.PaymentIntentID = intentID

	return out, nil
}

func (u *CheckoutUsecase) ListMyOrders(ctx context.Context, buyerID int64) ([]OrderOutput, error) {
	if buyerID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	//ページングはまず固定で取る
	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByBuyerID(ctx, buyerID, 1, 50)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.LineItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *CheckoutUsecase) GetMyOrderDetail(ctx context.Context, buyerID int64, orderID int64) (OrderDetailOutput, error) {
	if buyerID <= 0 {
		return OrderDetailOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderDetailOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderDetailOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.BuyerID != buyerID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.LineItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//検証済み・拒否済みの決済試行も一緒に返す
		attempts, err := r.PaymentAttempts().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out.Order = toOrderOutput(o, items)
		out.Payments = toPaymentAttemptOutputs(attempts)
		return nil
	})

	if err != nil {
		return OrderDetailOutput{}, err
	}
	return out, nil
}

// GetMyOrderHistory は注文のステータス遷移の監査ログを返す。
// 何がいつ誰の操作で起きたかを買い手にも見せる（システム操作はactor=0）。
func (u *CheckoutUsecase) GetMyOrderHistory(ctx context.Context, buyerID int64, orderID int64) ([]OrderHistoryEntry, error) {
	if buyerID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var entries []OrderHistoryEntry

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.BuyerID != buyerID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		resourceType := model.AuditResourceOrder
		resourceID := orderID
		logs, err := r.AuditLogs().List(ctx, repo.AuditLogFilter{
			ResourceType: &resourceType,
			ResourceID:   &resourceID,
			Limit:        100,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		entries = make([]OrderHistoryEntry, 0, len(logs))
		for _, l := range logs {
			entries = append(entries, OrderHistoryEntry{
				Action:      string(l.Action),
				ActorUserID: l.ActorUserID,
				Before:      l.BeforeJSON,
				After:       l.AfterJSON,
				CreatedAt:   l.CreatedAt,
			})
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteOrder は注文の物理削除。DRAFT/CANCELLEDからのみ許す。
// PENDING以降は監査のため遷移で終端させる（削除禁止）。
func (u *CheckoutUsecase) DeleteOrder(ctx context.Context, buyerID int64, orderID int64) error {
	if buyerID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.BuyerID != buyerID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if o.Status != model.OrderStatusDraft && o.Status != model.OrderStatusCancelled {
			return ErrInvalidState
		}

		if err := r.LineItems().DeleteByOrderID(ctx, o.ID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		ok, err := r.Orders().DeleteIfDeletable(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			return ErrInvalidState
		}
		return nil
	})
}

func toOrderOutput(o model.Order, items []model.LineItem) OrderOutput {
	outItems := make([]LineItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, LineItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		BuyerID:         o.BuyerID,
		Status:          string(o.Status),
		DeliveryAddress: o.DeliveryAddress,
		TotalPrice:      o.TotalPrice,
		CreatedAt:       o.CreatedAt,
		Items:           outItems,
	}
}

func toPaymentAttemptOutputs(attempts []model.PaymentAttempt) []PaymentAttemptOutput {
	outs := make([]PaymentAttemptOutput, 0, len(attempts))
	for _, a := range attempts {
		outs = append(outs, PaymentAttemptOutput{
			PaymentID:     a.PaymentID,
			ClaimedAmount: a.ClaimedAmount,
			GatewayStatus: a.GatewayStatus,
			Status:        string(a.Status),
			VerifiedAt:    a.VerifiedAt,
		})
	}
	return outs
}

// ステータス遷移の監査ログ。失敗しても本処理は止めない。
func writeStatusAudit(ctx context.Context, audits repo.AuditLogRepository, actorID int64, orderID int64, from model.OrderStatus, to model.OrderStatus) {
	before, _ := json.Marshal(map[string]string{"status": string(from)})
	after, _ := json.Marshal(map[string]string{"status": string(to)})

	if err := audits.Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       model.AuditActionOrderStatusChanged,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   orderID,
		BeforeJSON:   string(before),
		AfterJSON:    string(after),
		CreatedAt:    time.Now(),
	}); err != nil {
		log.Printf("audit log write failed for order %d: %v", orderID, err)
	}
}
