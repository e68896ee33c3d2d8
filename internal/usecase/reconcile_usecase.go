package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/gateway"
	repo "storefront/internal/repository"
	"storefront/pkg/rabbitmq"
)

// ゲートウェイが「支払い済み」と認める唯一のステータス。
var paidStatusAllowlist = map[string]bool{
	"PAID": true,
}

// ReconcileUsecase は決済の照合を担う。
// クライアントの「成功した」という申告は信用せず、ゲートウェイの正本で裏取りしてからPAIDへ進める。
type ReconcileUsecase struct {
	tx     repo.TransactionManager
	orders repo.OrderRepository
	gw     gateway.PaymentGateway
	events EventPublisher

	gatewayTimeout time.Duration
	fetchAttempts  int
	retryBaseDelay time.Duration
}

func NewReconcileUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	gw gateway.PaymentGateway,
	events EventPublisher,
	gatewayTimeout time.Duration,
) *ReconcileUsecase {
	return &ReconcileUsecase{
		tx:             tx,
		orders:         orders,
		gw:             gw,
		events:         events,
		gatewayTimeout: gatewayTimeout,
		fetchAttempts:  3,
		retryBaseDelay: 200 * time.Millisecond,
	}
}

type ReconcileInput struct {
	OrderID       int64
	PaymentID     string
	ClaimedAmount int64

	//操作した買い手。Webhook経由は0（システム）。
	ActorUserID int64
}

type ReconcileResult struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"` // PAID / FAILED

	//既にPAID済みのリプレイだったか（副作用なし）。
	AlreadyPaid bool `json:"already_paid,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// Reconcile は申告されたpayment idをゲートウェイに照会し、一致したときだけ注文をPAIDへ遷移させる。
//
//  1. PENDING以外は弾く（PAID済みはリプレイとして成功扱い、CANCELLEDは救済路）
//  2. 申告額と凍結totalの照合（ネットワークに出る前の安価な改竄チェック）
//  3. ゲートウェイへ新規照会（リトライ付き）
//  4. 実額・実ステータスの照合。不一致は自動補正せずFAILEDへ
//  5. PaymentAttempt作成とPAID遷移を同一Txで原子的に行う
func (u *ReconcileUsecase) Reconcile(ctx context.Context, in ReconcileInput) (ReconcileResult, error) {
	if in.OrderID <= 0 {
		return ReconcileResult{}, NewHTTPError(http.StatusBadRequest, "invalid order_id")
	}
	if in.PaymentID == "" {
		return ReconcileResult{}, NewHTTPError(http.StatusBadRequest, "invalid payment_id")
	}

	order, err := u.orders.FindByID(ctx, in.OrderID)
	if err == repo.ErrNotFound {
		return ReconcileResult{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return ReconcileResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	recovery := false
	switch order.Status {
	case model.OrderStatusPending:
		//通常ルート
	case model.OrderStatusPaid:
		//二重送信・リプレイ。副作用なしで成功を返す。
		return ReconcileResult{OrderID: order.ID, Status: string(model.OrderStatusPaid), AlreadyPaid: true}, nil
	case model.OrderStatusCancelled:
		//キャンセル後の遅延Reconcile。ゲートウェイが実際に課金していれば救済する。
		recovery = true
	default:
		return ReconcileResult{}, ErrNotPending
	}

	//申告額のプリフィルタ。ゲートウェイに出る前に改竄を弾く。
	if in.ClaimedAmount != order.TotalPrice {
		if !recovery {
			u.failOrder(ctx, order, in, "", "claimed amount does not match frozen total")
		}
		return ReconcileResult{}, ErrAmountMismatch
	}

	payment, err := u.fetchPaymentWithRetry(ctx, in.PaymentID)
	if err != nil {
		if errors.Is(err, gateway.ErrPaymentNotFound) {
			//申告されたpayment idがゲートウェイに存在しない
			if !recovery {
				u.failOrder(ctx, order, in, "", "payment not found on gateway")
			}
			return ReconcileResult{OrderID: order.ID, Status: string(model.OrderStatusFailed), Reason: "payment not found on gateway"}, nil
		}
		//リトライ枯渇。PENDINGのまま残すと詰まるのでFAILEDへ落とす。
		if !recovery {
			u.failOrder(ctx, order, in, "", "gateway unreachable after retries")
		}
		return ReconcileResult{}, ErrGatewayUnavailable
	}

	//正本との照合。不一致は絶対に自動補正しない。
	if !paidStatusAllowlist[payment.Status] {
		if !recovery {
			u.failOrder(ctx, order, in, payment.Status, "gateway status not in allow-list")
		}
		return ReconcileResult{OrderID: order.ID, Status: string(model.OrderStatusFailed), Reason: "gateway status not in allow-list"}, nil
	}
	if payment.Amount != order.TotalPrice {
		if !recovery {
			u.failOrder(ctx, order, in, payment.Status, "gateway amount does not match frozen total")
		}
		return ReconcileResult{OrderID: order.ID, Status: string(model.OrderStatusFailed), Reason: "gateway amount does not match frozen total"}, nil
	}

	//検証成功。PaymentAttempt作成とPAID遷移を原子的に行う。
	result := ReconcileResult{OrderID: order.ID, Status: string(model.OrderStatusPaid)}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		locked, err := r.Orders().FindByIDForUpdate(ctx, order.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		switch locked.Status {
		case model.OrderStatusPaid:
			//同時Reconcileに先を越された。リプレイ成功として扱う。
			result.AlreadyPaid = true
			return nil
		case model.OrderStatusPending, model.OrderStatusCancelled:
			//続行（CANCELLEDは救済路）
		default:
			return ErrNotPending
		}

		_, err = r.PaymentAttempts().Create(ctx, model.PaymentAttempt{
			PaymentID:     payment.PaymentID,
			OrderID:       locked.ID,
			ClaimedAmount: in.ClaimedAmount,
			GatewayStatus: payment.Status,
			Status:        model.PaymentAttemptStatusVerified,
			VerifiedAt:    time.Now(),
		})
		if err == repo.ErrDuplicatePayment {
			//同じ決済が既に記録済み＝リプレイ。
			result.AlreadyPaid = true
			return nil
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		ok, err := r.Orders().UpdateStatusIf(ctx, locked.ID, locked.Status, model.OrderStatusPaid)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			return ErrIllegalTransition
		}

		writeStatusAudit(ctx, r.AuditLogs(), in.ActorUserID, locked.ID, locked.Status, model.OrderStatusPaid)

		if locked.Status == model.OrderStatusCancelled {
			//救済はキャンセルで戻した予約在庫を取り直す。
			//ここで在庫が足りなくても支払い済みの事実が優先（監査ログに残す）。
			u.reclaimStock(ctx, r, locked)
			writeReconcileAnomaly(ctx, r.AuditLogs(), in, locked)
		}
		return nil
	})

	if err != nil {
		return ReconcileResult{}, err
	}

	if !result.AlreadyPaid {
		u.publish(rabbitmq.OrderEvent{
			Event:      "order.paid",
			OrderID:    order.ID,
			BuyerID:    order.BuyerID,
			TotalPrice: order.TotalPrice,
			OccurredAt: time.Now(),
		})
	}

	return result, nil
}

// ゲートウェイ照会。一時障害だけ限られた回数リトライする。
func (u *ReconcileUsecase) fetchPaymentWithRetry(ctx context.Context, paymentID string) (gateway.Payment, error) {
	var lastErr error

	for attempt := 0; attempt < u.fetchAttempts; attempt++ {
		if attempt > 0 {
			delay := u.retryBaseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return gateway.Payment{}, ctx.Err()
			}
		}

		fetchCtx, cancel := context.WithTimeout(ctx, u.gatewayTimeout)
		payment, err := u.gw.FetchPayment(fetchCtx, paymentID)
		cancel()

		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, gateway.ErrUnavailable) {
			return gateway.Payment{}, err
		}
		lastErr = err
		log.Printf("fetch payment %s attempt %d failed: %v", paymentID, attempt+1, err)
	}

	return gateway.Payment{}, lastErr
}

// 検証失敗・リトライ枯渇でPENDING注文をFAILEDへ落とす。
// 予約在庫を戻し、拒否した試行も監査のため記録する。
func (u *ReconcileUsecase) failOrder(ctx context.Context, order model.Order, in ReconcileInput, gatewayStatus string, reason string) {
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		locked, err := r.Orders().FindByIDForUpdate(ctx, order.ID)
		if err != nil {
			return err
		}
		if locked.Status != model.OrderStatusPending {
			//先に別の遷移が済んでいる
			return nil
		}

		ok, err := r.Orders().UpdateStatusIf(ctx, locked.ID, model.OrderStatusPending, model.OrderStatusFailed)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if _, err := r.PaymentAttempts().Create(ctx, model.PaymentAttempt{
			PaymentID:     in.PaymentID,
			OrderID:       locked.ID,
			ClaimedAmount: in.ClaimedAmount,
			GatewayStatus: gatewayStatus,
			Status:        model.PaymentAttemptStatusRejected,
			VerifiedAt:    time.Now(),
		}); err != nil && err != repo.ErrDuplicatePayment {
			return err
		}

		releaseReservedStock(ctx, r, in.ActorUserID, locked)
		writeStatusAudit(ctx, r.AuditLogs(), in.ActorUserID, locked.ID, model.OrderStatusPending, model.OrderStatusFailed)
		return nil
	})
	if err != nil {
		log.Printf("fail transition for order %d did not complete: %v", order.ID, err)
		return
	}

	u.publish(rabbitmq.OrderEvent{
		Event:      "order.failed",
		OrderID:    order.ID,
		BuyerID:    order.BuyerID,
		TotalPrice: order.TotalPrice,
		Reason:     reason,
		OccurredAt: time.Now(),
	})
}

// 救済時の在庫取り直し。不足してもPAIDは覆さない。
func (u *ReconcileUsecase) reclaimStock(ctx context.Context, r repo.TxRepos, order model.Order) {
	items, err := r.LineItems().ListByOrderID(ctx, order.ID)
	if err != nil {
		log.Printf("reclaim stock: list items failed for order %d: %v", order.ID, err)
		return
	}
	for _, it := range items {
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Quantity)
		if err != nil || !ok {
			log.Printf("reclaim stock: product %d qty %d not re-reserved for order %d", it.ProductID, it.Quantity, order.ID)
			continue
		}
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID: it.ProductID,
			OrderID:   order.ID,
			Delta:     -it.Quantity,
			Reason:    "RECONCILE_RECOVERY",
			CreatedAt: time.Now(),
		}); err != nil {
			log.Printf("reclaim stock: adjustment write failed for order %d: %v", order.ID, err)
		}
	}
}

func (u *ReconcileUsecase) publish(event rabbitmq.OrderEvent) {
	if u.events == nil {
		return
	}
	if err := u.events.PublishOrderEvent(event); err != nil {
		log.Printf("publish %s for order %d failed: %v", event.Event, event.OrderID, err)
	}
}

// CANCELLED注文への遅延Reconcileを救済した記録。黙って捨てずに異常系として残す。
func writeReconcileAnomaly(ctx context.Context, audits repo.AuditLogRepository, in ReconcileInput, order model.Order) {
	detail, _ := json.Marshal(map[string]interface{}{
		"payment_id":     in.PaymentID,
		"claimed_amount": in.ClaimedAmount,
		"note":           "reconcile honored on cancelled order",
	})

	if err := audits.Create(ctx, model.AuditLog{
		ActorUserID:  in.ActorUserID,
		Action:       model.AuditActionReconcileAnomaly,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   order.ID,
		BeforeJSON:   `{"status":"CANCELLED"}`,
		AfterJSON:    string(detail),
		CreatedAt:    time.Now(),
	}); err != nil {
		log.Printf("anomaly audit write failed for order %d: %v", order.ID, err)
	}
}
