package usecase

import (
	"context"
	"log"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/pkg/rabbitmq"
)

// CancelUsecase はユーザー中断とPENDINGの失効スイープを担う。
// PENDINGからのキャンセルは「ゲートウェイ側も中断された」とは限らない。
// 後から本物のReconcileが来た場合の救済はReconcileUsecase側が持つ。
type CancelUsecase struct {
	tx     repo.TransactionManager
	events EventPublisher
}

func NewCancelUsecase(tx repo.TransactionManager, events EventPublisher) *CancelUsecase {
	return &CancelUsecase{tx: tx, events: events}
}

type CancelInput struct {
	OrderID int64
	Reason  string
}

// Cancel はDRAFT/PENDINGの注文をCANCELLEDへ遷移させる。
// PAID/FAILEDは終端なので拒否する。予約在庫はここで戻す。
func (u *CancelUsecase) Cancel(ctx context.Context, buyerID int64, in CancelInput) (OrderOutput, error) {
	if buyerID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.OrderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput
	var cancelled model.Order

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, in.OrderID)
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

		if o.Status != model.OrderStatusDraft && o.Status != model.OrderStatusPending {
			return ErrInvalidState
		}

		ok, err := r.Orders().UpdateStatusIf(ctx, o.ID, o.Status, model.OrderStatusCancelled)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			return ErrIllegalTransition
		}

		//在庫の予約はPENDINGでだけ発生している
		if o.Status == model.OrderStatusPending {
			releaseReservedStock(ctx, r, buyerID, o)
		}

		writeStatusAudit(ctx, r.AuditLogs(), buyerID, o.ID, o.Status, model.OrderStatusCancelled)

		items, err := r.LineItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		o.Status = model.OrderStatusCancelled
		cancelled = o
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}

	u.publish(rabbitmq.OrderEvent{
		Event:      "order.cancelled",
		OrderID:    cancelled.ID,
		BuyerID:    cancelled.BuyerID,
		TotalPrice: cancelled.TotalPrice,
		Reason:     in.Reason,
		OccurredAt: time.Now(),
	})

	return out, nil
}

// ExpirePendingOlderThan は更新が止まったPENDINGをFAILEDへ落とす失効スイープ。
// Reconcile活動があればupdated_atが進むので対象から外れる。
// 戻り値は処理した件数。
func (u *CancelUsecase) ExpirePendingOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)

	expired := 0

	//イベントはコミット確定後にまとめて出す（ロールバック時の空撃ち防止）
	var events []rabbitmq.OrderEvent

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		stale, err := r.Orders().ListPendingUpdatedBefore(ctx, cutoff, 50)
		if err != nil {
			return err
		}

		for _, o := range stale {
			locked, err := r.Orders().FindByIDForUpdate(ctx, o.ID)
			if err != nil {
				continue
			}
			//ロック待ちの間に遷移済みなら触らない
			if locked.Status != model.OrderStatusPending || !locked.UpdatedAt.Before(cutoff) {
				continue
			}

			ok, err := r.Orders().UpdateStatusIf(ctx, locked.ID, model.OrderStatusPending, model.OrderStatusFailed)
			if err != nil || !ok {
				continue
			}

			releaseReservedStock(ctx, r, 0, locked)
			writeStatusAudit(ctx, r.AuditLogs(), 0, locked.ID, model.OrderStatusPending, model.OrderStatusFailed)

			events = append(events, rabbitmq.OrderEvent{
				Event:      "order.failed",
				OrderID:    locked.ID,
				BuyerID:    locked.BuyerID,
				TotalPrice: locked.TotalPrice,
				Reason:     "pending expired",
				OccurredAt: time.Now(),
			})
			expired++
		}
		return nil
	})

	if err != nil {
		return 0, err
	}

	for _, ev := range events {
		u.publish(ev)
	}
	return expired, nil
}

func (u *CancelUsecase) publish(event rabbitmq.OrderEvent) {
	if u.events == nil {
		return
	}
	if err := u.events.PublishOrderEvent(event); err != nil {
		log.Printf("publish %s for order %d failed: %v", event.Event, event.OrderID, err)
	}
}

// PENDINGで予約した在庫を明細ぶん戻す。
// 戻し漏れは調整履歴と監査ログから追えるようにする。
func releaseReservedStock(ctx context.Context, r repo.TxRepos, actorID int64, order model.Order) {
	items, err := r.LineItems().ListByOrderID(ctx, order.ID)
	if err != nil {
		log.Printf("release stock: list items failed for order %d: %v", order.ID, err)
		return
	}

	for _, it := range items {
		if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			log.Printf("release stock: product %d qty %d not released for order %d: %v", it.ProductID, it.Quantity, order.ID, err)
			continue
		}
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID: it.ProductID,
			OrderID:   order.ID,
			Delta:     it.Quantity,
			Reason:    "ORDER_RELEASED",
			CreatedAt: time.Now(),
		}); err != nil {
			log.Printf("release stock: adjustment write failed for order %d: %v", order.ID, err)
		}
	}

	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       model.AuditActionStockReleased,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   order.ID,
		BeforeJSON:   "",
		AfterJSON:    "",
		CreatedAt:    time.Now(),
	}); err != nil {
		log.Printf("release stock: audit write failed for order %d: %v", order.ID, err)
	}
}
