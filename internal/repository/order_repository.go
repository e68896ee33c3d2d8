package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)

	//FOR UPDATEで行ロックして取得。WithinTxの中でだけ使う。
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)

	//買い手のDRAFT注文を取得。無ければ作成（原子的）。
	GetOrCreateDraftByBuyerID(ctx context.Context, buyerID int64) (model.Order, error)

	//買い手のDRAFT注文を取得
	FindDraftByBuyerID(ctx context.Context, buyerID int64) (model.Order, error)

	ListByBuyerID(ctx context.Context, buyerID int64, page int, limit int) ([]model.Order, int64, error)

	//現在ステータスが一致するときだけ遷移させる（条件付き更新）。
	//他のリクエストに先を越された場合は false を返す。
	UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error)

	//DRAFT→PENDINGの確定。住所と凍結済みtotalを同時に書く。
	FinalizeIfDraft(ctx context.Context, orderID int64, address string, totalPrice int64) (bool, error)

	//DRAFT/CANCELLEDからのみ物理削除。PENDING以降は遷移で終端させる。
	DeleteIfDeletable(ctx context.Context, orderID int64) (bool, error)

	//更新が止まったままのPENDINGを列挙（失効スイープ用）。
	ListPendingUpdatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error)
}
