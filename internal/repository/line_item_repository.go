package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type LineItemRepository interface {
	ListByOrderID(ctx context.Context, orderID int64) ([]model.LineItem, error)

	FindByOrderAndProduct(ctx context.Context, orderID int64, productID int64) (model.LineItem, error)

	//同一商品は数量加算。スナップショット価格は初回追加時の値を保持する。
	UpsertByOrderAndProduct(ctx context.Context, orderID int64, productID int64, addQty int64, nameSnapshot string, unitPriceSnapshot int64) error

	UpdateQuantity(ctx context.Context, orderID int64, productID int64, qty int64) error

	DeleteByOrderAndProduct(ctx context.Context, orderID int64, productID int64) error

	//注文の明細を全削除（注文の物理削除時）。
	DeleteByOrderID(ctx context.Context, orderID int64) error
}
