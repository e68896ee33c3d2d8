package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type LineItemGormRepository struct {
	db *gorm.DB
}

func NewLineItemGormRepository(db *gorm.DB) *LineItemGormRepository {
	return &LineItemGormRepository{db: db}
}

// 明細を一覧取得
func (r *LineItemGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.LineItem, error) {
	var items []model.LineItem

	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.LineItem{}, err
	}

	return items, nil
}

func (r *LineItemGormRepository) FindByOrderAndProduct(ctx context.Context, orderID int64, productID int64) (model.LineItem, error) {
	var item model.LineItem

	err := r.db.WithContext(ctx).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		First(&item).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.LineItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.LineItem{}, err
	}
	return item, nil
}

// 同一商品は数量加算。
// スナップショット価格は初回追加時の値を維持する（加算では上書きしない）。
// 親注文がDRAFTのときだけ書ける。条件付きUPDATEで親の行ロックを取るので、
// Finalizeと競合した側はコミット後のPENDINGを見て0行＝ErrNotFoundになる。
func (r *LineItemGormRepository) UpsertByOrderAndProduct(ctx context.Context, orderID int64, productID int64, addQty int64, nameSnapshot string, unitPriceSnapshot int64) error {

	if addQty <= 0 {
		return errors.New("invalid quantity")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		touch := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", orderID, model.OrderStatusDraft).
			Update("updated_at", time.Now())
		if touch.Error != nil {
			return touch.Error
		}
		if touch.RowsAffected == 0 {
			return repo.ErrNotFound
		}

		var item model.LineItem

		err := tx.
			Where("order_id = ? AND product_id = ?", orderID, productID).
			First(&item).Error

		if err == nil {
			newQty := item.Quantity + addQty

			res := tx.Model(&model.LineItem{}).
				Where("id = ?", item.ID).
				Update("quantity", newQty)

			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return repo.ErrNotFound
			}
			return nil
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		//無い場合は新規作成
		now := time.Now()
		newItem := model.LineItem{
			OrderID:             orderID,
			ProductID:           productID,
			ProductNameSnapshot: nameSnapshot,
			UnitPriceSnapshot:   unitPriceSnapshot,
			Quantity:            addQty,
			CreatedAt:           now,
			UpdatedAt:           now,
		}

		if err := tx.Create(&newItem).Error; err != nil {
			return err
		}

		return nil
	})
}

// 明細の数量を更新
func (r *LineItemGormRepository) UpdateQuantity(ctx context.Context, orderID int64, productID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.LineItem{}).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		Update("quantity", qty)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を削除
func (r *LineItemGormRepository) DeleteByOrderAndProduct(ctx context.Context, orderID int64, productID int64) error {
	res := r.db.WithContext(ctx).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		Delete(&model.LineItem{})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 注文の明細を全削除
func (r *LineItemGormRepository) DeleteByOrderID(ctx context.Context, orderID int64) error {
	return r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&model.LineItem{}).Error
}
