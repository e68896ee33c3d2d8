package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// FOR UPDATEで行ロック。Txの中で呼ぶこと。
func (r *OrderGormRepository) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// 買い手のDRAFT注文を取得し、無ければ作成。
// 二重作成はorders(buyer_id) WHERE status='DRAFT'の部分一意インデックスが防ぐ。
// 同時に走った側はON CONFLICT DO NOTHINGで0行になり、勝った方を読み直す。
func (r *OrderGormRepository) GetOrCreateDraftByBuyerID(ctx context.Context, buyerID int64) (model.Order, error) {
	var order model.Order

	findErr := r.db.WithContext(ctx).
		Where("buyer_id = ? AND status = ?", buyerID, model.OrderStatusDraft).
		First(&order).Error

	if findErr == nil {
		return order, nil
	}
	if !errors.Is(findErr, gorm.ErrRecordNotFound) {
		return model.Order{}, findErr
	}

	// 無ければ作る（空住所・total=0）
	now := time.Now()
	newOrder := model.Order{
		BuyerID:         buyerID,
		Status:          model.OrderStatusDraft,
		DeliveryAddress: "",
		TotalPrice:      0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&newOrder)
	if res.Error != nil {
		return model.Order{}, res.Error
	}
	if res.RowsAffected > 0 {
		return newOrder, nil
	}

	//競合に負けた。勝った方のDRAFTを読み直す。
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND status = ?", buyerID, model.OrderStatusDraft).
		First(&order).Error
	if err != nil {
		return model.Order{}, err
	}
	return order, nil
}

func (r *OrderGormRepository) FindDraftByBuyerID(ctx context.Context, buyerID int64) (model.Order, error) {
	var o model.Order

	err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND status = ?", buyerID, model.OrderStatusDraft).
		Order("id desc").
		First(&o).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) ListByBuyerID(ctx context.Context, buyerID int64, page int, limit int) ([]model.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("buyer_id = ?", buyerID).
		Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

// 現在ステータスが一致するときだけ遷移。
// RowsAffected=0 は「先を越された」ことを意味し、エラーではなく false。
func (r *OrderGormRepository) UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DRAFTのときだけ確定（PENDING化＋住所＋凍結total）。
func (r *OrderGormRepository) FinalizeIfDraft(ctx context.Context, orderID int64, address string, totalPrice int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, model.OrderStatusDraft).
		Updates(map[string]interface{}{
			"status":           model.OrderStatusPending,
			"delivery_address": address,
			"total_price":      totalPrice,
			"updated_at":       time.Now(),
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DRAFT/CANCELLEDのみ物理削除できる。
func (r *OrderGormRepository) DeleteIfDeletable(ctx context.Context, orderID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status IN ?", orderID, []model.OrderStatus{model.OrderStatusDraft, model.OrderStatusCancelled}).
		Delete(&model.Order{})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// 失効スイープ対象（更新が止まったPENDING）を古い順に返す。
func (r *OrderGormRepository) ListPendingUpdatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var items []model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.OrderStatusPending, cutoff).
		Order("updated_at asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, err
	}
	return items, nil
}
