package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type PaymentAttemptGormRepository struct {
	db *gorm.DB
}

func NewPaymentAttemptGormRepository(db *gorm.DB) *PaymentAttemptGormRepository {
	return &PaymentAttemptGormRepository{db: db}
}

// 検証結果を1件保存。
// payment_idのuniqueIndex衝突＝同じ決済の二重記録はErrDuplicatePaymentに変換する。
func (r *PaymentAttemptGormRepository) Create(ctx context.Context, attempt model.PaymentAttempt) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&attempt).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, repo.ErrDuplicatePayment
		}
		return 0, err
	}
	return attempt.ID, nil
}

func (r *PaymentAttemptGormRepository) FindByPaymentID(ctx context.Context, paymentID string) (model.PaymentAttempt, error) {
	var a model.PaymentAttempt

	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&a).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PaymentAttempt{}, repo.ErrNotFound
	}
	if err != nil {
		return model.PaymentAttempt{}, err
	}
	return a, nil
}

func (r *PaymentAttemptGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.PaymentAttempt, error) {
	var items []model.PaymentAttempt

	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.PaymentAttempt{}, err
	}
	return items, nil
}

// Postgresの一意制約違反（23505）を判定する。
// sqlite（テスト）はgorm側の翻訳に任せる。
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
