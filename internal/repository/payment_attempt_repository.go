package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

// payment_idのuniqueIndexに当たったとき（同じ決済の二重記録）。
var ErrDuplicatePayment = errors.New("duplicate payment attempt")

type PaymentAttemptRepository interface {
	//検証結果を1件保存。payment_id重複はErrDuplicatePayment。
	Create(ctx context.Context, attempt model.PaymentAttempt) (int64, error)

	FindByPaymentID(ctx context.Context, paymentID string) (model.PaymentAttempt, error)

	ListByOrderID(ctx context.Context, orderID int64) ([]model.PaymentAttempt, error)
}
