package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 商品カタログの読み取りだけを約束。
// 登録・更新は外部のカタログ管理の責務。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
}
