package model

import "time"

// 注文の明細。
// 追加時点の価格を必ず保存（スナップショット）。
// 親OrderがDRAFTの間だけ変更できる。
type LineItem struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64     `gorm:"not null;index:idx_line_items_order_product,unique" json:"order_id"`
	ProductID           int64     `gorm:"not null;index:idx_line_items_order_product,unique" json:"product_id"`
	ProductNameSnapshot string    `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPriceSnapshot   int64     `gorm:"not null;column:unit_price_snapshot" json:"unit_price_snapshot"`
	Quantity            int64     `gorm:"not null" json:"quantity"`
	CreatedAt           time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
