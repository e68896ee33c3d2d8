package model

import "time"

type OrderStatus string

const (
	//下書き＝カート。明細を編集できる唯一の状態。
	OrderStatusDraft OrderStatus = "DRAFT"
	//確定済み。決済ゲートウェイの応答待ち。明細は凍結。
	OrderStatusPending OrderStatus = "PENDING"
	//決済検証済み（終端）。
	OrderStatusPaid OrderStatus = "PAID"
	//ユーザー中断・タイムアウト（終端）。
	OrderStatusCancelled OrderStatus = "CANCELLED"
	//決済検証に失敗（終端）。監査のため残す。
	OrderStatusFailed OrderStatus = "FAILED"
)

// 許可された遷移エッジだけを列挙する。
// DRAFT→PAID のような飛び越しはここで弾く。
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusDraft:
		return next == OrderStatusPending || next == OrderStatusCancelled
	case OrderStatusPending:
		return next == OrderStatusPaid || next == OrderStatusCancelled || next == OrderStatusFailed
	default:
		//PAID / CANCELLED / FAILED は終端
		return false
	}
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled || s == OrderStatusFailed
}

func (s OrderStatus) String() string {
	return string(s)
}

// 1買い手につきDRAFTは1つ（＝カート）
// total_priceはPENDING遷移時に明細から再計算して凍結する。クライアント入力は信用しない。
type Order struct {
	ID              int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	BuyerID         int64       `gorm:"not null;index" json:"buyer_id"`
	Status          OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	DeliveryAddress string      `gorm:"type:varchar(500);not null" json:"delivery_address"`
	TotalPrice      int64       `gorm:"not null" json:"total_price"`
	Currency        string      `gorm:"type:varchar(8);not null" json:"currency"`
	CreatedAt       time.Time   `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
