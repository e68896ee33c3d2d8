package model

import "time"

type PaymentAttemptStatus string

const (
	//ゲートウェイ照会で検証できた決済。
	PaymentAttemptStatusVerified PaymentAttemptStatus = "VERIFIED"
	//金額やステータスの不一致で拒否した決済。
	PaymentAttemptStatusRejected PaymentAttemptStatus = "REJECTED"
)

// 決済検証の記録。
// payment_idはゲートウェイ採番。uniqueIndexで同じ決済の二重記録を防ぐ。
// 1注文につきPAIDへ遷移させる試行は最大1つ。
type PaymentAttempt struct {
	ID            int64                `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentID     string               `gorm:"type:varchar(128);not null;uniqueIndex" json:"payment_id"`
	OrderID       int64                `gorm:"not null;index" json:"order_id"`
	ClaimedAmount int64                `gorm:"not null" json:"claimed_amount"`
	GatewayStatus string               `gorm:"type:varchar(32);not null" json:"gateway_status"`
	Status        PaymentAttemptStatus `gorm:"type:varchar(20);not null" json:"status"`
	VerifiedAt    time.Time            `gorm:"not null" json:"verified_at"`
	CreatedAt     time.Time            `gorm:"not null;autoCreateTime" json:"created_at"`
}
