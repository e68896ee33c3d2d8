package model

import "time"

// 注文ステータス更新、在庫解放など。
type AuditAction string

const (
	//注文ステータスを遷移させた操作。
	AuditActionOrderStatusChanged AuditAction = "ORDER_STATUS_CHANGED"
	//キャンセル・失効で予約在庫を戻した操作。
	AuditActionStockReleased AuditAction = "STOCK_RELEASED"
	//CANCELLED注文への遅延Reconcileを救済した異常系。
	AuditActionReconcileAnomaly AuditAction = "RECONCILE_ANOMALY"
)

// 何に対する操作か
type AuditResourceType string

const (
	//注文に対する操作。
	AuditResourceOrder AuditResourceType = "order"

	//商品（在庫）に対する操作。
	AuditResourceProduct AuditResourceType = "product"

	//決済試行に対する操作。
	AuditResourcePayment AuditResourceType = "payment"
)

// 監査ログ。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
// ActorUserID=0はシステム（スイープ・Webhook）による操作。
type AuditLog struct {
	//IDは監査ログの主キー
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作した買い手のID。システム操作は0。
	ActorUserID int64 `gorm:"not null;index" json:"actor_user_id"`

	//Actionは操作の種類。
	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	//対象の種類（order / product / payment）。
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	//対象のID。
	ResourceID int64 `gorm:"not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`

	//JSON文字列で保存する。
	AfterJSON string `gorm:"type:text" json:"after_json"`

	//作成時刻
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
