package db

import (
	"fmt"

	"storefront/internal/config"
	"storefront/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config) (*gorm.DB, error) {
	// DATABASE_URL があれば最優先で使う
	if cfg.DatabaseURL != "" {
		return gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresSSLMode,
	)

	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

// Migrate はスキーマを適用する。
// AutoMigrateが表現できない部分インデックスはrawで張る。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Order{},
		&model.LineItem{},
		&model.PaymentAttempt{},
		&model.Product{},
		&model.AuditLog{},
		&model.InventoryAdjustment{},
	); err != nil {
		return err
	}

	//1買い手につきDRAFTは1つ。同時get-or-createの二重作成をDBで防ぐ。
	return db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_buyer_draft ON orders(buyer_id) WHERE status = 'DRAFT'",
	).Error
}
