package repository

import (
	"context"

	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders          repo.OrderRepository
	lineItems       repo.LineItemRepository
	paymentAttempts repo.PaymentAttemptRepository
	products        repo.ProductRepository
	inventory       repo.InventoryRepository
	auditLogs       repo.AuditLogRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository                   { return r.orders }
func (r *txReposGorm) LineItems() repo.LineItemRepository             { return r.lineItems }
func (r *txReposGorm) PaymentAttempts() repo.PaymentAttemptRepository { return r.paymentAttempts }
func (r *txReposGorm) Products() repo.ProductRepository               { return r.products }
func (r *txReposGorm) Inventory() repo.InventoryRepository            { return r.inventory }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository             { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			orders:          NewOrderGormRepository(tx),
			lineItems:       NewLineItemGormRepository(tx),
			paymentAttempts: NewPaymentAttemptGormRepository(tx),
			products:        NewProductGormRepository(tx),
			inventory:       NewInventoryGormRepository(tx),
			auditLogs:       NewAuditLogGormRepository(tx),
		}
		return fn(r)
	})
}
