package usecase

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/gateway"
	repo "storefront/internal/repository"
	"storefront/pkg/rabbitmq"

	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerStub は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerStub struct {
	Repos repo.TxRepos
}

func (m *TxManagerStub) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return fn(m.Repos)
}

// CommitFailTxManagerStub はfn自体は成功させ、コミットで失敗したことにする
type CommitFailTxManagerStub struct {
	Repos     repo.TxRepos
	CommitErr error
}

func (m *CommitFailTxManagerStub) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := fn(m.Repos); err != nil {
		return err
	}
	return m.CommitErr
}

type TxReposStub struct {
	orders          repo.OrderRepository
	lineItems       repo.LineItemRepository
	paymentAttempts repo.PaymentAttemptRepository
	products        repo.ProductRepository
	inventory       repo.InventoryRepository
	auditLogs       repo.AuditLogRepository
}

func (r *TxReposStub) Orders() repo.OrderRepository                   { return r.orders }
func (r *TxReposStub) LineItems() repo.LineItemRepository             { return r.lineItems }
func (r *TxReposStub) PaymentAttempts() repo.PaymentAttemptRepository { return r.paymentAttempts }
func (r *TxReposStub) Products() repo.ProductRepository               { return r.products }
func (r *TxReposStub) Inventory() repo.InventoryRepository            { return r.inventory }
func (r *TxReposStub) AuditLogs() repo.AuditLogRepository             { return r.auditLogs }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) GetOrCreateDraftByBuyerID(ctx context.Context, buyerID int64) (model.Order, error) {
	args := m.Called(ctx, buyerID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindDraftByBuyerID(ctx context.Context, buyerID int64) (model.Order, error) {
	args := m.Called(ctx, buyerID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) ListByBuyerID(ctx context.Context, buyerID int64, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, buyerID, page, limit)
	orders, _ := args.Get(0).([]model.Order)
	total, _ := args.Get(1).(int64)
	return orders, total, args.Error(2)
}

func (m *OrderRepoMock) UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error) {
	args := m.Called(ctx, orderID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) FinalizeIfDraft(ctx context.Context, orderID int64, address string, totalPrice int64) (bool, error) {
	args := m.Called(ctx, orderID, address, totalPrice)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) DeleteIfDeletable(ctx context.Context, orderID int64) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) ListPendingUpdatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	args := m.Called(ctx, cutoff, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Error(1)
}

type LineItemRepoMock struct{ mock.Mock }

func (m *LineItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.LineItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.LineItem)
	return items, args.Error(1)
}

func (m *LineItemRepoMock) FindByOrderAndProduct(ctx context.Context, orderID int64, productID int64) (model.LineItem, error) {
	args := m.Called(ctx, orderID, productID)
	it, _ := args.Get(0).(model.LineItem)
	return it, args.Error(1)
}

func (m *LineItemRepoMock) UpsertByOrderAndProduct(ctx context.Context, orderID int64, productID int64, addQty int64, nameSnapshot string, unitPriceSnapshot int64) error {
	args := m.Called(ctx, orderID, productID, addQty, nameSnapshot, unitPriceSnapshot)
	return args.Error(0)
}

func (m *LineItemRepoMock) UpdateQuantity(ctx context.Context, orderID int64, productID int64, qty int64) error {
	args := m.Called(ctx, orderID, productID, qty)
	return args.Error(0)
}

func (m *LineItemRepoMock) DeleteByOrderAndProduct(ctx context.Context, orderID int64, productID int64) error {
	args := m.Called(ctx, orderID, productID)
	return args.Error(0)
}

func (m *LineItemRepoMock) DeleteByOrderID(ctx context.Context, orderID int64) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

type PaymentAttemptRepoMock struct{ mock.Mock }

func (m *PaymentAttemptRepoMock) Create(ctx context.Context, attempt model.PaymentAttempt) (int64, error) {
	args := m.Called(ctx, attempt)
	id, _ := args.Get(0).(int64)
	return id, args.Error(1)
}

func (m *PaymentAttemptRepoMock) FindByPaymentID(ctx context.Context, paymentID string) (model.PaymentAttempt, error) {
	args := m.Called(ctx, paymentID)
	a, _ := args.Get(0).(model.PaymentAttempt)
	return a, args.Error(1)
}

func (m *PaymentAttemptRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.PaymentAttempt, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.PaymentAttempt)
	return items, args.Error(1)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) FindByID(ctx context.Context, id int64) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	args := m.Called(ctx, productID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *InventoryRepoMock) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func (m *InventoryRepoMock) CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error {
	args := m.Called(ctx, adjustment)
	return args.Error(0)
}

type AuditLogRepoMock struct{ mock.Mock }

func (m *AuditLogRepoMock) Create(ctx context.Context, l model.AuditLog) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *AuditLogRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

// =====================
// Gateway / Publisher mocks
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) InitiatePayment(ctx context.Context, orderID int64, amount int64, currency string) (string, error) {
	args := m.Called(ctx, orderID, amount, currency)
	return args.String(0), args.Error(1)
}

func (m *GatewayMock) FetchPayment(ctx context.Context, paymentID string) (gateway.Payment, error) {
	args := m.Called(ctx, paymentID)
	p, _ := args.Get(0).(gateway.Payment)
	return p, args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) PublishOrderEvent(event rabbitmq.OrderEvent) error {
	args := m.Called(event)
	return args.Error(0)
}
