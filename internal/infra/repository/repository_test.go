package repository

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain/model"
	appdb "storefront/internal/infra/db"
	repo "storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqliteのin-memory DBでrepoの条件付き更新を検証する。
// 部分一意インデックス込みの本番と同じマイグレーションを通す。
// 行ロック（FOR UPDATE）を伴うメソッドはPostgres前提なのでここでは触らない。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, appdb.Migrate(db))
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, o model.Order) model.Order {
	t.Helper()
	require.NoError(t, db.Create(&o).Error)
	return o
}

func TestOrderUpdateStatusIf(t *testing.T) {
	db := newTestDB(t)
	r := NewOrderGormRepository(db)
	ctx := context.Background()

	o := seedOrder(t, db, model.Order{BuyerID: 7, Status: model.OrderStatusPending, TotalPrice: 2500, Currency: "KRW"})

	ok, err := r.UpdateStatusIf(ctx, o.ID, model.OrderStatusPending, model.OrderStatusPaid)
	assert.NoError(t, err)
	assert.True(t, ok)

	//先を越された側はfalse（エラーではない）
	ok, err = r.UpdateStatusIf(ctx, o.ID, model.OrderStatusPending, model.OrderStatusFailed)
	assert.NoError(t, err)
	assert.False(t, ok)

	got, err := r.FindByID(ctx, o.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, got.Status)
}

func TestOrderFinalizeIfDraft(t *testing.T) {
	db := newTestDB(t)
	r := NewOrderGormRepository(db)
	ctx := context.Background()

	o := seedOrder(t, db, model.Order{BuyerID: 7, Status: model.OrderStatusDraft, Currency: "KRW"})

	ok, err := r.FinalizeIfDraft(ctx, o.ID, "Seoul, Mapo-gu 1-2-3", 2500)
	assert.NoError(t, err)
	assert.True(t, ok)

	got, err := r.FindByID(ctx, o.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, got.Status)
	assert.Equal(t, int64(2500), got.TotalPrice)
	assert.Equal(t, "Seoul, Mapo-gu 1-2-3", got.DeliveryAddress)

	//DRAFTでなくなった後の再確定は効かない
	ok, err = r.FinalizeIfDraft(ctx, o.ID, "elsewhere", 999)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderDeleteIfDeletable(t *testing.T) {
	db := newTestDB(t)
	r := NewOrderGormRepository(db)
	ctx := context.Background()

	pending := seedOrder(t, db, model.Order{BuyerID: 7, Status: model.OrderStatusPending, Currency: "KRW"})
	cancelled := seedOrder(t, db, model.Order{BuyerID: 7, Status: model.OrderStatusCancelled, Currency: "KRW"})

	ok, err := r.DeleteIfDeletable(ctx, pending.ID)
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.DeleteIfDeletable(ctx, cancelled.ID)
	assert.NoError(t, err)
	assert.True(t, ok)

	_, err = r.FindByID(ctx, cancelled.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestOrderListPendingUpdatedBefore(t *testing.T) {
	db := newTestDB(t)
	r := NewOrderGormRepository(db)
	ctx := context.Background()

	stale := seedOrder(t, db, model.Order{BuyerID: 7, Status: model.OrderStatusPending, Currency: "KRW"})
	fresh := seedOrder(t, db, model.Order{BuyerID: 8, Status: model.OrderStatusPending, Currency: "KRW"})
	seedOrder(t, db, model.Order{BuyerID: 9, Status: model.OrderStatusPaid, Currency: "KRW"})

	//staleだけupdated_atを過去へ戻す
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, db.Model(&model.Order{}).Where("id = ?", stale.ID).
		UpdateColumn("updated_at", old).Error)

	got, err := r.ListPendingUpdatedBefore(ctx, time.Now().Add(-time.Hour), 50)
	assert.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale.ID, got[0].ID)
	assert.NotEqual(t, fresh.ID, got[0].ID)
}

func TestOrderFindDraftByBuyerID(t *testing.T) {
	db := newTestDB(t)
	r := NewOrderGormRepository(db)
	ctx := context.Background()

	_, err := r.FindDraftByBuyerID(ctx, 7)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	draft := seedOrder(t, db, model.Order{BuyerID: 7, Status: model.OrderStatusDraft, Currency: "KRW"})
	seedOrder(t, db, model.Order{BuyerID: 7, Status: model.OrderStatusPaid, Currency: "KRW"})

	got, err := r.FindDraftByBuyerID(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, draft.ID, got.ID)
}

func TestOrderGetOrCreateDraftByBuyerID(t *testing.T) {
	db := newTestDB(t)
	r := NewOrderGormRepository(db)
	ctx := context.Background()

	created, err := r.GetOrCreateDraftByBuyerID(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusDraft, created.Status)
	assert.NotZero(t, created.ID)

	//2回目は作らず同じDRAFTを返す
	again, err := r.GetOrCreateDraftByBuyerID(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&model.Order{}).
		Where("buyer_id = ? AND status = ?", 7, model.OrderStatusDraft).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestOrderDraftUniquePerBuyer(t *testing.T) {
	db := newTestDB(t)

	seedOrder(t, db, model.Order{BuyerID: 7, Status: model.OrderStatusDraft, Currency: "KRW"})

	//同じ買い手の2つ目のDRAFTはインデックスが弾く
	second := model.Order{BuyerID: 7, Status: model.OrderStatusDraft, Currency: "KRW"}
	assert.Error(t, db.Create(&second).Error)

	//DRAFT以外は何件あってもよい
	seedOrder(t, db, model.Order{BuyerID: 7, Status: model.OrderStatusPaid, Currency: "KRW"})
	seedOrder(t, db, model.Order{BuyerID: 7, Status: model.OrderStatusCancelled, Currency: "KRW"})

	var count int64
	require.NoError(t, db.Model(&model.Order{}).
		Where("buyer_id = ? AND status = ?", 7, model.OrderStatusDraft).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLineItemUpsertOnlyWhileDraft(t *testing.T) {
	db := newTestDB(t)
	r := NewLineItemGormRepository(db)
	ctx := context.Background()

	draft := seedOrder(t, db, model.Order{BuyerID: 7, Status: model.OrderStatusDraft, Currency: "KRW"})
	pending := seedOrder(t, db, model.Order{BuyerID: 8, Status: model.OrderStatusPending, Currency: "KRW"})

	require.NoError(t, r.UpsertByOrderAndProduct(ctx, draft.ID, 1, 2, "widget", 1000))

	//同一商品の追加は数量加算、スナップショット価格は初回のまま
	require.NoError(t, r.UpsertByOrderAndProduct(ctx, draft.ID, 1, 3, "widget", 9999))

	got, err := r.FindByOrderAndProduct(ctx, draft.ID, 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), got.Quantity)
	assert.Equal(t, int64(1000), got.UnitPriceSnapshot)

	//確定済みの注文には書けない
	err = r.UpsertByOrderAndProduct(ctx, pending.ID, 1, 2, "widget", 1000)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	items, err := r.ListByOrderID(ctx, pending.ID)
	assert.NoError(t, err)
	assert.Empty(t, items)
}

func TestPaymentAttemptDuplicate(t *testing.T) {
	db := newTestDB(t)
	r := NewPaymentAttemptGormRepository(db)
	ctx := context.Background()

	attempt := model.PaymentAttempt{
		PaymentID:     "payment-abc",
		OrderID:       10,
		ClaimedAmount: 2500,
		GatewayStatus: "PAID",
		Status:        model.PaymentAttemptStatusVerified,
		VerifiedAt:    time.Now(),
	}

	id, err := r.Create(ctx, attempt)
	assert.NoError(t, err)
	assert.NotZero(t, id)

	//同じpayment_idの二重記録は一意制約で弾く
	_, err = r.Create(ctx, model.PaymentAttempt{
		PaymentID:     "payment-abc",
		OrderID:       11,
		ClaimedAmount: 999,
		GatewayStatus: "PAID",
		Status:        model.PaymentAttemptStatusVerified,
		VerifiedAt:    time.Now(),
	})
	assert.ErrorIs(t, err, repo.ErrDuplicatePayment)

	got, err := r.FindByPaymentID(ctx, "payment-abc")
	assert.NoError(t, err)
	assert.Equal(t, int64(10), got.OrderID)
}

func TestInventoryDecreaseStockIfEnough(t *testing.T) {
	db := newTestDB(t)
	r := NewInventoryGormRepository(db)
	ctx := context.Background()

	p := model.Product{Name: "widget", Price: 1000, Stock: 3, IsActive: true}
	require.NoError(t, db.Create(&p).Error)

	ok, err := r.DecreaseStockIfEnough(ctx, p.ID, 2)
	assert.NoError(t, err)
	assert.True(t, ok)

	//残り1。2個は引けない。
	ok, err = r.DecreaseStockIfEnough(ctx, p.ID, 2)
	assert.NoError(t, err)
	assert.False(t, ok)

	var got model.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, int64(1), got.Stock)

	require.NoError(t, r.IncreaseStock(ctx, p.ID, 2))
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, int64(3), got.Stock)
}

func TestInventoryIncreaseStockMissingProduct(t *testing.T) {
	db := newTestDB(t)
	r := NewInventoryGormRepository(db)

	err := r.IncreaseStock(context.Background(), 999, 1)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestLineItemQuantityAndDelete(t *testing.T) {
	db := newTestDB(t)
	r := NewLineItemGormRepository(db)
	ctx := context.Background()

	item := model.LineItem{OrderID: 10, ProductID: 1, ProductNameSnapshot: "widget", UnitPriceSnapshot: 1000, Quantity: 1}
	require.NoError(t, db.Create(&item).Error)

	assert.NoError(t, r.UpdateQuantity(ctx, 10, 1, 5))

	got, err := r.FindByOrderAndProduct(ctx, 10, 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), got.Quantity)
	//スナップショット価格は動かない
	assert.Equal(t, int64(1000), got.UnitPriceSnapshot)

	assert.ErrorIs(t, r.UpdateQuantity(ctx, 10, 99, 5), repo.ErrNotFound)
	assert.ErrorIs(t, r.DeleteByOrderAndProduct(ctx, 10, 99), repo.ErrNotFound)

	assert.NoError(t, r.DeleteByOrderID(ctx, 10))
	items, err := r.ListByOrderID(ctx, 10)
	assert.NoError(t, err)
	assert.Empty(t, items)
}
