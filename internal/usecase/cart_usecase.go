package usecase

import (
	"context"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// CartUsecase は /cart の業務ロジックです。
// カート＝買い手のDRAFT注文。明細の編集はDRAFTの間しか許さない。
type CartUsecase struct {
	orderRepo    repo.OrderRepository
	lineItemRepo repo.LineItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(
	orderRepo repo.OrderRepository,
	lineItemRepo repo.LineItemRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		orderRepo:    orderRepo,
		lineItemRepo: lineItemRepo,
		productRepo:  productRepo,
	}
}

// price は unit_price_snapshot（追加時点の価格）を返す。
type CartItemResponse struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

type CartResponse struct {
	OrderID int64              `json:"order_id"`
	Items   []CartItemResponse `json:"items"`
	Total   int64              `json:"total"`
}

type AddItemInput struct {
	ProductID int64
	Quantity  int64
}

type UpdateItemInput struct {
	Quantity int64
}

// 明細のquantity × unit_price_snapshotの合計。
// キャッシュせず読み出しごとに再計算する。
func ComputeTotal(items []model.LineItem) int64 {
	var total int64 = 0
	for _, it := range items {
		total += it.UnitPriceSnapshot * it.Quantity
	}
	return total
}

// GetCart はカート取得（無ければDRAFTを作って空を返す）。
// 2タブ同時でもDRAFTが二重にできないのはrepo側の原子的get-or-createが担保する。
func (u *CartUsecase) GetCart(ctx context.Context, buyerID int64) (CartResponse, error) {
	if buyerID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	order, err := u.orderRepo.GetOrCreateDraftByBuyerID(ctx, buyerID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, order.ID)
}

// AddItem はカートに追加（同一商品は数量加算）。
func (u *CartUsecase) AddItem(ctx context.Context, buyerID int64, in AddItemInput) (CartResponse, error) {
	if buyerID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	// DRAFT注文取得（無ければ作成）
	order, err := u.orderRepo.GetOrCreateDraftByBuyerID(ctx, buyerID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if order.Status != model.OrderStatusDraft {
		return CartResponse{}, ErrInvalidState
	}

	// 商品チェック（公開のみ）
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.IsActive {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid")
	}

	// 既存数量を調べて在庫超過を先に弾く
	items, err := u.lineItemRepo.ListByOrderID(ctx, order.ID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	var existingQty int64 = 0
	for _, it := range items {
		if it.ProductID == in.ProductID {
			existingQty = it.Quantity
			break
		}
	}

	newQty := existingQty + in.Quantity
	if newQty > p.Stock {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "stock exceeded")
	}

	// Upsert（同一商品は加算）
	// unit_price_snapshot は「追加時点の価格」を渡す
	if err := u.lineItemRepo.UpsertByOrderAndProduct(ctx, order.ID, in.ProductID, in.Quantity, p.Name, p.Price); err != nil {
		if err == repo.ErrNotFound {
			//確認とupsertの間にFinalizeへ先を越された
			return CartResponse{}, ErrInvalidState
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, order.ID)
}

// 数量変更（DRAFTのみ＋在庫チェック）。
func (u *CartUsecase) UpdateItemQuantity(ctx context.Context, buyerID int64, productID int64, in UpdateItemInput) (CartResponse, error) {
	if buyerID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	order, err := u.orderRepo.FindDraftByBuyerID(ctx, buyerID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if order.Status != model.OrderStatusDraft {
		return CartResponse{}, ErrInvalidState
	}

	item, err := u.lineItemRepo.FindByOrderAndProduct(ctx, order.ID, productID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//商品の在庫チェック
	p, err := u.productRepo.FindByID(ctx, item.ProductID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.IsActive {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid")
	}
	if in.Quantity > p.Stock {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "stock exceeded")
	}

	if err := u.lineItemRepo.UpdateQuantity(ctx, order.ID, productID, in.Quantity); err != nil {
		if err == repo.ErrNotFound {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, order.ID)
}

// 明細削除（DRAFTのみ）
func (u *CartUsecase) RemoveItem(ctx context.Context, buyerID int64, productID int64) (CartResponse, error) {
	if buyerID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}

	order, err := u.orderRepo.FindDraftByBuyerID(ctx, buyerID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if order.Status != model.OrderStatusDraft {
		return CartResponse{}, ErrInvalidState
	}

	if err := u.lineItemRepo.DeleteByOrderAndProduct(ctx, order.ID, productID); err != nil {
		if err == repo.ErrNotFound {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, order.ID)
}

// DRAFT注文の明細をまとめてCartResponseを作る。
func (u *CartUsecase) buildCartResponse(ctx context.Context, orderID int64) (CartResponse, error) {
	items, err := u.lineItemRepo.ListByOrderID(ctx, orderID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	respItems := make([]CartItemResponse, 0, len(items))
	for _, it := range items {
		respItems = append(respItems, CartItemResponse{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
	}

	return CartResponse{OrderID: orderID, Items: respItems, Total: ComputeTotal(items)}, nil
}
