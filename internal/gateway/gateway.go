package gateway

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	//一時的な障害（ネットワーク・5xx）。呼び出し側がリトライする。
	ErrUnavailable = errors.New("payment gateway unavailable")

	//ゲートウェイに該当決済が存在しない。
	ErrPaymentNotFound = errors.New("payment not found on gateway")
)

// ゲートウェイが返す決済の正本。
// Rawは監査用にそのまま保持する。
type Payment struct {
	PaymentID string
	Amount    int64
	Status    string
	Raw       json.RawMessage
}

// 決済ゲートウェイの約束。
// FetchPaymentは必ずサーバー間の新規呼び出しで、キャッシュやクライアント申告値を返してはならない。
type PaymentGateway interface {
	//決済意図を事前登録し、ゲートウェイ採番のpayment intent idを返す。
	InitiatePayment(ctx context.Context, orderID int64, amount int64, currency string) (string, error)

	//payment idで決済の正本を照会する。
	FetchPayment(ctx context.Context, paymentID string) (Payment, error)
}
