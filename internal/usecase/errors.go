package usecase

import (
	"errors"
	"fmt"
)

// 注文・決済コアのエラー種別。
// Handlerのerrors.IsでHTTPステータスに変換する。
var (
	//現在のステータスでは許されない操作（DRAFT以外のカート編集など）。
	ErrInvalidState = errors.New("operation not valid for current order status")

	//ステートマシン違反（DRAFT→PAIDの飛び越しなど）。前方修正はしない。
	ErrIllegalTransition = errors.New("illegal order status transition")

	//クライアント申告額・凍結total・ゲートウェイ実額のいずれかが食い違った。
	//自動補正は絶対にしない。
	ErrAmountMismatch = errors.New("payment amount mismatch")

	//PENDINGでない注文へのReconcile。二重送信・リプレイを含む。
	ErrNotPending = errors.New("order is not pending")

	//ゲートウェイの一時障害。リトライ枯渇後にのみ外へ出る。
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}
