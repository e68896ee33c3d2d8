package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// PortOne V2 APIクライアント。
// 照会は毎回アクセストークンを取り直してサーバー間で叩く。
type PortOneClient struct {
	baseURL   string
	apiSecret string
	storeID   string
	http      *http.Client
}

func NewPortOneClient(baseURL string, apiSecret string, storeID string, timeout time.Duration) *PortOneClient {
	return &PortOneClient{
		baseURL:   baseURL,
		apiSecret: apiSecret,
		storeID:   storeID,
		http:      &http.Client{Timeout: timeout},
	}
}

type loginRequest struct {
	APISecret string `json:"apiSecret"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

// POST /login/api-secret でアクセストークンを発行する。
func (c *PortOneClient) accessToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(loginRequest{APISecret: c.apiSecret})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login/api-secret", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: login status %d", ErrUnavailable, res.StatusCode)
	}

	var lr loginResponse
	if err := json.NewDecoder(res.Body).Decode(&lr); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if lr.AccessToken == "" {
		return "", fmt.Errorf("%w: access token not received", ErrUnavailable)
	}
	return lr.AccessToken, nil
}

type preRegisterRequest struct {
	StoreID     string `json:"storeId,omitempty"`
	TotalAmount int64  `json:"totalAmount"`
	Currency    string `json:"currency"`
}

// 決済意図の事前登録。payment idはこちらで採番してゲートウェイに予約する。
func (c *PortOneClient) InitiatePayment(ctx context.Context, orderID int64, amount int64, currency string) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	paymentID := fmt.Sprintf("payment-%s", uuid.NewString())

	body, err := json.Marshal(preRegisterRequest{
		StoreID:     c.storeID,
		TotalAmount: amount,
		Currency:    currency,
	})
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/payments/%s/pre-register", c.baseURL, url.PathEscape(paymentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("%w: pre-register status %d: %s", ErrUnavailable, res.StatusCode, string(text))
	}

	return paymentID, nil
}

// amountはネスト（amount.paid）で返る。
type fetchPaymentResponse struct {
	Status string `json:"status"`
	Amount struct {
		Total int64 `json:"total"`
		Paid  int64 `json:"paid"`
	} `json:"amount"`
}

// GET /payments/{paymentId} で決済の正本を照会する。
func (c *PortOneClient) FetchPayment(ctx context.Context, paymentID string) (Payment, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return Payment{}, err
	}

	endpoint := fmt.Sprintf("%s/payments/%s", c.baseURL, url.PathEscape(paymentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Payment{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.http.Do(req)
	if err != nil {
		return Payment{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return Payment{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if res.StatusCode == http.StatusNotFound {
		return Payment{}, ErrPaymentNotFound
	}
	if res.StatusCode != http.StatusOK {
		return Payment{}, fmt.Errorf("%w: fetch status %d: %s", ErrUnavailable, res.StatusCode, string(raw))
	}

	var fp fetchPaymentResponse
	if err := json.Unmarshal(raw, &fp); err != nil {
		return Payment{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return Payment{
		PaymentID: paymentID,
		Amount:    fp.Amount.Paid,
		Status:    fp.Status,
		Raw:       raw,
	}, nil
}
