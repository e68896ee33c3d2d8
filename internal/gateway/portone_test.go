package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// /login/api-secret を処理したうえで残りを next に回すテストサーバー。
func newGatewayServer(t *testing.T, next http.HandlerFunc) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login/api-secret" {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["apiSecret"] != "test-secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": "token-123"})
			return
		}
		next(w, r)
	}))
}

func TestFetchPayment_ParsesPaidAmount(t *testing.T) {
	srv := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		assert.Equal(t, "/payments/payment-abc", r.URL.Path)

		_, _ = w.Write([]byte(`{"status":"PAID","amount":{"total":2500,"paid":2500}}`))
	})
	defer srv.Close()

	c := NewPortOneClient(srv.URL, "test-secret", "store-1", time.Second)

	p, err := c.FetchPayment(context.Background(), "payment-abc")

	assert.NoError(t, err)
	assert.Equal(t, "payment-abc", p.PaymentID)
	assert.Equal(t, int64(2500), p.Amount)
	assert.Equal(t, "PAID", p.Status)
	assert.NotEmpty(t, p.Raw)
}

func TestFetchPayment_NotFound(t *testing.T) {
	srv := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	c := NewPortOneClient(srv.URL, "test-secret", "store-1", time.Second)

	_, err := c.FetchPayment(context.Background(), "payment-bogus")

	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestFetchPayment_ServerErrorIsUnavailable(t *testing.T) {
	srv := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	c := NewPortOneClient(srv.URL, "test-secret", "store-1", time.Second)

	_, err := c.FetchPayment(context.Background(), "payment-abc")

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchPayment_LoginRejected(t *testing.T) {
	srv := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("must not reach payment endpoint without token")
	})
	defer srv.Close()

	c := NewPortOneClient(srv.URL, "wrong-secret", "store-1", time.Second)

	_, err := c.FetchPayment(context.Background(), "payment-abc")

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestInitiatePayment_PreRegisters(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	srv := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	c := NewPortOneClient(srv.URL, "test-secret", "store-1", time.Second)

	id, err := c.InitiatePayment(context.Background(), 10, 2500, "KRW")

	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "payment-"))
	assert.Equal(t, "/payments/"+id+"/pre-register", gotPath)
	assert.Equal(t, float64(2500), gotBody["totalAmount"])
	assert.Equal(t, "KRW", gotBody["currency"])
}

func TestInitiatePayment_GatewayDown(t *testing.T) {
	srv := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	c := NewPortOneClient(srv.URL, "test-secret", "store-1", time.Second)

	_, err := c.InitiatePayment(context.Background(), 10, 2500, "KRW")

	assert.ErrorIs(t, err, ErrUnavailable)
}
