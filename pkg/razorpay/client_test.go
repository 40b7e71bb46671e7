package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shirtforge-backend/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(context.Background(), config.RazorpayConfig{
		KeyID:     "rzp_test_key",
		KeySecret: "shh",
		BaseURL:   srv.URL + "/",
	}, nil)
	require.NoError(t, err)
	return client
}

func TestCreateOrderSendsPaiseAndBasicAuth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "shh", pass)

		var body CreateOrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(157500), body.Amount)
		assert.Equal(t, "INR", body.Currency)
		assert.Equal(t, "order_SF-20260309-ABCDEF_advance", body.Receipt)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_Nx1","entity":"order","amount":157500,"currency":"INR","receipt":"order_SF-20260309-ABCDEF_advance","status":"created"}`))
	})

	order, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		Amount:   157500,
		Currency: "INR",
		Receipt:  "order_SF-20260309-ABCDEF_advance",
	})
	require.NoError(t, err)
	assert.Equal(t, "order_Nx1", order.ID)
	assert.Equal(t, "created", order.Status)
}

func TestCreateOrderSurfacesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount exceeds maximum"}}`))
	})

	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 1, Currency: "INR", Receipt: "r"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "BAD_REQUEST_ERROR", apiErr.Code)
}

func TestCreateOrderRejectsNonPositiveAmount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})
	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 0, Currency: "INR"})
	require.Error(t, err)
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), config.RazorpayConfig{KeySecret: "x"}, nil)
	require.ErrorIs(t, err, errKeyIDRequired)
	_, err = NewClient(context.Background(), config.RazorpayConfig{KeyID: "x"}, nil)
	require.ErrorIs(t, err, errKeySecretRequired)
}
