package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shirtforge-backend/api/middleware"
	"github.com/angelmondragon/shirtforge-backend/internal/cart"
	"github.com/angelmondragon/shirtforge-backend/internal/inventory"
	"github.com/angelmondragon/shirtforge-backend/internal/manufacturing"
	"github.com/angelmondragon/shirtforge-backend/internal/orders"
	"github.com/angelmondragon/shirtforge-backend/internal/payments"
	"github.com/angelmondragon/shirtforge-backend/pkg/auth"
	"github.com/angelmondragon/shirtforge-backend/pkg/config"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox"
	"github.com/angelmondragon/shirtforge-backend/pkg/pagination"
)

var customer = auth.Actor{UserID: uuid.New(), Role: enums.RoleCustomer}

func newRequest(method, target, body string, actor *auth.Actor, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := req.Context()
	if actor != nil {
		ctx = middleware.WithActor(ctx, *actor)
	}
	if len(params) > 0 {
		rc := chi.NewRouteContext()
		for k, v := range params {
			rc.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rc)
	}
	return req.WithContext(ctx)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

type stubCart struct {
	added cart.AddItemInput
}

func (s *stubCart) GetActiveCart(ctx context.Context, userID uuid.UUID) (*cart.CartView, error) {
	return &cart.CartView{UserID: userID}, nil
}

func (s *stubCart) AddItem(ctx context.Context, userID uuid.UUID, input cart.AddItemInput) (*cart.CartView, error) {
	s.added = input
	if input.Quantity > 10 {
		return nil, inventory.NewInsufficientStock(input.VariantSizeID, input.Quantity, 10)
	}
	return &cart.CartView{UserID: userID, ItemCount: input.Quantity}, nil
}

func (s *stubCart) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, qty int) (*cart.CartView, error) {
	return &cart.CartView{UserID: userID, ItemCount: qty}, nil
}

func (s *stubCart) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*cart.CartView, error) {
	return &cart.CartView{UserID: userID}, nil
}

func (s *stubCart) Clear(ctx context.Context, userID uuid.UUID) (*cart.CartView, error) {
	return &cart.CartView{UserID: userID}, nil
}

func (s *stubCart) ValidateStock(ctx context.Context, userID uuid.UUID) (*cart.StockValidation, error) {
	return &cart.StockValidation{Valid: true}, nil
}

func TestCartHandlersRequireActor(t *testing.T) {
	rec := httptest.NewRecorder()
	CartGet(&stubCart{}, nil).ServeHTTP(rec, newRequest(http.MethodGet, "/cart", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartAddItem(t *testing.T) {
	svc := &stubCart{}
	vsID := uuid.New()

	rec := httptest.NewRecorder()
	body := `{"variant_size_id":"` + vsID.String() + `","quantity":6}`
	CartAddItem(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/cart/items", body, &customer, nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, vsID, svc.added.VariantSizeID)

	rec = httptest.NewRecorder()
	body = `{"variant_size_id":"` + vsID.String() + `","quantity":11}`
	CartAddItem(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/cart/items", body, &customer, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", errorCode(t, rec))

	rec = httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/cart/items", `{"quantity":0}`, &customer, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartUpdateItemRejectsBadID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPatch, "/cart/items/x", `{"quantity":2}`, &customer, map[string]string{"itemId": "x"})
	CartUpdateItem(&stubCart{}, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubOrders struct {
	order        *models.Order
	getErr       error
	cancelReason string
	statusInput  orders.UpdateStatusInput
}

func (s *stubOrders) CreateOrder(ctx context.Context, userID uuid.UUID, input orders.CreateOrderInput) (*models.Order, error) {
	if input.DeliveryAddressID != s.order.DeliveryAddressID {
		return nil, pkgerrors.New(pkgerrors.CodeAddressNotOwned, "address not owned")
	}
	return s.order, nil
}

func (s *stubOrders) CancelOrder(ctx context.Context, actor auth.Actor, orderID uuid.UUID, reason string) (*models.Order, error) {
	s.cancelReason = reason
	return s.order, nil
}

func (s *stubOrders) UpdateStatus(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input orders.UpdateStatusInput) (*models.Order, error) {
	s.statusInput = input
	if input.Status == enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "pending -> delivered")
	}
	return s.order, nil
}

func (s *stubOrders) GetOrder(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.order, nil
}

func (s *stubOrders) ListOrders(ctx context.Context, actor auth.Actor, params pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{Orders: []orders.OrderView{orders.ToView(s.order)}}, nil
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:                uuid.New(),
		OrderNumber:       "SF-20261016-ABCD1234",
		UserID:            customer.UserID,
		DeliveryAddressID: uuid.New(),
		Status:            enums.OrderStatusPending,
		Items: []models.OrderItem{{
			ID:        uuid.New(),
			Quantity:  6,
			UnitPrice: decimal.RequireFromString("525"),
		}},
	}
}

func TestOrderCreate(t *testing.T) {
	order := sampleOrder()
	svc := &stubOrders{order: order}

	rec := httptest.NewRecorder()
	body := `{"delivery_address_id":"` + order.DeliveryAddressID.String() + `"}`
	OrderCreate(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/orders", body, &customer, nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var envelope struct {
		Data orders.OrderView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, order.OrderNumber, envelope.Data.OrderNumber)
	assert.True(t, envelope.Data.Total.Equal(decimal.RequireFromString("3150")))

	rec = httptest.NewRecorder()
	body = `{"delivery_address_id":"` + uuid.NewString() + `"}`
	OrderCreate(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/orders", body, &customer, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ADDRESS_NOT_OWNED", errorCode(t, rec))
}

func TestOrderCancelAcceptsEmptyBody(t *testing.T) {
	order := sampleOrder()
	svc := &stubOrders{order: order}
	params := map[string]string{"orderId": order.ID.String()}

	rec := httptest.NewRecorder()
	OrderCancel(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/orders/x/cancel", "", &customer, params))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", svc.cancelReason)

	rec = httptest.NewRecorder()
	OrderCancel(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/orders/x/cancel", `{"reason":"  changed plans "}`, &customer, params))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "changed plans", svc.cancelReason)
}

type stubAmountDue struct{}

func (stubAmountDue) AmountDue(ctx context.Context, orderID uuid.UUID, paymentType enums.PaymentType) (decimal.Decimal, error) {
	return decimal.RequireFromString("1575"), nil
}

func TestOrderAmountDue(t *testing.T) {
	order := sampleOrder()
	params := map[string]string{"orderId": order.ID.String()}

	rec := httptest.NewRecorder()
	OrderAmountDue(&stubOrders{order: order}, stubAmountDue{}, nil).
		ServeHTTP(rec, newRequest(http.MethodGet, "/orders/x/amount-due?type=advance", "", &customer, params))
	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data amountDueResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, enums.PaymentTypeAdvance, envelope.Data.PaymentType)
	assert.True(t, envelope.Data.Amount.Equal(decimal.RequireFromString("1575")))

	rec = httptest.NewRecorder()
	OrderAmountDue(&stubOrders{order: order}, stubAmountDue{}, nil).
		ServeHTTP(rec, newRequest(http.MethodGet, "/orders/x/amount-due?type=later", "", &customer, params))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	hidden := &stubOrders{order: order, getErr: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	OrderAmountDue(hidden, stubAmountDue{}, nil).
		ServeHTTP(rec, newRequest(http.MethodGet, "/orders/x/amount-due?type=final", "", &customer, params))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminOrderStatusMapsInvalidTransition(t *testing.T) {
	order := sampleOrder()
	admin := auth.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
	params := map[string]string{"orderId": order.ID.String()}

	rec := httptest.NewRecorder()
	AdminOrderStatus(&stubOrders{order: order}, nil).
		ServeHTTP(rec, newRequest(http.MethodPatch, "/admin/orders/x/status", `{"status":"delivered"}`, &admin, params))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", errorCode(t, rec))
}

type stubPayments struct {
	verified payments.VerifyInput
}

func (s *stubPayments) InitiatePayment(ctx context.Context, actor auth.Actor, orderID uuid.UUID, paymentType enums.PaymentType) (*payments.InitiatedPayment, error) {
	return &payments.InitiatedPayment{GatewayOrderID: "order_gw1", AmountMinor: 157500, Currency: "INR"}, nil
}

func (s *stubPayments) VerifyPayment(ctx context.Context, actor auth.Actor, input payments.VerifyInput) (*models.Payment, error) {
	s.verified = input
	if input.Signature != "good" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSignature, "signature mismatch")
	}
	return &models.Payment{ID: uuid.New(), OrderID: input.OrderID, Status: enums.PaymentStatusSuccess}, nil
}

func (s *stubPayments) PaymentSummary(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*payments.Summary, error) {
	return &payments.Summary{OrderID: orderID}, nil
}

func TestPaymentInitiate(t *testing.T) {
	params := map[string]string{"orderId": uuid.NewString()}

	rec := httptest.NewRecorder()
	PaymentInitiate(&stubPayments{}, nil).
		ServeHTTP(rec, newRequest(http.MethodPost, "/orders/x/payments", `{"payment_type":"advance"}`, &customer, params))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"razorpay_order_id":"order_gw1"`)

	rec = httptest.NewRecorder()
	PaymentInitiate(&stubPayments{}, nil).
		ServeHTTP(rec, newRequest(http.MethodPost, "/orders/x/payments", `{"payment_type":"deposit"}`, &customer, params))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentVerify(t *testing.T) {
	svc := &stubPayments{}
	orderID := uuid.New()
	body := func(sig string) string {
		return `{"order_id":"` + orderID.String() + `","razorpay_order_id":"order_gw1","razorpay_payment_id":"pay_1","razorpay_signature":"` + sig + `"}`
	}

	rec := httptest.NewRecorder()
	PaymentVerify(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/payments/verify", body("good"), &customer, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pay_1", svc.verified.GatewayPaymentID)

	rec = httptest.NewRecorder()
	PaymentVerify(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/payments/verify", body("bad"), &customer, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_SIGNATURE", errorCode(t, rec))
}

type stubWebhook struct {
	body      []byte
	signature string
	err       error
}

func (s *stubWebhook) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	s.body = body
	s.signature = signature
	return s.err
}

func TestRazorpayWebhook(t *testing.T) {
	svc := &stubWebhook{}

	rec := httptest.NewRecorder()
	RazorpayWebhook(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/webhooks/razorpay", `{"event":"payment.captured"}`, nil, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.body)

	req := newRequest(http.MethodPost, "/webhooks/razorpay", `{"event":"payment.captured"}`, nil, nil)
	req.Header.Set(RazorpaySignatureHeader, "abc123")
	rec = httptest.NewRecorder()
	RazorpayWebhook(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"event":"payment.captured"}`, string(svc.body))
	assert.Equal(t, "abc123", svc.signature)

	svc.err = pkgerrors.New(pkgerrors.CodeInvalidSignature, "signature mismatch")
	req = newRequest(http.MethodPost, "/webhooks/razorpay", `{}`, nil, nil)
	req.Header.Set(RazorpaySignatureHeader, "forged")
	rec = httptest.NewRecorder()
	RazorpayWebhook(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubMaterials struct {
	actor *outbox.ActorRef
}

func (s *stubMaterials) MaterialRequirements(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	return map[uuid.UUID]decimal.Decimal{uuid.New(): decimal.RequireFromString("15")}, nil
}

func (s *stubMaterials) CheckFeasibility(ctx context.Context, orderID uuid.UUID) (*manufacturing.Feasibility, error) {
	return &manufacturing.Feasibility{OrderID: orderID, Feasible: true}, nil
}

func (s *stubMaterials) DeductRawMaterials(ctx context.Context, actor *outbox.ActorRef, orderID uuid.UUID) (*manufacturing.Feasibility, error) {
	s.actor = actor
	return &manufacturing.Feasibility{OrderID: orderID, Feasible: true}, nil
}

func (s *stubMaterials) ListLowMaterials(ctx context.Context) ([]models.RawMaterial, error) {
	return nil, nil
}

func TestAdminDeductMaterialsPassesActor(t *testing.T) {
	svc := &stubMaterials{}
	admin := auth.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
	params := map[string]string{"orderId": uuid.NewString()}

	rec := httptest.NewRecorder()
	AdminDeductMaterials(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/admin/orders/x/materials/deduct", "", &admin, params))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.actor)
	assert.Equal(t, admin.UserID, svc.actor.UserID)
	assert.Equal(t, "admin", svc.actor.Role)
}

type stubStock struct {
	qty int
}

func (s *stubStock) Restock(ctx context.Context, actor *outbox.ActorRef, variantSizeID uuid.UUID, qty int) (*inventory.Availability, error) {
	s.qty = qty
	return &inventory.Availability{VariantSizeID: variantSizeID, QuantityInStock: qty, Available: qty}, nil
}

func (s *stubStock) Get(ctx context.Context, variantSizeID uuid.UUID) (*inventory.Availability, error) {
	return &inventory.Availability{VariantSizeID: variantSizeID}, nil
}

func (s *stubStock) ListLowStock(ctx context.Context) ([]models.Stock, error) {
	return nil, nil
}

func TestAdminRestockValidatesQuantity(t *testing.T) {
	svc := &stubStock{}
	admin := auth.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
	params := map[string]string{"variantSizeId": uuid.NewString()}

	rec := httptest.NewRecorder()
	AdminRestock(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/admin/stock/x/restock", `{"quantity":-3}`, &admin, params))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, svc.qty)

	rec = httptest.NewRecorder()
	AdminRestock(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/admin/stock/x/restock", `{"quantity":40}`, &admin, params))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 40, svc.qty)
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestHealthReadyReportsDependencyFailure(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, map[string]Pinger{"redis": failingPinger{}}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Header().Get(envHeader))
}
