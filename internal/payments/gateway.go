package payments

import (
	"context"
	"errors"

	"github.com/angelmondragon/shirtforge-backend/pkg/razorpay"
)

// ErrGatewayUnavailable is returned when no gateway credentials are configured.
var ErrGatewayUnavailable = errors.New("payment gateway not configured")

// RemoteOrder is the gateway-side order a customer pays against.
type RemoteOrder struct {
	ID          string
	AmountMinor int64
	Currency    string
	Receipt     string
	Status      string
}

// Gateway creates remote orders with the payment provider.
type Gateway interface {
	CreateRemoteOrder(ctx context.Context, amountMinor int64, currency, receipt string) (RemoteOrder, error)
}

type razorpayGateway struct {
	client *razorpay.Client
}

// NewRazorpayGateway adapts the Razorpay client to Gateway.
func NewRazorpayGateway(client *razorpay.Client) Gateway {
	return &razorpayGateway{client: client}
}

func (g *razorpayGateway) CreateRemoteOrder(ctx context.Context, amountMinor int64, currency, receipt string) (RemoteOrder, error) {
	order, err := g.client.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
		Notes:    map[string]string{"receipt": receipt},
	})
	if err != nil {
		return RemoteOrder{}, err
	}
	return RemoteOrder{
		ID:          order.ID,
		AmountMinor: order.Amount,
		Currency:    order.Currency,
		Receipt:     order.Receipt,
		Status:      order.Status,
	}, nil
}

// UnavailableGateway rejects every request; used when Razorpay is not configured.
type UnavailableGateway struct{}

func (UnavailableGateway) CreateRemoteOrder(context.Context, int64, string, string) (RemoteOrder, error) {
	return RemoteOrder{}, ErrGatewayUnavailable
}
