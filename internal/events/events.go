package events

import "context"

const (
	TopicCartEvents    = "cart_events"
	TopicOrderEvents   = "order_events"
	TopicPaymentEvents = "payment_events"
)

// Publisher is implemented by mykafka.Producer; tests use a recorder fake.
type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type CartEvent struct {
	Type      string `json:"type"`
	OwnerKey  string `json:"owner_key"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

type OrderEvent struct {
	Type        string `json:"type"`
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	OwnerKey    string `json:"owner_key,omitempty"`
	Status      string `json:"status,omitempty"`
	Total       int64  `json:"total,omitempty"`
}

type PaymentEvent struct {
	Type             string `json:"type"`
	OrderID          string `json:"order_id,omitempty"`
	OrderNumber      string `json:"order_number,omitempty"`
	GatewayOrderID   string `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
}
