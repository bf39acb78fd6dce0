package models

import (
	"time"

	"github.com/google/uuid"
)

type DiscountKind string

const (
	DiscountNone       DiscountKind = "NONE"
	DiscountPercentage DiscountKind = "PERCENTAGE"
	DiscountFixed      DiscountKind = "FIXED"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

type PaymentMethod string

const (
	PaymentMethodGateway        PaymentMethod = "GATEWAY"
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

type AddressKind string

const (
	AddressKindShipping AddressKind = "SHIPPING"
	AddressKindBilling  AddressKind = "BILLING"
)

// ProductVariant is the purchasable SKU-level unit. Prices are minor units.
// StockQuantity is mutated only through the inventory ledger.
type ProductVariant struct {
	ID               uuid.UUID    `gorm:"type:uuid;primaryKey"             json:"id"`
	Name             string       `gorm:"not null"                         json:"name"`
	SKU              string       `gorm:"uniqueIndex;not null"             json:"sku"`
	UnitPrice        int64        `gorm:"not null"                         json:"unit_price"`
	DiscountKind     DiscountKind `gorm:"not null;default:NONE"            json:"discount_kind"`
	DiscountAmount   int64        `gorm:"not null;default:0"               json:"discount_amount"`
	StockQuantity    int          `gorm:"not null;check:stock_quantity>=0" json:"stock_quantity"`
	MinOrderQuantity int          `gorm:"not null;default:1"               json:"min_order_quantity"`
	MaxOrderQuantity *int         `json:"max_order_quantity"`
}

// Cart is the mutable pre-order basket. OwnerKey is either a guest session
// key or an account key; at most one cart exists per owner. Carts are created
// lazily on the first add and deleted when emptied or consumed by checkout.
type Cart struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"  json:"id"`
	OwnerKey  string     `gorm:"uniqueIndex;not null"  json:"owner_key"`
	IsActive  bool       `gorm:"not null;default:true" json:"is_active"`
	Lines     []CartLine `gorm:"foreignKey:CartID"     json:"lines"`
	CreatedAt time.Time  `json:"created_at"`
}

// CartLine price/discount fields are snapshots captured at add time.
type CartLine struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey"                   json:"id"`
	CartID         uuid.UUID    `gorm:"type:uuid;uniqueIndex:idx_cart_variant" json:"cart_id"`
	VariantID      uuid.UUID    `gorm:"type:uuid;uniqueIndex:idx_cart_variant" json:"variant_id"`
	Quantity       int          `gorm:"not null;check:quantity>0"              json:"quantity"`
	UnitPrice      int64        `gorm:"not null"                               json:"unit_price"`
	DiscountKind   DiscountKind `gorm:"not null;default:NONE"                  json:"discount_kind"`
	DiscountAmount int64        `gorm:"not null;default:0"                     json:"discount_amount"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Order is immutable after creation; only status and payment fields change.
// Total = Subtotal - DiscountTotal + ShippingCost + Tax, computed once.
type Order struct {
	ID                uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNumber       string        `gorm:"uniqueIndex;not null" json:"order_number"`
	OwnerKey          string        `gorm:"index;not null"       json:"owner_key"`
	Status            OrderStatus   `gorm:"not null"             json:"status"`
	PaymentStatus     PaymentStatus `gorm:"not null"             json:"payment_status"`
	PaymentMethod     PaymentMethod `gorm:"not null"             json:"payment_method"`
	Subtotal          int64         `gorm:"not null"             json:"subtotal"`
	DiscountTotal     int64         `gorm:"not null"             json:"discount_total"`
	ShippingCost      int64         `gorm:"not null"             json:"shipping_cost"`
	Tax               int64         `gorm:"not null"             json:"tax"`
	Total             int64         `gorm:"not null"             json:"total"`
	ShippingAddressID uuid.UUID     `gorm:"type:uuid"            json:"shipping_address_id"`
	BillingAddressID  uuid.UUID     `gorm:"type:uuid"            json:"billing_address_id"`
	Notes             string        `json:"notes"`
	PaidAt            *time.Time    `json:"paid_at"`
	GatewayOrderID    string        `gorm:"index"                json:"gateway_order_id"`
	GatewayPaymentID  string        `json:"gateway_payment_id"`
	Items             []OrderItem   `gorm:"foreignKey:OrderID"   json:"items"`
	CreatedAt         time.Time     `json:"created_at"`
}

// OrderItem snapshots name/sku/price/discount so the order never drifts when
// the catalog changes. LineTotal is pre-discount.
type OrderItem struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID      uuid.UUID `gorm:"type:uuid;index"      json:"order_id"`
	VariantID    uuid.UUID `gorm:"type:uuid;not null"   json:"variant_id"`
	Quantity     int       `gorm:"not null"             json:"quantity"`
	UnitPrice    int64     `gorm:"not null"             json:"unit_price"`
	LineDiscount int64     `gorm:"not null"             json:"line_discount"`
	LineTotal    int64     `gorm:"not null"             json:"line_total"`
	SKU          string    `gorm:"not null"             json:"sku"`
	Name         string    `gorm:"not null"             json:"name"`
}

type Address struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey"   json:"id"`
	OwnerKey   string      `gorm:"index;not null"         json:"owner_key"`
	Kind       AddressKind `gorm:"not null"               json:"kind"`
	FullName   string      `gorm:"not null"               json:"full_name"`
	Phone      string      `json:"phone"`
	Line1      string      `gorm:"not null"               json:"line1"`
	Line2      string      `json:"line2"`
	City       string      `gorm:"not null"               json:"city"`
	Region     string      `json:"region"`
	PostalCode string      `gorm:"not null"               json:"postal_code"`
	Country    string      `gorm:"not null"               json:"country"`
	IsDefault  bool        `gorm:"not null;default:false" json:"is_default"`
	CreatedAt  time.Time   `json:"created_at"`
}

// All returns every model registered for migration.
func All() []any {
	return []any{
		&ProductVariant{},
		&Cart{},
		&CartLine{},
		&Order{},
		&OrderItem{},
		&Address{},
	}
}
