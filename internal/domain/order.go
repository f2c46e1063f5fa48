package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

// OrderItem is a line frozen at order-creation time. It copies the
// product's name and pricing so catalog edits never rewrite history.
type OrderItem struct {
	ProductID       string `json:"product_id"`
	Name            string `json:"name"`
	UnitPrice       int64  `json:"unit_price"`
	FinalUnitPrice  int64  `json:"final_unit_price"`
	DiscountPercent int    `json:"discount_percent"`
	Quantity        int    `json:"quantity"`
}

type Address struct {
	Phone  string `json:"phone"`
	Street string `json:"street"`
}

// Order is immutable after creation except for Status. OrderPrice is the
// pre-coupon subtotal, FinalPrice the amount actually charged.
type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Items         []OrderItem     `json:"items"`
	Coupon        *CouponSnapshot `json:"coupon,omitempty"`
	OrderPrice    int64           `json:"order_price"`
	FinalPrice    int64           `json:"final_price"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Status        OrderStatus     `json:"status"`
	Address       Address         `json:"address"`
	CreatedAt     time.Time       `json:"created_at"`
}
