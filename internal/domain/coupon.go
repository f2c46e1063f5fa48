package domain

import "time"

type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixedAmount"
)

// Coupon is the live catalog entity. Orders never hold a reference to
// it; they store a CouponSnapshot taken at checkout time.
type Coupon struct {
	ID         string       `json:"id"`
	Code       string       `json:"code"`
	Kind       DiscountKind `json:"kind"`
	Value      int64        `json:"value"`
	ValidFrom  time.Time    `json:"valid_from"`
	ValidTo    time.Time    `json:"valid_to"`
	AssignedTo string       `json:"assigned_to,omitempty"`
}

// CouponSnapshot is the frozen copy stored on an order. Later edits to
// the coupon never change historical order pricing.
type CouponSnapshot struct {
	CouponID string       `json:"coupon_id"`
	Code     string       `json:"code"`
	Kind     DiscountKind `json:"kind"`
	Value    int64        `json:"value"`
}
