package pricing

import (
	"errors"

	"github.com/ecommkit/storefront/internal/domain"
)

var ErrEmptyCart = errors.New("cart has no items")

// Line pairs a resolved product snapshot with the quantity being bought.
type Line struct {
	Product  domain.Product
	Quantity int
}

// Quote is the priced result of a checkout attempt. Subtotal is the sum
// of discounted line prices before any coupon, Total the amount after
// the coupon is applied.
type Quote struct {
	Items    []domain.OrderItem
	Coupon   *domain.CouponSnapshot
	Subtotal int64
	Total    int64
}

// UnitFinalPrice applies the product's own discount to a unit price,
// rounding half-up to the minor currency unit.
func UnitFinalPrice(unitPrice int64, discountPercent int) int64 {
	return (unitPrice*int64(100-discountPercent) + 50) / 100
}

// Price computes the frozen line items and totals for an order. It is a
// pure function: no I/O, and identical inputs always produce identical
// output. A nil coupon leaves the total equal to the subtotal and the
// snapshot absent.
func Price(lines []Line, coupon *domain.Coupon) (Quote, error) {
	if len(lines) == 0 {
		return Quote{}, ErrEmptyCart
	}

	items := make([]domain.OrderItem, 0, len(lines))
	var subtotal int64
	for _, line := range lines {
		final := UnitFinalPrice(line.Product.Price, line.Product.DiscountPercent)
		items = append(items, domain.OrderItem{
			ProductID:       line.Product.ID,
			Name:            line.Product.Name,
			UnitPrice:       line.Product.Price,
			FinalUnitPrice:  final,
			DiscountPercent: line.Product.DiscountPercent,
			Quantity:        line.Quantity,
		})
		subtotal += final * int64(line.Quantity)
	}

	quote := Quote{
		Items:    items,
		Subtotal: subtotal,
		Total:    subtotal,
	}

	if coupon == nil {
		return quote, nil
	}

	switch coupon.Kind {
	case domain.DiscountFixed:
		quote.Total = subtotal - coupon.Value
		if quote.Total < 0 {
			quote.Total = 0
		}
	case domain.DiscountPercentage:
		quote.Total = (subtotal*(100-coupon.Value) + 50) / 100
	default:
		return Quote{}, errors.New("unknown discount kind: " + string(coupon.Kind))
	}

	quote.Coupon = &domain.CouponSnapshot{
		CouponID: coupon.ID,
		Code:     coupon.Code,
		Kind:     coupon.Kind,
		Value:    coupon.Value,
	}

	return quote, nil
}
