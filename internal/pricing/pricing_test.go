package pricing

import (
	"testing"
	"time"

	"github.com/ecommkit/storefront/internal/domain"
)

func TestUnitFinalPrice(t *testing.T) {
	tests := []struct {
		name            string
		unitPrice       int64
		discountPercent int
		want            int64
	}{
		{"no discount", 10000, 0, 10000},
		{"ten percent", 10000, 10, 9000},
		{"full discount", 10000, 100, 0},
		{"rounds half up", 999, 5, 949},     // 949.05 -> 949
		{"rounds half up at .5", 50, 1, 50}, // 49.5 -> 50
		{"one cent", 1, 50, 1},              // 0.5 -> 1
		{"zero price", 0, 30, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UnitFinalPrice(tt.unitPrice, tt.discountPercent); got != tt.want {
				t.Errorf("UnitFinalPrice(%d, %d) = %d, want %d", tt.unitPrice, tt.discountPercent, got, tt.want)
			}
		})
	}
}

func testLines() []Line {
	// price 100.00, 10% product discount, quantity 2 -> subtotal 180.00
	return []Line{
		{
			Product: domain.Product{
				ID:              "P1",
				Name:            "widget",
				Price:           10000,
				DiscountPercent: 10,
				Stock:           5,
			},
			Quantity: 2,
		},
	}
}

func testCoupon(kind domain.DiscountKind, value int64) *domain.Coupon {
	return &domain.Coupon{
		ID:        "c-1",
		Code:      "SAVE",
		Kind:      kind,
		Value:     value,
		ValidFrom: time.Now().Add(-time.Hour),
		ValidTo:   time.Now().Add(time.Hour),
	}
}

func TestPrice(t *testing.T) {
	t.Run("no coupon leaves total equal to subtotal", func(t *testing.T) {
		quote, err := Price(testLines(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if quote.Subtotal != 18000 {
			t.Errorf("expected subtotal 18000, got %d", quote.Subtotal)
		}
		if quote.Total != 18000 {
			t.Errorf("expected total 18000, got %d", quote.Total)
		}
		if quote.Coupon != nil {
			t.Errorf("expected no coupon snapshot, got %+v", quote.Coupon)
		}
	})

	t.Run("fixed amount coupon", func(t *testing.T) {
		quote, err := Price(testLines(), testCoupon(domain.DiscountFixed, 5000))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if quote.Total != 13000 {
			t.Errorf("expected total 13000, got %d", quote.Total)
		}
	})

	t.Run("fixed amount exceeding subtotal floors at zero", func(t *testing.T) {
		quote, err := Price(testLines(), testCoupon(domain.DiscountFixed, 99999))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if quote.Total != 0 {
			t.Errorf("expected total 0, got %d", quote.Total)
		}
	})

	t.Run("percentage coupon", func(t *testing.T) {
		quote, err := Price(testLines(), testCoupon(domain.DiscountPercentage, 20))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if quote.Total != 14400 {
			t.Errorf("expected total 14400, got %d", quote.Total)
		}
	})

	t.Run("zero percent coupon changes nothing", func(t *testing.T) {
		quote, err := Price(testLines(), testCoupon(domain.DiscountPercentage, 0))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if quote.Total != quote.Subtotal {
			t.Errorf("expected total %d, got %d", quote.Subtotal, quote.Total)
		}
	})

	t.Run("hundred percent coupon yields zero", func(t *testing.T) {
		quote, err := Price(testLines(), testCoupon(domain.DiscountPercentage, 100))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if quote.Total != 0 {
			t.Errorf("expected total 0, got %d", quote.Total)
		}
	})

	t.Run("coupon never raises total above subtotal", func(t *testing.T) {
		for _, c := range []*domain.Coupon{
			testCoupon(domain.DiscountFixed, 1),
			testCoupon(domain.DiscountPercentage, 1),
			testCoupon(domain.DiscountPercentage, 99),
		} {
			quote, err := Price(testLines(), c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if quote.Total > quote.Subtotal {
				t.Errorf("coupon %v: total %d exceeds subtotal %d", c.Value, quote.Total, quote.Subtotal)
			}
		}
	})

	t.Run("snapshot copies coupon fields", func(t *testing.T) {
		coupon := testCoupon(domain.DiscountFixed, 5000)
		quote, err := Price(testLines(), coupon)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if quote.Coupon == nil {
			t.Fatal("expected coupon snapshot")
		}
		if quote.Coupon.CouponID != coupon.ID || quote.Coupon.Code != coupon.Code || quote.Coupon.Value != coupon.Value {
			t.Errorf("snapshot %+v does not match coupon %+v", quote.Coupon, coupon)
		}
	})

	t.Run("empty cart is rejected", func(t *testing.T) {
		if _, err := Price(nil, nil); err != ErrEmptyCart {
			t.Errorf("expected ErrEmptyCart, got %v", err)
		}
	})

	t.Run("line items are frozen product snapshots", func(t *testing.T) {
		quote, err := Price(testLines(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(quote.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(quote.Items))
		}
		item := quote.Items[0]
		if item.Name != "widget" || item.UnitPrice != 10000 || item.FinalUnitPrice != 9000 || item.Quantity != 2 {
			t.Errorf("unexpected frozen item: %+v", item)
		}
	})
}
