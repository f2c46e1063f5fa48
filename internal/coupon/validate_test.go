package coupon

import (
	"testing"
	"time"

	"github.com/ecommkit/storefront/internal/domain"
)

func validCoupon() *domain.Coupon {
	return &domain.Coupon{
		ID:        "c-1",
		Code:      "SAVE20",
		Kind:      domain.DiscountPercentage,
		Value:     20,
		ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestValidateNew(t *testing.T) {
	t.Run("accepts a valid percentage coupon", func(t *testing.T) {
		if err := ValidateNew(validCoupon()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("rejects percentage above 100", func(t *testing.T) {
		c := validCoupon()
		c.Value = 101
		if err := ValidateNew(c); err != ErrBadValue {
			t.Errorf("expected ErrBadValue, got %v", err)
		}
	})

	t.Run("accepts percentage of exactly 100", func(t *testing.T) {
		c := validCoupon()
		c.Value = 100
		if err := ValidateNew(c); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("accepts large fixed amounts", func(t *testing.T) {
		c := validCoupon()
		c.Kind = domain.DiscountFixed
		c.Value = 1000000
		if err := ValidateNew(c); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("accepts a zero percentage coupon", func(t *testing.T) {
		c := validCoupon()
		c.Value = 0
		if err := ValidateNew(c); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("rejects negative values", func(t *testing.T) {
		c := validCoupon()
		c.Value = -5
		if err := ValidateNew(c); err != ErrBadValue {
			t.Errorf("expected ErrBadValue, got %v", err)
		}
	})

	t.Run("rejects a zero fixed amount", func(t *testing.T) {
		c := validCoupon()
		c.Kind = domain.DiscountFixed
		c.Value = 0
		if err := ValidateNew(c); err != ErrBadValue {
			t.Errorf("expected ErrBadValue, got %v", err)
		}
	})

	t.Run("rejects unknown kinds", func(t *testing.T) {
		c := validCoupon()
		c.Kind = "bogo"
		if err := ValidateNew(c); err == nil {
			t.Error("expected an error for unknown kind")
		}
	})

	t.Run("rejects inverted validity window", func(t *testing.T) {
		c := validCoupon()
		c.ValidFrom, c.ValidTo = c.ValidTo, c.ValidFrom
		if err := ValidateNew(c); err == nil {
			t.Error("expected an error for inverted window")
		}
	})
}

func TestValidateForUse(t *testing.T) {
	inWindow := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid within window", func(t *testing.T) {
		if err := ValidateForUse(validCoupon(), "user-1", inWindow); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("expired before window", func(t *testing.T) {
		before := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		if err := ValidateForUse(validCoupon(), "user-1", before); err != ErrExpired {
			t.Errorf("expected ErrExpired, got %v", err)
		}
	})

	t.Run("expired after window", func(t *testing.T) {
		after := time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC)
		if err := ValidateForUse(validCoupon(), "user-1", after); err != ErrExpired {
			t.Errorf("expected ErrExpired, got %v", err)
		}
	})

	t.Run("assigned coupon rejects other users", func(t *testing.T) {
		c := validCoupon()
		c.AssignedTo = "user-2"
		if err := ValidateForUse(c, "user-1", inWindow); err != ErrNotAssigned {
			t.Errorf("expected ErrNotAssigned, got %v", err)
		}
	})

	t.Run("assigned coupon accepts its user", func(t *testing.T) {
		c := validCoupon()
		c.AssignedTo = "user-1"
		if err := ValidateForUse(c, "user-1", inWindow); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
