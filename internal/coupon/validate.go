package coupon

import (
	"errors"
	"time"

	"github.com/ecommkit/storefront/internal/domain"
)

var (
	ErrExpired     = errors.New("coupon is outside its validity window")
	ErrNotAssigned = errors.New("coupon is not assigned to this user")
	ErrBadValue    = errors.New("invalid discount value")
)

// ValidateNew checks a coupon at creation time. A percentage discount
// must be within 0 to 100 inclusive; 0 is a valid no-op coupon, and
// anything above 100 is an input error, not something to clamp. Fixed
// discounts must be positive.
func ValidateNew(c *domain.Coupon) error {
	if c.Value < 0 {
		return ErrBadValue
	}
	if c.Kind == domain.DiscountPercentage && c.Value > 100 {
		return ErrBadValue
	}
	if c.Kind == domain.DiscountFixed && c.Value == 0 {
		return ErrBadValue
	}
	if c.Kind != domain.DiscountPercentage && c.Kind != domain.DiscountFixed {
		return errors.New("unknown discount kind: " + string(c.Kind))
	}
	if !c.ValidTo.After(c.ValidFrom) {
		return errors.New("valid_to must be after valid_from")
	}
	return nil
}

// ValidateForUse checks a coupon at checkout time for a given user.
func ValidateForUse(c *domain.Coupon, userID string, now time.Time) error {
	if now.Before(c.ValidFrom) || now.After(c.ValidTo) {
		return ErrExpired
	}
	if c.AssignedTo != "" && c.AssignedTo != userID {
		return ErrNotAssigned
	}
	return nil
}
