package coupon

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ecommkit/storefront/internal/domain"
)

var ErrCodeExists = errors.New("coupon code already exists")

type CouponRepository struct {
	db *sql.DB
}

func NewCouponRepository(db *sql.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	coupon.ID = uuid.New().String()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO coupons (id, code, kind, value, valid_from, valid_to, assigned_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NOW())
	`, coupon.ID, coupon.Code, coupon.Kind, coupon.Value, coupon.ValidFrom, coupon.ValidTo, coupon.AssignedTo)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrCodeExists
		}
		return err
	}

	return nil
}

func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	coupon := &domain.Coupon{}
	var assignedTo sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, kind, value, valid_from, valid_to, assigned_to
		FROM coupons
		WHERE code = $1
	`, code).Scan(&coupon.ID, &coupon.Code, &coupon.Kind, &coupon.Value, &coupon.ValidFrom, &coupon.ValidTo, &assignedTo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	coupon.AssignedTo = assignedTo.String

	return coupon, nil
}
