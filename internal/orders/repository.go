package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ecommkit/storefront/internal/domain"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrAlreadyPlaced  = errors.New("order already placed")
	ErrOrderCancelled = errors.New("order is cancelled")
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// queryer lets the order loads run either on the pool or inside an
// open transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Create persists a pending order with its frozen line items and
// optional coupon snapshot in one transaction. Nothing is written if
// any insert fails.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()
	order.Status = domain.OrderStatusPending

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, payment_method, status, order_price, final_price, phone, street, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, order.ID, order.UserID, order.PaymentMethod, order.Status, order.OrderPrice, order.FinalPrice,
		order.Address.Phone, order.Address.Street, order.CreatedAt)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, name, unit_price, final_unit_price, discount_percent, quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.New().String(), order.ID, item.ProductID, item.Name, item.UnitPrice, item.FinalUnitPrice, item.DiscountPercent, item.Quantity)
		if err != nil {
			return err
		}
	}

	if order.Coupon != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_coupons (order_id, coupon_id, code, kind, value)
			VALUES ($1, $2, $3, $4, $5)
		`, order.ID, order.Coupon.CouponID, order.Coupon.Code, order.Coupon.Kind, order.Coupon.Value)
		if err != nil {
			return err
		}
	}

	if err := insertTransition(ctx, tx, order.ID, "", order.Status, ""); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return getOrder(ctx, r.db, id)
}

func getOrder(ctx context.Context, q queryer, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, payment_method, status, order_price, final_price, phone, street, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.UserID, &order.PaymentMethod, &order.Status, &order.OrderPrice,
		&order.FinalPrice, &order.Address.Phone, &order.Address.Street, &order.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if err := loadItems(ctx, q, order); err != nil {
		return nil, err
	}

	if err := loadCoupon(ctx, q, order); err != nil {
		return nil, err
	}

	return order, nil
}

func loadItems(ctx context.Context, q queryer, order *domain.Order) error {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, name, unit_price, final_unit_price, discount_percent, quantity
		FROM order_items
		WHERE order_id = $1
	`, order.ID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.UnitPrice, &item.FinalUnitPrice, &item.DiscountPercent, &item.Quantity); err != nil {
			return err
		}
		order.Items = append(order.Items, item)
	}

	return rows.Err()
}

func loadCoupon(ctx context.Context, q queryer, order *domain.Order) error {
	snapshot := &domain.CouponSnapshot{}

	err := q.QueryRowContext(ctx, `
		SELECT coupon_id, code, kind, value
		FROM order_coupons
		WHERE order_id = $1
	`, order.ID).Scan(&snapshot.CouponID, &snapshot.Code, &snapshot.Kind, &snapshot.Value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	}

	order.Coupon = snapshot
	return nil
}

func (r *OrderRepository) GetStatus(ctx context.Context, id string) (domain.OrderStatus, error) {
	var status domain.OrderStatus

	err := r.db.QueryRowContext(ctx, `
		SELECT status FROM orders WHERE id = $1
	`, id).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrOrderNotFound
		}
		return "", err
	}

	return status, nil
}

// MarkPlaced transitions pending -> placed using the order's durable
// status as the optimistic guard: only one caller can win the UPDATE,
// so a replayed payment event sees ErrAlreadyPlaced instead of a second
// transition. The winning transition and its triggering event id are
// recorded in order_transitions. The returned order is read inside the
// same transaction, before the commit: an error from MarkPlaced means
// the transition did not become durable and a redelivery will retry it.
func (r *OrderRepository) MarkPlaced(ctx context.Context, orderID, eventID string) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, domain.OrderStatusPlaced, orderID, domain.OrderStatusPending)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		status, err := r.GetStatus(ctx, orderID)
		if err != nil {
			return nil, err
		}
		switch status {
		case domain.OrderStatusPlaced:
			return nil, ErrAlreadyPlaced
		case domain.OrderStatusCancelled:
			return nil, ErrOrderCancelled
		default:
			return nil, fmt.Errorf("order %s in unexpected status %s", orderID, status)
		}
	}

	if err := insertTransition(ctx, tx, orderID, domain.OrderStatusPending, domain.OrderStatusPlaced, eventID); err != nil {
		return nil, err
	}

	order, err := getOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return order, nil
}

// Cancel transitions pending -> cancelled. Terminal states are left
// untouched and reported through the usual sentinels.
func (r *OrderRepository) Cancel(ctx context.Context, orderID, eventID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, domain.OrderStatusCancelled, orderID, domain.OrderStatusPending)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		status, err := r.GetStatus(ctx, orderID)
		if err != nil {
			return err
		}
		switch status {
		case domain.OrderStatusPlaced:
			return ErrAlreadyPlaced
		case domain.OrderStatusCancelled:
			return ErrOrderCancelled
		default:
			return fmt.Errorf("order %s in unexpected status %s", orderID, status)
		}
	}

	if err := insertTransition(ctx, tx, orderID, domain.OrderStatusPending, domain.OrderStatusCancelled, eventID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, payment_method, status, order_price, final_price, phone, street, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.PaymentMethod, &order.Status, &order.OrderPrice,
			&order.FinalPrice, &order.Address.Phone, &order.Address.Street, &order.CreatedAt); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, name, unit_price, final_unit_price, discount_percent, quantity
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Name, &item.UnitPrice, &item.FinalUnitPrice, &item.DiscountPercent, &item.Quantity); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func insertTransition(ctx context.Context, tx *sql.Tx, orderID string, from, to domain.OrderStatus, eventID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_transitions (id, order_id, from_status, to_status, event_id, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), NOW())
	`, uuid.New().String(), orderID, string(from), string(to), eventID)
	return err
}
