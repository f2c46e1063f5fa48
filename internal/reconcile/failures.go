package reconcile

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Failure is a durable record of a reconciliation step that could not
// complete. Redelivery of the event must not be assumed, so these rows
// are the remediation path for operators, not a retry queue.
type Failure struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	EventID    string    `json:"event_id"`
	Step       string    `json:"step"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
}

type FailureRepository struct {
	db *sql.DB
}

func NewFailureRepository(db *sql.DB) *FailureRepository {
	return &FailureRepository{db: db}
}

func (r *FailureRepository) Record(ctx context.Context, f Failure) error {
	f.ID = uuid.New().String()
	if f.OccurredAt.IsZero() {
		f.OccurredAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reconciliation_failures (id, order_id, event_id, step, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, f.ID, f.OrderID, f.EventID, f.Step, f.Detail, f.OccurredAt)
	return err
}

func (r *FailureRepository) ListOpen(ctx context.Context) ([]Failure, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, event_id, step, detail, occurred_at
		FROM reconciliation_failures
		ORDER BY occurred_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var failures []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.ID, &f.OrderID, &f.EventID, &f.Step, &f.Detail, &f.OccurredAt); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}

	return failures, rows.Err()
}
