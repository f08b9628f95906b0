package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderRecord is a plan purchase recorded against a member.
type OrderRecord struct {
	ID         int64     `json:"id"`
	MemberID   int64     `json:"memberId"`
	Plan       string    `json:"plan"`
	Months     int       `json:"months"`
	PriceCents int64     `json:"priceCents"`
	OrderDate  time.Time `json:"orderDate"`
}

// OrderRepository defines persistence operations for plan orders.
type OrderRepository interface {
	Create(ctx context.Context, memberID int64, plan string, months int, priceCents int64) (*OrderRecord, error)
	ListByMember(ctx context.Context, memberID int64) ([]OrderRecord, error)
}

// PgOrderRepository implements OrderRepository using pgxpool.
type PgOrderRepository struct {
	db *pgxpool.Pool
}

func NewPgOrderRepository(db *pgxpool.Pool) *PgOrderRepository {
	return &PgOrderRepository{db: db}
}

func (r *PgOrderRepository) Create(ctx context.Context, memberID int64, plan string, months int, priceCents int64) (*OrderRecord, error) {
	const q = `INSERT INTO orders (member_id, plan, months, price_cents) VALUES ($1,$2,$3,$4)
RETURNING id, order_date`
	o := OrderRecord{MemberID: memberID, Plan: plan, Months: months, PriceCents: priceCents}
	if err := r.db.QueryRow(ctx, q, memberID, plan, months, priceCents).Scan(&o.ID, &o.OrderDate); err != nil {
		return nil, mapPgError(err)
	}
	return &o, nil
}

func (r *PgOrderRepository) ListByMember(ctx context.Context, memberID int64) ([]OrderRecord, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, member_id, plan, months, price_cents, order_date
FROM orders
WHERE member_id=$1
ORDER BY order_date DESC
`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(&o.ID, &o.MemberID, &o.Plan, &o.Months, &o.PriceCents, &o.OrderDate); err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}
