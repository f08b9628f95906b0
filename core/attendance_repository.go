package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AttendanceRecord is a single gym check-in.
type AttendanceRecord struct {
	ID          int64     `json:"id"`
	MemberID    int64     `json:"memberId"`
	CheckInTime time.Time `json:"checkInTime"`
}

// AttendanceRepository defines persistence operations for check-ins.
type AttendanceRepository interface {
	Record(ctx context.Context, memberID int64) (*AttendanceRecord, error)
	ListRecent(ctx context.Context, memberID int64, limit int) ([]AttendanceRecord, error)
}

// PgAttendanceRepository implements AttendanceRepository using pgxpool.
type PgAttendanceRepository struct {
	db *pgxpool.Pool
}

func NewPgAttendanceRepository(db *pgxpool.Pool) *PgAttendanceRepository {
	return &PgAttendanceRepository{db: db}
}

func (r *PgAttendanceRepository) Record(ctx context.Context, memberID int64) (*AttendanceRecord, error) {
	const q = `INSERT INTO attendance (member_id) VALUES ($1) RETURNING id, check_in_time`
	a := AttendanceRecord{MemberID: memberID}
	if err := r.db.QueryRow(ctx, q, memberID).Scan(&a.ID, &a.CheckInTime); err != nil {
		return nil, mapPgError(err)
	}
	return &a, nil
}

func (r *PgAttendanceRepository) ListRecent(ctx context.Context, memberID int64, limit int) ([]AttendanceRecord, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := r.db.Query(ctx, `
SELECT id, member_id, check_in_time
FROM attendance
WHERE member_id=$1
ORDER BY check_in_time DESC
LIMIT $2
`, memberID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]AttendanceRecord, 0, limit)
	for rows.Next() {
		var a AttendanceRecord
		if err := rows.Scan(&a.ID, &a.MemberID, &a.CheckInTime); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
